// Package biz 实现意图聚类流水线。
//
// 一次聚类任务依次经过：加载条目、解析向量（指纹缓存命中或浓缩后向量化）、
// 聚类、组装簇、生成名称与描述、可选的相似簇合并、三维投影，最后一次性写入终态。
// 输入不足时删除任务记录并返回空结果；没有任何可用向量或算法不受支持时任务失败。
package biz
