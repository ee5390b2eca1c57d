package errors

import "google.golang.org/grpc/codes"

// 聚类服务代码: 21 (业务服务范围 20-79)
var (
	// 请求参数错误 (类别 01)
	ErrInvalidRequest   = Register(New(MakeCode(ServiceClustering, CategoryRequest, 1), codes.InvalidArgument, "Invalid clustering request", "聚类请求参数无效"))
	ErrUnsupportedScope = Register(New(MakeCode(ServiceClustering, CategoryRequest, 2), codes.InvalidArgument, "Unsupported clustering scope", "不支持的聚类范围"))

	// 配置错误 (类别 12)，不重试
	ErrUnsupportedMode   = Register(New(MakeCode(ServiceClustering, CategoryConfig, 1), codes.InvalidArgument, "Unsupported clustering mode", "不支持的聚类算法"))

	// 资源错误 (类别 04)
	ErrRunNotFound = Register(New(MakeCode(ServiceClustering, CategoryResource, 1), codes.NotFound, "Clustering run not found", "聚类任务不存在"))

	// 流水线内部错误 (类别 07)
	ErrNoEmbeddings     = Register(New(MakeCode(ServiceClustering, CategoryInternal, 1), codes.FailedPrecondition, "No embeddings available to cluster", "没有可用于聚类的向量"))
	ErrClusteringFailed = Register(New(MakeCode(ServiceClustering, CategoryInternal, 2), codes.Internal, "Clustering failed", "聚类失败"))

	// 存储错误 (类别 08)
	ErrStoreFailure = Register(New(MakeCode(ServiceClustering, CategoryDatabase, 1), codes.Internal, "Clustering store operation failed", "聚类存储操作失败"))

	// 第三方 LLM 错误 (类别 10)
	ErrLLMFailure = Register(New(MakeCode(ServiceThirdPartyLLM, CategoryNetwork, 1), codes.Unavailable, "LLM provider call failed", "LLM 供应商调用失败"))
)
