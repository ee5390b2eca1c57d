package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/sentinel-cluster/internal/clustering/metrics"
	"github.com/kart-io/sentinel-cluster/internal/clustering/store"
	"github.com/kart-io/sentinel-cluster/internal/model"
	"github.com/kart-io/sentinel-cluster/pkg/errors"
	ctxlog "github.com/kart-io/sentinel-cluster/pkg/infra/logger"
	"github.com/kart-io/sentinel-cluster/pkg/infra/tracing"
	"github.com/kart-io/sentinel-cluster/pkg/llm"
)

const tracerName = "sentinel-cluster/clustering"

// EmbedderFactory 按任务指定的向量模型构造向量化供应商。
type EmbedderFactory func(modelID string) (llm.EmbeddingProvider, error)

// Submitter 后台任务提交，由 pkg/infra/pool.Pool 实现。
type Submitter interface {
	Submit(task func()) error
}

// Dependencies 聚类服务的协作者。
type Dependencies struct {
	Runs       store.RunStore
	Clusters   store.ClusterStore
	Embeddings store.EmbeddingStore
	Items      store.ItemLoader

	Chat      llm.ChatProvider
	Embedders EmbedderFactory

	// CondensePool 浓缩阶段的有界执行器。
	CondensePool Executor
	// Background 完成通知等后台任务。
	Background Submitter
	Notifier   Notifier

	Metrics *metrics.ClusteringMetrics
}

// ClusteringService 聚类任务控制器。
type ClusteringService struct {
	deps   Dependencies
	config *ServiceConfig

	resolver   *EmbeddingResolver
	engine     *ClusteringEngine
	summarizer *ClusterSummarizer
}

// NewClusteringService 创建聚类服务。
func NewClusteringService(deps Dependencies, config *ServiceConfig) *ClusteringService {
	if config == nil {
		config = DefaultServiceConfig()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Global()
	}
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{}
	}

	condenser := NewCondenser(deps.Chat, deps.CondensePool, config.Condenser, deps.Metrics)
	return &ClusteringService{
		deps:       deps,
		config:     config,
		resolver:   NewEmbeddingResolver(deps.Embeddings, condenser, config.Resolver, deps.Metrics),
		engine:     NewClusteringEngine(config.Clusterer),
		summarizer: NewClusterSummarizer(deps.Chat, config.Summarizer, deps.Metrics),
	}
}

// runState 单次任务的中间状态。
type runState struct {
	run      *model.Clustering
	items    map[string]model.Item
	progress *Progress

	embeddings []*model.Embedding
	matrix     [][]float64
	clusters   []*model.Cluster
}

// Run 执行一次聚类任务。
// 返回完成的任务记录；输入不足时删除任务记录并返回 nil, nil；其他失败返回错误且任务不会进入 completed。
func (s *ClusteringService) Run(ctx context.Context, req *model.ClusteringRequest) (result *model.Clustering, err error) {
	req.Default()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, tracerName, "clustering.run",
		attribute.String("project_id", req.ProjectID),
		attribute.String("scope", string(req.Scope)),
		attribute.String("mode", string(req.ClusteringMode)),
	)
	defer func() { tracing.EndSpan(span, err) }()

	run := newRun(req)
	if err := s.deps.Runs.Create(ctx, run); err != nil {
		return nil, err
	}
	s.deps.Metrics.RecordRunStarted()
	ctx = ctxlog.WithTraceFields(ctxlog.WithProjectID(ctxlog.WithRunID(ctx, run.ID), run.ProjectID))
	ctxlog.LogInfo(ctx, "clustering run started", "scope", run.Scope, "mode", run.ClusteringMode)

	st := &runState{run: run, progress: NewProgress(s.deps.Runs, run.ID)}

	items, err := s.load(ctx, st, req.Filters)
	if err != nil {
		s.deps.Metrics.RecordRunFailed()
		return nil, err
	}
	if items == nil {
		return nil, nil
	}

	if err = s.resolve(ctx, st, items); err == nil {
		err = s.execute(ctx, st)
	}
	if err != nil {
		s.deps.Metrics.RecordRunFailed()
		ctxlog.LogErrorChain(ctx, "clustering run failed", err, "status", run.Status)
		return nil, err
	}

	s.deps.Metrics.RecordRunCompleted()
	elapsed := time.Since(start)
	ctxlog.LogInfo(ctx, "clustering run completed",
		"clusters", len(st.clusters),
		"embeddings", len(st.embeddings),
		"elapsed", elapsed.String(),
	)
	s.maybeNotify(run, elapsed)

	return s.deps.Runs.Get(ctx, run.ID)
}

func newRun(req *model.ClusteringRequest) *model.Clustering {
	return &model.Clustering{
		ID:             req.ClusteringID,
		OrgID:          req.OrgID,
		ProjectID:      req.ProjectID,
		Name:           req.ClusteringName,
		Scope:          req.Scope,
		Model:          req.Model,
		Instruction:    req.Instruction,
		Status:         model.StatusStarted,
		Filters:        req.Filters,
		Limit:          req.Limit,
		ClusteringMode: req.ClusteringMode,
		OutputFormat:   req.OutputFormat,
		MergeClusters:  req.MergeClusters,
		NbClusters:     req.NbClusters,
		ClustersIDs:    []string{},
		UserEmail:      req.UserEmail,
	}
}

// load 加载并过滤条目；有效条目不足时删除任务记录并返回 nil。
func (s *ClusteringService) load(ctx context.Context, st *runState, filters map[string]any) ([]model.Item, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "clustering.load")
	defer span.End()

	items, err := s.deps.Items.LoadItems(ctx, st.run.ProjectID, st.run.Scope, filters, st.run.Limit)
	if err != nil {
		return nil, err
	}

	st.items = make(map[string]model.Item, len(items))
	valid := make([]model.Item, 0, len(items))
	for _, it := range items {
		if it == nil || it.ItemID() == "" || it.Transcript() == "" {
			continue
		}
		if _, dup := st.items[it.ItemID()]; dup {
			continue
		}
		st.items[it.ItemID()] = it
		valid = append(valid, it)
	}
	span.SetAttributes(attribute.Int("items.loaded", len(items)), attribute.Int("items.valid", len(valid)))

	if len(valid) == 0 || len(valid) < s.config.MinItems {
		ctxlog.LogInfo(ctx, "not enough items to cluster, rolling back run",
			"items", len(valid),
			"min_items", s.config.MinItems,
		)
		if err := s.deps.Runs.Delete(ctx, st.run.ID); err != nil {
			return nil, err
		}
		s.deps.Metrics.RecordRunRolledBack()
		return nil, nil
	}
	return valid, nil
}

// resolve 复用已有向量并为缺失条目生成新向量。
func (s *ClusteringService) resolve(ctx context.Context, st *runState, items []model.Item) error {
	if err := s.transition(ctx, st.run, model.StatusLoadingExistingEmbeddings); err != nil {
		return err
	}

	var found []*model.Embedding
	var missing []model.Item
	err := s.timed(ctx, "clustering.embed.lookup", func(ctx context.Context) error {
		var err error
		found, missing, err = s.resolver.LoadExisting(ctx, st.run, items, st.progress)
		return err
	})
	if err != nil {
		return err
	}

	if err := s.transition(ctx, st.run, model.StatusGeneratingNewEmbeddings); err != nil {
		return err
	}
	var created []*model.Embedding
	if len(missing) > 0 {
		embedder, err := s.deps.Embedders(st.run.Model)
		if err != nil {
			return errors.ErrLLMFailure.WithCause(fmt.Errorf("build embedding provider for %s: %w", st.run.Model, err))
		}
		err = s.timed(ctx, "clustering.embed.generate", func(ctx context.Context) error {
			var err error
			created, err = s.resolver.Generate(ctx, st.run, missing, embedder, st.progress, len(found), len(items))
			return err
		})
		if err != nil {
			return err
		}
	}

	st.embeddings = append(found, created...)
	if len(st.embeddings) == 0 {
		return errors.ErrNoEmbeddings.WithMessagef("no embeddings for %d items", len(items))
	}
	st.matrix = make([][]float64, len(st.embeddings))
	for i, e := range st.embeddings {
		st.matrix[i] = e.Embeddings
	}
	return nil
}

// timed 在独立 span 中执行并累计阶段耗时。
func (s *ClusteringService) timed(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, tracerName, name)
	err := fn(ctx)
	tracing.EndSpan(span, err)
	s.deps.Metrics.ObservePhase(name, time.Since(start))
	return err
}

func (s *ClusteringService) transition(ctx context.Context, run *model.Clustering, status model.Status) error {
	if err := s.deps.Runs.UpdateStatus(ctx, run.ID, status); err != nil {
		return err
	}
	run.Status = status
	ctxlog.LogDebug(ctx, "clustering phase", "phase", status)
	return nil
}

// execute 聚类、组装、摘要、合并、投影并写入终态。
func (s *ClusteringService) execute(ctx context.Context, st *runState) error {
	run := st.run

	if err := s.transition(ctx, run, model.StatusGenerateClusters); err != nil {
		return err
	}
	start := time.Now()
	labels, err := s.engine.Cluster(ctx, run.ClusteringMode, st.matrix, run.NbClusters)
	if err != nil {
		return err
	}
	st.clusters = AssembleClusters(run, labels, st.embeddings)
	s.deps.Metrics.ObservePhase(string(model.StatusGenerateClusters), time.Since(start))

	if err := s.transition(ctx, run, model.StatusSummaries); err != nil {
		return err
	}
	samples := s.summarizer.Sample(st.clusters, s.sampleSource(st))
	st.progress.Set(ctx, SummaryPercent(0, len(st.clusters)))

	if err := s.transition(ctx, run, model.StatusGenerateDescriptions); err != nil {
		return err
	}
	start = time.Now()
	err = s.summarizer.Describe(ctx, run, st.clusters, samples, func(done int) {
		st.progress.Set(ctx, SummaryPercent(done, len(st.clusters)))
	})
	if err != nil {
		return err
	}
	s.deps.Metrics.ObservePhase(string(model.StatusGenerateDescriptions), time.Since(start))

	merged := 0
	if run.MergeClusters {
		if err := s.transition(ctx, run, model.StatusMergingSimilarClusters); err != nil {
			return err
		}
		st.clusters, merged = MergeClusters(st.clusters, s.config.MergeThreshold)
	}
	s.deps.Metrics.RecordClusters(len(st.clusters)+merged, merged)

	if err := s.transition(ctx, run, model.StatusSavingClusters); err != nil {
		return err
	}
	return s.save(ctx, st)
}

// sampleSource 问答格式使用原始对话，其他格式使用浓缩文本。
func (s *ClusteringService) sampleSource(st *runState) func(*model.Cluster) []string {
	byID := make(map[string]*model.Embedding, len(st.embeddings))
	for _, e := range st.embeddings {
		byID[e.ID] = e
	}

	return func(c *model.Cluster) []string {
		texts := make([]string, 0, len(c.EmbeddingsIDs))
		for _, eid := range c.EmbeddingsIDs {
			e, ok := byID[eid]
			if !ok {
				continue
			}
			if st.run.OutputFormat == model.FormatQuestionAndAnswer {
				if it, ok := st.items[e.OwnerID()]; ok {
					texts = append(texts, it.Transcript())
					continue
				}
			}
			if e.Text != "" {
				texts = append(texts, e.Text)
			}
		}
		return texts
	}
}

func (s *ClusteringService) save(ctx context.Context, st *runState) error {
	ctx, span := tracing.StartSpan(ctx, tracerName, "clustering.save")
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	pca, perr := Project(st.matrix, st.embeddings, st.clusters)
	if perr != nil {
		ctxlog.LogWarn(ctx, "pca projection failed, saving run without projection", "error", perr.Error())
		pca = []model.PCAPoint{}
	}

	if err = s.deps.Clusters.InsertMany(ctx, st.clusters); err != nil {
		return err
	}

	ids := make([]string, len(st.clusters))
	for i, c := range st.clusters {
		ids[i] = c.ID
	}
	err = s.deps.Runs.Complete(ctx, st.run.ID, model.Completion{
		NbClusters:  len(st.clusters),
		ClustersIDs: ids,
		PCA:         pca,
	})
	if err != nil {
		return err
	}
	st.run.Status = model.StatusCompleted
	return nil
}

// maybeNotify 运行时间超过阈值且提供邮箱时在后台发送通知，失败只记录日志。
func (s *ClusteringService) maybeNotify(run *model.Clustering, elapsed time.Duration) {
	if run.UserEmail == "" || elapsed <= s.config.NotifyAfter || s.deps.Background == nil {
		return
	}

	subject := "Your clustering is ready"
	if run.Name != "" {
		subject = fmt.Sprintf("Your clustering %q is ready", run.Name)
	}
	body := fmt.Sprintf("Clustering %s of project %s finished in %s.", run.ID, run.ProjectID, elapsed.Round(time.Second))

	err := s.deps.Background.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.NotifyTimeout)
		defer cancel()
		if err := s.deps.Notifier.Notify(ctx, run.UserEmail, subject, body); err != nil {
			logger.Warnw("failed to send clustering notification", "run_id", run.ID, "error", err.Error())
		}
	})
	if err != nil {
		logger.Warnw("failed to schedule clustering notification", "run_id", run.ID, "error", err.Error())
	}
}
