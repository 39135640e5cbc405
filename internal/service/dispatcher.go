package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"fashion-feedback/internal/config"
	"fashion-feedback/internal/metrics"
	"fashion-feedback/internal/model"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 协作服务名，同时是 services 配置里的键
const (
	ServiceRecommendationEngine = "recommendation_engine"
	ServiceStyleProfile         = "style_profile"
	ServiceCombinationEngine    = "combination_engine"
	ServiceOrchestrator         = "orchestrator"
)

// 置信度严格大于该值的洞察会自动下发
const dispatchConfidenceFloor = 0.8

var dispatchRoutes = map[model.LearningObjective][]string{
	model.ObjectiveRecommendationAccuracy:  {ServiceRecommendationEngine},
	model.ObjectiveStyleProfilingPrecision: {ServiceStyleProfile},
	model.ObjectiveCombinationQuality:      {ServiceCombinationEngine},
	model.ObjectiveUserSatisfaction:        {ServiceRecommendationEngine, ServiceStyleProfile, ServiceCombinationEngine},
	model.ObjectiveEngagementOptimization:  {ServiceOrchestrator},
}

// DispatchTargets 目标对应的下发服务；context_understanding 没有下游
func DispatchTargets(objective model.LearningObjective) []string {
	return dispatchRoutes[objective]
}

// AdaptationDispatcher 尽力而为地把洞察下发给协作服务。
// 自动下发走有界队列 + 单个发送协程；无论下游是否成功，尝试之后都写 applied_at
type AdaptationDispatcher struct {
	store    *Store
	clients  map[string]*AdaptationClient
	counters *Counters
	log      *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	closed bool
	jobs   chan *model.LearningInsight
	done   chan struct{}
}

func NewAdaptationDispatcher(cfg config.ServicesConfig, queueSize int, store *Store, counters *Counters, log *zap.Logger) *AdaptationDispatcher {
	log = log.Named("dispatch")
	if queueSize <= 0 {
		queueSize = 256
	}
	bases := map[string]string{
		ServiceRecommendationEngine: cfg.RecommendationEngine,
		ServiceStyleProfile:         cfg.StyleProfile,
		ServiceCombinationEngine:    cfg.CombinationEngine,
		ServiceOrchestrator:         cfg.Orchestrator,
	}
	clients := make(map[string]*AdaptationClient, len(bases))
	for name, base := range bases {
		clients[name] = NewAdaptationClient(name, base, cfg.AdaptTimeout, log)
	}

	d := &AdaptationDispatcher{
		store:    store,
		clients:  clients,
		counters: counters,
		log:      log,
		now:      time.Now,
		jobs:     make(chan *model.LearningInsight, queueSize),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *AdaptationDispatcher) run() {
	defer close(d.done)
	for insight := range d.jobs {
		if err := d.Dispatch(context.Background(), insight); err != nil {
			d.log.Warn("dispatch failed", zap.String("insight_id", insight.InsightID), zap.Error(err))
		}
	}
}

// Enqueue 不阻塞；队列已满或已停止时返回 false，洞察保持未应用
func (d *AdaptationDispatcher) Enqueue(insight *model.LearningInsight) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	select {
	case d.jobs <- insight:
		return true
	default:
		return false
	}
}

// Dispatch 同步下发一条洞察。下游失败只记日志；只有没有下游或写库失败才返回错误
func (d *AdaptationDispatcher) Dispatch(ctx context.Context, insight *model.LearningInsight) error {
	targets := DispatchTargets(insight.LearningObjective)
	if len(targets) == 0 {
		return ErrNoAdaptationTarget
	}

	req := AdaptationRequest{
		InsightID:       insight.InsightID,
		ImprovementType: insight.Category(),
		Parameters:      insight.InsightData,
		Confidence:      insight.ConfidenceScore,
	}

	// 每个服务各自隔离，分支永远返回 nil
	var g errgroup.Group
	for _, name := range targets {
		client := d.clients[name]
		g.Go(func() error {
			d.send(ctx, client, req)
			return nil
		})
	}
	_ = g.Wait()

	now := d.now()
	if err := d.store.MarkInsightApplied(ctx, insight.InsightID, now); err != nil {
		return err
	}
	insight.AppliedAt = &now
	d.counters.AdaptationsApplied.Add(1)
	return nil
}

func (d *AdaptationDispatcher) send(ctx context.Context, client *AdaptationClient, req AdaptationRequest) {
	err := client.Adapt(ctx, req)
	switch {
	case err == nil:
		metrics.Adaptations.WithLabelValues(client.Service, "success").Inc()
		d.log.Info("adaptation sent",
			zap.String("service", client.Service),
			zap.String("insight_id", req.InsightID),
		)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.Adaptations.WithLabelValues(client.Service, "rejected").Inc()
		d.log.Warn("adaptation skipped, circuit open",
			zap.String("service", client.Service),
			zap.String("insight_id", req.InsightID),
		)
	default:
		metrics.Adaptations.WithLabelValues(client.Service, "failure").Inc()
		d.log.Warn("adaptation failed",
			zap.String("service", client.Service),
			zap.String("insight_id", req.InsightID),
			zap.Error(err),
		)
	}
}

// Apply 手动下发已存储的洞察（可重复下发）
func (d *AdaptationDispatcher) Apply(ctx context.Context, insightID string) (*model.LearningInsight, error) {
	insight, err := d.store.GetInsight(ctx, insightID)
	if err != nil {
		return nil, err
	}
	if err := d.Dispatch(ctx, insight); err != nil {
		return nil, err
	}
	return insight, nil
}

// Stop 停止接收新任务，等待队列中已有的任务发完
func (d *AdaptationDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
