package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fashion-feedback/internal/config"
	"fashion-feedback/internal/metrics"
	"fashion-feedback/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FeedbackSubmission collect_feedback 的入参
type FeedbackSubmission struct {
	UserID            string         `json:"user_id" validate:"required"`
	SessionID         string         `json:"session_id"`
	FeedbackType      string         `json:"feedback_type" validate:"required,feedback_type"`
	LearningObjective string         `json:"learning_objective" validate:"required,learning_objective"`
	ServiceSource     string         `json:"service_source" validate:"required"`
	Confidence        *float64       `json:"confidence" validate:"omitempty,gte=0,lte=1"`
	Data              map[string]any `json:"data"`
	Context           map[string]any `json:"context"`
}

// BatchResult 一轮批处理的结果，主要给测试和日志用
type BatchResult struct {
	Processed    int
	ModelUpdates int
	Insights     []*model.LearningInsight
}

// FeedbackProcessor 反馈学习管线：同步落库入队，后台单 worker 批量训练、生成洞察、下发调整
type FeedbackProcessor struct {
	cfg        config.FeedbackConfig
	state      *PipelineState
	store      *Store
	extractor  *FeatureExtractor
	insights   *InsightGenerator
	dispatcher *AdaptationDispatcher
	validate   *validator.Validate
	log        *zap.Logger
	now        func() time.Time

	// 写锁只在 Shutdown 时持有，保证关闭后不会再有条目入队
	ingestMu sync.RWMutex
	closed   bool

	workerMu sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}

	// 模型只允许一个协程训练
	batchMu sync.Mutex
}

func NewFeedbackProcessor(cfg config.FeedbackConfig, state *PipelineState, store *Store, dispatcher *AdaptationDispatcher, log *zap.Logger) *FeedbackProcessor {
	return &FeedbackProcessor{
		cfg:        cfg,
		state:      state,
		store:      store,
		extractor:  NewFeatureExtractor(HashEncode),
		insights:   NewInsightGenerator(),
		dispatcher: dispatcher,
		validate:   newSubmissionValidator(),
		log:        log.Named("feedback"),
		now:        time.Now,
	}
}

// newSubmissionValidator 枚举取值以 model 包为准
func newSubmissionValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("feedback_type", func(fl validator.FieldLevel) bool {
		return model.FeedbackType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("learning_objective", func(fl validator.FieldLevel) bool {
		return model.LearningObjective(fl.Field().String()).Valid()
	})
	return v
}

// CollectFeedback 校验、落库、入队，返回 feedback_id。落库失败时不入队
func (p *FeedbackProcessor) CollectFeedback(ctx context.Context, sub FeedbackSubmission) (string, error) {
	if err := p.validate.Struct(sub); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFeedback, err)
	}

	p.ingestMu.RLock()
	defer p.ingestMu.RUnlock()
	if p.closed {
		return "", ErrProcessorClosed
	}

	entry := &model.FeedbackEntry{
		FeedbackID:        uuid.NewString(),
		UserID:            sub.UserID,
		SessionID:         sub.SessionID,
		FeedbackType:      model.FeedbackType(sub.FeedbackType),
		LearningObjective: model.LearningObjective(sub.LearningObjective),
		FeedbackData:      sub.Data,
		Context:           sub.Context,
		Timestamp:         p.now(),
		ServiceSource:     sub.ServiceSource,
		Confidence:        1.0,
	}
	if entry.SessionID == "" {
		entry.SessionID = uuid.NewString()
	}
	if entry.FeedbackData == nil {
		entry.FeedbackData = map[string]any{}
	}
	if entry.Context == nil {
		entry.Context = map[string]any{}
	}
	if sub.Confidence != nil {
		entry.Confidence = *sub.Confidence
	}

	if err := p.store.SaveFeedback(ctx, entry); err != nil {
		return "", err
	}

	if dropped := p.state.Queue.Push(entry); dropped != nil {
		p.state.Counters.FeedbackDropped.Add(1)
		metrics.FeedbackDropped.Inc()
		p.log.Warn("feedback queue full, oldest entry dropped", zap.String("feedback_id", dropped.FeedbackID))
	}
	metrics.FeedbackCollected.WithLabelValues(sub.FeedbackType).Inc()
	metrics.FeedbackQueueDepth.Set(float64(p.state.Queue.Len()))

	p.ensureWorker()
	return entry.FeedbackID, nil
}

// ensureWorker 懒启动后台 worker，调用方需持有 ingestMu 读锁
func (p *FeedbackProcessor) ensureWorker() {
	p.workerMu.Lock()
	defer p.workerMu.Unlock()
	if p.running || p.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	go p.run(ctx, p.done)
}

func (p *FeedbackProcessor) WorkerRunning() bool {
	p.workerMu.Lock()
	defer p.workerMu.Unlock()
	return p.running
}

func (p *FeedbackProcessor) Accepting() bool {
	p.ingestMu.RLock()
	defer p.ingestMu.RUnlock()
	return !p.closed
}

func (p *FeedbackProcessor) State() *PipelineState {
	return p.state
}

func (p *FeedbackProcessor) run(ctx context.Context, done chan struct{}) {
	log := p.log.Named("worker")
	defer func() {
		p.workerMu.Lock()
		p.running = false
		p.workerMu.Unlock()
		close(done)
	}()
	log.Info("feedback worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("feedback worker stopped")
			return
		case <-p.state.Queue.Ready():
		}

		// Ready 是合并通知，一次信号可能对应多批
		for p.state.Queue.Len() > 0 {
			wait := p.cfg.IdleInterval
			if !p.cycle(ctx) {
				wait = p.cfg.ErrorBackoff
			}
			select {
			case <-ctx.Done():
				log.Info("feedback worker stopped")
				return
			case <-time.After(wait):
			}
		}
	}
}

// cycle 处理一批；发生 panic 时返回 false
func (p *FeedbackProcessor) cycle(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			metrics.FeedbackBatches.WithLabelValues("panic").Inc()
			p.log.Error("feedback cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	batch := p.state.Queue.PopBatch(p.cfg.BatchSize)
	metrics.FeedbackQueueDepth.Set(float64(p.state.Queue.Len()))
	if len(batch) == 0 {
		return true
	}
	// 已取出的批次要处理完，不随 worker 取消而中断
	p.ProcessBatch(context.WithoutCancel(ctx), batch)
	metrics.FeedbackBatches.WithLabelValues("ok").Inc()
	return true
}

// ProcessBatch 按学习目标分组（保持首次出现的顺序），逐组训练并生成洞察，最后整批标记已处理。
// 任何一步失败都只影响该步本身
func (p *FeedbackProcessor) ProcessBatch(ctx context.Context, batch []*model.FeedbackEntry) BatchResult {
	p.batchMu.Lock()
	defer p.batchMu.Unlock()

	var order []model.LearningObjective
	groups := make(map[model.LearningObjective][]*model.FeedbackEntry)
	for _, e := range batch {
		if _, ok := groups[e.LearningObjective]; !ok {
			order = append(order, e.LearningObjective)
		}
		groups[e.LearningObjective] = append(groups[e.LearningObjective], e)
	}

	result := BatchResult{Processed: len(batch)}
	for _, obj := range order {
		entries := groups[obj]
		var importances []float64
		p.safely("training", obj, func() {
			importances = p.train(ctx, obj, entries, &result)
		})
		p.safely("insights", obj, func() {
			p.generateInsights(ctx, obj, entries, importances, &result)
		})
	}

	ids := make([]string, len(batch))
	for i, e := range batch {
		ids[i] = e.FeedbackID
	}
	if err := p.store.MarkFeedbackProcessed(ctx, ids); err != nil {
		p.log.Error("mark processed failed", zap.Int("batch_size", len(batch)), zap.Error(err))
	} else {
		for _, e := range batch {
			e.Processed = true
		}
	}
	p.state.Counters.BatchesProcessed.Add(1)
	return result
}

// train 返回本轮更新后的特征重要性；没有更新时返回 nil
func (p *FeedbackProcessor) train(ctx context.Context, obj model.LearningObjective, entries []*model.FeedbackEntry, result *BatchResult) []float64 {
	samples := make([]TrainingSample, 0, len(entries))
	for _, e := range entries {
		s, err := p.extractor.Extract(e)
		if err != nil {
			p.log.Warn("feature extraction failed, entry skipped",
				zap.String("feedback_id", e.FeedbackID),
				zap.Error(err),
			)
			continue
		}
		samples = append(samples, s)
	}

	if len(samples) < p.cfg.MinTrainingSamples {
		p.log.Debug("insufficient training data",
			zap.String("objective", string(obj)),
			zap.Int("samples", len(samples)),
		)
		return nil
	}

	outcome, err := p.state.Models.Train(obj, samples)
	if err != nil {
		metrics.ModelTrainingErrors.WithLabelValues(string(obj)).Inc()
		p.log.Warn("model training failed",
			zap.String("objective", string(obj)),
			zap.Int("samples", len(samples)),
			zap.Error(err),
		)
		return nil
	}

	p.state.Counters.ModelUpdates.Add(1)
	metrics.ModelUpdates.WithLabelValues(string(obj), string(outcome.Mode)).Inc()
	result.ModelUpdates++
	p.log.Info("model updated",
		zap.String("objective", string(obj)),
		zap.String("mode", string(outcome.Mode)),
		zap.Int("samples", outcome.Samples),
	)

	ids := make([]string, len(samples))
	used := make(map[string]bool, len(samples))
	for i, s := range samples {
		ids[i] = s.FeedbackID
		used[s.FeedbackID] = true
	}
	if err := p.store.MarkLearningApplied(ctx, ids); err != nil {
		p.log.Error("mark learning applied failed", zap.Error(err))
	} else {
		for _, e := range entries {
			if used[e.FeedbackID] {
				e.LearningApplied = true
			}
		}
	}
	if outcome.Score != nil {
		if err := p.store.SaveMetric(ctx, "model_validation_score", *outcome.Score, string(obj)); err != nil {
			p.log.Error("save metric failed", zap.Error(err))
		}
	}
	return p.state.Models.FeatureImportances(obj)
}

func (p *FeedbackProcessor) generateInsights(ctx context.Context, obj model.LearningObjective, entries []*model.FeedbackEntry, importances []float64, result *BatchResult) {
	generated := p.insights.Generate(obj, entries, importances)

	saved := make(map[string]bool, len(generated.Insights))
	for _, in := range generated.Insights {
		if err := p.store.SaveInsight(ctx, in); err != nil {
			p.log.Error("save insight failed", zap.String("insight_id", in.InsightID), zap.Error(err))
			continue
		}
		saved[in.InsightID] = true
		metrics.InsightsGenerated.WithLabelValues(string(obj), in.Category()).Inc()
		result.Insights = append(result.Insights, in)

		if in.ConfidenceScore <= dispatchConfidenceFloor || len(DispatchTargets(obj)) == 0 {
			continue
		}
		if !p.dispatcher.Enqueue(in) {
			p.log.Warn("adaptation queue full, insight left for manual apply", zap.String("insight_id", in.InsightID))
		}
	}

	adaptations := make([]model.UserAdaptation, 0, len(generated.Adaptations))
	for _, a := range generated.Adaptations {
		if id, _ := a.AdaptationData["insight_id"].(string); saved[id] {
			adaptations = append(adaptations, a)
		}
	}
	if err := p.store.SaveUserAdaptations(ctx, adaptations); err != nil {
		p.log.Error("save user adaptations failed", zap.Error(err))
	}
}

// safely 执行一个阶段，panic 被吞掉并记录，不影响其它目标
func (p *FeedbackProcessor) safely(stage string, obj model.LearningObjective, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("pipeline stage panicked",
				zap.String("stage", stage),
				zap.String("objective", string(obj)),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}

// Shutdown 停止接收 → 取消 worker 并限时等待 → 同步处理队列剩余条目 → 停止下发
func (p *FeedbackProcessor) Shutdown(ctx context.Context) error {
	p.ingestMu.Lock()
	if p.closed {
		p.ingestMu.Unlock()
		return nil
	}
	p.closed = true
	p.ingestMu.Unlock()

	p.workerMu.Lock()
	cancel, done := p.cancel, p.done
	p.workerMu.Unlock()
	if cancel != nil {
		cancel()
		timer := time.NewTimer(p.cfg.ShutdownTimeout)
		select {
		case <-done:
		case <-timer.C:
			p.log.Warn("feedback worker did not stop in time")
		case <-ctx.Done():
			p.log.Warn("feedback worker join interrupted", zap.Error(ctx.Err()))
		}
		timer.Stop()
	}

	rest := p.state.Queue.Drain()
	metrics.FeedbackQueueDepth.Set(0)
	if len(rest) > 0 {
		p.log.Info("processing remaining feedback before exit", zap.Int("count", len(rest)))
		size := p.cfg.BatchSize
		if size <= 0 {
			size = len(rest)
		}
		for start := 0; start < len(rest); start += size {
			end := start + size
			if end > len(rest) {
				end = len(rest)
			}
			p.safely("drain", "", func() {
				p.ProcessBatch(context.WithoutCancel(ctx), rest[start:end])
			})
		}
	}

	return p.dispatcher.Stop(ctx)
}
