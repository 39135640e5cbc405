package service

import (
	"sync/atomic"

	"fashion-feedback/internal/config"
)

// Counters 进程级计数，不落库
type Counters struct {
	AdaptationsApplied atomic.Int64
	ModelUpdates       atomic.Int64
	BatchesProcessed   atomic.Int64
	FeedbackDropped    atomic.Int64
}

// PipelineState 管线的进程内状态：队列、模型注册表、计数器。
// 由 ServiceContext 创建一份，注入给 worker 和查询方
type PipelineState struct {
	Queue    *FeedbackQueue
	Models   *ModelRegistry
	Counters *Counters
}

func NewPipelineState(cfg config.FeedbackConfig) *PipelineState {
	return &PipelineState{
		Queue:    NewFeedbackQueue(cfg.QueueCapacity),
		Models:   NewModelRegistry(cfg.Seed),
		Counters: &Counters{},
	}
}
