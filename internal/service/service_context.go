package service

import (
	"fashion-feedback/internal/config"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceContext struct {
	Store      *Store
	State      *PipelineState
	Dispatcher *AdaptationDispatcher
	Processor  *FeedbackProcessor
	Analytics  *AnalyticsService
}

func NewServiceContext(cfg *config.Config, db *gorm.DB, log *zap.Logger) *ServiceContext {
	store := NewStore(db)
	state := NewPipelineState(cfg.Feedback)
	dispatcher := NewAdaptationDispatcher(cfg.Services, cfg.Feedback.DispatchQueueSize, store, state.Counters, log)
	processor := NewFeedbackProcessor(cfg.Feedback, state, store, dispatcher, log)

	return &ServiceContext{
		Store:      store,
		State:      state,
		Dispatcher: dispatcher,
		Processor:  processor,
		Analytics:  NewAnalyticsService(store, state, processor),
	}
}
