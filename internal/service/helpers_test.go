package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"fashion-feedback/internal/config"
	"fashion-feedback/internal/db"
	"fashion-feedback/internal/model"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}

func testConfig(services config.ServicesConfig) *config.Config {
	cfg := config.Default()
	cfg.Feedback.IdleInterval = 10 * time.Millisecond
	cfg.Feedback.ErrorBackoff = 10 * time.Millisecond
	cfg.Feedback.ShutdownTimeout = 2 * time.Second
	cfg.Services = services
	if cfg.Services.AdaptTimeout == 0 {
		cfg.Services.AdaptTimeout = 300 * time.Millisecond
	}
	return cfg
}

func newTestContext(t *testing.T, services config.ServicesConfig) *ServiceContext {
	t.Helper()
	svc := NewServiceContext(testConfig(services), newTestDB(t), zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Processor.Shutdown(ctx)
	})
	return svc
}

// holdWorker 让 CollectFeedback 不再懒启动 worker，测试里手动驱动 cycle
func holdWorker(p *FeedbackProcessor) {
	p.workerMu.Lock()
	p.running = true
	p.workerMu.Unlock()
}

func releaseWorker(p *FeedbackProcessor) {
	p.workerMu.Lock()
	p.running = false
	p.workerMu.Unlock()
}

func ratingSubmission(userID string, objective model.LearningObjective, rating float64) FeedbackSubmission {
	return FeedbackSubmission{
		UserID:            userID,
		FeedbackType:      string(model.FeedbackExplicitRating),
		LearningObjective: string(objective),
		ServiceSource:     ServiceRecommendationEngine,
		Data:              map[string]any{"rating": rating},
	}
}

// seedRatings 直接落库并返回条目，不经过队列
func seedRatings(t *testing.T, store *Store, objective model.LearningObjective, ratings ...float64) []*model.FeedbackEntry {
	t.Helper()
	base := time.Now()
	out := make([]*model.FeedbackEntry, 0, len(ratings))
	for i, r := range ratings {
		e := &model.FeedbackEntry{
			FeedbackID:        fmt.Sprintf("%s-%d-%d", objective, base.UnixNano(), i),
			UserID:            fmt.Sprintf("user-%d", i),
			SessionID:         "session",
			FeedbackType:      model.FeedbackExplicitRating,
			LearningObjective: objective,
			FeedbackData:      map[string]any{"rating": r},
			Context: map[string]any{
				"items_viewed":     float64(i * 7 % 40),
				"session_duration": float64(300 + i*60),
			},
			Timestamp:     base,
			ServiceSource: ServiceRecommendationEngine,
			Confidence:    1,
		}
		require.NoError(t, store.SaveFeedback(context.Background(), e))
		out = append(out, e)
	}
	return out
}
