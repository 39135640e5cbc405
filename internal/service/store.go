package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fashion-feedback/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store 反馈学习的持久化层。每次调用都是独立的短语句，不持有长事务
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) SaveFeedback(ctx context.Context, entry *model.FeedbackEntry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("保存反馈失败: %w", err)
	}
	return nil
}

func (s *Store) GetFeedback(ctx context.Context, id string) (*model.FeedbackEntry, error) {
	var entry model.FeedbackEntry
	if err := s.db.WithContext(ctx).Where("feedback_id = ?", id).First(&entry).Error; err != nil {
		return nil, fmt.Errorf("查询反馈失败: %w", err)
	}
	return &entry, nil
}

func (s *Store) MarkFeedbackProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&model.FeedbackEntry{}).
		Where("feedback_id IN ?", ids).
		Update("processed", true).Error
	if err != nil {
		return fmt.Errorf("标记反馈已处理失败: %w", err)
	}
	return nil
}

// MarkLearningApplied 标记参与了成功训练的反馈
func (s *Store) MarkLearningApplied(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&model.FeedbackEntry{}).
		Where("feedback_id IN ?", ids).
		Update("learning_applied", true).Error
	if err != nil {
		return fmt.Errorf("标记反馈已学习失败: %w", err)
	}
	return nil
}

func (s *Store) SaveInsight(ctx context.Context, insight *model.LearningInsight) error {
	if err := s.db.WithContext(ctx).Create(insight).Error; err != nil {
		return fmt.Errorf("保存洞察失败: %w", err)
	}
	return nil
}

func (s *Store) MarkInsightApplied(ctx context.Context, id string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&model.LearningInsight{}).
		Where("insight_id = ?", id).
		Update("applied_at", at)
	if res.Error != nil {
		return fmt.Errorf("标记洞察已应用失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInsightNotFound
	}
	return nil
}

func (s *Store) GetInsight(ctx context.Context, id string) (*model.LearningInsight, error) {
	var insight model.LearningInsight
	err := s.db.WithContext(ctx).Where("insight_id = ?", id).First(&insight).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInsightNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询洞察失败: %w", err)
	}
	return &insight, nil
}

// InsightFilter 洞察列表过滤条件，零值表示不过滤
type InsightFilter struct {
	Objective model.LearningObjective
	Segment   string
	Applied   *bool
	Limit     int
}

func (s *Store) ListInsights(ctx context.Context, filter InsightFilter) ([]model.LearningInsight, error) {
	query := s.db.WithContext(ctx).Model(&model.LearningInsight{})
	if filter.Objective != "" {
		query = query.Where("learning_objective = ?", filter.Objective)
	}
	if filter.Segment != "" {
		query = query.Where("user_segment = ?", filter.Segment)
	}
	if filter.Applied != nil {
		if *filter.Applied {
			query = query.Where("applied_at IS NOT NULL")
		} else {
			query = query.Where("applied_at IS NULL")
		}
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var insights []model.LearningInsight
	if err := query.Order("created_at DESC").Limit(limit).Find(&insights).Error; err != nil {
		return nil, fmt.Errorf("查询洞察列表失败: %w", err)
	}
	return insights, nil
}

func (s *Store) SaveUserAdaptations(ctx context.Context, adaptations []model.UserAdaptation) error {
	if len(adaptations) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&adaptations).Error; err != nil {
		return fmt.Errorf("保存用户调整失败: %w", err)
	}
	return nil
}

func (s *Store) UserAdaptations(ctx context.Context, userID string) ([]model.UserAdaptation, error) {
	var out []model.UserAdaptation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询用户调整失败: %w", err)
	}
	return out, nil
}

func (s *Store) SaveMetric(ctx context.Context, name string, value float64, detail string) error {
	metric := model.PerformanceMetric{
		MetricID:    uuid.NewString(),
		MetricName:  name,
		MetricValue: value,
		Timestamp:   time.Now(),
		Context:     detail,
	}
	if err := s.db.WithContext(ctx).Create(&metric).Error; err != nil {
		return fmt.Errorf("保存指标失败: %w", err)
	}
	return nil
}

// FeedbackCounts 返回 (总数, 已处理数)
func (s *Store) FeedbackCounts(ctx context.Context) (int64, int64, error) {
	var total, processed int64
	db := s.db.WithContext(ctx)
	if err := db.Model(&model.FeedbackEntry{}).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("统计反馈失败: %w", err)
	}
	if err := db.Model(&model.FeedbackEntry{}).Where("processed = ?", true).Count(&processed).Error; err != nil {
		return 0, 0, fmt.Errorf("统计已处理反馈失败: %w", err)
	}
	return total, processed, nil
}

// InsightCounts 返回 (总数, 已应用数)
func (s *Store) InsightCounts(ctx context.Context) (int64, int64, error) {
	var total, applied int64
	db := s.db.WithContext(ctx)
	if err := db.Model(&model.LearningInsight{}).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("统计洞察失败: %w", err)
	}
	if err := db.Model(&model.LearningInsight{}).Where("applied_at IS NOT NULL").Count(&applied).Error; err != nil {
		return 0, 0, fmt.Errorf("统计已应用洞察失败: %w", err)
	}
	return total, applied, nil
}

// RatingsSince 取 since 之后的显式评分，rating 缺失或类型不对的条目跳过
func (s *Store) RatingsSince(ctx context.Context, since time.Time) ([]float64, error) {
	var entries []model.FeedbackEntry
	err := s.db.WithContext(ctx).
		Select("feedback_id", "feedback_type", "feedback_data").
		Where("feedback_type = ? AND timestamp >= ?", model.FeedbackExplicitRating, since).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("查询评分失败: %w", err)
	}

	ratings := make([]float64, 0, len(entries))
	for i := range entries {
		if r, ok := RatingOf(&entries[i]); ok {
			ratings = append(ratings, r)
		}
	}
	return ratings, nil
}
