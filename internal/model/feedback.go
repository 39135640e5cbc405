package model

import (
	"time"

	"gorm.io/datatypes"
)

// FeedbackType 反馈信号类型
type FeedbackType string

const (
	FeedbackExplicitRating     FeedbackType = "explicit_rating"
	FeedbackImplicitEngagement FeedbackType = "implicit_engagement"
	FeedbackBehavioralSignals  FeedbackType = "behavioral_signals"
	FeedbackPreferenceUpdates  FeedbackType = "preference_updates"
	FeedbackRejection          FeedbackType = "rejection_feedback"
	FeedbackAcceptance         FeedbackType = "acceptance_feedback"
	FeedbackContextual         FeedbackType = "contextual_feedback"
)

func FeedbackTypes() []FeedbackType {
	return []FeedbackType{
		FeedbackExplicitRating,
		FeedbackImplicitEngagement,
		FeedbackBehavioralSignals,
		FeedbackPreferenceUpdates,
		FeedbackRejection,
		FeedbackAcceptance,
		FeedbackContextual,
	}
}

func (t FeedbackType) Valid() bool {
	for _, v := range FeedbackTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// LearningObjective 反馈要改进的系统方面，决定由哪个模型消费
type LearningObjective string

const (
	ObjectiveRecommendationAccuracy  LearningObjective = "recommendation_accuracy"
	ObjectiveStyleProfilingPrecision LearningObjective = "style_profiling_precision"
	ObjectiveCombinationQuality      LearningObjective = "combination_quality"
	ObjectiveContextUnderstanding    LearningObjective = "context_understanding"
	ObjectiveUserSatisfaction        LearningObjective = "user_satisfaction"
	ObjectiveEngagementOptimization  LearningObjective = "engagement_optimization"
)

func LearningObjectives() []LearningObjective {
	return []LearningObjective{
		ObjectiveRecommendationAccuracy,
		ObjectiveStyleProfilingPrecision,
		ObjectiveCombinationQuality,
		ObjectiveContextUnderstanding,
		ObjectiveUserSatisfaction,
		ObjectiveEngagementOptimization,
	}
}

func (o LearningObjective) Valid() bool {
	for _, v := range LearningObjectives() {
		if v == o {
			return true
		}
	}
	return false
}

// FeedbackEntry 一条用户反馈。落库后只有 processed / learning_applied 会变
type FeedbackEntry struct {
	FeedbackID        string            `gorm:"column:feedback_id;type:varchar(64);primaryKey" json:"feedback_id"`
	UserID            string            `gorm:"type:varchar(128);not null;index" json:"user_id"`
	SessionID         string            `gorm:"type:varchar(128);not null" json:"session_id"`
	FeedbackType      FeedbackType      `gorm:"type:varchar(50);not null;index" json:"feedback_type"`
	LearningObjective LearningObjective `gorm:"type:varchar(50);not null;index" json:"learning_objective"`
	// 按 feedback_type 不同而不同的字段，如 rating / accepted / engagement_score / actions
	FeedbackData datatypes.JSONMap `gorm:"type:json" json:"feedback_data"`
	// 会话上下文：session_duration / items_viewed / time_of_day / returning_user ...
	Context       datatypes.JSONMap `gorm:"type:json" json:"context"`
	Timestamp     time.Time         `gorm:"not null;index" json:"timestamp"`
	ServiceSource string            `gorm:"type:varchar(100);not null" json:"service_source"`
	Confidence    float64           `json:"confidence"`

	Processed       bool `gorm:"default:false;index" json:"processed"`
	LearningApplied bool `gorm:"default:false" json:"learning_applied"`
}

func (FeedbackEntry) TableName() string {
	return "feedback_entries"
}

// UserAdaptation 针对单个用户记录的调整（目前来自用户分群洞察）
type UserAdaptation struct {
	AdaptationID   string            `gorm:"column:adaptation_id;type:varchar(64);primaryKey" json:"adaptation_id"`
	UserID         string            `gorm:"type:varchar(128);not null;index" json:"user_id"`
	AdaptationType string            `gorm:"type:varchar(100);not null" json:"adaptation_type"`
	AdaptationData datatypes.JSONMap `gorm:"type:json" json:"adaptation_data"`
	CreatedAt      time.Time         `json:"created_at"`
	// 下游验证后回填，未评估时为空
	EffectivenessScore *float64 `json:"effectiveness_score"`
}

func (UserAdaptation) TableName() string {
	return "user_adaptations"
}

// PerformanceMetric 管线运行指标，按名字追加
type PerformanceMetric struct {
	MetricID    string    `gorm:"column:metric_id;type:varchar(64);primaryKey" json:"metric_id"`
	MetricName  string    `gorm:"type:varchar(100);not null;index" json:"metric_name"`
	MetricValue float64   `json:"metric_value"`
	Timestamp   time.Time `gorm:"index" json:"timestamp"`
	Context     string    `gorm:"type:text" json:"context"`
}

func (PerformanceMetric) TableName() string {
	return "performance_metrics"
}
