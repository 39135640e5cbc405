package model

import (
	"time"

	"gorm.io/datatypes"
)

// 洞察类别，写在 insight_data["type"] 里，同时作为下发时的 improvement_type
const (
	InsightUserSegment       = "user_segment"
	InsightFeatureImportance = "feature_importance"
	InsightTemporalPattern   = "temporal_pattern"
)

// LearningInsight 从同一目标的一批反馈中得出的洞察
type LearningInsight struct {
	InsightID         string            `gorm:"column:insight_id;type:varchar(64);primaryKey" json:"insight_id"`
	LearningObjective LearningObjective `gorm:"type:varchar(50);not null;index" json:"learning_objective"`
	// 全局洞察为空
	UserSegment           *string                     `gorm:"type:varchar(64);index" json:"user_segment"`
	InsightData           datatypes.JSONMap           `gorm:"type:json" json:"insight_data"`
	ConfidenceScore       float64                     `json:"confidence_score"`
	ImpactEstimate        float64                     `json:"impact_estimate"`
	ActionRecommendations datatypes.JSONSlice[string] `gorm:"type:json" json:"action_recommendations"`
	CreatedAt             time.Time                   `json:"created_at"`
	// 下发尝试之后才会写入（无论下游是否成功）
	AppliedAt *time.Time `gorm:"index" json:"applied_at"`
}

func (LearningInsight) TableName() string {
	return "learning_insights"
}

func (i *LearningInsight) Category() string {
	if i.InsightData == nil {
		return ""
	}
	s, _ := i.InsightData["type"].(string)
	return s
}
