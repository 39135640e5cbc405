package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fashion-feedback/internal/ml"
	"fashion-feedback/internal/model"
)

// 满意度统计窗口
const satisfactionWindow = 7 * 24 * time.Hour

// PipelineStatus 管线实时状态，由 FeedbackProcessor 实现
type PipelineStatus interface {
	WorkerRunning() bool
	Accepting() bool
}

type FeedbackStatistics struct {
	TotalFeedback     int64   `json:"total_feedback"`
	ProcessedFeedback int64   `json:"processed_feedback"`
	ProcessingRate    float64 `json:"processing_rate"`
	// 近 7 天显式评分均值，没有评分时为空
	AvgSatisfaction7d *float64 `json:"avg_satisfaction_7d"`
	Ratings7d         int      `json:"ratings_7d"`
	// 评分 >= 4 的占比及 Wilson 95% 区间
	PositiveShare7d *float64   `json:"positive_share_7d"`
	PositiveCI95    [2]float64 `json:"positive_share_ci95"`
}

type InsightStatistics struct {
	TotalInsights   int64   `json:"total_insights"`
	AppliedInsights int64   `json:"applied_insights"`
	ApplicationRate float64 `json:"application_rate"`
}

type ModelPerformance struct {
	ModelKind       ml.Kind    `json:"model_kind"`
	LastTrained     *time.Time `json:"last_trained"`
	TrainingSamples int        `json:"training_samples"`
	RecentAccuracy  *float64   `json:"recent_accuracy"`
	ImprovementRate float64    `json:"improvement_rate"`
}

type InfrastructureMetrics struct {
	AdaptationsApplied int64 `json:"adaptations_applied"`
	ModelUpdates       int64 `json:"model_updates"`
	BatchesProcessed   int64 `json:"batches_processed"`
	FeedbackDropped    int64 `json:"feedback_dropped"`
}

type RealTimeStatus struct {
	QueueDepth    int  `json:"queue_depth"`
	QueueCapacity int  `json:"queue_capacity"`
	WorkerRunning bool `json:"worker_running"`
	Accepting     bool `json:"accepting_feedback"`
}

type LearningAnalytics struct {
	GeneratedAt    time.Time                                    `json:"generated_at"`
	Feedback       FeedbackStatistics                           `json:"feedback_statistics"`
	Insights       InsightStatistics                            `json:"insight_statistics"`
	Models         map[model.LearningObjective]ModelPerformance `json:"model_performance"`
	Infrastructure InfrastructureMetrics                        `json:"infrastructure_metrics"`
	RealTime       RealTimeStatus                               `json:"real_time_status"`
}

// AnalyticsService 每次调用都重新查库，不做缓存
type AnalyticsService struct {
	store  *Store
	state  *PipelineState
	status PipelineStatus
	now    func() time.Time
}

func NewAnalyticsService(store *Store, state *PipelineState, status PipelineStatus) *AnalyticsService {
	return &AnalyticsService{store: store, state: state, status: status, now: time.Now}
}

func (a *AnalyticsService) GetLearningAnalytics(ctx context.Context) (*LearningAnalytics, error) {
	now := a.now()
	out := &LearningAnalytics{
		GeneratedAt: now,
		Models:      make(map[model.LearningObjective]ModelPerformance),
	}

	total, processed, err := a.store.FeedbackCounts(ctx)
	if err != nil {
		return nil, err
	}
	out.Feedback.TotalFeedback = total
	out.Feedback.ProcessedFeedback = processed
	out.Feedback.ProcessingRate = ratio(processed, total)

	ratings, err := a.store.RatingsSince(ctx, now.Add(-satisfactionWindow))
	if err != nil {
		return nil, err
	}
	out.Feedback.Ratings7d = len(ratings)
	if len(ratings) > 0 {
		avg := mean(ratings)
		out.Feedback.AvgSatisfaction7d = &avg
		positive := 0
		for _, r := range ratings {
			if r >= 4 {
				positive++
			}
		}
		share := float64(positive) / float64(len(ratings))
		out.Feedback.PositiveShare7d = &share
		lo, hi := wilsonCI(positive, len(ratings), 1.96)
		out.Feedback.PositiveCI95 = [2]float64{lo, hi}
	}

	insights, applied, err := a.store.InsightCounts(ctx)
	if err != nil {
		return nil, err
	}
	out.Insights = InsightStatistics{
		TotalInsights:   insights,
		AppliedInsights: applied,
		ApplicationRate: ratio(applied, insights),
	}

	for obj, st := range a.state.Models.Snapshots() {
		out.Models[obj] = ModelPerformance{
			ModelKind:       st.ModelKind,
			LastTrained:     st.LastTrained,
			TrainingSamples: st.TrainingSamples,
			RecentAccuracy:  st.RecentAccuracy(),
			ImprovementRate: st.ImprovementRate,
		}
	}

	c := a.state.Counters
	out.Infrastructure = InfrastructureMetrics{
		AdaptationsApplied: c.AdaptationsApplied.Load(),
		ModelUpdates:       c.ModelUpdates.Load(),
		BatchesProcessed:   c.BatchesProcessed.Load(),
		FeedbackDropped:    c.FeedbackDropped.Load(),
	}
	out.RealTime = RealTimeStatus{
		QueueDepth:    a.state.Queue.Len(),
		QueueCapacity: a.state.Queue.Cap(),
		WorkerRunning: a.status.WorkerRunning(),
		Accepting:     a.status.Accepting(),
	}
	return out, nil
}

// RenderAnalyticsMarkdown 把分析结果渲染成 Markdown 报告
func RenderAnalyticsMarkdown(a *LearningAnalytics) string {
	var b strings.Builder
	b.WriteString("# 反馈学习运行报告\n\n")
	b.WriteString(fmt.Sprintf("- generated_at: %s\n", a.GeneratedAt.Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("- queue: %d / %d\n", a.RealTime.QueueDepth, a.RealTime.QueueCapacity))
	b.WriteString(fmt.Sprintf("- worker_running: %t\n", a.RealTime.WorkerRunning))
	b.WriteString(fmt.Sprintf("- accepting_feedback: %t\n\n", a.RealTime.Accepting))

	b.WriteString("## 反馈\n\n")
	f := a.Feedback
	b.WriteString(fmt.Sprintf("- total: %d\n", f.TotalFeedback))
	b.WriteString(fmt.Sprintf("- processed: %d (%.1f%%)\n", f.ProcessedFeedback, f.ProcessingRate*100))
	if f.AvgSatisfaction7d != nil {
		b.WriteString(fmt.Sprintf("- avg_satisfaction_7d: %.2f (N=%d)\n", *f.AvgSatisfaction7d, f.Ratings7d))
		b.WriteString(fmt.Sprintf("- positive_share_7d: %.3f CI95 [%.3f, %.3f]\n",
			*f.PositiveShare7d, f.PositiveCI95[0], f.PositiveCI95[1]))
	} else {
		b.WriteString("- avg_satisfaction_7d: 无评分\n")
	}
	b.WriteString("\n")

	b.WriteString("## 洞察\n\n")
	b.WriteString(fmt.Sprintf("- total: %d\n", a.Insights.TotalInsights))
	b.WriteString(fmt.Sprintf("- applied: %d (%.1f%%)\n\n", a.Insights.AppliedInsights, a.Insights.ApplicationRate*100))

	b.WriteString("## 模型\n\n")
	b.WriteString("| 学习目标 | 模型 | 样本数 | 最近得分 | 改进率 | 最近训练 |\n")
	b.WriteString("| --- | --- | ---: | ---: | ---: | --- |\n")
	for _, obj := range model.LearningObjectives() {
		m, ok := a.Models[obj]
		if !ok {
			continue
		}
		score := "-"
		if m.RecentAccuracy != nil {
			score = fmt.Sprintf("%.3f", *m.RecentAccuracy)
		}
		trained := "从未"
		if m.LastTrained != nil {
			trained = m.LastTrained.Format(time.RFC3339)
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %.4f | %s |\n",
			obj, m.ModelKind, m.TrainingSamples, score, m.ImprovementRate, trained))
	}
	b.WriteString("\n")

	b.WriteString("## 运行计数\n\n")
	inf := a.Infrastructure
	b.WriteString(fmt.Sprintf("- batches_processed: %d\n", inf.BatchesProcessed))
	b.WriteString(fmt.Sprintf("- model_updates: %d\n", inf.ModelUpdates))
	b.WriteString(fmt.Sprintf("- adaptations_applied: %d\n", inf.AdaptationsApplied))
	b.WriteString(fmt.Sprintf("- feedback_dropped: %d\n", inf.FeedbackDropped))
	return b.String()
}
