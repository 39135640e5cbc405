package service

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"fashion-feedback/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	SegmentHighlySatisfied     = "highly_satisfied"
	SegmentModeratelySatisfied = "moderately_satisfied"
	SegmentLowSatisfaction     = "low_satisfaction"

	// 分群洞察置信度必须严格大于该值才保留
	segmentConfidenceFloor = 0.7
	// 时间模式显著性必须严格大于该值才保留
	temporalSignificanceFloor = 0.6
	// 用户评分数达到该值才计算趋势
	minRatingsForTrend = 3
	// 评分样本达到该值才按星期分桶
	minRatingsForWeekday = 10
	// 单条洞察最多给出的建议数
	maxRecommendations = 5
	topFeatureCount    = 5

	featureImportanceConfidence = 0.8
	featureImportanceImpact     = 0.6
)

var segmentOrder = []string{SegmentHighlySatisfied, SegmentModeratelySatisfied, SegmentLowSatisfaction}

var segmentRecommendations = map[string][]string{
	SegmentHighlySatisfied: {
		"Maintain the current recommendation strategy for this segment",
		"Introduce premium and exclusive pieces",
		"Invite users to loyalty and referral programs",
	},
	SegmentModeratelySatisfied: {
		"Increase personalization depth in recommendations",
		"Diversify style suggestions beyond current preferences",
		"Ask for explicit preference feedback more often",
	},
	SegmentLowSatisfaction: {
		"Immediate intervention required for retention",
		"Re-run style profiling with a guided quiz",
		"Favor safe, well-rated picks over novel items",
	},
}

// GeneratedInsights 一个目标分组产出的洞察，以及分群带来的用户调整记录
type GeneratedInsights struct {
	Insights    []*model.LearningInsight
	Adaptations []model.UserAdaptation
}

type InsightGenerator struct {
	now func() time.Time
}

func NewInsightGenerator() *InsightGenerator {
	return &InsightGenerator{now: time.Now}
}

// Generate 只看当前这一批反馈；importances 为空表示本轮模型没有更新
func (g *InsightGenerator) Generate(objective model.LearningObjective, entries []*model.FeedbackEntry, importances []float64) GeneratedInsights {
	var out GeneratedInsights
	g.userSegments(objective, entries, &out)
	if in := g.featureImportance(objective, importances); in != nil {
		out.Insights = append(out.Insights, in)
	}
	out.Insights = append(out.Insights, g.temporalPatterns(objective, entries)...)
	return out
}

type userRating struct {
	userID  string
	ratings []float64
}

type segmentMember struct {
	userID string
	avg    float64
	trend  float64
}

func (g *InsightGenerator) userSegments(objective model.LearningObjective, entries []*model.FeedbackEntry, out *GeneratedInsights) {
	var users []*userRating
	byUser := map[string]*userRating{}
	for _, e := range entries {
		rating, ok := RatingOf(e)
		if !ok {
			continue
		}
		u, seen := byUser[e.UserID]
		if !seen {
			u = &userRating{userID: e.UserID}
			byUser[e.UserID] = u
			users = append(users, u)
		}
		u.ratings = append(u.ratings, rating)
	}

	segments := map[string][]segmentMember{}
	for _, u := range users {
		m := segmentMember{userID: u.userID, avg: mean(u.ratings)}
		if len(u.ratings) >= minRatingsForTrend {
			m.trend = linearTrend(u.ratings)
		}
		seg := SegmentLowSatisfaction
		switch {
		case m.avg >= 4.0:
			seg = SegmentHighlySatisfied
		case m.avg >= 3.0:
			seg = SegmentModeratelySatisfied
		}
		segments[seg] = append(segments[seg], m)
	}

	for _, seg := range segmentOrder {
		members := segments[seg]
		if len(members) == 0 {
			continue
		}
		confidence := math.Min(1, float64(len(members))/10)
		if confidence <= segmentConfidenceFloor {
			continue
		}

		avgs := make([]float64, len(members))
		trends := make([]float64, len(members))
		userIDs := make([]any, len(members))
		for i, m := range members {
			avgs[i], trends[i], userIDs[i] = m.avg, m.trend, m.userID
		}
		avgSatisfaction := mean(avgs)
		avgTrend := mean(trends)

		recs := append([]string(nil), segmentRecommendations[seg]...)
		switch {
		case avgTrend > 0.1:
			recs = append(recs, "Satisfaction is trending up: reinforce recent changes")
		case avgTrend < -0.1:
			recs = append(recs, "Satisfaction is trending down: review recent recommendation changes")
		}

		segment := seg
		insight := g.newInsight(objective, &segment, datatypes.JSONMap{
			"type":             model.InsightUserSegment,
			"segment":          seg,
			"user_count":       len(members),
			"avg_satisfaction": avgSatisfaction,
			"avg_trend":        avgTrend,
			"user_ids":         userIDs,
		}, confidence, confidence*avgSatisfaction/5, recs)
		out.Insights = append(out.Insights, insight)

		for _, m := range members {
			out.Adaptations = append(out.Adaptations, model.UserAdaptation{
				AdaptationID:   uuid.NewString(),
				UserID:         m.userID,
				AdaptationType: "segment_assignment",
				AdaptationData: datatypes.JSONMap{
					"segment":            seg,
					"learning_objective": string(objective),
					"avg_rating":         m.avg,
					"trend":              m.trend,
					"insight_id":         insight.InsightID,
				},
				CreatedAt: insight.CreatedAt,
			})
		}
	}
}

func (g *InsightGenerator) featureImportance(objective model.LearningObjective, importances []float64) *model.LearningInsight {
	if len(importances) == 0 {
		return nil
	}
	idx := make([]int, len(importances))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return importances[idx[a]] > importances[idx[b]] })
	if len(idx) > topFeatureCount {
		idx = idx[:topFeatureCount]
	}

	top := make([]any, 0, len(idx))
	names := make([]string, 0, len(idx))
	for _, i := range idx {
		names = append(names, featureName(i))
		top = append(top, map[string]any{
			"feature":    featureName(i),
			"importance": importances[i],
		})
	}

	focus := names
	if len(focus) > 3 {
		focus = focus[:3]
	}
	return g.newInsight(objective, nil, datatypes.JSONMap{
		"type":         model.InsightFeatureImportance,
		"top_features": top,
	}, featureImportanceConfidence, featureImportanceImpact, []string{
		fmt.Sprintf("Focus optimization on %s", joinNames(focus)),
		"Improve collection quality for the highest-ranked signals",
	})
}

type timeBucketing struct {
	dimension string
	key       func(time.Time) string
}

func (g *InsightGenerator) temporalPatterns(objective model.LearningObjective, entries []*model.FeedbackEntry) []*model.LearningInsight {
	type rated struct {
		at     time.Time
		rating float64
	}
	var samples []rated
	for _, e := range entries {
		if r, ok := RatingOf(e); ok {
			samples = append(samples, rated{at: e.Timestamp, rating: r})
		}
	}
	if len(samples) == 0 {
		return nil
	}

	bucketings := []timeBucketing{{
		dimension: "hour_of_day",
		key:       func(t time.Time) string { return strconv.Itoa(t.Hour()) },
	}}
	if len(samples) >= minRatingsForWeekday {
		bucketings = append(bucketings, timeBucketing{
			dimension: "day_of_week",
			key:       func(t time.Time) string { return t.Weekday().String() },
		})
	}

	var out []*model.LearningInsight
	for _, b := range bucketings {
		var keys []string
		values := map[string][]float64{}
		for _, s := range samples {
			k := b.key(s.at)
			if _, ok := values[k]; !ok {
				keys = append(keys, k)
			}
			values[k] = append(values[k], s.rating)
		}
		if len(keys) < 2 {
			continue
		}

		avgs := make([]float64, len(keys))
		bucketAvg := map[string]any{}
		best, worst := keys[0], keys[0]
		for i, k := range keys {
			avgs[i] = mean(values[k])
			bucketAvg[k] = avgs[i]
			if avgs[i] > mean(values[best]) {
				best = k
			}
			if avgs[i] < mean(values[worst]) {
				worst = k
			}
		}

		variance := popVariance(avgs)
		significance := math.Min(1, variance/0.5)
		if significance <= temporalSignificanceFloor {
			continue
		}

		out = append(out, g.newInsight(objective, nil, datatypes.JSONMap{
			"type":            model.InsightTemporalPattern,
			"dimension":       b.dimension,
			"best_bucket":     best,
			"worst_bucket":    worst,
			"bucket_averages": bucketAvg,
			"variance":        variance,
		}, significance, significance*0.5, []string{
			fmt.Sprintf("Schedule high-value recommendations for %s=%s", b.dimension, best),
			fmt.Sprintf("Investigate low satisfaction around %s=%s", b.dimension, worst),
			"Apply time-aware optimization to content delivery",
		}))
	}
	return out
}

func (g *InsightGenerator) newInsight(objective model.LearningObjective, segment *string, data datatypes.JSONMap, confidence, impact float64, recs []string) *model.LearningInsight {
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return &model.LearningInsight{
		InsightID:             uuid.NewString(),
		LearningObjective:     objective,
		UserSegment:           segment,
		InsightData:           data,
		ConfidenceScore:       confidence,
		ImpactEstimate:        impact,
		ActionRecommendations: datatypes.JSONSlice[string](recs),
		CreatedAt:             g.now(),
	}
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	s := names[0]
	for _, n := range names[1 : len(names)-1] {
		s += ", " + n
	}
	return s + " and " + names[len(names)-1]
}
