package service

import (
	"encoding/json"
	"testing"

	"fashion-feedback/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newEntry(ft model.FeedbackType, data, session map[string]any) *model.FeedbackEntry {
	return &model.FeedbackEntry{
		FeedbackID:        "fb",
		UserID:            "u1",
		SessionID:         "s1",
		FeedbackType:      ft,
		LearningObjective: model.ObjectiveRecommendationAccuracy,
		FeedbackData:      data,
		Context:           session,
		ServiceSource:     ServiceRecommendationEngine,
		Confidence:        1,
	}
}

func TestExtractTarget(t *testing.T) {
	cases := []struct {
		name string
		ft   model.FeedbackType
		data map[string]any
		want float64
	}{
		{"rating 5", model.FeedbackExplicitRating, map[string]any{"rating": 5.0}, 1.0},
		{"rating 1", model.FeedbackExplicitRating, map[string]any{"rating": 1}, 0.0},
		{"rating 3", model.FeedbackExplicitRating, map[string]any{"rating": json.Number("3")}, 0.5},
		{"accepted", model.FeedbackAcceptance, map[string]any{"accepted": true}, 1.0},
		{"not accepted", model.FeedbackAcceptance, map[string]any{"accepted": false}, 0.0},
		{"accepted missing", model.FeedbackAcceptance, map[string]any{}, 0.0},
		{"rejected", model.FeedbackRejection, map[string]any{"rejected": true}, 0.0},
		{"not rejected", model.FeedbackRejection, map[string]any{"rejected": false}, 1.0},
		{"rejected missing", model.FeedbackRejection, map[string]any{}, 0.0},
		{"engagement", model.FeedbackImplicitEngagement, map[string]any{"engagement_score": 0.73}, 0.73},
		{"engagement missing", model.FeedbackImplicitEngagement, map[string]any{}, 0.5},
		{"actions", model.FeedbackBehavioralSignals, map[string]any{"actions": []any{"like", "view", "purchase", "scroll"}}, 0.5},
		{"string actions", model.FeedbackBehavioralSignals, map[string]any{"actions": []string{"save", "share", "view"}}, 2.0 / 3},
		{"no actions", model.FeedbackBehavioralSignals, map[string]any{"actions": []any{}}, 0.5},
		{"other type", model.FeedbackContextual, map[string]any{"anything": "goes"}, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entry := newEntry(tc.ft, tc.data, nil)
			got, err := ExtractTarget(entry)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)

			// 同样的输入总是得到同样的目标
			again, err := ExtractTarget(entry)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestExtractTarget_Errors(t *testing.T) {
	_, err := ExtractTarget(newEntry(model.FeedbackExplicitRating, map[string]any{}, nil))
	assert.Error(t, err)

	_, err = ExtractTarget(newEntry(model.FeedbackExplicitRating, map[string]any{"rating": "five"}, nil))
	assert.Error(t, err)

	_, err = ExtractTarget(newEntry(model.FeedbackBehavioralSignals, map[string]any{"actions": "like"}, nil))
	assert.Error(t, err)
}

func TestFeatureVector_FixedLength(t *testing.T) {
	fx := NewFeatureExtractor(nil)

	sparse := newEntry(model.FeedbackContextual, nil, nil)
	sparse.ServiceSource = "orchestrator"
	vec, err := fx.FeatureVector(sparse)
	require.NoError(t, err)
	assert.Len(t, vec, FeatureVectorSize)

	full := newEntry(model.FeedbackAcceptance, map[string]any{
		"accepted":                 true,
		"rating":                   4,
		"recommendation_relevance": 0.9,
		"diversity_score":          0.4,
		"novelty_score":            0.2,
	}, map[string]any{
		"session_duration":      1800.0,
		"items_viewed":          50,
		"previous_interactions": 25,
		"returning_user":        true,
		"time_of_day":           12,
	})
	full.Confidence = 0.8
	vec, err = fx.FeatureVector(full)
	require.NoError(t, err)
	require.Len(t, vec, FeatureVectorSize)

	assert.Equal(t, 0.8, vec[0])
	assert.Equal(t, HashEncode(string(model.FeedbackAcceptance)), vec[1])
	assert.Equal(t, HashEncode(ServiceRecommendationEngine), vec[2])
	assert.Equal(t, 5.0, vec[3])
	assert.Equal(t, 5.0, vec[4])
	assert.InDelta(t, 0.5, vec[5], 1e-9)
	assert.InDelta(t, 0.5, vec[6], 1e-9)
	assert.InDelta(t, 0.5, vec[7], 1e-9)
	assert.Equal(t, 1.0, vec[8])
	assert.InDelta(t, 0.5, vec[9], 1e-9)
	assert.InDelta(t, 0.8, vec[10], 1e-9)
	assert.Equal(t, []float64{0.9, 0.4, 0.2}, vec[11:14])
	for _, v := range vec[14:] {
		assert.Zero(t, v)
	}
}

func TestFeatureVector_ServiceSignals(t *testing.T) {
	fx := NewFeatureExtractor(HashEncode)

	combo := newEntry(model.FeedbackAcceptance, map[string]any{"style_coherence": 0.7}, nil)
	combo.ServiceSource = ServiceCombinationEngine
	vec, err := fx.FeatureVector(combo)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.7, 0.5, 0.5}, vec[11:14])

	other := newEntry(model.FeedbackAcceptance, map[string]any{"style_coherence": 0.7}, nil)
	other.ServiceSource = ServiceStyleProfile
	vec, err = fx.FeatureVector(other)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, vec[11:14])
}

func TestFeatureVector_ExplicitRatingSlotIsNeutral(t *testing.T) {
	fx := NewFeatureExtractor(nil)
	vec, err := fx.FeatureVector(newEntry(model.FeedbackExplicitRating, map[string]any{"rating": 1}, nil))
	require.NoError(t, err)
	assert.Equal(t, 0.5, vec[10])
}

func TestFeatureVector_StoredJSONNumbers(t *testing.T) {
	fx := NewFeatureExtractor(nil)
	entry := newEntry(model.FeedbackImplicitEngagement,
		datatypes.JSONMap{"engagement_score": json.Number("0.25")},
		datatypes.JSONMap{"returning_user": json.Number("0"), "items_viewed": json.Number("10")},
	)

	sample, err := fx.Extract(entry)
	require.NoError(t, err)
	assert.Equal(t, 0.25, sample.Target)
	assert.Equal(t, 0.0, sample.Features[8])
	assert.InDelta(t, 0.1, sample.Features[6], 1e-9)
	assert.Equal(t, "fb", sample.FeedbackID)
}

func TestFeatureVector_BadContextField(t *testing.T) {
	fx := NewFeatureExtractor(nil)
	_, err := fx.Extract(newEntry(model.FeedbackAcceptance, nil, map[string]any{"items_viewed": "lots"}))
	assert.Error(t, err)
}

func TestHashEncode(t *testing.T) {
	for _, v := range []string{"", "explicit_rating", "recommendation_engine", "some other value"} {
		h := HashEncode(v)
		assert.GreaterOrEqual(t, h, 0.0)
		assert.Less(t, h, 1.0)
		assert.Equal(t, h, HashEncode(v))
	}

	custom := NewFeatureExtractor(func(string) float64 { return 0.42 })
	vec, err := custom.FeatureVector(newEntry(model.FeedbackContextual, nil, nil))
	require.NoError(t, err)
	assert.Equal(t, 0.42, vec[1])
	assert.Equal(t, 0.42, vec[2])
}

func TestRatingOf(t *testing.T) {
	r, ok := RatingOf(newEntry(model.FeedbackExplicitRating, map[string]any{"rating": 4}, nil))
	assert.True(t, ok)
	assert.Equal(t, 4.0, r)

	_, ok = RatingOf(newEntry(model.FeedbackAcceptance, map[string]any{"rating": 4}, nil))
	assert.False(t, ok)

	_, ok = RatingOf(newEntry(model.FeedbackExplicitRating, map[string]any{"rating": "4"}, nil))
	assert.False(t, ok)
}

func TestFeatureName(t *testing.T) {
	assert.Equal(t, "confidence", featureName(0))
	assert.Equal(t, "service_signal_3", featureName(13))
	assert.Equal(t, "feature_17", featureName(17))
}
