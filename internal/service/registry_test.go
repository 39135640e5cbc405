package service

import (
	"testing"
	"time"

	"fashion-feedback/internal/ml"
	"fashion-feedback/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeSamples 第一列决定目标，其余列为常量
func makeSamples(n int, target func(i int) float64) []TrainingSample {
	out := make([]TrainingSample, n)
	for i := range out {
		features := make([]float64, FeatureVectorSize)
		features[0] = float64(i)
		features[1] = 0.3
		out[i] = TrainingSample{
			FeedbackID: string(rune('a' + i%26)),
			Features:   features,
			Target:     target(i),
		}
	}
	return out
}

func TestModelKindFor(t *testing.T) {
	assert.Equal(t, ml.KindClassifier, ModelKindFor(model.ObjectiveStyleProfilingPrecision))
	assert.Equal(t, ml.KindClassifier, ModelKindFor(model.ObjectiveUserSatisfaction))
	assert.Equal(t, ml.KindRegressor, ModelKindFor(model.ObjectiveRecommendationAccuracy))
	assert.Equal(t, ml.KindRegressor, ModelKindFor(model.ObjectiveCombinationQuality))
	assert.Equal(t, ml.KindRegressor, ModelKindFor(model.ObjectiveContextUnderstanding))
	assert.Equal(t, ml.KindRegressor, ModelKindFor(model.ObjectiveEngagementOptimization))
}

func TestModelRegistry_InitialThenIncremental(t *testing.T) {
	r := NewModelRegistry(7)
	clock := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }
	obj := model.ObjectiveRecommendationAccuracy

	before := r.Snapshot(obj)
	assert.Nil(t, before.LastTrained)
	assert.Nil(t, before.RecentAccuracy())

	out, err := r.Train(obj, makeSamples(12, func(i int) float64 { return float64(i) / 12 }))
	require.NoError(t, err)
	assert.Equal(t, TrainingInitial, out.Mode)
	require.NotNil(t, out.Score)

	st := r.Snapshot(obj)
	require.NotNil(t, st.LastTrained)
	assert.Equal(t, clock, *st.LastTrained)
	assert.Equal(t, 12, st.TrainingSamples)
	require.Len(t, st.AccuracyHistory, 1)
	assert.Greater(t, st.AccuracyHistory[0], 0.0)
	assert.LessOrEqual(t, st.AccuracyHistory[0], 1.0)
	assert.Zero(t, st.ImprovementRate)

	clock = clock.Add(time.Minute)
	out, err = r.Train(obj, makeSamples(6, func(i int) float64 { return 0.5 }))
	require.NoError(t, err)
	assert.Equal(t, TrainingIncremental, out.Mode)
	assert.Nil(t, out.Score)

	st = r.Snapshot(obj)
	assert.Equal(t, clock, *st.LastTrained)
	assert.Equal(t, 18, st.TrainingSamples)
	assert.Len(t, st.AccuracyHistory, 1)
	assert.InDelta(t, min(0.1, st.AccuracyHistory[0]*0.05), st.ImprovementRate, 1e-12)

	assert.Len(t, r.FeatureImportances(obj), FeatureVectorSize)
}

func TestModelRegistry_SmallFirstBatchValidatesOnTrainingData(t *testing.T) {
	r := NewModelRegistry(1)
	obj := model.ObjectiveUserSatisfaction

	out, err := r.Train(obj, makeSamples(6, func(i int) float64 {
		if i < 3 {
			return 0
		}
		return 1
	}))
	require.NoError(t, err)
	require.NotNil(t, out.Score)
	assert.Equal(t, 1.0, *out.Score)
	assert.Equal(t, 6, r.Snapshot(obj).TrainingSamples)
}

func TestModelRegistry_FailedFitLeavesStateUnchanged(t *testing.T) {
	r := NewModelRegistry(1)
	obj := model.ObjectiveStyleProfilingPrecision

	_, err := r.Train(obj, makeSamples(8, func(int) float64 { return 1 }))
	require.ErrorIs(t, err, ml.ErrSingleClass)

	st := r.Snapshot(obj)
	assert.Nil(t, st.LastTrained)
	assert.Zero(t, st.TrainingSamples)
	assert.Empty(t, st.AccuracyHistory)
	assert.Nil(t, r.FeatureImportances(obj))
	// 首次失败时 scaler 也不应被提交
	assert.False(t, r.entries[obj].scaler.Fitted())
}

func TestModelRegistry_Errors(t *testing.T) {
	r := NewModelRegistry(1)

	_, err := r.Train("unknown_objective", makeSamples(5, func(int) float64 { return 0 }))
	assert.Error(t, err)

	_, err = r.Train(model.ObjectiveRecommendationAccuracy, nil)
	assert.ErrorIs(t, err, ml.ErrEmptyInput)
}

func TestModelRegistry_SnapshotsCoverAllObjectives(t *testing.T) {
	r := NewModelRegistry(1)
	snaps := r.Snapshots()
	assert.Len(t, snaps, len(model.LearningObjectives()))
	for obj, st := range snaps {
		assert.Equal(t, ModelKindFor(obj), st.ModelKind)
	}

	// 快照是副本
	_, err := r.Train(model.ObjectiveCombinationQuality, makeSamples(5, func(i int) float64 { return float64(i) / 5 }))
	require.NoError(t, err)
	snap := r.Snapshot(model.ObjectiveCombinationQuality)
	snap.AccuracyHistory[0] = -1
	assert.NotEqual(t, -1.0, r.Snapshot(model.ObjectiveCombinationQuality).AccuracyHistory[0])
}
