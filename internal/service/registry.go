package service

import (
	"fmt"
	"sync"
	"time"

	"fashion-feedback/internal/ml"
	"fashion-feedback/internal/model"
)

// 首次训练样本数达到该值才切验证集，否则在训练集上评估
const splitThreshold = 10

// TrainingState 单个学习目标的训练进度，只有计数不落库
type TrainingState struct {
	LastTrained     *time.Time `json:"last_trained"`
	TrainingSamples int        `json:"training_samples"`
	AccuracyHistory []float64  `json:"accuracy_history"`
	ImprovementRate float64    `json:"improvement_rate"`
	ModelKind       ml.Kind    `json:"model_kind"`
}

func (s TrainingState) RecentAccuracy() *float64 {
	if len(s.AccuracyHistory) == 0 {
		return nil
	}
	v := s.AccuracyHistory[len(s.AccuracyHistory)-1]
	return &v
}

type TrainingMode string

const (
	TrainingInitial     TrainingMode = "initial"
	TrainingIncremental TrainingMode = "incremental"
)

type TrainingOutcome struct {
	Mode    TrainingMode
	Samples int
	// 只有首次训练会算验证分
	Score *float64
}

type objectiveModel struct {
	scaler *ml.StandardScaler
	model  ml.Model
	state  TrainingState
}

// ModelRegistry 每个学习目标固定一个 scaler + 一个模型，原地重训，不替换实例。
// 训练只在 worker 协程里发生；锁只保护对外的状态快照
type ModelRegistry struct {
	mu      sync.RWMutex
	entries map[model.LearningObjective]*objectiveModel
	seed    int64
	now     func() time.Time
}

// ModelKindFor 精度/质量类目标用回归，精确度/满意度类目标用分类
func ModelKindFor(objective model.LearningObjective) ml.Kind {
	switch objective {
	case model.ObjectiveStyleProfilingPrecision, model.ObjectiveUserSatisfaction:
		return ml.KindClassifier
	default:
		return ml.KindRegressor
	}
}

func NewModelRegistry(seed int64) *ModelRegistry {
	r := &ModelRegistry{
		entries: make(map[model.LearningObjective]*objectiveModel),
		seed:    seed,
		now:     time.Now,
	}
	for _, obj := range model.LearningObjectives() {
		var m ml.Model
		if ModelKindFor(obj) == ml.KindClassifier {
			m = ml.NewGradientBoostingClassifier()
		} else {
			m = ml.NewRandomForestRegressor(seed)
		}
		r.entries[obj] = &objectiveModel{
			scaler: ml.NewStandardScaler(),
			model:  m,
			state:  TrainingState{ModelKind: m.Kind()},
		}
	}
	return r
}

// Train 用一批样本更新目标的模型。
// 首次：切分训练/验证，记录验证分。之后：只用本批数据重训（不回放历史）。
// scaler 只在首次拟合，之后一直沿用。失败时模型与状态都保持不变
func (r *ModelRegistry) Train(objective model.LearningObjective, samples []TrainingSample) (TrainingOutcome, error) {
	om, ok := r.entries[objective]
	if !ok {
		return TrainingOutcome{}, fmt.Errorf("未知学习目标: %s", objective)
	}
	if len(samples) == 0 {
		return TrainingOutcome{}, ml.ErrEmptyInput
	}

	X := make([][]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		X[i] = s.Features
		y[i] = s.Target
	}

	scaler := om.scaler
	var fresh *ml.StandardScaler
	if !scaler.Fitted() {
		fresh = ml.NewStandardScaler()
		if err := fresh.Fit(X); err != nil {
			return TrainingOutcome{}, fmt.Errorf("scaler 拟合失败: %w", err)
		}
		scaler = fresh
	}
	Xs, err := scaler.Transform(X)
	if err != nil {
		return TrainingOutcome{}, fmt.Errorf("特征标准化失败: %w", err)
	}

	r.mu.RLock()
	firstTime := om.state.LastTrained == nil
	r.mu.RUnlock()

	outcome := TrainingOutcome{Samples: len(samples)}
	if firstTime {
		xTrain, xVal, yTrain, yVal := Xs, Xs, y, y
		if len(Xs) >= splitThreshold {
			xTrain, xVal, yTrain, yVal = ml.TrainTestSplit(Xs, y, 0.2, r.seed)
		}
		if err := om.model.Fit(xTrain, yTrain); err != nil {
			return TrainingOutcome{}, fmt.Errorf("模型训练失败: %w", err)
		}
		score, err := ml.Score(om.model, xVal, yVal)
		if err != nil {
			return TrainingOutcome{}, fmt.Errorf("模型评估失败: %w", err)
		}
		outcome.Mode = TrainingInitial
		outcome.Score = &score
	} else {
		if err := om.model.Fit(Xs, y); err != nil {
			return TrainingOutcome{}, fmt.Errorf("模型训练失败: %w", err)
		}
		outcome.Mode = TrainingIncremental
	}

	if fresh != nil {
		*om.scaler = *fresh
	}

	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	st := &om.state
	st.LastTrained = &now
	if firstTime {
		st.AccuracyHistory = append(st.AccuracyHistory, *outcome.Score)
		st.TrainingSamples = len(samples)
	} else {
		st.TrainingSamples += len(samples)
		recent := st.AccuracyHistory
		if len(recent) > 5 {
			recent = recent[len(recent)-5:]
		}
		rate := mean(recent) * 0.05
		if rate > 0.1 {
			rate = 0.1
		}
		st.ImprovementRate = rate
	}
	return outcome, nil
}

// FeatureImportances 模型未训练时返回 nil
func (r *ModelRegistry) FeatureImportances(objective model.LearningObjective) []float64 {
	om, ok := r.entries[objective]
	if !ok {
		return nil
	}
	return om.model.FeatureImportances()
}

// Snapshot 返回状态副本，可与训练并发调用
func (r *ModelRegistry) Snapshot(objective model.LearningObjective) TrainingState {
	om, ok := r.entries[objective]
	if !ok {
		return TrainingState{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := om.state
	st.AccuracyHistory = append([]float64(nil), om.state.AccuracyHistory...)
	if om.state.LastTrained != nil {
		t := *om.state.LastTrained
		st.LastTrained = &t
	}
	return st
}

func (r *ModelRegistry) Snapshots() map[model.LearningObjective]TrainingState {
	out := make(map[model.LearningObjective]TrainingState, len(r.entries))
	for obj := range r.entries {
		out[obj] = r.Snapshot(obj)
	}
	return out
}
