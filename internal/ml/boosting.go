package ml

import (
	"fmt"
	"math"
)

// GradientBoostingClassifier 二分类梯度提升（对数损失），基学习器为浅回归树。
// 目标值 >= 0.5 视为正类
type GradientBoostingClassifier struct {
	NEstimators  int
	LearningRate float64
	MaxDepth     int

	init        float64
	trees       []*regressionTree
	width       int
	importances []float64
}

func NewGradientBoostingClassifier() *GradientBoostingClassifier {
	return &GradientBoostingClassifier{
		NEstimators:  50,
		LearningRate: 0.1,
		MaxDepth:     3,
	}
}

func (m *GradientBoostingClassifier) Kind() Kind {
	return KindClassifier
}

func (m *GradientBoostingClassifier) Fit(X [][]float64, y []float64) error {
	width, err := checkXY(X, y)
	if err != nil {
		return err
	}

	labels := make([]float64, len(y))
	var positives float64
	for i, v := range y {
		if v >= 0.5 {
			labels[i] = 1
			positives++
		}
	}
	if positives == 0 || positives == float64(len(y)) {
		return ErrSingleClass
	}

	p := positives / float64(len(y))
	init := math.Log(p / (1 - p))
	raw := make([]float64, len(X))
	for i := range raw {
		raw[i] = init
	}

	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	residual := make([]float64, len(X))
	trees := make([]*regressionTree, 0, m.NEstimators)
	importances := make([]float64, width)
	for k := 0; k < m.NEstimators; k++ {
		for i := range residual {
			residual[i] = labels[i] - sigmoid(raw[i])
		}
		tree := newRegressionTree(m.MaxDepth, 1)
		tree.fit(X, residual, idx)
		for i, row := range X {
			raw[i] += m.LearningRate * tree.predictRow(row)
		}
		trees = append(trees, tree)
		for j, v := range tree.importances {
			importances[j] += v
		}
	}

	m.init = init
	m.trees = trees
	m.width = width
	m.importances = normalize(importances)
	return nil
}

func (m *GradientBoostingClassifier) Predict(X [][]float64) ([]float64, error) {
	if m.trees == nil {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != m.width {
			return nil, fmt.Errorf("%w: got %d columns, want %d", ErrShapeMismatch, len(row), m.width)
		}
		raw := m.init
		for _, t := range m.trees {
			raw += m.LearningRate * t.predictRow(row)
		}
		out[i] = sigmoid(raw)
	}
	return out, nil
}

func (m *GradientBoostingClassifier) FeatureImportances() []float64 {
	if m.importances == nil {
		return nil
	}
	return append([]float64(nil), m.importances...)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
