package ml

import (
	"fmt"
	"math/rand"
)

// RandomForestRegressor bootstrap 采样的回归树集成，预测取均值。
// 每次 Fit 使用同一个种子，结果可复现
type RandomForestRegressor struct {
	NTrees         int
	MaxDepth       int
	MinSamplesLeaf int
	Seed           int64

	trees       []*regressionTree
	width       int
	importances []float64
}

func NewRandomForestRegressor(seed int64) *RandomForestRegressor {
	return &RandomForestRegressor{
		NTrees:         50,
		MaxDepth:       10,
		MinSamplesLeaf: 1,
		Seed:           seed,
	}
}

func (m *RandomForestRegressor) Kind() Kind {
	return KindRegressor
}

func (m *RandomForestRegressor) Fit(X [][]float64, y []float64) error {
	width, err := checkXY(X, y)
	if err != nil {
		return err
	}
	nTrees := m.NTrees
	if nTrees <= 0 {
		nTrees = 1
	}

	rng := rand.New(rand.NewSource(m.Seed))
	trees := make([]*regressionTree, 0, nTrees)
	importances := make([]float64, width)
	idx := make([]int, len(X))
	for k := 0; k < nTrees; k++ {
		for i := range idx {
			idx[i] = rng.Intn(len(X))
		}
		tree := newRegressionTree(m.MaxDepth, m.MinSamplesLeaf)
		tree.fit(X, y, idx)
		trees = append(trees, tree)
		for j, v := range normalize(tree.importances) {
			importances[j] += v
		}
	}

	m.trees = trees
	m.width = width
	m.importances = normalize(importances)
	return nil
}

func (m *RandomForestRegressor) Predict(X [][]float64) ([]float64, error) {
	if len(m.trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != m.width {
			return nil, fmt.Errorf("%w: got %d columns, want %d", ErrShapeMismatch, len(row), m.width)
		}
		var sum float64
		for _, t := range m.trees {
			sum += t.predictRow(row)
		}
		out[i] = sum / float64(len(m.trees))
	}
	return out, nil
}

func (m *RandomForestRegressor) FeatureImportances() []float64 {
	if m.importances == nil {
		return nil
	}
	return append([]float64(nil), m.importances...)
}
