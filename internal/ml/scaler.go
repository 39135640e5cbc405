package ml

import (
	"fmt"
	"math"
)

// StandardScaler 按列做 z-score 标准化。参数只在第一次 Fit 时确定
type StandardScaler struct {
	mean   []float64
	scale  []float64
	fitted bool
}

func NewStandardScaler() *StandardScaler {
	return &StandardScaler{}
}

func (s *StandardScaler) Fitted() bool {
	return s.fitted
}

func (s *StandardScaler) Fit(X [][]float64) error {
	if len(X) == 0 || len(X[0]) == 0 {
		return ErrEmptyInput
	}
	width := len(X[0])
	mean := make([]float64, width)
	scale := make([]float64, width)
	for _, row := range X {
		if len(row) != width {
			return fmt.Errorf("%w: got %d columns, want %d", ErrShapeMismatch, len(row), width)
		}
		for j, v := range row {
			mean[j] += v
		}
	}
	n := float64(len(X))
	for j := range mean {
		mean[j] /= n
	}
	for _, row := range X {
		for j, v := range row {
			d := v - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		// 常量列不缩放
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
	s.mean, s.scale, s.fitted = mean, scale, true
	return nil
}

func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(s.mean) {
			return nil, fmt.Errorf("%w: got %d columns, want %d", ErrShapeMismatch, len(row), len(s.mean))
		}
		r := make([]float64, len(row))
		for j, v := range row {
			r[j] = (v - s.mean[j]) / s.scale[j]
		}
		out[i] = r
	}
	return out, nil
}
