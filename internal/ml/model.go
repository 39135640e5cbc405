// Package ml 提供反馈学习管线用到的最小模型集合：标准化、随机森林回归、
// 梯度提升分类，以及切分与评估工具。接口形状对齐 fit/predict 的惯用法，
// 不追求通用机器学习库的完整度。
package ml

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyInput    = errors.New("ml: empty input")
	ErrShapeMismatch = errors.New("ml: shape mismatch")
	ErrSingleClass   = errors.New("ml: targets contain a single class")
	ErrNotFitted     = errors.New("ml: model is not fitted")
)

type Kind string

const (
	KindRegressor  Kind = "regressor"
	KindClassifier Kind = "classifier"
)

// Model 可原地重训的模型。Fit 失败时保持原有状态不变
type Model interface {
	Kind() Kind
	Fit(X [][]float64, y []float64) error
	// 回归器返回预测值，分类器返回正类概率
	Predict(X [][]float64) ([]float64, error)
	// 未训练时返回 nil
	FeatureImportances() []float64
}

func checkXY(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, ErrEmptyInput
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("%w: %d rows, %d targets", ErrShapeMismatch, len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return 0, ErrEmptyInput
	}
	for i, row := range X {
		if len(row) != width {
			return 0, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, i, len(row), width)
		}
	}
	return width, nil
}

// Score 在验证集上评估模型：分类器用 0.5 阈值的准确率，回归器用 1/(1+MSE)
func Score(m Model, X [][]float64, y []float64) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	if m.Kind() == KindClassifier {
		return Accuracy(y, pred)
	}
	mse, err := MeanSquaredError(y, pred)
	if err != nil {
		return 0, err
	}
	return 1 / (1 + mse), nil
}

func normalize(v []float64) []float64 {
	var total float64
	for _, x := range v {
		total += x
	}
	out := make([]float64, len(v))
	if total <= 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / total
	}
	return out
}
