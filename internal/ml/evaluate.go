package ml

import (
	"math/rand"
)

// TrainTestSplit 打乱后按 testFraction 切出验证集，种子固定保证可复现
func TrainTestSplit(X [][]float64, y []float64, testFraction float64, seed int64) (xTrain [][]float64, xTest [][]float64, yTrain []float64, yTest []float64) {
	n := len(X)
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(float64(n)*testFraction + 0.999999)
	if nTest >= n {
		nTest = n - 1
	}
	if nTest < 0 {
		nTest = 0
	}

	for k, i := range perm {
		if k < nTest {
			xTest = append(xTest, X[i])
			yTest = append(yTest, y[i])
		} else {
			xTrain = append(xTrain, X[i])
			yTrain = append(yTrain, y[i])
		}
	}
	return xTrain, xTest, yTrain, yTest
}

// Accuracy 真实值和预测值都以 0.5 为界二值化后比较
func Accuracy(yTrue, yPred []float64) (float64, error) {
	if len(yTrue) == 0 {
		return 0, ErrEmptyInput
	}
	if len(yTrue) != len(yPred) {
		return 0, ErrShapeMismatch
	}
	var hit int
	for i := range yTrue {
		if (yTrue[i] >= 0.5) == (yPred[i] >= 0.5) {
			hit++
		}
	}
	return float64(hit) / float64(len(yTrue)), nil
}

func MeanSquaredError(yTrue, yPred []float64) (float64, error) {
	if len(yTrue) == 0 {
		return 0, ErrEmptyInput
	}
	if len(yTrue) != len(yPred) {
		return 0, ErrShapeMismatch
	}
	var sum float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		sum += d * d
	}
	return sum / float64(len(yTrue)), nil
}
