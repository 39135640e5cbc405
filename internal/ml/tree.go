package ml

import (
	"sort"
)

const minGain = 1e-12

type treeNode struct {
	feature   int // 叶子为 -1
	threshold float64
	left      int
	right     int
	value     float64
}

// regressionTree 以方差下降为准则的 CART 回归树
type regressionTree struct {
	maxDepth       int
	minSamplesLeaf int

	nodes       []treeNode
	importances []float64
}

func newRegressionTree(maxDepth, minSamplesLeaf int) *regressionTree {
	if minSamplesLeaf < 1 {
		minSamplesLeaf = 1
	}
	return &regressionTree{maxDepth: maxDepth, minSamplesLeaf: minSamplesLeaf}
}

// fit 用 X/y 中 idx 指定的行建树（idx 可以有重复，用于 bootstrap）
func (t *regressionTree) fit(X [][]float64, y []float64, idx []int) {
	t.nodes = t.nodes[:0]
	t.importances = make([]float64, len(X[0]))
	t.build(X, y, append([]int(nil), idx...), 0)
}

func (t *regressionTree) build(X [][]float64, y []float64, idx []int, depth int) int {
	var sum, sumSq float64
	for _, i := range idx {
		sum += y[i]
		sumSq += y[i] * y[i]
	}
	n := float64(len(idx))
	parentSSE := sumSq - sum*sum/n

	node := len(t.nodes)
	t.nodes = append(t.nodes, treeNode{feature: -1, value: sum / n})

	if (t.maxDepth > 0 && depth >= t.maxDepth) || len(idx) < 2*t.minSamplesLeaf || parentSSE <= minGain {
		return node
	}

	feature, threshold, gain := t.bestSplit(X, y, idx, parentSSE)
	if feature < 0 {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	t.importances[feature] += gain

	l := t.build(X, y, left, depth+1)
	r := t.build(X, y, right, depth+1)
	t.nodes[node].feature = feature
	t.nodes[node].threshold = threshold
	t.nodes[node].left = l
	t.nodes[node].right = r
	return node
}

func (t *regressionTree) bestSplit(X [][]float64, y []float64, idx []int, parentSSE float64) (int, float64, float64) {
	bestFeature, bestThreshold, bestGain := -1, 0.0, minGain
	order := make([]int, len(idx))
	n := len(idx)

	for f := range X[idx[0]] {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		var totalSum, totalSq float64
		for _, i := range order {
			totalSum += y[i]
			totalSq += y[i] * y[i]
		}

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			v := y[order[k]]
			leftSum += v
			leftSq += v * v

			nl := k + 1
			nr := n - nl
			if nl < t.minSamplesLeaf || nr < t.minSamplesLeaf {
				continue
			}
			cur, next := X[order[k]][f], X[order[k+1]][f]
			if cur == next {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if gain := parentSSE - sse; gain > bestGain {
				bestFeature, bestThreshold, bestGain = f, (cur+next)/2, gain
			}
		}
	}
	return bestFeature, bestThreshold, bestGain
}

func (t *regressionTree) predictRow(row []float64) float64 {
	n := 0
	for t.nodes[n].feature >= 0 {
		if row[t.nodes[n].feature] <= t.nodes[n].threshold {
			n = t.nodes[n].left
		} else {
			n = t.nodes[n].right
		}
	}
	return t.nodes[n].value
}
