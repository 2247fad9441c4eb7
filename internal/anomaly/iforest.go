package anomaly

import (
	"math"
	"math/rand/v2"
)

const eulerGamma = 0.5772156649015329

// ForestConfig — параметры isolation forest.
type ForestConfig struct {
	Trees         int
	MaxSamples    int
	Contamination float64
	Seed          uint64
}

// IsolationForest — ансамбль случайных деревьев изоляции.
// ScoreSamples в соглашении "больше = нормальнее": значения в [-1, 0).
type IsolationForest struct {
	trees      []*iNode
	sampleSize int
	offset     float64
}

type iNode struct {
	feature     int
	threshold   float64
	left, right *iNode
	size        int // число обучающих точек в листе
}

func (n *iNode) leaf() bool { return n.left == nil }

// FitIsolationForest строит лес на стандартизованных строках.
// Подвыборка без возвращения размером min(MaxSamples, n), глубина ограничена ceil(log2(psi)).
func FitIsolationForest(rows []Vector, cfg ForestConfig) (*IsolationForest, error) {
	if len(rows) == 0 {
		return nil, errEmptyTrainingSet
	}
	n := len(rows)
	psi := min(cfg.MaxSamples, n)
	if psi <= 0 {
		psi = n
	}
	maxDepth := int(math.Ceil(math.Log2(float64(max(psi, 2)))))

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	f := &IsolationForest{trees: make([]*iNode, 0, cfg.Trees), sampleSize: psi}
	for t := 0; t < cfg.Trees; t++ {
		sample := rng.Perm(n)[:psi]
		f.trees = append(f.trees, growTree(rows, sample, 0, maxDepth, rng))
	}

	scores := make([]float64, n)
	for i, r := range rows {
		scores[i] = f.ScoreSamples(r)
	}
	f.offset = percentile(scores, cfg.Contamination)
	return f, nil
}

func growTree(rows []Vector, idx []int, depth, maxDepth int, rng *rand.Rand) *iNode {
	if depth >= maxDepth || len(idx) <= 1 {
		return &iNode{size: len(idx)}
	}

	// признаки, по которым в узле ещё есть разброс
	dim := len(rows[idx[0]])
	lo := make([]float64, dim)
	hi := make([]float64, dim)
	for j := 0; j < dim; j++ {
		lo[j], hi[j] = math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			lo[j] = math.Min(lo[j], rows[i][j])
			hi[j] = math.Max(hi[j], rows[i][j])
		}
	}
	var candidates []int
	for j := 0; j < dim; j++ {
		if hi[j] > lo[j] {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return &iNode{size: len(idx)}
	}

	feature := candidates[rng.IntN(len(candidates))]
	threshold := lo[feature] + rng.Float64()*(hi[feature]-lo[feature])

	var left, right []int
	for _, i := range idx {
		if rows[i][feature] < threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &iNode{size: len(idx)}
	}
	return &iNode{
		feature:   feature,
		threshold: threshold,
		left:      growTree(rows, left, depth+1, maxDepth, rng),
		right:     growTree(rows, right, depth+1, maxDepth, rng),
	}
}

func pathLength(n *iNode, x Vector) float64 {
	depth := 0.0
	for !n.leaf() {
		if x[n.feature] < n.threshold {
			n = n.left
		} else {
			n = n.right
		}
		depth++
	}
	return depth + averagePathLength(n.size)
}

// averagePathLength — средняя длина неуспешного поиска в BST из n элементов.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

// ScoreSamples = -2^(-E[h(x)]/c(psi)). Вырожденный лес (psi = 1) даёт -0.5.
func (f *IsolationForest) ScoreSamples(x Vector) float64 {
	denom := float64(len(f.trees)) * averagePathLength(f.sampleSize)
	if denom == 0 {
		return -0.5
	}
	var total float64
	for _, t := range f.trees {
		total += pathLength(t, x)
	}
	return -math.Pow(2, -total/denom)
}

// Offset — порог ScoreSamples, ниже которого лежит доля contamination обучающей выборки.
func (f *IsolationForest) Offset() float64 { return f.offset }
