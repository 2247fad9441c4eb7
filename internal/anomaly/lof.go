package anomaly

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// lrdEpsilon защищает от деления на ноль при совпадающих точках.
const lrdEpsilon = 1e-10

// LocalOutlierFactor в режиме novelty: обучающая выборка фиксируется при Fit,
// живые точки оцениваются относительно неё и в неё не добавляются.
type LocalOutlierFactor struct {
	train  []Vector
	k      int
	kdist  []float64
	lrd    []float64
	offset float64
}

// FitLocalOutlierFactor: k = min(neighbors, n-1). На одной точке модель вырождена
// и любой образец считается нормальным (LOF = 1).
func FitLocalOutlierFactor(rows []Vector, neighbors int, contamination float64) (*LocalOutlierFactor, error) {
	if len(rows) == 0 {
		return nil, errEmptyTrainingSet
	}
	m := &LocalOutlierFactor{
		train: rows,
		k:     min(neighbors, len(rows)-1),
	}
	if m.k < 1 {
		m.offset = -1
		return m, nil
	}

	n := len(rows)
	neigh := make([][]neighbor, n)
	m.kdist = make([]float64, n)
	for i := range rows {
		neigh[i] = m.nearest(rows[i], i)
		m.kdist[i] = neigh[i][m.k-1].dist
	}

	m.lrd = make([]float64, n)
	for i := range rows {
		m.lrd[i] = m.reachDensity(neigh[i])
	}

	scores := make([]float64, n)
	for i := range rows {
		scores[i] = -m.factor(neigh[i], m.lrd[i])
	}
	m.offset = percentile(scores, contamination)
	return m, nil
}

type neighbor struct {
	idx  int
	dist float64
}

// nearest возвращает k ближайших обучающих точек; skip исключает саму точку при обучении.
func (m *LocalOutlierFactor) nearest(x Vector, skip int) []neighbor {
	all := make([]neighbor, 0, len(m.train))
	for i, r := range m.train {
		if i == skip {
			continue
		}
		all = append(all, neighbor{idx: i, dist: floats.Distance(x, r, 2)})
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].dist < all[b].dist })
	return all[:m.k]
}

func (m *LocalOutlierFactor) reachDensity(neigh []neighbor) float64 {
	var sum float64
	for _, nb := range neigh {
		sum += max(m.kdist[nb.idx], nb.dist)
	}
	return 1 / (sum/float64(len(neigh)) + lrdEpsilon)
}

func (m *LocalOutlierFactor) factor(neigh []neighbor, lrd float64) float64 {
	var sum float64
	for _, nb := range neigh {
		sum += m.lrd[nb.idx]
	}
	return sum / float64(len(neigh)) / lrd
}

// ScoreSamples = -LOF(x): около -1 для типичных точек, сильно меньше для выбросов.
func (m *LocalOutlierFactor) ScoreSamples(x Vector) float64 {
	if m.k < 1 {
		return -1
	}
	neigh := m.nearest(x, -1)
	return -m.factor(neigh, m.reachDensity(neigh))
}

func (m *LocalOutlierFactor) Offset() float64 { return m.offset }
