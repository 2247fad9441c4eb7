package anomaly

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// grid — равномерная решётка side x side с шагом step.
func grid(side int, step float64) []Vector {
	rows := make([]Vector, 0, side*side)
	for i := 0; i < side; i++ {
		for j := 0; j < side; j++ {
			rows = append(rows, Vector{float64(i) * step, float64(j) * step})
		}
	}
	return rows
}

func TestScaler_Standardises(t *testing.T) {
	rows := []Vector{{1, 10, 5}, {2, 20, 5}, {3, 30, 5}}
	s, err := FitScaler(rows)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Dim())

	out := s.TransformAll(rows)
	std := math.Sqrt(2.0 / 3.0)
	assert.InDelta(t, -1/std, out[0][0], 1e-12)
	assert.InDelta(t, 0, out[1][1], 1e-12)
	assert.InDelta(t, 1/std, out[2][1], 1e-12)
	// нулевая дисперсия: масштаб 1, только центрирование
	assert.InDelta(t, 0, out[0][2], 1e-12)
	assert.InDelta(t, 2, s.Transform(Vector{2, 20, 7})[2], 1e-12)
}

func TestScaler_TransformDoesNotRefit(t *testing.T) {
	s, err := FitScaler([]Vector{{0}, {2}})
	require.NoError(t, err)
	before := s.Transform(Vector{1})[0]
	_ = s.Transform(Vector{1000})
	assert.Equal(t, before, s.Transform(Vector{1})[0])
}

func TestScaler_EmptySet(t *testing.T) {
	_, err := FitScaler(nil)
	assert.Error(t, err)
}

func TestAveragePathLength(t *testing.T) {
	assert.Zero(t, averagePathLength(0))
	assert.Zero(t, averagePathLength(1))
	assert.Equal(t, 1.0, averagePathLength(2))
	assert.InDelta(t, 10.2448, averagePathLength(256), 1e-3)
}

func TestIsolationForest_OutlierScoresLower(t *testing.T) {
	rows := grid(7, 0.1)
	f, err := FitIsolationForest(rows, ForestConfig{Trees: 100, MaxSamples: 256, Contamination: 0.1, Seed: 42})
	require.NoError(t, err)

	inlier := f.ScoreSamples(Vector{0.3, 0.3})
	outlier := f.ScoreSamples(Vector{5, 5})
	assert.Less(t, outlier, inlier)
	assert.True(t, inlier < 0 && inlier >= -1)
	assert.True(t, outlier < 0 && outlier >= -1)
	assert.LessOrEqual(t, f.Offset(), inlier)
}

func TestIsolationForest_DeterministicForSeed(t *testing.T) {
	rows := grid(6, 1)
	cfg := ForestConfig{Trees: 50, MaxSamples: 256, Contamination: 0.1, Seed: 7}
	a, err := FitIsolationForest(rows, cfg)
	require.NoError(t, err)
	b, err := FitIsolationForest(rows, cfg)
	require.NoError(t, err)

	for _, x := range []Vector{{0, 0}, {2.5, 2.5}, {9, -3}} {
		assert.Equal(t, a.ScoreSamples(x), b.ScoreSamples(x))
	}
	assert.Equal(t, a.Offset(), b.Offset())
}

func TestIsolationForest_SingleRowIsDegenerate(t *testing.T) {
	f, err := FitIsolationForest([]Vector{{1, 2}}, ForestConfig{Trees: 10, MaxSamples: 256, Contamination: 0.1, Seed: 42})
	require.NoError(t, err)
	assert.Equal(t, -0.5, f.ScoreSamples(Vector{100, 100}))
}

func TestLocalOutlierFactor_InlierNearOneOutlierFar(t *testing.T) {
	m, err := FitLocalOutlierFactor(grid(7, 1), 20, 0.1)
	require.NoError(t, err)

	inlier := m.ScoreSamples(Vector{3, 3})
	outlier := m.ScoreSamples(Vector{30, 30})
	assert.Greater(t, inlier, -1.5)
	assert.Less(t, outlier, -3.0)
	assert.Less(t, m.Offset(), 0.0)
}

func TestLocalOutlierFactor_NeighboursCappedBySampleSize(t *testing.T) {
	m, err := FitLocalOutlierFactor([]Vector{{0}, {1}, {2}}, 20, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 2, m.k)
	assert.Less(t, m.ScoreSamples(Vector{50}), m.ScoreSamples(Vector{1}))
}

func TestLocalOutlierFactor_SingleRowIsNormal(t *testing.T) {
	m, err := FitLocalOutlierFactor([]Vector{{4, 4}}, 20, 0.1)
	require.NoError(t, err)
	assert.Equal(t, -1.0, m.ScoreSamples(Vector{1000, 1000}))
}

func TestPercentile(t *testing.T) {
	values := []float64{5, 1, 3}
	assert.Equal(t, 1.0, percentile(values, 0))
	assert.Equal(t, 5.0, percentile(values, 1))
	assert.Equal(t, []float64{5, 1, 3}, values)
	assert.True(t, math.IsNaN(percentile(nil, 0.5)))
	assert.Equal(t, 7.5, percentile([]float64{7.5}, 0.9))
}

func TestSingleSampleVerdict(t *testing.T) {
	for _, s := range []float64{-0.9, -0.1, 0, 0.3, 12} {
		assert.False(t, singleSampleVerdict(s, true), s)
		assert.False(t, singleSampleVerdict(s, false), s)
	}
	assert.False(t, singleSampleVerdict(math.NaN(), false))
}
