package anomaly

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

var errEmptyTrainingSet = errors.New("anomaly: empty training set")

// Scaler — стандартизация (x - mean) / std по каждому признаку.
// Параметры фиксируются при Fit и дальше только применяются.
type Scaler struct {
	mean  []float64
	scale []float64
}

// FitScaler считает среднее и смещённое (популяционное) отклонение по столбцам.
// Признак с нулевой дисперсией получает масштаб 1.
func FitScaler(rows []Vector) (*Scaler, error) {
	if len(rows) == 0 {
		return nil, errEmptyTrainingSet
	}
	dim := len(rows[0])
	s := &Scaler{mean: make([]float64, dim), scale: make([]float64, dim)}

	col := make([]float64, len(rows))
	for j := 0; j < dim; j++ {
		for i, r := range rows {
			col[i] = r[j]
		}
		mean, variance := stat.PopMeanVariance(col, nil)
		s.mean[j] = mean
		s.scale[j] = math.Sqrt(variance)
		if s.scale[j] == 0 || math.IsNaN(s.scale[j]) {
			s.scale[j] = 1
		}
	}
	return s, nil
}

// Transform не мутирует вход.
func (s *Scaler) Transform(v Vector) Vector {
	out := make(Vector, len(v))
	for j := range v {
		out[j] = (v[j] - s.mean[j]) / s.scale[j]
	}
	return out
}

func (s *Scaler) TransformAll(rows []Vector) []Vector {
	out := make([]Vector, len(rows))
	for i, r := range rows {
		out[i] = s.Transform(r)
	}
	return out
}

func (s *Scaler) Dim() int { return len(s.mean) }
