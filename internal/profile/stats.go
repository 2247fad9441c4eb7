package profile

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/xela07ax/fraudprofile/internal/domain"
)

// incrementalMean: new = (old*(n-1) + x) / n. При n <= 0 возвращает 0.
func incrementalMean(old float64, n int, x float64) float64 {
	if n <= 0 {
		return 0
	}
	return (old*float64(n-1) + x) / float64(n)
}

// ratio — деление счётчиков с защитой от нуля.
func ratio(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// populationStd — стандартное отклонение генеральной совокупности; 0 при < 2 выборок.
func populationStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return math.Sqrt(stat.PopVariance(values, nil))
}

// recordedFrequencies вытаскивает frequency из всех feature_usage записей истории.
// Отсутствующее поле трактуется как domain.DefaultFrequency.
func recordedFrequencies(history []domain.HistoryEntry) ([]float64, error) {
	var out []float64
	for i, h := range history {
		if h.EventType != domain.EventFeatureUsage {
			continue
		}
		var payload struct {
			Frequency *float64 `json:"frequency"`
		}
		if err := json.Unmarshal(h.EventData, &payload); err != nil {
			return nil, fmt.Errorf("history entry %d: decode feature usage payload: %w", i, err)
		}
		f := domain.DefaultFrequency
		if payload.Frequency != nil {
			f = *payload.Frequency
		}
		out = append(out, f)
	}
	return out, nil
}
