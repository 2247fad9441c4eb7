// Package anomaly — банк моделей выбросов по категориям событий: извлечение
// признаков, стандартизация, isolation forest / local outlier factor и
// объяснение вердикта.
package anomaly

import (
	"github.com/xela07ax/fraudprofile/internal/domain"
)

// Vector — упорядоченный вектор признаков одной категории.
type Vector []float64

// Имена признаков живого вектора в порядке Extract. Используются как ключи в Explanation.Features.
var featureNames = map[domain.EventType][]string{
	domain.EventLogin:        {"velocity_24h", "unique_locations", "unique_devices", "avg_interval"},
	domain.EventTransaction:  {"velocity_24h", "amount", "avg_amount", "unique_merchants"},
	domain.EventFeatureUsage: {"velocity_24h", "unique_features", "avg_frequency", "std_frequency", "total_frequency"},
	domain.EventSession:      {"velocity_24h", "duration", "avg_duration", "total_sessions"},
}

// FeatureNames возвращает имена признаков категории (nil для неизвестной).
func FeatureNames(t domain.EventType) []string {
	return featureNames[t]
}

// Extract строит живой вектор по профилю до обновления и входящему событию.
// Для транзакций и сессий одно поле берётся из события.
func Extract(p *domain.Profile, ev domain.Event) (Vector, error) {
	switch ev := ev.(type) {
	case domain.LoginEvent:
		m := p.LoginMetrics
		return Vector{
			float64(m.LoginVelocity24h),
			float64(m.UniqueLocations),
			float64(m.UniqueDevices),
			m.AvgLoginInterval,
		}, nil
	case domain.TransactionEvent:
		m := p.TransactionMetrics
		return Vector{
			float64(m.TransactionVelocity24h),
			ev.Amount,
			m.AvgAmount,
			float64(m.UniqueMerchants),
		}, nil
	case domain.FeatureUsageEvent:
		return featureUsageVector(p.FeatureUsageMetrics), nil
	case domain.SessionEvent:
		m := p.SessionMetrics
		return Vector{
			float64(m.SessionVelocity24h),
			ev.SessionDuration,
			m.AvgSessionDuration,
			float64(m.TotalSessions),
		}, nil
	case nil:
		return nil, &domain.ValidationError{Field: "event", Reason: "is required"}
	}
	return nil, &domain.ValidationError{Field: "event_type", Value: string(ev.Type()), Reason: "unsupported event type"}
}

// TrainingVector строит обучающий вектор только из сохранённого снимка метрик.
// Для транзакций и сессий на месте живого поля стоит средняя величина, а рядом — максимум.
func TrainingVector(p *domain.Profile, t domain.EventType) Vector {
	switch t {
	case domain.EventLogin:
		m := p.LoginMetrics
		return Vector{
			float64(m.LoginVelocity24h),
			float64(m.UniqueLocations),
			float64(m.UniqueDevices),
			m.AvgLoginInterval,
		}
	case domain.EventTransaction:
		m := p.TransactionMetrics
		return Vector{
			float64(m.TransactionVelocity24h),
			m.AvgAmount,
			m.MaxAmount,
			float64(m.UniqueMerchants),
		}
	case domain.EventSession:
		m := p.SessionMetrics
		return Vector{
			float64(m.SessionVelocity24h),
			m.AvgSessionDuration,
			m.MaxSessionDuration,
			float64(m.TotalSessions),
		}
	case domain.EventFeatureUsage:
		return featureUsageVector(p.FeatureUsageMetrics)
	}
	return nil
}

func featureUsageVector(m domain.FeatureUsageMetrics) Vector {
	return Vector{
		float64(m.FeatureUsageVelocity24h),
		float64(m.UniqueFeaturesUsed),
		m.AvgFeatureFrequency,
		m.StdFeatureFrequency,
		m.TotalFrequency,
	}
}
