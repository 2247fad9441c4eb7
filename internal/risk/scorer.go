// Package risk считает категорийные и общий риск-скоры по текущему снимку метрик.
// Коэффициенты и делители — контрактные значения, менять их нельзя без миграции
// сохранённых профилей.
package risk

import "github.com/xela07ax/fraudprofile/internal/domain"

// Весовые коэффициенты и нормирующие делители.
const (
	loginVelocityDiv  = 10.0
	loginLocationsDiv = 5.0
	loginDevicesDiv   = 3.0

	txVelocityDiv  = 20.0
	txAmountDiv    = 1000.0
	txMerchantsDiv = 10.0

	sessionVelocityDiv = 15.0
	sessionDurationDiv = 3600.0

	featureVelocityDiv  = 50.0
	featureFrequencyDiv = 10.0

	weightOverallLogin       = 0.3
	weightOverallTransaction = 0.3
	weightOverallSession     = 0.2
	weightOverallFeature     = 0.2
)

func LoginRisk(m domain.LoginMetrics) float64 {
	return clamp(0.3*(float64(m.LoginVelocity24h)/loginVelocityDiv) +
		0.3*(float64(m.UniqueLocations)/loginLocationsDiv) +
		0.4*(float64(m.UniqueDevices)/loginDevicesDiv))
}

func TransactionRisk(m domain.TransactionMetrics) float64 {
	return clamp(0.3*(float64(m.TransactionVelocity24h)/txVelocityDiv) +
		0.4*(m.AvgAmount/txAmountDiv) +
		0.3*(float64(m.UniqueMerchants)/txMerchantsDiv))
}

func SessionRisk(m domain.SessionMetrics) float64 {
	return clamp(0.4*(float64(m.SessionVelocity24h)/sessionVelocityDiv) +
		0.6*(m.AvgSessionDuration/sessionDurationDiv))
}

// FeatureUsageRisk: std_frequency входит без нормировки.
func FeatureUsageRisk(m domain.FeatureUsageMetrics) float64 {
	return clamp(0.3*(float64(m.FeatureUsageVelocity24h)/featureVelocityDiv) +
		0.4*m.StdFeatureFrequency +
		0.3*(m.AvgFeatureFrequency/featureFrequencyDiv))
}

// Score пересчитывает все пять скоров. Состояния нет, результат зависит только от снимка.
func Score(p *domain.Profile) domain.RiskScores {
	s := domain.RiskScores{
		LoginRisk:        LoginRisk(p.LoginMetrics),
		TransactionRisk:  TransactionRisk(p.TransactionMetrics),
		SessionRisk:      SessionRisk(p.SessionMetrics),
		FeatureUsageRisk: FeatureUsageRisk(p.FeatureUsageMetrics),
	}
	s.OverallRisk = clamp(weightOverallLogin*s.LoginRisk +
		weightOverallTransaction*s.TransactionRisk +
		weightOverallSession*s.SessionRisk +
		weightOverallFeature*s.FeatureUsageRisk)
	return s
}

// Recompute — единственная точка записи RiskScores в профиль.
func Recompute(p *domain.Profile) {
	p.RiskScores = Score(p)
}

// clamp держит скор в [0,1]. Метрики неотрицательны, но NaN/отрицательные значения
// из повреждённого снимка тоже сводятся к границам.
func clamp(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
