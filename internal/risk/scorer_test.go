package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xela07ax/fraudprofile/internal/domain"
)

func TestLoginRisk_Formula(t *testing.T) {
	m := domain.LoginMetrics{LoginVelocity24h: 4, UniqueLocations: 2, UniqueDevices: 1}
	want := 0.3*0.4 + 0.3*0.4 + 0.4*(1.0/3)
	assert.InDelta(t, want, LoginRisk(m), 1e-12)
}

func TestTransactionRisk_Formula(t *testing.T) {
	m := domain.TransactionMetrics{TransactionVelocity24h: 10, AvgAmount: 250, UniqueMerchants: 5}
	want := 0.3*0.5 + 0.4*0.25 + 0.3*0.5
	assert.InDelta(t, want, TransactionRisk(m), 1e-12)
}

func TestSessionRisk_Formula(t *testing.T) {
	m := domain.SessionMetrics{SessionVelocity24h: 3, AvgSessionDuration: 1800}
	want := 0.4*0.2 + 0.6*0.5
	assert.InDelta(t, want, SessionRisk(m), 1e-12)
}

func TestFeatureUsageRisk_StdIsNotNormalised(t *testing.T) {
	m := domain.FeatureUsageMetrics{FeatureUsageVelocity24h: 5, StdFeatureFrequency: 0.5, AvgFeatureFrequency: 2}
	want := 0.3*0.1 + 0.4*0.5 + 0.3*0.2
	assert.InDelta(t, want, FeatureUsageRisk(m), 1e-12)
}

func TestScores_AreClamped(t *testing.T) {
	p := domain.NewProfile("u1")
	p.LoginMetrics = domain.LoginMetrics{LoginVelocity24h: 500, UniqueLocations: 50, UniqueDevices: 30}
	p.TransactionMetrics = domain.TransactionMetrics{TransactionVelocity24h: 1000, AvgAmount: 1e9, UniqueMerchants: 100}
	p.SessionMetrics = domain.SessionMetrics{SessionVelocity24h: 300, AvgSessionDuration: 1e6}
	p.FeatureUsageMetrics = domain.FeatureUsageMetrics{FeatureUsageVelocity24h: 1000, StdFeatureFrequency: 40, AvgFeatureFrequency: 90}

	s := Score(p)
	assert.Equal(t, 1.0, s.LoginRisk)
	assert.Equal(t, 1.0, s.TransactionRisk)
	assert.Equal(t, 1.0, s.SessionRisk)
	assert.Equal(t, 1.0, s.FeatureUsageRisk)
	assert.InDelta(t, 1.0, s.OverallRisk, 1e-12)
}

func TestScore_EmptyProfileIsZero(t *testing.T) {
	assert.Equal(t, domain.RiskScores{}, Score(domain.NewProfile("u1")))
}

func TestScore_OverallWeights(t *testing.T) {
	p := domain.NewProfile("u1")
	p.LoginMetrics = domain.LoginMetrics{LoginVelocity24h: 10}                  // 0.3
	p.TransactionMetrics = domain.TransactionMetrics{AvgAmount: 1000}           // 0.4
	p.SessionMetrics = domain.SessionMetrics{AvgSessionDuration: 3600}          // 0.6
	p.FeatureUsageMetrics = domain.FeatureUsageMetrics{AvgFeatureFrequency: 10} // 0.3

	s := Score(p)
	assert.InDelta(t, 0.3*0.3+0.3*0.4+0.2*0.6+0.2*0.3, s.OverallRisk, 1e-12)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, clamp(math.NaN()))
	assert.Equal(t, 0.0, clamp(-0.1))
	assert.Equal(t, 1.0, clamp(1.0001))
	assert.Equal(t, 1.0, clamp(math.Inf(1)))
	assert.Equal(t, 0.42, clamp(0.42))
}

func TestRecompute_WritesIntoProfile(t *testing.T) {
	p := domain.NewProfile("u1")
	p.SessionMetrics.AvgSessionDuration = 3600
	Recompute(p)
	assert.InDelta(t, 0.6, p.RiskScores.SessionRisk, 1e-12)
	assert.InDelta(t, 0.12, p.RiskScores.OverallRisk, 1e-12)
}
