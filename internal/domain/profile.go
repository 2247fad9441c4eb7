package domain

import (
	"encoding/json"
	"time"
)

type LoginMetrics struct {
	TotalLogins          int        `json:"total_logins"`
	UniqueDevices        int        `json:"unique_devices"`
	UniqueIPs            int        `json:"unique_ips"`
	UniqueLocations      int        `json:"unique_locations"`
	AvgLoginInterval     float64    `json:"avg_login_interval"` // секунды
	LastLoginTime        *time.Time `json:"last_login_time"`
	LoginVelocity24h     int        `json:"login_velocity_24h"`
	LoginVelocity7d      int        `json:"login_velocity_7d"`
	SuspiciousLoginCount int        `json:"suspicious_login_count"`
}

type TransactionMetrics struct {
	TotalTransactions          int     `json:"total_transactions"`
	TotalAmount                float64 `json:"total_amount"`
	AvgAmount                  float64 `json:"avg_amount"`
	MaxAmount                  float64 `json:"max_amount"`
	UniqueMerchants            int     `json:"unique_merchants"`
	TransactionVelocity24h     int     `json:"transaction_velocity_24h"`
	TransactionVelocity7d      int     `json:"transaction_velocity_7d"`
	SuspiciousTransactionCount int     `json:"suspicious_transaction_count"`
}

type SessionMetrics struct {
	TotalSessions      int     `json:"total_sessions"`
	AvgSessionDuration float64 `json:"avg_session_duration"`
	MaxSessionDuration float64 `json:"max_session_duration"`
	SessionVelocity24h int     `json:"session_velocity_24h"`
	SessionVelocity7d  int     `json:"session_velocity_7d"`
}

type FeatureUsageMetrics struct {
	UniqueFeaturesUsed      int     `json:"unique_features_used"`
	FeatureUsageCount       int     `json:"feature_usage_count"`
	TotalFrequency          float64 `json:"total_frequency"`
	AvgFeatureFrequency     float64 `json:"avg_feature_frequency"`
	StdFeatureFrequency     float64 `json:"std_feature_frequency"`
	FeatureUsageVelocity24h int     `json:"feature_usage_velocity_24h"`
	FeatureUsageVelocity7d  int     `json:"feature_usage_velocity_7d"`
}

// RiskScores — производные значения в [0,1]. Пишутся только risk-скорером.
type RiskScores struct {
	LoginRisk        float64 `json:"login_risk"`
	TransactionRisk  float64 `json:"transaction_risk"`
	SessionRisk      float64 `json:"session_risk"`
	FeatureUsageRisk float64 `json:"feature_usage_risk"`
	OverallRisk      float64 `json:"overall_risk"`
}

// HistoryEntry — запись append-only журнала. EventData хранит исходный пейлоад без изменений.
type HistoryEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	EventType EventType       `json:"event_type"`
	EventData json.RawMessage `json:"event_data"`
}

// Profile — поведенческий профиль одного аккаунта: снимок метрик + полная история.
type Profile struct {
	UserID              string              `json:"user_id"`
	LoginMetrics        LoginMetrics        `json:"login_metrics"`
	TransactionMetrics  TransactionMetrics  `json:"transaction_metrics"`
	SessionMetrics      SessionMetrics      `json:"session_metrics"`
	FeatureUsageMetrics FeatureUsageMetrics `json:"feature_usage_metrics"`
	RiskScores          RiskScores          `json:"risk_scores"`
	LastUpdated         time.Time           `json:"last_updated"`
	History             []HistoryEntry      `json:"history"`
}

// NewProfile создаёт пустой профиль (все метрики нулевые, история пуста).
func NewProfile(userID string) *Profile {
	return &Profile{UserID: userID, History: []HistoryEntry{}}
}

// IsNew — профиль ещё не видел ни одного события.
func (p *Profile) IsNew() bool {
	return len(p.History) == 0 && p.LastUpdated.IsZero()
}

// Clone делает глубокую копию, чтобы отдавать снимок наружу без гонок с последующими мутациями.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.LoginMetrics.LastLoginTime != nil {
		t := *p.LoginMetrics.LastLoginTime
		c.LoginMetrics.LastLoginTime = &t
	}
	c.History = make([]HistoryEntry, len(p.History))
	for i, h := range p.History {
		c.History[i] = HistoryEntry{
			Timestamp: h.Timestamp,
			EventType: h.EventType,
			EventData: append(json.RawMessage(nil), h.EventData...),
		}
	}
	return &c
}

// Assessment — сводка риска аккаунта по текущему снимку.
func (p *Profile) Assessment() RiskAssessment {
	return RiskAssessment{
		UserID:                     p.UserID,
		RiskScores:                 p.RiskScores,
		SuspiciousLoginCount:       p.LoginMetrics.SuspiciousLoginCount,
		SuspiciousTransactionCount: p.TransactionMetrics.SuspiciousTransactionCount,
	}
}
