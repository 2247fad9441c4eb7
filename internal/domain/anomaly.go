package domain

// Explanation — фиксированная схема обоснования вердикта.
// Features содержит сырые (немасштабированные) значения вектора признаков.
// RiskFactors — только сработавшие пороги; пустой срез, если не сработал ни один.
type Explanation struct {
	EventType    EventType          `json:"event_type"`
	Features     map[string]float64 `json:"features"`
	AnomalyScore float64            `json:"anomaly_score"`
	RiskFactors  []string           `json:"risk_factors"`
}

// AnomalyResult — ответ банка моделей на одно событие.
type AnomalyResult struct {
	IsAnomaly   bool        `json:"is_anomaly"`
	Confidence  float64     `json:"confidence"`
	Explanation Explanation `json:"explanation"`
}

// RiskAssessment — сводка риска по аккаунту.
type RiskAssessment struct {
	UserID                     string     `json:"user_id"`
	RiskScores                 RiskScores `json:"risk_scores"`
	SuspiciousLoginCount       int        `json:"suspicious_login_count"`
	SuspiciousTransactionCount int        `json:"suspicious_transaction_count"`
}
