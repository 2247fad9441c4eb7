package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/fraudprofile/internal/domain"
)

// Verdict — запись журнала: чем банк моделей ответил на событие.
type Verdict struct {
	ID          string             `json:"id"`       // UUID вердикта
	TraceID     string             `json:"trace_id"` // сквозной ID запроса, если был
	UserID      string             `json:"user_id"`
	EventType   domain.EventType   `json:"event_type"`
	IsAnomaly   bool               `json:"is_anomaly"`
	Confidence  float64            `json:"confidence"`
	Explanation domain.Explanation `json:"explanation"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Sink определяет, куда физически уходят пачки вердиктов.
type Sink interface {
	WriteBatch(ctx context.Context, verdicts []Verdict) error
}

// LogSink пишет вердикты в структурный лог. Используется, когда PostgreSQL не настроен.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.With(zap.String("mod", "verdict_log"))}
}

func (s *LogSink) WriteBatch(_ context.Context, verdicts []Verdict) error {
	for _, v := range verdicts {
		s.logger.Info("anomaly verdict",
			zap.String("id", v.ID),
			zap.String("trace_id", v.TraceID),
			zap.String("user_id", v.UserID),
			zap.String("event_type", string(v.EventType)),
			zap.Bool("is_anomaly", v.IsAnomaly),
			zap.Float64("confidence", v.Confidence),
			zap.Strings("risk_factors", v.Explanation.RiskFactors),
			zap.Time("ts", v.Timestamp),
		)
	}
	return nil
}
