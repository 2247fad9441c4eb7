// Package profile применяет поведенческие события к профилю аккаунта:
// счётчики, скользящие средние и максимумы, velocity-окна и журнал истории.
//
// Engine не знает про хранилище и блокировки. Сериализация обновлений одного
// аккаунта и сохранение — ответственность вызывающего (engine.Service).
package profile

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xela07ax/fraudprofile/internal/domain"
	"github.com/xela07ax/fraudprofile/internal/risk"
)

// Engine — метрический движок. Без состояния, кроме часов для last_updated.
type Engine struct {
	now func() time.Time
}

type Option func(*Engine)

// WithClock подменяет источник времени для last_updated (тесты, реплей).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply применяет одно событие к профилю.
//
// Все новые значения считаются до первой записи в профиль: при ошибке валидации
// профиль остаётся нетронутым. suspicious увеличивает suspicious_*_count для
// входов и транзакций (вердикт банка моделей по состоянию до обновления).
func (e *Engine) Apply(p *domain.Profile, ev domain.Event, suspicious bool) error {
	if ev == nil {
		return &domain.ValidationError{Field: "event", Reason: "is required"}
	}
	if ev.Account() != p.UserID {
		return &domain.ValidationError{Field: "user_id", Value: ev.Account(), Reason: fmt.Sprintf("does not match profile %s", p.UserID)}
	}

	at, err := ParseTimestamp(ev.OccurredAt())
	if err != nil {
		return err
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		return &domain.ValidationError{Field: "payload", Reason: err.Error()}
	}
	entry := domain.HistoryEntry{Timestamp: at, EventType: ev.Type(), EventData: raw}

	// 1. Всё, что может упасть, считаем заранее
	var frequencies []float64
	if ev.Type() == domain.EventFeatureUsage {
		if frequencies, err = recordedFrequencies(p.History); err != nil {
			return fmt.Errorf("profile %s: %w", p.UserID, err)
		}
	}

	// 2. Журнал: запись попадает в историю до пересчёта velocity, поэтому событие
	// учитывает само себя
	p.History = append(p.History, entry)

	// 3. Метрики затронутой группы
	switch ev := ev.(type) {
	case domain.LoginEvent:
		applyLogin(p, ev, at, suspicious)
	case domain.TransactionEvent:
		applyTransaction(p, ev, at, suspicious)
	case domain.SessionEvent:
		applySession(p, ev, at)
	case domain.FeatureUsageEvent:
		applyFeatureUsage(p, ev, at, append(frequencies, ev.Frequency))
	}

	// 4. Производные значения
	risk.Recompute(p)
	p.LastUpdated = e.now().UTC()
	return nil
}

func applyLogin(p *domain.Profile, ev domain.LoginEvent, at time.Time, suspicious bool) {
	m := &p.LoginMetrics
	m.TotalLogins++
	m.UniqueDevices = observedDistinct(ev.DeviceType)
	m.UniqueIPs = observedDistinct(ev.IPAddress)
	m.UniqueLocations = observedDistinct(ev.Geolocation)

	// Среднее по наблюдённым интервалам: их на один меньше, чем входов.
	// Первый вход интервала не даёт. Делитель total_logins-1, а не total_logins:
	// два входа с разрывом 600с дают 600, а не 300.
	if m.LastLoginTime != nil {
		gap := at.Sub(*m.LastLoginTime).Seconds()
		m.AvgLoginInterval = incrementalMean(m.AvgLoginInterval, m.TotalLogins-1, gap)
	}
	last := at
	m.LastLoginTime = &last

	m.LoginVelocity24h, m.LoginVelocity7d = velocities(p.History, domain.EventLogin, at)
	if suspicious {
		m.SuspiciousLoginCount++
	}
}

func applyTransaction(p *domain.Profile, ev domain.TransactionEvent, at time.Time, suspicious bool) {
	m := &p.TransactionMetrics
	m.TotalTransactions++
	m.TotalAmount += ev.Amount
	m.AvgAmount = ratio(m.TotalAmount, m.TotalTransactions)
	if ev.Amount > m.MaxAmount {
		m.MaxAmount = ev.Amount
	}
	m.UniqueMerchants = observedDistinct(ev.MerchantID)

	m.TransactionVelocity24h, m.TransactionVelocity7d = velocities(p.History, domain.EventTransaction, at)
	if suspicious {
		m.SuspiciousTransactionCount++
	}
}

func applySession(p *domain.Profile, ev domain.SessionEvent, at time.Time) {
	m := &p.SessionMetrics
	m.TotalSessions++
	m.AvgSessionDuration = incrementalMean(m.AvgSessionDuration, m.TotalSessions, ev.SessionDuration)
	if ev.SessionDuration > m.MaxSessionDuration {
		m.MaxSessionDuration = ev.SessionDuration
	}

	m.SessionVelocity24h, m.SessionVelocity7d = velocities(p.History, domain.EventSession, at)
}

// applyFeatureUsage: frequencies уже содержит значение текущего события.
func applyFeatureUsage(p *domain.Profile, ev domain.FeatureUsageEvent, at time.Time, frequencies []float64) {
	m := &p.FeatureUsageMetrics
	m.FeatureUsageCount++
	m.TotalFrequency += ev.Frequency
	m.AvgFeatureFrequency = ratio(m.TotalFrequency, m.FeatureUsageCount)
	m.StdFeatureFrequency = populationStd(frequencies)

	m.FeatureUsageVelocity24h, m.FeatureUsageVelocity7d = velocities(p.History, domain.EventFeatureUsage, at)
}
