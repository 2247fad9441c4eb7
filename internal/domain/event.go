package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventType — категория поведенческого события.
type EventType string

const (
	EventLogin        EventType = "login"
	EventTransaction  EventType = "transaction"
	EventSession      EventType = "session"
	EventFeatureUsage EventType = "feature_usage"
)

// EventTypes фиксирует порядок категорий (обучение банка моделей, метрики, реплей).
var EventTypes = []EventType{EventLogin, EventTransaction, EventSession, EventFeatureUsage}

// ParseEventType принимает как каноничные имена, так и короткий алиас "feature" из HTTP-роутов.
func ParseEventType(s string) (EventType, error) {
	switch EventType(strings.ToLower(strings.TrimSpace(s))) {
	case EventLogin:
		return EventLogin, nil
	case EventTransaction:
		return EventTransaction, nil
	case EventSession:
		return EventSession, nil
	case EventFeatureUsage, "feature":
		return EventFeatureUsage, nil
	}
	return "", &ValidationError{Field: "event_type", Value: s, Reason: "unknown event type"}
}

// Event — закрытый набор вариантов события. Реализуется только типами этого пакета.
type Event interface {
	Type() EventType
	Account() string
	// OccurredAt — сырая метка времени, по которой событие ложится в историю и считается velocity.
	OccurredAt() string
	Validate() error
	sealed()
}

// LoginEvent — успешный вход в систему.
type LoginEvent struct {
	UserID      string `json:"user_id"`
	Timestamp   string `json:"timestamp"`
	DeviceType  string `json:"device_type"`
	IPAddress   string `json:"ip_address"`
	Geolocation string `json:"geolocation"`

	OSBrowser        string `json:"os_browser,omitempty"`
	ScreenResolution string `json:"screen_resolution,omitempty"`
	LoginMethod      string `json:"login_method,omitempty"`
	Channel          string `json:"channel,omitempty"`
}

func (e LoginEvent) Type() EventType    { return EventLogin }
func (e LoginEvent) Account() string    { return e.UserID }
func (e LoginEvent) OccurredAt() string { return e.Timestamp }
func (LoginEvent) sealed()              {}

func (e LoginEvent) Validate() error {
	return requireFields(
		field{"user_id", e.UserID},
		field{"timestamp", e.Timestamp},
		field{"device_type", e.DeviceType},
		field{"ip_address", e.IPAddress},
		field{"geolocation", e.Geolocation},
	)
}

// TransactionEvent — денежная операция клиента.
type TransactionEvent struct {
	UserID     string  `json:"user_id"`
	Timestamp  string  `json:"timestamp"`
	Amount     float64 `json:"amount"`
	MerchantID string  `json:"merchant_id"`

	TransactionID   string `json:"transaction_id,omitempty"`
	TransactionType string `json:"transaction_type,omitempty"`
	Recipient       string `json:"recipient,omitempty"`
	Method          string `json:"method,omitempty"`
}

func (e TransactionEvent) Type() EventType    { return EventTransaction }
func (e TransactionEvent) Account() string    { return e.UserID }
func (e TransactionEvent) OccurredAt() string { return e.Timestamp }
func (TransactionEvent) sealed()              {}

func (e TransactionEvent) Validate() error {
	if err := requireFields(
		field{"user_id", e.UserID},
		field{"timestamp", e.Timestamp},
		field{"merchant_id", e.MerchantID},
	); err != nil {
		return err
	}
	if e.Amount < 0 {
		return &ValidationError{Field: "amount", Value: fmt.Sprint(e.Amount), Reason: "must not be negative"}
	}
	return nil
}

// SessionEvent — завершённая пользовательская сессия. Время события — StartTime.
type SessionEvent struct {
	UserID          string  `json:"user_id"`
	Timestamp       string  `json:"timestamp,omitempty"`
	StartTime       string  `json:"start_time"`
	SessionDuration float64 `json:"session_duration"` // секунды

	SessionID    string   `json:"session_id,omitempty"`
	EndTime      string   `json:"end_time,omitempty"`
	PagesVisited []string `json:"pages_visited,omitempty"`
}

func (e SessionEvent) Type() EventType    { return EventSession }
func (e SessionEvent) Account() string    { return e.UserID }
func (e SessionEvent) OccurredAt() string { return e.StartTime }
func (SessionEvent) sealed()              {}

func (e SessionEvent) Validate() error {
	if err := requireFields(
		field{"user_id", e.UserID},
		field{"start_time", e.StartTime},
	); err != nil {
		return err
	}
	if e.SessionDuration < 0 {
		return &ValidationError{Field: "session_duration", Value: fmt.Sprint(e.SessionDuration), Reason: "must not be negative"}
	}
	return nil
}

// DefaultFrequency подставляется, если в событии нет поля frequency.
const DefaultFrequency = 1.0

// FeatureUsageEvent — обращение к функции онлайн-банка.
type FeatureUsageEvent struct {
	UserID      string  `json:"user_id"`
	Timestamp   string  `json:"timestamp"`
	FeatureName string  `json:"feature_name"`
	Frequency   float64 `json:"frequency"`
}

func (e FeatureUsageEvent) Type() EventType    { return EventFeatureUsage }
func (e FeatureUsageEvent) Account() string    { return e.UserID }
func (e FeatureUsageEvent) OccurredAt() string { return e.Timestamp }
func (FeatureUsageEvent) sealed()              {}

func (e FeatureUsageEvent) Validate() error {
	return requireFields(
		field{"user_id", e.UserID},
		field{"timestamp", e.Timestamp},
		field{"feature_name", e.FeatureName},
	)
}

// UnmarshalJSON подставляет DefaultFrequency только при отсутствии поля (явный 0 сохраняется).
func (e *FeatureUsageEvent) UnmarshalJSON(data []byte) error {
	var raw struct {
		UserID      string   `json:"user_id"`
		Timestamp   string   `json:"timestamp"`
		FeatureName string   `json:"feature_name"`
		Frequency   *float64 `json:"frequency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = FeatureUsageEvent{
		UserID:      raw.UserID,
		Timestamp:   raw.Timestamp,
		FeatureName: raw.FeatureName,
		Frequency:   DefaultFrequency,
	}
	if raw.Frequency != nil {
		e.Frequency = *raw.Frequency
	}
	return nil
}

// DecodeEvent собирает типизированное событие из JSON-пейлоада (HTTP, история профиля).
func DecodeEvent(t EventType, data []byte) (Event, error) {
	var (
		ev  Event
		err error
	)
	switch t {
	case EventLogin:
		var e LoginEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case EventTransaction:
		var e TransactionEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case EventSession:
		var e SessionEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case EventFeatureUsage:
		var e FeatureUsageEvent
		err = json.Unmarshal(data, &e)
		ev = e
	default:
		return nil, &ValidationError{Field: "event_type", Value: string(t), Reason: "unknown event type"}
	}
	if err != nil {
		return nil, &ValidationError{Field: "payload", Reason: err.Error()}
	}
	return ev, nil
}

type field struct {
	name  string
	value string
}

func requireFields(fields ...field) error {
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.name, Reason: "is required"}
		}
	}
	return nil
}
