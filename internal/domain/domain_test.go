package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventType(t *testing.T) {
	cases := map[string]EventType{
		"login":         EventLogin,
		" Transaction ": EventTransaction,
		"session":       EventSession,
		"feature_usage": EventFeatureUsage,
		"feature":       EventFeatureUsage,
	}
	for in, want := range cases {
		got, err := ParseEventType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseEventType("logout")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDecodeEvent_Variants(t *testing.T) {
	ev, err := DecodeEvent(EventLogin, []byte(`{"user_id":"u1","timestamp":"2024-01-01 10:00:00",
		"device_type":"mobile","ip_address":"10.0.0.1","geolocation":"Moscow","channel":"app"}`))
	require.NoError(t, err)
	login, ok := ev.(LoginEvent)
	require.True(t, ok)
	assert.Equal(t, "app", login.Channel)
	assert.Equal(t, "u1", ev.Account())
	require.NoError(t, ev.Validate())

	ev, err = DecodeEvent(EventSession, []byte(`{"user_id":"u1","start_time":"2024-01-01 10:00:00",
		"session_duration":120,"pages_visited":["home","cards"]}`))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01 10:00:00", ev.OccurredAt())
	assert.Equal(t, []string{"home", "cards"}, ev.(SessionEvent).PagesVisited)
}

func TestDecodeEvent_FeatureFrequency(t *testing.T) {
	ev, err := DecodeEvent(EventFeatureUsage, []byte(`{"user_id":"u1","timestamp":"2024-01-01","feature_name":"transfer"}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultFrequency, ev.(FeatureUsageEvent).Frequency)

	ev, err = DecodeEvent(EventFeatureUsage, []byte(`{"user_id":"u1","timestamp":"2024-01-01","feature_name":"transfer","frequency":0}`))
	require.NoError(t, err)
	assert.Zero(t, ev.(FeatureUsageEvent).Frequency)
}

func TestDecodeEvent_Errors(t *testing.T) {
	_, err := DecodeEvent(EventTransaction, []byte(`{"amount":"lots"}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "payload", verr.Field)

	_, err = DecodeEvent("unknown", []byte(`{}`))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		ev    Event
		field string
	}{
		{"login without device", LoginEvent{UserID: "u", Timestamp: "t", IPAddress: "ip", Geolocation: "g"}, "device_type"},
		{"blank user", TransactionEvent{UserID: "  ", Timestamp: "t", MerchantID: "m"}, "user_id"},
		{"negative amount", TransactionEvent{UserID: "u", Timestamp: "t", MerchantID: "m", Amount: -1}, "amount"},
		{"session without start", SessionEvent{UserID: "u", Timestamp: "t"}, "start_time"},
		{"negative duration", SessionEvent{UserID: "u", StartTime: "t", SessionDuration: -5}, "session_duration"},
		{"feature without name", FeatureUsageEvent{UserID: "u", Timestamp: "t"}, "feature_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ev.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestPersistenceError(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("process: %w", &PersistenceError{Op: "save", UserID: "u1", Err: cause})

	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "store save u1: disk full")
	assert.Equal(t, "store list: disk full", (&PersistenceError{Op: "list", Err: cause}).Error())
}

func TestProfile_CloneIsIndependent(t *testing.T) {
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	p := NewProfile("u1")
	assert.True(t, p.IsNew())

	p.LoginMetrics.LastLoginTime = &ts
	p.LoginMetrics.SuspiciousLoginCount = 2
	p.RiskScores.OverallRisk = 0.4
	p.History = append(p.History, HistoryEntry{Timestamp: ts, EventType: EventLogin, EventData: json.RawMessage(`{"a":1}`)})
	p.LastUpdated = ts
	assert.False(t, p.IsNew())

	c := p.Clone()
	require.Equal(t, p, c)

	*c.LoginMetrics.LastLoginTime = ts.Add(time.Hour)
	c.History[0].EventData[2] = 'b'
	c.History = append(c.History, HistoryEntry{})

	assert.Equal(t, ts, *p.LoginMetrics.LastLoginTime)
	assert.JSONEq(t, `{"a":1}`, string(p.History[0].EventData))
	assert.Len(t, p.History, 1)

	a := p.Assessment()
	assert.Equal(t, "u1", a.UserID)
	assert.Equal(t, 2, a.SuspiciousLoginCount)
	assert.Equal(t, 0.4, a.RiskScores.OverallRisk)

	assert.Nil(t, (*Profile)(nil).Clone())
}
