package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/fraudprofile/internal/domain"
)

func historyAt(t domain.EventType, offsets ...time.Duration) []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, 0, len(offsets))
	for _, d := range offsets {
		out = append(out, domain.HistoryEntry{Timestamp: t0.Add(d), EventType: t})
	}
	return out
}

func TestVelocity_CountsOnlySameType(t *testing.T) {
	h := append(historyAt(domain.EventLogin, 0, time.Hour), historyAt(domain.EventTransaction, 30*time.Minute)...)
	assert.Equal(t, 2, Velocity(h, domain.EventLogin, t0.Add(2*time.Hour), Window24h))
	assert.Equal(t, 1, Velocity(h, domain.EventTransaction, t0.Add(2*time.Hour), Window24h))
	assert.Equal(t, 0, Velocity(h, domain.EventSession, t0.Add(2*time.Hour), Window24h))
}

func TestVelocity_WindowBoundaryIsInclusive(t *testing.T) {
	h := historyAt(domain.EventLogin, 0)
	assert.Equal(t, 1, Velocity(h, domain.EventLogin, t0.Add(Window24h), Window24h))
	assert.Equal(t, 0, Velocity(h, domain.EventLogin, t0.Add(Window24h+time.Second), Window24h))
}

func TestVelocity_MonotonicThenDropsToZero(t *testing.T) {
	var h []domain.HistoryEntry
	prev := 0
	for i := 0; i < 10; i++ {
		h = append(h, domain.HistoryEntry{Timestamp: t0.Add(time.Duration(i) * time.Minute), EventType: domain.EventLogin})
		ref := t0.Add(time.Duration(i) * time.Minute)
		v := Velocity(h, domain.EventLogin, ref, Window24h)
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
	assert.Equal(t, 10, prev)

	later := t0.Add(10*time.Minute + Window7d + time.Second)
	assert.Zero(t, Velocity(h, domain.EventLogin, later, Window24h))
	assert.Zero(t, Velocity(h, domain.EventLogin, later, Window7d))
}

func TestVelocity_FutureEntriesAreInsideWindow(t *testing.T) {
	h := historyAt(domain.EventLogin, 48*time.Hour)
	assert.Equal(t, 1, Velocity(h, domain.EventLogin, t0, Window24h))
}

func TestVelocities_MatchesScan(t *testing.T) {
	h := historyAt(domain.EventSession, 0, 20*time.Hour, 3*24*time.Hour, 6*24*time.Hour, 8*24*time.Hour)
	ref := t0.Add(8 * 24 * time.Hour)
	day, week := velocities(h, domain.EventSession, ref)
	assert.Equal(t, Velocity(h, domain.EventSession, ref, Window24h), day)
	assert.Equal(t, Velocity(h, domain.EventSession, ref, Window7d), week)
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-01T09:00:00Z", t0},
		{"2026-03-01T09:00:00", t0},
		{"2026-03-01 09:00:00", t0},
		{"2026-03-01T12:00:00+03:00", t0},
		{"2026-03-01T09:00:00.250000", t0.Add(250 * time.Millisecond)},
	}
	for _, c := range cases {
		got, err := ParseTimestamp(c.in)
		require.NoError(t, err, c.in)
		assert.True(t, got.Equal(c.want), "%s -> %s", c.in, got)
		assert.Equal(t, time.UTC, got.Location())
	}

	for _, bad := range []string{"", "   ", "01/03/2026", "not-a-time"} {
		_, err := ParseTimestamp(bad)
		assert.ErrorIs(t, err, domain.ErrValidation, bad)
	}
}
