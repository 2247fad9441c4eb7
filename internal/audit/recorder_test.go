package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xela07ax/fraudprofile/internal/domain"
)

type memSink struct {
	mu      sync.Mutex
	batches [][]Verdict
	err     error
}

func (s *memSink) WriteBatch(_ context.Context, v []Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Verdict(nil), v...))
	return s.err
}

func (s *memSink) all() []Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Verdict
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

type fakeGauge struct {
	mu   sync.Mutex
	last float64
}

func (g *fakeGauge) Set(v float64) {
	g.mu.Lock()
	g.last = v
	g.mu.Unlock()
}

func TestRecorder_StopDrainsEverything(t *testing.T) {
	sink := &memSink{}
	r := NewRecorder(sink, Options{BatchSize: 7, FlushInterval: time.Hour}, zap.NewNop())
	r.Start()

	for i := 0; i < 50; i++ {
		r.Log(Verdict{UserID: "u1", EventType: domain.EventLogin})
	}
	r.Stop()

	got := sink.all()
	require.Len(t, got, 50)
	for _, b := range sink.batches {
		assert.LessOrEqual(t, len(b), 7)
	}
	for _, v := range got {
		assert.NotEmpty(t, v.ID)
		assert.False(t, v.Timestamp.IsZero())
	}
}

func TestRecorder_FlushesOnTicker(t *testing.T) {
	sink := &memSink{}
	r := NewRecorder(sink, Options{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, zap.NewNop())
	r.Start()
	defer r.Stop()

	r.Log(Verdict{UserID: "u1", ID: "fixed"})
	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "fixed", sink.all()[0].ID)
}

func TestRecorder_LogAfterStopIsDropped(t *testing.T) {
	sink := &memSink{}
	r := NewRecorder(sink, Options{}, zap.NewNop())
	r.Start()
	r.Stop()
	r.Stop()

	assert.NotPanics(t, func() { r.Log(Verdict{UserID: "late"}) })
	assert.Empty(t, sink.all())
}

func TestRecorder_OverflowIsShed(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	sink := &memSink{}
	gauge := &fakeGauge{}
	r := NewRecorder(sink, Options{BufferSize: 2, Fill: gauge}, zap.New(core))

	// воркер не запущен: третий вердикт не помещается
	r.Log(Verdict{UserID: "a"})
	r.Log(Verdict{UserID: "b"})
	r.Log(Verdict{UserID: "c"})
	assert.Equal(t, 1, logs.FilterMessage("verdict_buffer_overflow").Len())
	assert.Equal(t, 2.0, gauge.last)

	r.Start()
	r.Stop()
	assert.Len(t, sink.all(), 2)
}

func TestRecorder_SinkErrorDoesNotStopWorker(t *testing.T) {
	sink := &memSink{err: errors.New("db down")}
	r := NewRecorder(sink, Options{BatchSize: 1}, zap.NewNop())
	r.Start()
	r.Log(Verdict{UserID: "a"})
	r.Log(Verdict{UserID: "b"})
	r.Stop()
	assert.Len(t, sink.all(), 2)
}

func TestLogSink_WritesOneEntryPerVerdict(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSink(zap.New(core))
	require.NoError(t, s.WriteBatch(context.Background(), []Verdict{
		{ID: "1", UserID: "u1", EventType: domain.EventTransaction, Confidence: 0.4},
		{ID: "2", UserID: "u2", EventType: domain.EventLogin},
	}))
	entries := logs.FilterMessage("anomaly verdict").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "u1", entries[0].ContextMap()["user_id"])
	assert.Equal(t, "verdict_log", entries[0].ContextMap()["mod"])
}
