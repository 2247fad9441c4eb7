// Package audit — асинхронный журнал вердиктов банка моделей.
//
// Вердикты уходят из горячего пути через буферизованный канал без блокировки,
// воркер копит их и пишет пачками по таймеру или по размеру пачки. Stop
// закрывает вход и дожидается финального сброса буфера.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Gauge — то, что умеет показать заполненность буфера (prometheus.Gauge подходит).
type Gauge interface {
	Set(float64)
}

type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	Fill          Gauge
}

func (o *Options) withDefaults() {
	if o.BufferSize <= 0 {
		o.BufferSize = 10000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 500 * time.Millisecond
	}
}

type Recorder struct {
	ch     chan Verdict
	sink   Sink
	opts   Options
	logger *zap.Logger
	wg     sync.WaitGroup

	closed atomic.Bool
	// mu защищает отправку в канал от одновременного close в Stop.
	mu sync.RWMutex
}

func NewRecorder(sink Sink, opts Options, logger *zap.Logger) *Recorder {
	opts.withDefaults()
	return &Recorder{
		ch:     make(chan Verdict, opts.BufferSize),
		sink:   sink,
		opts:   opts,
		logger: logger.With(zap.String("mod", "verdict_recorder")),
	}
}

func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.worker()
}

// Stop запирает вход и ждёт, пока воркер допишет остатки. Повторный вызов безопасен.
func (r *Recorder) Stop() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	r.logger.Info("stopping recorder: closing channel and flushing buffer...")
	r.mu.Lock()
	close(r.ch)
	r.mu.Unlock()
	r.wg.Wait()
	r.logger.Info("recorder stopped gracefully")
}

// Log ставит вердикт в очередь. При переполнении вердикт сбрасывается с ошибкой в лог.
func (r *Recorder) Log(v Verdict) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed.Load() {
		r.logger.Warn("verdict dropped: recorder is stopping", zap.String("id", v.ID))
		return
	}

	select {
	case r.ch <- v:
		if r.opts.Fill != nil {
			r.opts.Fill.Set(float64(len(r.ch)))
		}
	default:
		r.logger.Error("verdict_buffer_overflow",
			zap.String("user_id", v.UserID),
			zap.String("trace_id", v.TraceID),
		)
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	batch := make([]Verdict, 0, r.opts.BatchSize)
	ticker := time.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: контекст вызывающего к этому моменту может быть уже отменён
		if err := r.sink.WriteBatch(context.Background(), batch); err != nil {
			r.logger.Error("verdict flush failed", zap.Int("batch", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
		if r.opts.Fill != nil {
			r.opts.Fill.Set(float64(len(r.ch)))
		}
	}

	for {
		select {
		case v, ok := <-r.ch:
			if !ok {
				// канал закрыт в Stop: всё, что было в очереди, уже вычитано
				flush()
				r.logger.Info("recorder worker finished")
				return
			}
			batch = append(batch, v)
			if len(batch) >= r.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
