package ingest

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xela07ax/fraudprofile/internal/domain"
	"github.com/xela07ax/fraudprofile/internal/profile"
)

// Applier — путь обновления метрик без скоринга (engine.Service.Apply).
type Applier interface {
	Apply(ctx context.Context, ev domain.Event) (*domain.Profile, error)
}

// Report — итог реплея.
type Report struct {
	Accounts int
	Applied  int
	Rejected int
	Duration time.Duration
}

// Replayer проигрывает историю: события каждого аккаунта в порядке времени,
// аккаунты параллельно в ограниченном пуле воркеров.
type Replayer struct {
	svc     Applier
	workers int
	logger  *zap.Logger

	mu   sync.Mutex
	last Report
}

func NewReplayer(svc Applier, workers int, logger *zap.Logger) *Replayer {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Replayer{svc: svc, workers: workers, logger: logger.With(zap.String("mod", "replay"))}
}

type timedEvent struct {
	at time.Time
	ok bool // метка времени разобрана
	ev domain.Event
}

// Replay возвращает профиль на каждый аккаунт пакета.
// Невалидные события пропускаются с предупреждением; сбой хранилища останавливает реплей.
func (r *Replayer) Replay(ctx context.Context, b Batch) (map[string]*domain.Profile, error) {
	start := time.Now()
	groups := groupByAccount(b)

	var (
		mu       sync.Mutex
		profiles = make(map[string]*domain.Profile, len(groups))
		report   = Report{Accounts: len(groups)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for userID, events := range groups {
		g.Go(func() error {
			var (
				last             *domain.Profile
				applied, dropped int
			)
			for _, te := range events {
				if err := gctx.Err(); err != nil {
					return err
				}
				p, err := r.svc.Apply(gctx, te.ev)
				if errors.Is(err, domain.ErrValidation) {
					dropped++
					r.logger.Warn("event rejected", zap.String("user_id", userID), zap.String("event_type", string(te.ev.Type())), zap.Error(err))
					continue
				}
				if err != nil {
					return fmt.Errorf("replay %s: %w", userID, err)
				}
				last = p
				applied++
			}

			mu.Lock()
			defer mu.Unlock()
			if last != nil {
				profiles[userID] = last
			}
			report.Applied += applied
			report.Rejected += dropped
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	r.mu.Lock()
	r.last = report
	r.mu.Unlock()

	r.logger.Info("replay finished",
		zap.Int("accounts", report.Accounts),
		zap.Int("applied", report.Applied),
		zap.Int("rejected", report.Rejected),
		zap.Duration("took", report.Duration),
	)
	return profiles, nil
}

// LastReport — статистика последнего успешного реплея.
func (r *Replayer) LastReport() Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// groupByAccount раскладывает события по аккаунтам и сортирует по времени.
// При равных метках порядок входа сохраняется; неразбираемые метки уходят в конец
// (их всё равно отклонит движок).
func groupByAccount(b Batch) map[string][]timedEvent {
	groups := make(map[string][]timedEvent)
	add := func(ev domain.Event) {
		at, err := profile.ParseTimestamp(ev.OccurredAt())
		groups[ev.Account()] = append(groups[ev.Account()], timedEvent{at: at, ok: err == nil, ev: ev})
	}
	for _, e := range b.Logins {
		add(e)
	}
	for _, e := range b.Sessions {
		add(e)
	}
	for _, e := range b.Transactions {
		add(e)
	}
	for _, e := range b.FeatureUsage {
		add(e)
	}

	for _, events := range groups {
		sort.SliceStable(events, func(i, j int) bool {
			a, c := events[i], events[j]
			if a.ok != c.ok {
				return a.ok
			}
			return a.at.Before(c.at)
		})
	}
	return groups
}
