package engine

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/xela07ax/fraudprofile/internal/domain"
)

// BreakerSettings — параметры предохранителя хранилища.
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration // через сколько open переходит в half-open
	FailureThreshold uint32        // подряд идущих отказов до размыкания
}

// GuardedStore — предохранитель вокруг хранилища профилей. Повторов нет: при разомкнутой
// цепи вызов сразу завершается PersistenceError, решение о повторе остаётся за вызывающим.
type GuardedStore struct {
	next ProfileStore
	cb   *gobreaker.CircuitBreaker
}

func NewGuardedStore(next ProfileStore, s BreakerSettings, metrics *Metrics, logger *zap.Logger) *GuardedStore {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	log := logger.With(zap.String("mod", "store_guard"))

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "profile-store",
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		// Отсутствующий профиль и невалидный ключ — ответы хранилища, а не его отказ
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
			if metrics != nil {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	if metrics != nil {
		metrics.CircuitBreakerState.WithLabelValues(cb.Name()).Set(float64(gobreaker.StateClosed))
	}
	return &GuardedStore{next: next, cb: cb}
}

func (g *GuardedStore) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.Get(ctx, userID)
	})
	if err != nil {
		return nil, g.wrap("load", userID, err)
	}
	return res.(*domain.Profile), nil
}

func (g *GuardedStore) Save(ctx context.Context, p *domain.Profile) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.next.Save(ctx, p)
	})
	if err != nil {
		return g.wrap("save", p.UserID, err)
	}
	return nil
}

func (g *GuardedStore) List(ctx context.Context) ([]*domain.Profile, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.List(ctx)
	})
	if err != nil {
		return nil, g.wrap("list", "", err)
	}
	return res.([]*domain.Profile), nil
}

func (g *GuardedStore) State() gobreaker.State { return g.cb.State() }

// wrap превращает отказ предохранителя в PersistenceError; ошибки хранилища отдаются как есть.
func (g *GuardedStore) wrap(op, userID string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.PersistenceError{Op: op, UserID: userID, Err: err}
	}
	return err
}
