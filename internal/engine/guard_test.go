package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/fraudprofile/internal/domain"
)

func TestGuardedStore_TripsAfterConsecutiveFailures(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("connection refused")
	m := NewMetrics(prometheus.NewRegistry())
	g := NewGuardedStore(store, BreakerSettings{Timeout: time.Minute, FailureThreshold: 3}, m, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := g.Save(ctx, domain.NewProfile("u1"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())
	assert.Equal(t, float64(gobreaker.StateOpen), testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("profile-store")))

	// при разомкнутой цепи хранилище не вызывается
	store.saveErr = nil
	err := g.Save(ctx, domain.NewProfile("u1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Zero(t, store.saves)

	_, err = g.Get(ctx, "u1")
	var pe *domain.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "load", pe.Op)
}

func TestGuardedStore_NotFoundDoesNotTrip(t *testing.T) {
	g := NewGuardedStore(newMemStore(), BreakerSettings{FailureThreshold: 2}, nil, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := g.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, g.State())
}

func TestGuardedStore_PassesThrough(t *testing.T) {
	store := newMemStore()
	g := NewGuardedStore(store, BreakerSettings{}, nil, zap.NewNop())
	ctx := context.Background()

	p := domain.NewProfile("u1")
	p.LoginMetrics.TotalLogins = 4
	require.NoError(t, g.Save(ctx, p))

	got, err := g.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.LoginMetrics.TotalLogins)

	all, err := g.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGuardedStore_OpenCircuitSurfacesAsPersistenceFromService(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("timeout")
	g := NewGuardedStore(store, BreakerSettings{Timeout: time.Minute, FailureThreshold: 1}, nil, zap.NewNop())
	svc, _ := newTestService(g, &stubDetector{}, nil)
	ctx := context.Background()

	_, err := svc.Process(ctx, loginEv("u1", 0))
	assert.ErrorIs(t, err, domain.ErrPersistence)

	// новый аккаунт: загрузка упирается в разомкнутую цепь
	_, err = svc.Process(ctx, loginEv("u2", 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
