// Package bootstrap собирает инфраструктуру из конфигурации: хранилище профилей,
// предохранитель, кэш Redis и приёмник журнала вердиктов. Общий код cmd/profiled и cmd/ingest.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/fraudprofile/internal/audit"
	"github.com/xela07ax/fraudprofile/internal/engine"
	"github.com/xela07ax/fraudprofile/internal/infra"
	"github.com/xela07ax/fraudprofile/internal/repository/file"
	"github.com/xela07ax/fraudprofile/internal/repository/postgres"
	"github.com/xela07ax/fraudprofile/internal/repository/rediscache"
)

// Stores — собранная цепочка хранилища: [кэш Redis] -> предохранитель -> файл | PostgreSQL.
type Stores struct {
	Store engine.ProfileStore
	Guard *engine.GuardedStore
	Cache *rediscache.Store // nil, если Redis выключен
	Redis *redis.Client     // nil, если Redis выключен
	Pool  *pgxpool.Pool     // nil для файлового хранилища
	Sink  audit.Sink
}

// Open поднимает хранилище по конфигурации. Недоступность БД или Redis при старте
// переживается повторными попытками (infra.WaitFor); после исчерпания попыток — ошибка.
func Open(ctx context.Context, cfg *infra.Config, metrics *engine.Metrics, logger *zap.Logger) (*Stores, error) {
	s := &Stores{}

	// 1. Базовое хранилище профилей
	var base engine.ProfileStore
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, err
		}
		s.Pool = pool
		if err := infra.WaitFor(ctx, "postgres", cfg.Database.ConnectAttempts, pool.Ping, logger); err != nil {
			s.Close()
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			s.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		base = postgres.NewProfileRepo(pool)
		s.Sink = postgres.NewVerdictRepo(pool)
	default:
		repo, err := file.NewProfileRepo(cfg.Storage.Dir, logger)
		if err != nil {
			return nil, err
		}
		base = repo
		s.Sink = audit.NewLogSink(logger)
	}

	// 2. Предохранитель вокруг I/O хранилища
	s.Guard = engine.NewGuardedStore(base, engine.BreakerSettings{
		MaxRequests:      cfg.Engine.CBMaxRequests,
		Interval:         cfg.Engine.CBInterval,
		Timeout:          cfg.Engine.CBTimeout,
		FailureThreshold: cfg.Engine.CBFailureThreshold,
	}, metrics, logger)
	s.Store = s.Guard

	// 3. Кэш Redis поверх всего
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.Redis = rdb
		ping := func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		if err := infra.WaitFor(ctx, "redis", cfg.Database.ConnectAttempts, ping, logger); err != nil {
			s.Close()
			return nil, err
		}
		s.Cache = rediscache.NewStore(s.Guard, rdb, cfg.Redis.CacheTTL, logger)
		s.Store = s.Cache
	}

	logger.Info("profile store ready",
		zap.String("driver", cfg.Storage.Driver),
		zap.Bool("redis_cache", s.Cache != nil),
	)
	return s, nil
}

// Warmup заливает сохранённые снимки в пустой кэш. Без Redis — no-op.
func (s *Stores) Warmup(ctx context.Context) error {
	if s.Cache == nil {
		return nil
	}
	profiles, err := s.Guard.List(ctx)
	if err != nil {
		return err
	}
	return s.Cache.Warmup(ctx, profiles)
}

func (s *Stores) Close() {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}
