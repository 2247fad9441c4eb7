// Package rediscache — кэш снимков профилей в Redis поверх долговременного хранилища.
//
// Чтение: Redis, при промахе — хранилище с записью результата в кэш.
// Запись: сначала хранилище (источник истины), затем кэш. Сбои Redis не
// превращаются в ошибки хранилища: кэш деградирует до прямого обращения к backend.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/fraudprofile/internal/domain"
	"github.com/xela07ax/fraudprofile/internal/infra"
)

// Backend — долговременное хранилище профилей.
type Backend interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	Save(ctx context.Context, p *domain.Profile) error
	List(ctx context.Context) ([]*domain.Profile, error)
}

type Store struct {
	next   Backend
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewStore(next Backend, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With(zap.String("mod", "profile_cache")),
	}
}

func (s *Store) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	data, err := s.rdb.Get(ctx, infra.ProfileKey(userID)).Bytes()
	switch {
	case err == nil:
		var p domain.Profile
		jerr := json.Unmarshal(data, &p)
		if jerr == nil {
			if p.History == nil {
				p.History = []domain.HistoryEntry{}
			}
			return &p, nil
		}
		s.logger.Warn("dropping undecodable cache entry", zap.String("user_id", userID), zap.Error(jerr))
		s.rdb.Del(ctx, infra.ProfileKey(userID))
	case errors.Is(err, redis.Nil):
	default:
		s.logger.Warn("cache read failed, falling back to store", zap.String("user_id", userID), zap.Error(err))
	}

	p, err := s.next.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.put(ctx, p)
	return p, nil
}

func (s *Store) Save(ctx context.Context, p *domain.Profile) error {
	if err := s.next.Save(ctx, p); err != nil {
		// Снимок в кэше мог устареть относительно памяти, но не относительно хранилища
		return err
	}
	s.put(ctx, p)
	return nil
}

// List всегда читает хранилище: обучение банка идёт по полному набору снимков.
func (s *Store) List(ctx context.Context) ([]*domain.Profile, error) {
	return s.next.List(ctx)
}

func (s *Store) put(ctx context.Context, p *domain.Profile) {
	data, err := json.Marshal(p)
	if err != nil {
		s.logger.Error("encode profile for cache", zap.String("user_id", p.UserID), zap.Error(err))
		return
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, infra.ProfileKey(p.UserID), data, s.ttl)
	pipe.SAdd(ctx, infra.RedisKeyProfileIndex, p.UserID)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("cache write failed", zap.String("user_id", p.UserID), zap.Error(err))
	}
}

// Warmup заливает снимки в пустой кэш. Распределённая блокировка (SetNX) гарантирует,
// что заливку делает один инстанс; если индекс уже наполнен, ничего не происходит.
func (s *Store) Warmup(ctx context.Context, profiles []*domain.Profile) error {
	// 1. Только один инстанс греет кэш
	ok, err := s.rdb.SetNX(ctx, infra.RedisKeyLockWarmup, "processing", 30*time.Second).Result()
	if err != nil || !ok {
		return err // Либо ошибка сети, либо другой уже греет кэш
	}

	// 2. Проверка наполненности Redis
	count, err := s.rdb.SCard(ctx, infra.RedisKeyProfileIndex).Result()
	if err != nil {
		count = 0
		s.logger.Warn("could not check cache index size, proceeding with warm-up",
			zap.String("key", infra.RedisKeyProfileIndex), zap.Error(err))
	}

	// 3. Если Redis пуст, а снимки есть — заливаем одним пайплайном
	if count > 0 || len(profiles) == 0 {
		return nil
	}
	s.logger.Info("profile cache is empty, performing warm-up from store...", zap.Int("count", len(profiles)))

	pipe := s.rdb.Pipeline()
	for _, p := range profiles {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		pipe.Set(ctx, infra.ProfileKey(p.UserID), data, s.ttl)
		pipe.SAdd(ctx, infra.RedisKeyProfileIndex, p.UserID)
	}
	_, err = pipe.Exec(ctx)
	return err
}
