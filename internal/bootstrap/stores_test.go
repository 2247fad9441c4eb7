package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/fraudprofile/internal/audit"
	"github.com/xela07ax/fraudprofile/internal/domain"
	"github.com/xela07ax/fraudprofile/internal/infra"
)

func fileConfig(t *testing.T) *infra.Config {
	t.Helper()
	return &infra.Config{
		Storage:  infra.StorageConfig{Driver: "file", Dir: t.TempDir()},
		Database: infra.DatabaseConfig{ConnectAttempts: 1},
		Redis:    infra.RedisConfig{CacheTTL: time.Hour},
		Engine:   infra.EngineConfig{CBTimeout: time.Second, CBFailureThreshold: 5},
	}
}

func TestOpen_FileStore(t *testing.T) {
	s, err := Open(context.Background(), fileConfig(t), nil, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	assert.Nil(t, s.Cache)
	assert.Nil(t, s.Pool)
	assert.IsType(t, &audit.LogSink{}, s.Sink)
	assert.Same(t, s.Guard, s.Store)
	require.NoError(t, s.Warmup(context.Background()))

	ctx := context.Background()
	p := domain.NewProfile("u1")
	require.NoError(t, s.Store.Save(ctx, p))
	got, err := s.Store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
}

func TestOpen_RedisCacheAndWarmup(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := fileConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()

	ctx := context.Background()

	s, err := Open(ctx, cfg, nil, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()
	require.NotNil(t, s.Cache)

	require.NoError(t, s.Guard.Save(ctx, domain.NewProfile("warm")))
	require.NoError(t, s.Warmup(ctx))

	assert.True(t, mr.Exists(infra.ProfileKey("warm")))
	members, err := mr.Members(infra.RedisKeyProfileIndex)
	require.NoError(t, err)
	assert.Equal(t, []string{"warm"}, members)
}

func TestOpen_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := fileConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = addr

	_, err := Open(context.Background(), cfg, nil, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis unreachable")
}
