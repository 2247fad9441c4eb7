package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"go.uber.org/zap"
)

// WaitFor повторяет проверку доступности зависимости при старте (БД, Redis),
// пока она не ответит или не кончатся попытки. В горячем пути не используется.
func WaitFor(ctx context.Context, name string, attempts uint, check func(ctx context.Context) error, logger *zap.Logger) error {
	if attempts == 0 {
		attempts = 1
	}
	var n uint

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.DelayType(retry.BackOffDelay),
	)
	err := r.Do(func() error {
		n++
		cCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := check(cCtx); err != nil {
			logger.Warn("dependency not ready", zap.String("dep", name), zap.Uint("attempt", n), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s unreachable after %d attempts: %w", name, n, err)
	}
	logger.Info("dependency ready", zap.String("dep", name), zap.Uint("attempts", n))
	return nil
}
