package engine

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Задержки переподключения. Переменные, чтобы тесты не ждали секундами.
var (
	subscribeRetryDelay = 5 * time.Second
	reconnectDelay      = 1 * time.Second
)

// ListenResilient — цикл "живучей" подписки на канал Redis.
// Переподписывается при обрыве; onReconnect вызывается после каждой успешной
// подписки, кроме первой (догоняем сообщения, пропущенные во время обрыва).
// Возвращается только по отмене ctx.
func ListenResilient(
	ctx context.Context,
	rdb *redis.Client,
	logger *zap.Logger,
	channel string,
	onReconnect func(ctx context.Context) error,
	onMessage func(ctx context.Context, payload string),
) {
	first := true
	for {
		pubsub := rdb.Subscribe(ctx, channel)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to subscribe", zap.String("chan", channel), zap.Error(err))
			if !sleepCtx(ctx, subscribeRetryDelay) {
				return
			}
			continue
		}
		logger.Info("subscribed", zap.String("chan", channel))

		if !first && onReconnect != nil {
			if err := onReconnect(ctx); err != nil {
				logger.Error("sync failed on reconnect", zap.Error(err))
			}
		}
		first = false

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}
				onMessage(ctx, msg.Payload)
			}
		}

		pubsub.Close()
		if !sleepCtx(ctx, reconnectDelay) {
			return
		}
	}
}

// RunRetrainListener переобучает банк по каждой команде из канала.
// Полезная нагрузка — произвольный ID запроса, используется только в логах.
func RunRetrainListener(ctx context.Context, rdb *redis.Client, svc *Service, channel string, logger *zap.Logger) {
	log := logger.With(zap.String("mod", "retrain_listener"))
	retrain := func(ctx context.Context) error {
		_, err := svc.Retrain(ctx)
		return err
	}
	ListenResilient(ctx, rdb, log, channel, retrain, func(ctx context.Context, payload string) {
		log.Info("retrain requested", zap.String("request", payload))
		if err := retrain(ctx); err != nil {
			log.Error("retrain failed", zap.String("request", payload), zap.Error(err))
		}
	})
}

// PublishRetrain рассылает команду переобучения всем инстансам.
func PublishRetrain(ctx context.Context, rdb *redis.Client, channel, requestID string) (int64, error) {
	return rdb.Publish(ctx, channel, requestID).Result()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
