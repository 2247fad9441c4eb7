package engine

import (
	"context"
	"hash/fnv"
)

const lockShards = 256

// accountLocks — фиксированный пул мьютексов на каналах, шард выбирается по FNV-хэшу user_id.
// Обновления одного аккаунта сериализуются, разных — идут параллельно (кроме коллизий шардов).
// Ожидание блокировки прерывается отменой контекста.
type accountLocks struct {
	shards [lockShards]chan struct{}
}

func newAccountLocks() *accountLocks {
	l := &accountLocks{}
	for i := range l.shards {
		l.shards[i] = make(chan struct{}, 1)
		l.shards[i] <- struct{}{} // свободен
	}
	return l
}

// Lock захватывает шард аккаунта. Вызывающий обязан вызвать возвращённый unlock.
func (l *accountLocks) Lock(ctx context.Context, userID string) (func(), error) {
	shard := l.shards[shardIdx(userID)]
	select {
	case <-shard:
		return func() { shard <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func shardIdx(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % lockShards
}
