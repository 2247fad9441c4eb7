package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "fraudprofile"
)

// Ключи кэша профилей
const (
	RedisKeyProfileIndex  = RedisNamespace + ":profiles:index"
	RedisKeyLockWarmup    = RedisNamespace + ":lock:warmup:profiles"
	redisKeyProfilePrefix = RedisNamespace + ":profile:"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanRetrain — команда переобучить банк моделей на всех инстансах.
	RedisChanRetrain = RedisNamespace + ":models:retrain"
)

// ProfileKey — ключ снимка профиля в кэше.
func ProfileKey(userID string) string {
	return redisKeyProfilePrefix + userID
}
