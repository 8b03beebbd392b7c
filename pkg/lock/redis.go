package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const (
	lockTTL       = 30 * time.Second
	retryInterval = 50 * time.Millisecond
)

// releaseScript deletes the lock only when the stored token still belongs to
// the caller, so an expired lock reacquired by another replica is never freed
// by the original holder.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

// RedisLocker coordinates locks across replicas using SET NX with a TTL.
type RedisLocker struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewRedisLocker connects to Redis at the given URL and verifies the
// connection before returning.
func NewRedisLocker(ctx context.Context, logger *slog.Logger, redisURL string) (*RedisLocker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLocker{
		client: client,
		logger: logger.With("module", "redis_locker"),
	}, nil
}

// Acquire polls SET NX until the lock is taken or the context ends. The
// returned release function is safe to call after the TTL has expired.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := "flowline:lock:" + key
	token := uuid.New().String()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}

		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, ctx.Err())
		case <-time.After(retryInterval):
		}
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := l.client.Eval(releaseCtx, releaseScript, []string{redisKey}, token).Err()
		if err != nil {
			l.logger.Error("Failed to release lock", "key", key, "error", err)
		}
	}

	return release, nil
}

// Close shuts down the underlying Redis client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
