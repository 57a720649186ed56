package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/saudeaberta/medstock-api/internal/domain/providers"
	redisclient "github.com/saudeaberta/medstock-api/internal/infrastructure/clients/redis"
)

const keyPrefix = "medstock:lock:"

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock implements JobLock with SET NX PX
type RedisLock struct {
	client *redisclient.Client
}

// NewRedisLock creates a lock backed by Redis
func NewRedisLock(client *redisclient.Client) providers.JobLock {
	return &RedisLock{client: client}
}

// Acquire takes the named lock for at most ttl
func (l *RedisLock) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	key := keyPrefix + name
	token := uuid.NewString()

	ok, err := l.client.Client().SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client.Client(), []string{key}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("failed to release lock %s: %w", name, err)
		}
		return nil
	}
	return release, true, nil
}
