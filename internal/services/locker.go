package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TickLocker keeps replicas from scanning sessions at the same time.
type TickLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type RedisLocker struct {
	redis *redis.Client
	owner string
}

func NewRedisLocker(redisClient *redis.Client, owner string) *RedisLocker {
	return &RedisLocker{redis: redisClient, owner: owner}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.redis.SetNX(ctx, key, l.owner, ttl).Result()
}

// Release deletes key only while this owner still holds it.
func (l *RedisLocker) Release(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, l.redis, []string{key}, l.owner).Err()
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
