package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

type RedisLock struct {
	cli     *redislock.Client
	ttl     time.Duration
	backoff time.Duration
	retries int
}

func NewRedisLock(cli *redis.Client, ttl time.Duration) *RedisLock {
	return &RedisLock{cli: redislock.New(cli), ttl: ttl, backoff: 100 * time.Millisecond, retries: 30}
}

func (r *RedisLock) Lock(ctx context.Context, key string) (Unlock, error) {
	l, err := r.cli.Obtain(ctx, key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(r.backoff), r.retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		if err := l.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}
