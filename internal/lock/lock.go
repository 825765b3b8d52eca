// Package lock provides the mutual exclusion used to keep scheduled detection
// passes from overlapping across service instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by a release func when the lock expired or was taken over.
var ErrNotHeld = errors.New("lock not held")

// Release gives the lock back. It is safe to call more than once.
type Release func(ctx context.Context) error

type Locker interface {
	// TryLock does not block. ok is false when somebody else holds key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release Release, ok bool, err error)
}

// NopLocker always grants the lock; used for single-instance deployments.
type NopLocker struct{}

func (NopLocker) TryLock(context.Context, string, time.Duration) (Release, bool, error) {
	return func(context.Context) error { return nil }, true, nil
}

// unlock deletes the key only if it still carries our token.
var unlock = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisLocker(rdb redis.UniversalClient, prefix string) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: prefix}
}

// NewRedisClient connects and pings, like every other infra client of the service.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Release, bool, error) {
	full := l.prefix + key
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", full, err)
	}
	if !ok {
		return nil, false, nil
	}

	released := false
	return func(ctx context.Context) error {
		if released {
			return nil
		}
		released = true
		n, err := unlock.Run(ctx, l.rdb, []string{full}, token).Int()
		if err != nil {
			return fmt.Errorf("release %s: %w", full, err)
		}
		if n == 0 {
			return ErrNotHeld
		}
		return nil
	}, true, nil
}
