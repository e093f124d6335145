package lock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld reports that the lock is currently owned by someone else.
var ErrHeld = errors.New("lock: already held")

// Locker is a Redis-backed distributed lock. Ownership is a random token so
// only the acquirer can release.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
}

// Try runs fn while holding the lock, failing immediately with ErrHeld when
// the key is taken. Used to reject duplicate in-flight submissions rather
// than queue them.
func (l Locker) Try(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	return l.acquire(ctx, key, ttl, fn, false)
}

// WithLock runs fn while holding the lock, retrying with backoff until the
// context is cancelled.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	return l.acquire(ctx, key, ttl, fn, true)
}

func (l Locker) acquire(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error, wait bool) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	token := uuid.NewString()
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}

	for {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			defer l.release(context.Background(), key, token)
			return fn(ctx)
		}
		if !wait {
			return ErrHeld
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l Locker) release(ctx context.Context, key, token string) {
	const script = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`
	if err := l.R.Eval(ctx, script, []string{key}, token).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			_ = l.R.Del(ctx, key).Err()
		}
	}
}
