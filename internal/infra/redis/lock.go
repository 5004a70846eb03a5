package redis

import (
	"context"
	"errors"
	"time"

	"wellness-payments/internal/domain"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockExpired is returned by Unlock when the key no longer holds our token.
var ErrLockExpired = errors.New("lock expired before release")

type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

var _ Locker = (*RedisLocker)(nil)

// lockBackend is the subset of *redis.Client the locker needs.
type lockBackend interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

// RedisLocker is a single-instance SET NX lock with token-checked release.
// Keys are namespaced under "<prefix>lock:".
type RedisLocker struct {
	cli     lockBackend
	tries   int
	backoff time.Duration
}

func NewLocker(c *Client) *RedisLocker {
	return newLocker(c.cli)
}

func newLocker(b lockBackend) *RedisLocker {
	return &RedisLocker{cli: b, tries: 5, backoff: 50 * time.Millisecond}
}

func lockKey(key string) string { return Key("lock", key) }

// TryLock polls a few times before giving up with domain.ErrLockNotAcquired.
// Redis errors on the last try are returned as-is.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < l.tries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(l.backoff * time.Duration(i)):
			}
		}
		ok, err := l.cli.SetNX(ctx, lockKey(key), token, ttl).Result()
		if err == nil && ok {
			return token, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", domain.ErrLockNotAcquired
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	n, err := luaUnlock.Run(ctx, l.cli, []string{lockKey(key)}, token).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockExpired
	}
	return nil
}
