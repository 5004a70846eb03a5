package redis

import (
	"context"
	"net"
	"strings"
	"time"
)

const keyPrefix = "wellness-payments:"

// RateLimiter counts hits per key in fixed windows. The window starts on the first hit.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow records a hit on key and reports whether it is still within limit for the window.
// A non-positive limit disables the check.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	n, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			return false, err
		}
	}
	return n <= int64(limit), nil
}

// AdminLoginKey buckets admin login attempts by client address, port stripped.
func AdminLoginKey(remoteAddr string) string {
	host := strings.TrimSpace(remoteAddr)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" {
		host = "unknown"
	}
	return Key("admin_login", host)
}

// Key namespaces parts under the service prefix: Key("plan", id) -> "wellness-payments:plan:<id>".
func Key(parts ...string) string {
	return keyPrefix + strings.Join(parts, ":")
}
