package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"wellness-payments/internal/domain/model"
	"wellness-payments/internal/domain/ports/repository"
	"wellness-payments/internal/infra/metrics"
	red "wellness-payments/internal/infra/redis"
)

var _ repository.SubscriptionPlanRepository = (*planRepoCacheDecorator)(nil)

type planRepoCacheDecorator struct {
	inner repository.SubscriptionPlanRepository
	cache red.RedisClient
	ttl   time.Duration
}

// NewPlanRepoCacheDecorator caches plan reads in Redis. Cache errors fall through to inner,
// and nothing is written back while Redis is failing.
func NewPlanRepoCacheDecorator(inner repository.SubscriptionPlanRepository, cache red.RedisClient, ttl time.Duration) repository.SubscriptionPlanRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &planRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

// lookup reads key and reports whether the caller may write the value back.
func (d *planRepoCacheDecorator) lookup(ctx context.Context, name, key string) (string, bool, bool) {
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		return val, true, true
	case errors.Is(err, red.Nil):
		metrics.IncCacheRequest(name, "miss")
		return "", false, true
	default:
		metrics.IncCacheRequest(name, "error")
		return "", false, false
	}
}

func (d *planRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	key := red.Key("plan", id)
	val, found, writable := d.lookup(ctx, "plan", key)
	if found {
		var plan model.SubscriptionPlan
		if json.Unmarshal([]byte(val), &plan) == nil && !plan.IsZero() {
			metrics.IncCacheRequest("plan", "hit")
			return &plan, nil
		}
		metrics.IncCacheRequest("plan", "miss")
	}

	plan, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if writable && !plan.IsZero() {
		if b, err := json.Marshal(plan); err == nil {
			_ = d.cache.Set(ctx, key, b, d.ttl)
		}
	}
	return plan, nil
}

func (d *planRepoCacheDecorator) DurationDays(ctx context.Context, planID string) (int, error) {
	key := red.Key("plan", planID, "duration_days")
	val, found, writable := d.lookup(ctx, "plan_duration", key)
	if found {
		if days, err := strconv.Atoi(val); err == nil && days > 0 {
			metrics.IncCacheRequest("plan_duration", "hit")
			return days, nil
		}
		metrics.IncCacheRequest("plan_duration", "miss")
	}

	days, err := d.inner.DurationDays(ctx, planID)
	if err != nil {
		return 0, err
	}
	if writable {
		_ = d.cache.Set(ctx, key, strconv.Itoa(days), d.ttl)
	}
	return days, nil
}
