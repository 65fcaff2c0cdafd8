package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/transport-booking/internal/model"
)

// AvailabilityCache keeps serialised schedule availability in Redis. A
// nil client disables caching, matching how the rate limiter and response
// cache degrade when Redis is unreachable.
type AvailabilityCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewAvailabilityCache returns a cache; rdb may be nil.
func NewAvailabilityCache(rdb *redis.Client, ttl time.Duration) *AvailabilityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &AvailabilityCache{rdb: rdb, ttl: ttl}
}

// AvailabilityKey is the Redis key for a schedule's availability.
func AvailabilityKey(scheduleID uint64) string {
	return fmt.Sprintf("availability:schedule:%d", scheduleID)
}

// Get returns the cached value and whether it was a hit.
func (c *AvailabilityCache) Get(ctx context.Context, scheduleID uint64) (*model.Availability, bool, error) {
	if c == nil || c.rdb == nil {
		return nil, false, nil
	}
	bs, err := c.rdb.Get(ctx, AvailabilityKey(scheduleID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var a model.Availability
	if err := json.Unmarshal(bs, &a); err != nil {
		return nil, false, err
	}
	return &a, true, nil
}

// Set stores a value with the configured TTL.
func (c *AvailabilityCache) Set(ctx context.Context, a model.Availability) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	bs, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, AvailabilityKey(a.ScheduleID), bs, c.ttl).Err()
}

// Invalidate drops the cached value after the counters changed.
func (c *AvailabilityCache) Invalidate(ctx context.Context, scheduleID uint64) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, AvailabilityKey(scheduleID)).Err()
}
