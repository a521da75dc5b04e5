package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tuan304201/generate-license-key/core"
)

// StatusCache is a redis-backed core.StatusCache. Entries are short-lived
// and invalidated on every mutation of the underlying aggregate, so a stale
// read window is bounded by the TTL.
type StatusCache struct {
	rdb   *redis.Client
	keyNS string
	ttl   time.Duration
}

func NewStatusCache(rdb *redis.Client, keyPrefix string, ttl time.Duration) *StatusCache {
	if keyPrefix == "" {
		keyPrefix = "license:check:"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StatusCache{rdb: rdb, keyNS: keyPrefix, ttl: ttl}
}

func (s *StatusCache) key(ownerID, productID uuid.UUID) string {
	return s.keyNS + ownerID.String() + ":" + productID.String()
}

func (s *StatusCache) Get(ctx context.Context, ownerID, productID uuid.UUID) (core.CheckResult, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(ownerID, productID)).Bytes()
	if err == redis.Nil {
		return core.CheckResult{}, false, nil
	}
	if err != nil {
		return core.CheckResult{}, false, err
	}
	var res core.CheckResult
	if err := json.Unmarshal(val, &res); err != nil {
		return core.CheckResult{}, false, err
	}
	return res, true, nil
}

func (s *StatusCache) Put(ctx context.Context, ownerID, productID uuid.UUID, res core.CheckResult) error {
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(ownerID, productID), b, s.ttl).Err()
}

func (s *StatusCache) Invalidate(ctx context.Context, ownerID, productID uuid.UUID) error {
	return s.rdb.Del(ctx, s.key(ownerID, productID)).Err()
}
