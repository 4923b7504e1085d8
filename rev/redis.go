package rev

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares per-key revisions across nodes, so a commit on one node
// invalidates every node's near cache. Optionally a TTL can be applied to
// revision keys to prevent unbounded growth; if a key expires, readers
// observe rev=0 and near records self-heal.
type Redis struct {
	rdb redis.UniversalClient
	ns  string        // logical namespace; should match the store name
	ttl time.Duration // optional TTL for revision keys; 0 disables expiry
}

var _ Store = (*Redis)(nil)

// NewRedis creates a Redis-backed revision store without TTL.
func NewRedis(client redis.UniversalClient, namespace string) *Redis {
	return &Redis{rdb: client, ns: namespace}
}

// NewRedisWithTTL creates a Redis-backed revision store with TTL.
// If ttl <= 0, keys do not expire.
func NewRedisWithTTL(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ns: namespace, ttl: ttl}
}

func (s *Redis) key(k string) string { return "rev:" + s.ns + ":" + k }

// Snapshot returns the current revision. Missing keys are treated as 0.
func (s *Redis) Snapshot(ctx context.Context, key string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	u, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis rev parse: %w", err)
	}
	return u, nil
}

// Bump atomically increments the revision and (optionally) refreshes TTL.
// When ttl > 0, INCR + EXPIRE are pipelined in a single round-trip and the
// INCR result is captured from the pipeline (no extra INCR).
func (s *Redis) Bump(ctx context.Context, key string) (uint64, error) {
	k := s.key(key)

	if s.ttl <= 0 {
		v, err := s.rdb.Incr(ctx, k).Result()
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	}

	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

// Cleanup is not applicable for Redis (expiry handles it if TTL is set).
func (s *Redis) Cleanup(time.Duration) {}

// Close closes the underlying Redis client.
func (s *Redis) Close(ctx context.Context) error { return s.rdb.Close() }
