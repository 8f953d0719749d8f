package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

func sessionCountsKey(sessionID int64) string {
	return fmt.Sprintf("rollcall:session:%d:counts", sessionID)
}

// IncrSessionStatus bumps the cached per-session counter for a status.
// The worker calls this while consuming attendance events; the dashboard
// reads the hash as a fast path over counting rows in Postgres.
func (r *Redis) IncrSessionStatus(ctx context.Context, sessionID int64, status string, delta int64) error {
	if r == nil || r.Client == nil {
		return nil
	}
	key := sessionCountsKey(sessionID)
	if err := r.Client.HIncrBy(ctx, key, status, delta).Err(); err != nil {
		return err
	}
	return r.Client.Expire(ctx, key, 24*time.Hour).Err()
}

// SessionCounts returns the cached per-status counters for a session.
// A missing hash yields an empty map, not an error.
func (r *Redis) SessionCounts(ctx context.Context, sessionID int64) (map[string]int64, error) {
	if r == nil || r.Client == nil {
		return nil, nil
	}
	raw, err := r.Client.HGetAll(ctx, sessionCountsKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(raw))
	for status, val := range raw {
		var n int64
		if _, err := fmt.Sscanf(val, "%d", &n); err == nil {
			counts[status] = n
		}
	}
	return counts, nil
}
