// Package adminstore optionally mirrors each node's admin snapshot (id,
// address, counters, last-heartbeat) to Redis for external dashboards. It
// is never consulted for routing or cache reads/writes — those remain
// pure in-memory per spec.md §6 ("Persisted state: none"); this is purely
// an observability side-channel, skipped entirely when no Redis address is
// configured.
package adminstore

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// Client is the subset of *redis.Client the mirror depends on, kept as an
// interface so it can be faked in tests without a live Redis.
type Client interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Mirror writes a node's admin snapshot to Redis under
// "ringcache:<clusterName>:nodes:<nodeID>".
type Mirror struct {
	clusterName string
	redis       Client
}

// Snapshot is the subset of admin/stats data mirrored to Redis.
type Snapshot struct {
	NodeID                string
	NodeAddress           string
	LocalKeyCount         int
	CacheHitCount         int64
	CacheMissCount        int64
	PutCount              int64
	DeleteCount           int64
	LastHeartbeatReceived time.Time
}

// Connect dials Redis at addr, retrying the initial connection with
// exponential backoff up to maxElapsed, the same pattern the teacher's
// NewRedisClient uses for its own connection loop.
func Connect(ctx context.Context, addr, clusterName string, maxElapsed time.Duration) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed

	err := backoff.Retry(func() error {
		return client.Ping(ctx).Err()
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, fmt.Errorf("adminstore: failed to connect to redis at %s: %w", addr, err)
	}

	return &Mirror{clusterName: clusterName, redis: client}, nil
}

func (m *Mirror) key(nodeID string) string {
	return fmt.Sprintf("ringcache:%s:nodes:%s", m.clusterName, nodeID)
}

// Write mirrors a snapshot. Failures are logged by the caller (the admin
// handler), never surfaced to a cache client: this is a best-effort
// side-channel.
func (m *Mirror) Write(ctx context.Context, s Snapshot) error {
	return m.redis.HSet(ctx, m.key(s.NodeID),
		"address", s.NodeAddress,
		"local_key_count", s.LocalKeyCount,
		"cache_hit_count", s.CacheHitCount,
		"cache_miss_count", s.CacheMissCount,
		"put_count", s.PutCount,
		"delete_count", s.DeleteCount,
		"last_heartbeat_received", s.LastHeartbeatReceived.UnixMilli(),
	).Err()
}
