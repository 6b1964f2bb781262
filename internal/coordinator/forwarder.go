package coordinator

import (
	"context"
	"time"

	"github.com/distcache/ringcache/internal/entry"
	"github.com/distcache/ringcache/pkg/hashring"
)

// Forwarder is the subset of *peer.Client the coordinator depends on. It
// exists as an interface so tests can substitute a fake peer without
// opening a socket, the same boundary pantheon draws around its
// RedisClient.
type Forwarder interface {
	ForwardGet(ctx context.Context, target hashring.Node, key string) (entry.Value, bool, error)
	ForwardPut(ctx context.Context, target hashring.Node, key string, value entry.Value, ttl time.Duration) error
	ForwardDelete(ctx context.Context, target hashring.Node, key string) error
}
