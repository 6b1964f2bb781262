// Package coordinator implements the request router and replication
// coordinator: deciding, for each operation, whether to serve locally,
// forward to a primary, or fan out to replicas, and distinguishing
// primary-originated writes from replica-received writes.
package coordinator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/distcache/ringcache/internal/entry"
	"github.com/distcache/ringcache/internal/store"
	"github.com/distcache/ringcache/pkg/hashring"
)

// Coordinator is the cluster-aware front for a node's LocalStore. None of
// HashRing, Membership, or Coordinator own one another by value; they are
// wired together by the caller (cmd/cachenode) holding references to a
// shared ring and shared peer client.
type Coordinator struct {
	self              hashring.Node
	ring              hashring.Ring
	store             *store.LocalStore
	client            Forwarder
	replicationFactor int
	fanoutConcurrency int
	logger            *log.Logger
}

// New builds a Coordinator for self, routing through ring and store,
// forwarding/replicating via client, with the given replication factor.
func New(self hashring.Node, ring hashring.Ring, st *store.LocalStore, client Forwarder, replicationFactor int, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	if replicationFactor < 1 {
		replicationFactor = 1
	}
	return &Coordinator{
		self:              self,
		ring:              ring,
		store:             st,
		client:            client,
		replicationFactor: replicationFactor,
		fanoutConcurrency: 16,
		logger:            logger,
	}
}

// --- Public surface, consumed by the public HTTP API ---

// Get serves key from the local store if this node is primary for it,
// otherwise forwards to the primary. There is no replica fall-back on
// primary failure; the error surfaces to the caller.
func (c *Coordinator) Get(ctx context.Context, key string) (entry.Value, bool, error) {
	primary, err := c.ring.Primary(key)
	if err != nil {
		return entry.Value{}, false, err
	}

	if primary.Equal(c.self) {
		v, ok := c.store.Get(key)
		return v, ok, nil
	}

	return c.client.ForwardGet(ctx, primary, key)
}

// Put computes the primary for key; if this node is primary it performs
// the write locally and asynchronously replicates, otherwise it forwards
// to the primary and surfaces that call's result.
func (c *Coordinator) Put(ctx context.Context, key string, value entry.Value, ttl time.Duration) error {
	primary, err := c.ring.Primary(key)
	if err != nil {
		if errors.Is(err, hashring.ErrRingEmpty) {
			return ErrNoNodesAvailable
		}
		return err
	}

	if primary.Equal(c.self) {
		return c.primaryWrite(ctx, key, value, ttl)
	}
	return c.client.ForwardPut(ctx, primary, key, value, ttl)
}

// Delete is symmetric to Put, except an empty ring is a no-op success
// rather than an error.
func (c *Coordinator) Delete(ctx context.Context, key string) error {
	primary, err := c.ring.Primary(key)
	if err != nil {
		if errors.Is(err, hashring.ErrRingEmpty) {
			return nil
		}
		return err
	}

	if primary.Equal(c.self) {
		return c.primaryDelete(ctx, key)
	}
	return c.client.ForwardDelete(ctx, primary, key)
}

// GetAll returns this node's local, non-expired snapshot. It is not a
// cluster-wide scan; spec.md §9 flags the naming as potentially
// misleading, and callers must understand it is a per-node view.
func (c *Coordinator) GetAll() map[string]entry.Value {
	return c.store.Snapshot()
}

// --- Internal surface, consumed by the internal peer HTTP API ---

// OnInternalPut recomputes the primary for key and runs the primary-write
// path if this node currently owns it, or the replica-write path
// otherwise. This lets a forwarded client write that lands on the primary
// still trigger replication (spec.md §4.3).
func (c *Coordinator) OnInternalPut(ctx context.Context, key string, value entry.Value, ttl time.Duration) error {
	primary, err := c.ring.Primary(key)
	if err != nil {
		if errors.Is(err, hashring.ErrRingEmpty) {
			return ErrNoNodesAvailable
		}
		return err
	}

	if primary.Equal(c.self) {
		return c.primaryWrite(ctx, key, value, ttl)
	}
	return c.replicaWrite(key, value, ttl)
}

// OnInternalDelete is symmetric to OnInternalPut.
func (c *Coordinator) OnInternalDelete(ctx context.Context, key string) error {
	primary, err := c.ring.Primary(key)
	if err != nil {
		if errors.Is(err, hashring.ErrRingEmpty) {
			return nil
		}
		return err
	}

	if primary.Equal(c.self) {
		return c.primaryDelete(ctx, key)
	}
	return c.replicaDelete(key)
}

// OnInternalGet serves purely from the local store, with no further
// routing: the internal endpoint trusts the sender's own primary
// resolution.
func (c *Coordinator) OnInternalGet(key string) (entry.Value, bool) {
	return c.store.Get(key)
}

// --- Write paths ---

// primaryWrite stores key locally, then (if replicationFactor > 1)
// asynchronously fans the write out to up to replicationFactor-1 further
// distinct replicas. It returns as soon as the local write succeeds;
// fan-out failures are logged, never surfaced.
func (c *Coordinator) primaryWrite(ctx context.Context, key string, value entry.Value, ttl time.Duration) error {
	c.store.Put(key, value, ttl)

	if c.replicationFactor > 1 {
		go c.replicateWrite(key, value, ttl)
	}
	return nil
}

func (c *Coordinator) replicateWrite(key string, value entry.Value, ttl time.Duration) {
	targets, err := c.replicaTargets(key)
	if err != nil {
		c.logger.Printf("coordinator: replication skipped for key %q: %v", key, err)
		return
	}

	bg := context.Background()
	p := pool.New().WithMaxGoroutines(c.fanoutConcurrency)
	for _, target := range targets {
		p.Go(func() {
			if err := c.client.ForwardPut(bg, target, key, value, ttl); err != nil {
				c.logger.Printf("coordinator: replication of key %q to %s failed: %v", key, target.Address(), err)
			}
		})
	}
	p.Wait()
}

// primaryDelete is symmetric to primaryWrite.
func (c *Coordinator) primaryDelete(ctx context.Context, key string) error {
	c.store.Delete(key)

	if c.replicationFactor > 1 {
		go c.replicateDelete(key)
	}
	return nil
}

func (c *Coordinator) replicateDelete(key string) {
	targets, err := c.replicaTargets(key)
	if err != nil {
		c.logger.Printf("coordinator: replicated delete skipped for key %q: %v", key, err)
		return
	}

	bg := context.Background()
	p := pool.New().WithMaxGoroutines(c.fanoutConcurrency)
	for _, target := range targets {
		p.Go(func() {
			if err := c.client.ForwardDelete(bg, target, key); err != nil {
				c.logger.Printf("coordinator: replicated delete of key %q to %s failed: %v", key, target.Address(), err)
			}
		})
	}
	p.Wait()
}

// replicaTargets returns the replica set for key, minus the local node,
// capped at replicationFactor-1 entries.
func (c *Coordinator) replicaTargets(key string) ([]hashring.Node, error) {
	set, err := c.ring.ReplicaSet(key, c.replicationFactor)
	if err != nil {
		return nil, err
	}

	targets := make([]hashring.Node, 0, len(set))
	for _, n := range set {
		if n.Equal(c.self) {
			continue
		}
		targets = append(targets, n)
		if len(targets) >= c.replicationFactor-1 {
			break
		}
	}
	return targets, nil
}

// replicaWrite applies a write locally with no further routing or
// fan-out; it is used when a replica (not the primary) receives a
// replicated write.
func (c *Coordinator) replicaWrite(key string, value entry.Value, ttl time.Duration) error {
	c.store.Put(key, value, ttl)
	return nil
}

// replicaDelete is symmetric to replicaWrite.
func (c *Coordinator) replicaDelete(key string) error {
	c.store.Delete(key)
	return nil
}
