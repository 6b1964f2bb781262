package hashring

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-rendezvous"
)

// RendezvousRing is an alternate Ring implementation using highest-random-
// weight (rendezvous) hashing instead of a ketama virtual-node ring. It
// satisfies the same Ring interface the coordinator depends on, so a
// cluster can be built against either without any other code changing;
// selected via Options.WithRingAlgorithm(RingAlgorithmRendezvous).
//
// Rendezvous hashing needs no virtual nodes: every physical node is a
// single point, and membership changes move only the keys that hashed to
// the departing/joining node, same as the ring's invariant, but with O(n)
// lookup in the node count rather than O(log positions).
type RendezvousRing struct {
	mu    sync.RWMutex
	r     *rendezvous.Rendezvous
	byID  map[string]Node
	order []string // node IDs in sorted order, as last passed to rendezvous.New
}

func hashSeed(s string) uint64 {
	return xxhash.Sum64String(s)
}

// NewRendezvous creates an empty rendezvous ring.
func NewRendezvous() *RendezvousRing {
	rr := &RendezvousRing{byID: make(map[string]Node)}
	rr.r = rendezvous.New(nil, hashSeed)
	return rr
}

func (rr *RendezvousRing) rebuildLocked() {
	ids := make([]string, 0, len(rr.byID))
	for id := range rr.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rr.order = ids
	rr.r = rendezvous.New(ids, hashSeed)
}

func (rr *RendezvousRing) AddPhysical(n Node) {
	if n.ID == "" {
		return
	}
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.byID[n.ID] = n
	rr.rebuildLocked()
}

// RemovePhysical removes every node sharing n's address, whatever its ID,
// matching HashRing: the membership sweeper only knows a peer's address.
func (rr *RendezvousRing) RemovePhysical(n Node) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	for id, existing := range rr.byID {
		if existing.Address() == n.Address() {
			delete(rr.byID, id)
		}
	}
	rr.rebuildLocked()
}

func (rr *RendezvousRing) Primary(key string) (Node, error) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	if len(rr.byID) == 0 {
		return Node{}, ErrRingEmpty
	}
	id := rr.r.Lookup(key)
	return rr.byID[id], nil
}

// ReplicaSet returns the rendezvous primary for key first, followed by up
// to r-1 other nodes in descending order of xxhash(id + "|" + key).
// Rendezvous hashing has no natural "clockwise" order; the result is
// deterministic for a fixed node set.
func (rr *RendezvousRing) ReplicaSet(key string, r int) ([]Node, error) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	if len(rr.byID) == 0 {
		return nil, ErrRingEmpty
	}
	if r <= 0 {
		r = 1
	}

	type ranked struct {
		id     string
		weight uint64
	}
	candidates := make([]ranked, 0, len(rr.byID))
	for id := range rr.byID {
		candidates = append(candidates, ranked{id: id, weight: hashSeed(id + "|" + key)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].weight > candidates[j].weight })

	primaryID := rr.r.Lookup(key)
	primary := rr.byID[primaryID]
	result := make([]Node, 0, r)
	result = append(result, primary)
	for _, c := range candidates {
		if len(result) >= r {
			break
		}
		if c.id == primary.ID {
			continue
		}
		result = append(result, rr.byID[c.id])
	}
	return result, nil
}

func (rr *RendezvousRing) PhysicalNodes() []Node {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	nodes := make([]Node, 0, len(rr.byID))
	for _, n := range rr.byID {
		nodes = append(nodes, n)
	}
	return nodes
}
