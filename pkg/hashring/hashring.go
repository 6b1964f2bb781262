package hashring

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultVirtualNodes is the number of ring positions contributed by each
// physical node when Options.VirtualNodes isn't overridden.
const DefaultVirtualNodes = 100

// HashRing is a consistent hash ring with virtual nodes. Reads (Primary,
// ReplicaSet, PhysicalNodes) take a read lock and are the hot path;
// mutation (AddPhysical, RemovePhysical) is infrequent and takes a write
// lock, matching spec.md §4.2's concurrency note.
type HashRing struct {
	mu           sync.RWMutex
	virtualNodes int
	positions    []uint32        // sorted, ascending
	owners       map[uint32]Node // position -> owning node
	physical     map[string]Node // address -> node, for PhysicalNodes/idempotent re-add
	logger       *log.Logger
}

// New creates a ketama-style ring. virtualNodes <= 0 falls back to
// DefaultVirtualNodes.
func New(virtualNodes int, logger *log.Logger) *HashRing {
	if virtualNodes <= 0 {
		virtualNodes = DefaultVirtualNodes
	}
	if logger == nil {
		logger = log.Default()
	}
	return &HashRing{
		virtualNodes: virtualNodes,
		owners:       make(map[uint32]Node),
		physical:     make(map[string]Node),
		logger:       logger,
	}
}

func hash32(s string) uint32 {
	return uint32(xxhash.Sum64String(s))
}

// AddPhysical inserts virtualNodes positions for n, hashing
// "address-i" for i in [0, virtualNodes). Idempotent: calling it again for
// the same node replaces the prior positions at identical hashes (the hash
// inputs are deterministic, so re-adding is a no-op unless the virtual
// node count changed since the last add).
func (h *HashRing) AddPhysical(n Node) {
	if n.Address() == "" || n.Address() == ":0" {
		h.logger.Printf("hashring: refusing to add node with empty address: %+v", n)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.physical[n.Address()]; exists {
		h.removePhysicalLocked(n)
	}
	h.physical[n.Address()] = n

	for i := 0; i < h.virtualNodes; i++ {
		pos := hash32(fmt.Sprintf("%s-%d", n.Address(), i))
		h.owners[pos] = n
	}
	h.rebuildPositionsLocked()
}

// RemovePhysical removes every position mapped to a node with n's address,
// whatever that node's ID.
func (h *HashRing) RemovePhysical(n Node) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removePhysicalLocked(n)
}

// removePhysicalLocked drops every virtual position belonging to n's
// address. Positions are hashed from the address alone (see AddPhysical),
// so the match here must be address-based too, not Node.Equal: a peer can
// be re-admitted with the same address but a different ID than whatever
// identity originally added it (e.g. sweepTimeouts only knows the
// address, not the configured NodeID recorded at admission time), and an
// ID-sensitive match would silently leave its stale positions in the
// ring.
func (h *HashRing) removePhysicalLocked(n Node) {
	delete(h.physical, n.Address())
	for i := 0; i < h.virtualNodes; i++ {
		pos := hash32(fmt.Sprintf("%s-%d", n.Address(), i))
		if owner, ok := h.owners[pos]; ok && owner.Address() == n.Address() {
			delete(h.owners, pos)
		}
	}
	h.rebuildPositionsLocked()
}

func (h *HashRing) rebuildPositionsLocked() {
	positions := make([]uint32, 0, len(h.owners))
	for pos := range h.owners {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	h.positions = positions
}

// ceilingIndexLocked returns the index of the first position >= hash, wrapping
// to 0 if hash is past the last position.
func (h *HashRing) ceilingIndexLocked(hash uint32) int {
	idx := sort.Search(len(h.positions), func(i int) bool {
		return h.positions[i] >= hash
	})
	if idx >= len(h.positions) {
		idx = 0
	}
	return idx
}

// Primary returns the node at the first position >= hash(key), wrapping
// cyclically to the smallest position if none is found.
func (h *HashRing) Primary(key string) (Node, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.positions) == 0 {
		return Node{}, ErrRingEmpty
	}

	idx := h.ceilingIndexLocked(hash32(key))
	return h.owners[h.positions[idx]], nil
}

// ReplicaSet returns the primary followed by up to r-1 further distinct
// physical nodes, walking clockwise and skipping virtual-node duplicates
// that resolve to a physical node already collected. Traversal is bounded
// at 2*len(positions) visits so it always terminates even when r exceeds
// the number of physical nodes.
func (h *HashRing) ReplicaSet(key string, r int) ([]Node, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.positions) == 0 {
		return nil, ErrRingEmpty
	}
	if r <= 0 {
		r = 1
	}

	start := h.ceilingIndexLocked(hash32(key))
	seen := make(map[string]struct{}, r)
	result := make([]Node, 0, r)

	limit := 2 * len(h.positions)
	for i := 0; i < limit && len(result) < r; i++ {
		idx := (start + i) % len(h.positions)
		node := h.owners[h.positions[idx]]
		if _, dup := seen[node.Address()]; dup {
			continue
		}
		seen[node.Address()] = struct{}{}
		result = append(result, node)
	}

	if len(result) < r {
		h.logger.Printf("hashring: replica set for key %q has only %d of %d requested distinct nodes", key, len(result), r)
	}
	return result, nil
}

// PhysicalNodes returns the distinct nodes currently contributing
// positions to the ring.
func (h *HashRing) PhysicalNodes() []Node {
	h.mu.RLock()
	defer h.mu.RUnlock()

	nodes := make([]Node, 0, len(h.physical))
	for _, n := range h.physical {
		nodes = append(nodes, n)
	}
	return nodes
}
