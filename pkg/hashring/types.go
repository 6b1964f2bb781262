package hashring

// Ring is the interface the coordinator and membership manager depend on.
// Two concrete implementations exist: the default ketama-style virtual-node
// ring (HashRing) and an alternate rendezvous-hashing ring (RendezvousRing).
// Both give every physical node full-ring membership semantics; they differ
// only in how a key resolves to a node and how much key movement a
// membership change causes.
type Ring interface {
	// AddPhysical inserts (or replaces, if already present) a physical
	// node's positions in the ring.
	AddPhysical(n Node)
	// RemovePhysical removes every position belonging to n.
	RemovePhysical(n Node)
	// Primary returns the node owning key, or ErrRingEmpty.
	Primary(key string) (Node, error)
	// ReplicaSet returns up to r distinct physical nodes starting at the
	// primary: in clockwise order for HashRing, in per-key weight order for
	// RendezvousRing.
	ReplicaSet(key string, r int) ([]Node, error)
	// PhysicalNodes returns the distinct nodes currently in the ring.
	PhysicalNodes() []Node
}
