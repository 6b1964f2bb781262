package hashring

import "fmt"

// Node is an immutable identity value for a cluster peer. Two Nodes are
// equal iff all three fields match; this makes Node safe to use as a map
// key. Pruning a physical node's virtual positions out of the ring matches
// by Address alone, not by Equal (see HashRing.removePhysicalLocked).
type Node struct {
	ID   string
	Host string
	Port int
}

// Address is the node's dial target, host:port.
func (n Node) Address() string {
	return fmt.Sprintf("%s:%d", n.Host, n.Port)
}

func (n Node) String() string {
	return fmt.Sprintf("Node{id=%s, addr=%s}", n.ID, n.Address())
}

// Equal reports whether two nodes share id, host and port.
func (n Node) Equal(other Node) bool {
	return n.ID == other.ID && n.Host == other.Host && n.Port == other.Port
}
