package hashring

import "errors"

// ErrRingEmpty is returned when attempting to resolve a key against a ring
// with no physical nodes.
var ErrRingEmpty = errors.New("hashring: no physical nodes in ring")

// ErrNodeNotFound reports that a node is not present in the ring.
// RemovePhysical does not return it: removing an absent node is a no-op.
var ErrNodeNotFound = errors.New("hashring: node not found in ring")

// ErrInvalidNode reports a node with an empty address. AddPhysical does not
// return it: it logs such a node and ignores it.
var ErrInvalidNode = errors.New("hashring: node has empty address")
