package coordinator

import "errors"

// ErrNoNodesAvailable is returned by Put and OnInternalPut when the ring is
// empty. Get returns the ring's own hashring.ErrRingEmpty in that case, and
// Delete/OnInternalDelete treat it as a no-op success instead, per
// spec.md §4.3's tie-break rules.
var ErrNoNodesAvailable = errors.New("coordinator: no nodes available")
