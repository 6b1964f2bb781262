package membership

import "errors"

// ErrMalformedPeerAddress is logged (never returned to a caller) when a
// configured or received peer address doesn't parse as host:port.
var ErrMalformedPeerAddress = errors.New("membership: malformed peer address, expected host:port")
