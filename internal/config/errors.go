package config

import "errors"

var ErrInvalidNodeID = errors.New("config: node.id is required")
var ErrInvalidHost = errors.New("config: node.host is required")
var ErrInvalidPort = errors.New("config: node.port must be in (0, 65535]")
var ErrInvalidReplicationFactor = errors.New("config: replication.factor must be >= 1")
var ErrInvalidHeartbeatInterval = errors.New("config: heartbeat interval must be > 0")
var ErrInvalidPeerTimeout = errors.New("config: peer timeout must be > heartbeat interval")
var ErrInvalidDataTimeout = errors.New("config: data operation timeout must be > 0")
var ErrInvalidHeartbeatTimeout = errors.New("config: heartbeat timeout must be > 0")
