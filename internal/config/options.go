// Package config holds the per-node startup configuration described in
// spec.md §6, built with the same functional-options style the teacher
// uses for cluster options.
package config

import (
	"fmt"
	"log"
	"time"
)

// RingAlgorithm selects which pkg/hashring.Ring implementation a node is
// constructed against.
type RingAlgorithm string

const (
	RingAlgorithmKetama     RingAlgorithm = "ketama"
	RingAlgorithmRendezvous RingAlgorithm = "rendezvous"
)

// Options is the fully-resolved configuration for one node.
type Options struct {
	nodeID string
	host   string
	port   int

	peers []string // host:port, including self

	replicationFactor int
	maxEntries        int
	virtualNodes      int
	ringAlgorithm     RingAlgorithm

	heartbeatInterval time.Duration
	peerTimeout       time.Duration
	dataTimeout       time.Duration
	heartbeatTimeout  time.Duration

	redisAddr string // empty disables the admin mirror

	logger *log.Logger
}

// NewOptions returns an Options populated with the spec's defaults:
// replication factor 1, 100 virtual nodes, 1000 max entries, 5s heartbeat
// interval, 15s peer timeout, 5s data timeout, 3s heartbeat timeout.
func NewOptions() *Options {
	return &Options{
		replicationFactor: 1,
		maxEntries:        1000,
		virtualNodes:      100,
		ringAlgorithm:     RingAlgorithmKetama,
		heartbeatInterval: 5 * time.Second,
		peerTimeout:       15 * time.Second,
		dataTimeout:       5 * time.Second,
		heartbeatTimeout:  3 * time.Second,
		logger:            log.Default(),
	}
}

func (o *Options) WithNode(id, host string, port int) *Options {
	o.nodeID, o.host, o.port = id, host, port
	return o
}

func (o *Options) WithPeers(peers []string) *Options {
	o.peers = peers
	return o
}

func (o *Options) WithReplicationFactor(r int) *Options {
	o.replicationFactor = r
	return o
}

func (o *Options) WithMaxEntries(n int) *Options {
	o.maxEntries = n
	return o
}

func (o *Options) WithVirtualNodes(n int) *Options {
	o.virtualNodes = n
	return o
}

func (o *Options) WithRingAlgorithm(alg RingAlgorithm) *Options {
	o.ringAlgorithm = alg
	return o
}

func (o *Options) WithHeartbeatInterval(d time.Duration) *Options {
	o.heartbeatInterval = d
	return o
}

func (o *Options) WithPeerTimeout(d time.Duration) *Options {
	o.peerTimeout = d
	return o
}

func (o *Options) WithDataTimeout(d time.Duration) *Options {
	o.dataTimeout = d
	return o
}

func (o *Options) WithHeartbeatTimeout(d time.Duration) *Options {
	o.heartbeatTimeout = d
	return o
}

func (o *Options) WithRedisAddr(addr string) *Options {
	o.redisAddr = addr
	return o
}

func (o *Options) WithLogger(l *log.Logger) *Options {
	o.logger = l
	return o
}

// Validate checks node identity, replication factor, and the four
// intervals/timeouts. capacity.max-entries is corrected (with a logged
// warning) rather than rejected, per spec.md §4.1. Peers, virtual nodes,
// ring algorithm, and the Redis address are not checked here.
func (o *Options) Validate() error {
	if o.nodeID == "" {
		return ErrInvalidNodeID
	}
	if o.host == "" {
		return ErrInvalidHost
	}
	if o.port <= 0 || o.port > 65535 {
		return ErrInvalidPort
	}
	if o.replicationFactor < 1 {
		return ErrInvalidReplicationFactor
	}
	if o.heartbeatInterval <= 0 {
		return ErrInvalidHeartbeatInterval
	}
	if o.peerTimeout <= o.heartbeatInterval {
		return ErrInvalidPeerTimeout
	}
	if o.dataTimeout <= 0 {
		return ErrInvalidDataTimeout
	}
	if o.heartbeatTimeout <= 0 {
		return ErrInvalidHeartbeatTimeout
	}
	if o.maxEntries <= 0 {
		o.logger.Printf("config: capacity.max-entries configured as %d, falling back to 1000", o.maxEntries)
		o.maxEntries = 1000
	}
	return nil
}

func (o *Options) NodeID() string                   { return o.nodeID }
func (o *Options) Host() string                     { return o.host }
func (o *Options) Port() int                        { return o.port }
func (o *Options) Address() string                  { return fmt.Sprintf("%s:%d", o.host, o.port) }
func (o *Options) Peers() []string                  { return o.peers }
func (o *Options) ReplicationFactor() int           { return o.replicationFactor }
func (o *Options) MaxEntries() int                  { return o.maxEntries }
func (o *Options) VirtualNodes() int                { return o.virtualNodes }
func (o *Options) RingAlgorithm() RingAlgorithm     { return o.ringAlgorithm }
func (o *Options) HeartbeatInterval() time.Duration { return o.heartbeatInterval }
func (o *Options) PeerTimeout() time.Duration       { return o.peerTimeout }
func (o *Options) DataTimeout() time.Duration       { return o.dataTimeout }
func (o *Options) HeartbeatTimeout() time.Duration  { return o.heartbeatTimeout }
func (o *Options) RedisAddr() string                { return o.redisAddr }
func (o *Options) Logger() *log.Logger              { return o.logger }
