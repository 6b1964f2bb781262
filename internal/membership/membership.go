// Package membership implements the heartbeat-based failure detector:
// sending liveness heartbeats to peers, sweeping silent peers out of the
// ring, and re-admitting peers on a received heartbeat. It is the sole
// join/leave path for the cluster's hash ring.
package membership

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/distcache/ringcache/internal/peer"
	"github.com/distcache/ringcache/pkg/hashring"
)

// Membership tracks per-peer last-seen timestamps and mutates the ring on
// join/leave. peerLastSeen is the sole piece of mutable state; the ring is
// a separate process-wide singleton this component is handed a reference
// to.
type Membership struct {
	mu           sync.Mutex
	peerLastSeen map[string]time.Time

	self   hashring.Node
	ring   hashring.Ring
	client *peer.Client

	heartbeatInterval time.Duration
	peerTimeout       time.Duration
	fanoutConcurrency int
	logger            *log.Logger

	senderTicker  *time.Ticker
	sweeperTicker *time.Ticker
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// New builds a Membership seeded with the configured peer addresses (all
// stamped "now"); self is tracked only if its address is in that list. Malformed peer addresses are logged and
// skipped, never fatal (spec.md §7 MalformedPeerAddress).
func New(self hashring.Node, peerAddrs []string, ring hashring.Ring, client *peer.Client, heartbeatInterval, peerTimeout time.Duration, logger *log.Logger) *Membership {
	if logger == nil {
		logger = log.Default()
	}
	m := &Membership{
		peerLastSeen:      make(map[string]time.Time),
		self:              self,
		ring:              ring,
		client:            client,
		heartbeatInterval: heartbeatInterval,
		peerTimeout:       peerTimeout,
		fanoutConcurrency: 16,
		logger:            logger,
		stopCh:            make(chan struct{}),
	}

	now := time.Now()
	for _, addr := range peerAddrs {
		if _, err := parseAddr(addr); err != nil {
			logger.Printf("membership: %v: %q", ErrMalformedPeerAddress, addr)
			continue
		}
		m.peerLastSeen[addr] = now
	}
	return m
}

func parseAddr(addr string) (hashring.Node, error) {
	host, portStr, found := strings.Cut(addr, ":")
	if !found || host == "" || portStr == "" {
		return hashring.Node{}, ErrMalformedPeerAddress
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return hashring.Node{}, ErrMalformedPeerAddress
	}
	return hashring.Node{ID: addr, Host: host, Port: port}, nil
}

// Start adds the current node to the ring and launches the heartbeat
// sender and timeout sweeper, both at heartbeatInterval with zero initial
// delay. Per spec.md §4.5, the current node must be in the ring before
// either task starts.
func (m *Membership) Start(ctx context.Context) {
	m.ring.AddPhysical(m.self)

	m.senderTicker = time.NewTicker(m.heartbeatInterval)
	m.sweeperTicker = time.NewTicker(m.heartbeatInterval)

	go m.sendHeartbeat(ctx) // fire immediately, zero initial delay
	go func() {
		for {
			select {
			case <-m.senderTicker.C:
				m.sendHeartbeat(ctx)
			case <-m.stopCh:
				return
			}
		}
	}()

	m.sweepTimeouts()
	go func() {
		for {
			select {
			case <-m.sweeperTicker.C:
				m.sweepTimeouts()
			case <-m.stopCh:
				return
			}
		}
	}()
}

func (m *Membership) addressSnapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	addrs := make([]string, 0, len(m.peerLastSeen))
	for addr := range m.peerLastSeen {
		addrs = append(addrs, addr)
	}
	return addrs
}

// sendHeartbeat constructs a heartbeat for self and dispatches it to every
// known peer concurrently, bounded by fanoutConcurrency; a single slow or
// unreachable peer cannot starve the others.
func (m *Membership) sendHeartbeat(ctx context.Context) {
	hb := peer.HeartbeatRequest{
		NodeID:    m.self.ID,
		NodeHost:  m.self.Host,
		NodePort:  m.self.Port,
		Timestamp: time.Now().UnixMilli(),
	}

	p := pool.New().WithMaxGoroutines(m.fanoutConcurrency)
	for _, addr := range m.addressSnapshot() {
		if addr == m.self.Address() {
			continue
		}
		node, err := parseAddr(addr)
		if err != nil {
			m.logger.Printf("membership: %v: %q", ErrMalformedPeerAddress, addr)
			continue
		}
		p.Go(func() {
			m.client.SendHeartbeat(ctx, node, hb)
		})
	}
	p.Wait()
}

// sweepTimeouts removes every non-self peer whose last-seen timestamp is
// older than peerTimeout from both peerLastSeen and the ring.
func (m *Membership) sweepTimeouts() {
	now := time.Now()

	m.mu.Lock()
	var timedOut []string
	for addr, lastSeen := range m.peerLastSeen {
		if addr == m.self.Address() {
			continue
		}
		if now.Sub(lastSeen) > m.peerTimeout {
			timedOut = append(timedOut, addr)
			delete(m.peerLastSeen, addr)
		}
	}
	m.mu.Unlock()

	for _, addr := range timedOut {
		node, err := parseAddr(addr)
		if err != nil {
			continue
		}
		m.logger.Printf("membership: peer %s timed out, removing from ring", addr)
		m.ring.RemovePhysical(node)
	}
}

// OnHeartbeatReceived updates sender's last-seen timestamp and, if sender
// isn't currently in the ring, re-admits it. This is the sole join path
// for previously-unknown or recovered peers.
func (m *Membership) OnHeartbeatReceived(sender hashring.Node) {
	m.mu.Lock()
	m.peerLastSeen[sender.Address()] = time.Now()
	m.mu.Unlock()

	for _, n := range m.ring.PhysicalNodes() {
		if n.Equal(sender) {
			return
		}
	}
	m.logger.Printf("membership: new or recovered peer %s, adding to ring", sender.Address())
	m.ring.AddPhysical(sender)
}

// ActivePeerAddresses returns every non-self address currently tracked as
// live (i.e. not yet swept for timing out).
func (m *Membership) ActivePeerAddresses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.peerLastSeen))
	for addr := range m.peerLastSeen {
		if addr != m.self.Address() {
			out = append(out, addr)
		}
	}
	return out
}

// LastHeartbeatReceived returns the most recent last-seen timestamp across
// all tracked peers, or the zero time if none have been seen.
func (m *Membership) LastHeartbeatReceived() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest time.Time
	for _, t := range m.peerLastSeen {
		if t.After(latest) {
			latest = t
		}
	}
	return latest
}

// Shutdown cancels the sender and sweeper tasks.
func (m *Membership) Shutdown() {
	m.stopOnce.Do(func() {
		if m.senderTicker != nil {
			m.senderTicker.Stop()
		}
		if m.sweeperTicker != nil {
			m.sweeperTicker.Stop()
		}
		close(m.stopCh)
	})
}
