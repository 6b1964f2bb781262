// Command cachenode runs a single peer of the cache cluster: it parses
// flags into config.Options, wires the ring/store/peer-client/coordinator/
// membership components together, and serves the public, internal, and
// admin HTTP APIs until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/distcache/ringcache/internal/adminstore"
	"github.com/distcache/ringcache/internal/config"
	"github.com/distcache/ringcache/internal/coordinator"
	"github.com/distcache/ringcache/internal/membership"
	"github.com/distcache/ringcache/internal/peer"
	"github.com/distcache/ringcache/internal/store"
	"github.com/distcache/ringcache/internal/transport"
	"github.com/distcache/ringcache/pkg/hashring"
)

// startupProbeMaxElapsed bounds how long ProbeReachable retries a single
// peer before giving up on it for the startup probe; an unreachable peer
// at boot isn't fatal, since membership's own heartbeat re-admits it
// later.
const startupProbeMaxElapsed = 10 * time.Second

func main() {
	var (
		nodeID       = flag.String("id", "", "stable identity of this node (required)")
		host         = flag.String("host", "localhost", "listening host")
		port         = flag.Int("port", 8080, "listening port")
		peersFlag    = flag.String("peers", "", "comma-separated host:port list, including self")
		replication  = flag.Int("replication-factor", 1, "total copies per key")
		maxEntries   = flag.Int("max-entries", 1000, "LocalStore LRU bound")
		virtualNodes = flag.Int("virtual-nodes", hashring.DefaultVirtualNodes, "virtual positions per physical node")
		ringAlg      = flag.String("ring-algorithm", string(config.RingAlgorithmKetama), "ketama or rendezvous")
		redisAddr    = flag.String("redis-addr", "", "optional redis address for the admin stats mirror")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds)

	opts := config.NewOptions().
		WithNode(*nodeID, *host, *port).
		WithPeers(splitPeers(*peersFlag)).
		WithReplicationFactor(*replication).
		WithMaxEntries(*maxEntries).
		WithVirtualNodes(*virtualNodes).
		WithRingAlgorithm(config.RingAlgorithm(*ringAlg)).
		WithRedisAddr(*redisAddr).
		WithLogger(logger)

	if err := opts.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	logStartupConfig(logger, opts)

	self := hashring.Node{ID: opts.NodeID(), Host: opts.Host(), Port: opts.Port()}

	var ring hashring.Ring
	if opts.RingAlgorithm() == config.RingAlgorithmRendezvous {
		ring = hashring.NewRendezvous()
	} else {
		ring = hashring.New(opts.VirtualNodes(), logger)
	}

	localStore := store.New(opts.MaxEntries(), logger)
	defer localStore.Shutdown()

	peerClient := peer.New(opts.DataTimeout(), opts.HeartbeatTimeout(), logger)

	coord := coordinator.New(self, ring, localStore, peerClient, opts.ReplicationFactor(), logger)

	mem := membership.New(self, opts.Peers(), ring, peerClient, opts.HeartbeatInterval(), opts.PeerTimeout(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	probeConfiguredPeers(ctx, peerClient, self, opts.Peers(), logger)

	mem.Start(ctx)
	defer mem.Shutdown()

	var mirror *adminstore.Mirror
	if opts.RedisAddr() != "" {
		m, err := adminstore.Connect(ctx, opts.RedisAddr(), "ringcache", 10*time.Second)
		if err != nil {
			logger.Printf("adminstore: disabling redis mirror: %v", err)
		} else {
			mirror = m
		}
	}

	srv := transport.New(coord, mem, localStore, self, mirror, logger)
	httpSrv := transport.NewHTTPServer(self.Address(), srv.Handler())

	go func() {
		logger.Printf("cachenode %q listening on %s; peers=%v; replication-factor=%d", self.ID, self.Address(), opts.Peers(), opts.ReplicationFactor())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("cachenode %q shutting down", self.ID)
	if err := transport.Shutdown(context.Background(), httpSrv); err != nil {
		logger.Printf("graceful shutdown error: %v", err)
	}
}

// probeConfiguredPeers retries a one-shot liveness probe against every
// configured peer before membership starts sending real heartbeats, so a
// cluster brought up all at once tolerates peers that haven't finished
// booting yet. A peer that never answers within startupProbeMaxElapsed is
// logged and otherwise ignored here: it simply joins later through the
// normal OnHeartbeatReceived path once it comes up.
func probeConfiguredPeers(ctx context.Context, client *peer.Client, self hashring.Node, peerAddrs []string, logger *log.Logger) {
	for _, addr := range peerAddrs {
		if addr == self.Address() {
			continue
		}
		node, err := parsePeerAddr(addr)
		if err != nil {
			logger.Printf("startup probe: skipping malformed peer address %q: %v", addr, err)
			continue
		}
		if client.ProbeReachable(ctx, node, startupProbeMaxElapsed) {
			logger.Printf("startup probe: peer %s is reachable", addr)
		} else {
			logger.Printf("startup probe: peer %s did not respond within %s, will rely on heartbeat re-admission", addr, startupProbeMaxElapsed)
		}
	}
}

func parsePeerAddr(addr string) (hashring.Node, error) {
	host, portStr, found := strings.Cut(addr, ":")
	if !found || host == "" || portStr == "" {
		return hashring.Node{}, errors.New("address must be host:port")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return hashring.Node{}, errors.New("port must be a valid number")
	}
	return hashring.Node{ID: addr, Host: host, Port: port}, nil
}

func splitPeers(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	peers := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			peers = append(peers, p)
		}
	}
	return peers
}

func logStartupConfig(logger *log.Logger, opts *config.Options) {
	logger.Printf("--- node configuration loaded ---")
	logger.Printf("node id=%s host=%s port=%d", opts.NodeID(), opts.Host(), opts.Port())
	logger.Printf("peers=%v", opts.Peers())
	logger.Printf("replication.factor=%d capacity.max-entries=%d virtual-nodes=%d ring-algorithm=%s",
		opts.ReplicationFactor(), opts.MaxEntries(), opts.VirtualNodes(), opts.RingAlgorithm())
	logger.Printf("--- configuration load complete ---")
}
