// Package transport implements the public, internal-peer, and admin HTTP
// APIs described in spec.md §6. This layer was explicitly out of the
// distilled spec's core (§1 "out of scope: external collaborators"), but
// the core subsystems cannot be exercised end-to-end without it.
package transport

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/distcache/ringcache/internal/adminstore"
	"github.com/distcache/ringcache/internal/coordinator"
	"github.com/distcache/ringcache/internal/membership"
	"github.com/distcache/ringcache/internal/store"
	"github.com/distcache/ringcache/pkg/hashring"
)

// Server bundles the cluster components a node's HTTP surface needs.
type Server struct {
	coordinator *coordinator.Coordinator
	membership  *membership.Membership
	store       *store.LocalStore
	self        hashring.Node
	mirror      *adminstore.Mirror
	logger      *log.Logger
}

// New builds a Server. mirror may be nil, in which case admin snapshots
// are never written to Redis.
func New(coord *coordinator.Coordinator, mem *membership.Membership, st *store.LocalStore, self hashring.Node, mirror *adminstore.Mirror, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{coordinator: coord, membership: mem, store: st, self: self, mirror: mirror, logger: logger}
}

// Handler builds the full route table: public /cache, internal
// /internal/cache, and /admin/stats, all wrapped in the request-logging
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /cache/", s.handleGetAll)
	mux.HandleFunc("GET /cache/{key}", s.handleGet)
	mux.HandleFunc("POST /cache/{key}", s.handlePut)
	mux.HandleFunc("DELETE /cache/{key}", s.handleDelete)

	mux.HandleFunc("GET /internal/cache/{key}", s.handleInternalGet)
	mux.HandleFunc("POST /internal/cache/{key}", s.handleInternalPut)
	mux.HandleFunc("DELETE /internal/cache/{key}", s.handleInternalDelete)
	mux.HandleFunc("POST /internal/cache/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("OPTIONS /internal/cache/heartbeat", s.handleHeartbeatProbe)

	mux.HandleFunc("GET /admin/stats", s.handleAdminStats)

	return logging(s.logger, mux)
}

// NewHTTPServer wraps Handler in an *http.Server with the timeouts and
// shutdown discipline the teacher's and phyulwin's main.go both use.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Shutdown gives in-flight requests grace before the process exits.
func Shutdown(ctx context.Context, srv *http.Server) error {
	shCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return srv.Shutdown(shCtx)
}
