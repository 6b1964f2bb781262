package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/distcache/ringcache/internal/peer"
	"github.com/distcache/ringcache/pkg/hashring"
)

func (s *Server) handleInternalGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	v, ok := s.coordinator.OnInternalGet(key)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleInternalPut(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var req cachePutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ttl := time.Duration(req.TTLMillis) * time.Millisecond
	if err := s.coordinator.OnInternalPut(r.Context(), key, req.Value, ttl); err != nil {
		writeRouteError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleInternalDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	if err := s.coordinator.OnInternalDelete(r.Context(), key); err != nil {
		writeRouteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req peer.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed heartbeat: "+err.Error(), http.StatusBadRequest)
		return
	}

	sender := hashring.Node{ID: req.NodeID, Host: req.NodeHost, Port: req.NodePort}
	s.membership.OnHeartbeatReceived(sender)
	w.WriteHeader(http.StatusOK)
}

// handleHeartbeatProbe answers the startup liveness probe
// (internal/peer/probe.go's ProbeReachable) without touching membership
// state; it never updates peerLastSeen, since an OPTIONS probe is not a
// heartbeat.
func (s *Server) handleHeartbeatProbe(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
