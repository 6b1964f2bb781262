package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/distcache/ringcache/internal/entry"
)

// cachePutRequest is the wire shape for POST /cache/{key} and
// POST /internal/cache/{key}, matching the original Java
// CachePutRequest/InternalCachePutRequest.
type cachePutRequest struct {
	Value     entry.Value `json:"value"`
	TTLMillis int64       `json:"ttlMillis"`
}

func (s *Server) handleGetAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.GetAll())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	v, ok, err := s.coordinator.Get(r.Context(), key)
	if err != nil {
		writeRouteError(w, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var req cachePutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ttl := time.Duration(req.TTLMillis) * time.Millisecond
	if err := s.coordinator.Put(r.Context(), key, req.Value, ttl); err != nil {
		writeRouteError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	if err := s.coordinator.Delete(r.Context(), key); err != nil {
		writeRouteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRouteError surfaces any coordinator/ring/peer error to the client
// as 500, exactly as spec.md §6 describes for POST and DELETE
// /cache/{key}: RingEmpty, PeerUnreachable, PeerTimeout, and
// PeerErrorResponse (spec.md §7) all collapse to the same client-visible
// failure.
func writeRouteError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
