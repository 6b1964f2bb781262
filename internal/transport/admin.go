package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/distcache/ringcache/internal/adminstore"
)

// adminStatsResponse mirrors the original Java AdminMetricsResponse field
// for field (spec.md §6).
type adminStatsResponse struct {
	NodeID      string `json:"nodeId"`
	NodeAddress string `json:"nodeAddress"`
	Status      string `json:"status"`

	LocalKeyCount         int      `json:"localKeyCount"`
	LocalMemoryUsageBytes uint64   `json:"localMemoryUsageBytes"`
	TotalJVMMemoryBytes   uint64   `json:"totalJVMMemoryBytes"`
	CacheHitCount         int64    `json:"cacheHitCount"`
	CacheMissCount        int64    `json:"cacheMissCount"`
	CacheHitRatio         float64  `json:"cacheHitRatio"`
	PutCount              int64    `json:"putCount"`
	DeleteCount           int64    `json:"deleteCount"`
	LastHeartbeatReceived int64    `json:"lastHeartbeatReceivedMillis"`
	ActivePeerAddresses   []string `json:"activePeerAddresses"`
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	resp := adminStatsResponse{
		NodeID:                s.self.ID,
		NodeAddress:           s.self.Address(),
		Status:                "UP",
		LocalKeyCount:         s.store.Size(),
		LocalMemoryUsageBytes: s.store.MemoryUsage(),
		TotalJVMMemoryBytes:   s.store.TotalMemory(),
		CacheHitCount:         s.store.HitCount(),
		CacheMissCount:        s.store.MissCount(),
		CacheHitRatio:         s.store.HitRatio(),
		PutCount:              s.store.PutCount(),
		DeleteCount:           s.store.DeleteCount(),
		ActivePeerAddresses:   s.membership.ActivePeerAddresses(),
	}
	if lh := s.membership.LastHeartbeatReceived(); !lh.IsZero() {
		resp.LastHeartbeatReceived = lh.UnixMilli()
	}

	writeJSON(w, http.StatusOK, resp)

	if s.mirror != nil {
		go s.mirrorStats(resp)
	}
}

func (s *Server) mirrorStats(resp adminStatsResponse) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := s.mirror.Write(ctx, adminstore.Snapshot{
		NodeID:                resp.NodeID,
		NodeAddress:           resp.NodeAddress,
		LocalKeyCount:         resp.LocalKeyCount,
		CacheHitCount:         resp.CacheHitCount,
		CacheMissCount:        resp.CacheMissCount,
		PutCount:              resp.PutCount,
		DeleteCount:           resp.DeleteCount,
		LastHeartbeatReceived: time.UnixMilli(resp.LastHeartbeatReceived),
	})
	if err != nil {
		s.logger.Printf("transport: admin stats mirror to redis failed: %v", err)
	}
}
