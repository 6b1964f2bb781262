package transport

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/distcache/ringcache/internal/coordinator"
	"github.com/distcache/ringcache/internal/entry"
	"github.com/distcache/ringcache/internal/membership"
	"github.com/distcache/ringcache/internal/peer"
	"github.com/distcache/ringcache/internal/store"
	"github.com/distcache/ringcache/pkg/hashring"
)

func newTestServer(t *testing.T) (*Server, hashring.Node) {
	self := hashring.Node{ID: "self", Host: "127.0.0.1", Port: 9000}
	ring := hashring.New(4, nil)
	ring.AddPhysical(self)

	st := store.New(100, nil)
	t.Cleanup(st.Shutdown)

	client := peer.New(time.Second, time.Second, nil)
	coord := coordinator.New(self, ring, st, client, 1, log.Default())
	mem := membership.New(self, nil, ring, client, time.Hour, time.Hour, log.Default())

	return New(coord, mem, st, self, nil, log.Default()), self
}

func TestPublicPutThenGetRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	body, _ := json.Marshal(cachePutRequest{Value: rawValue(t, "hello"), TTLMillis: 0})
	putReq := httptest.NewRequest(http.MethodPost, "/cache/greeting", bytes.NewReader(body))
	putRec := httptest.NewRecorder()
	handler.ServeHTTP(putRec, putReq)
	require.Equal(t, http.StatusCreated, putRec.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/cache/greeting", nil)
	getRec := httptest.NewRecorder()
	handler.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)

	var got string
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &got))
	require.Equal(t, "hello", got)
}

func TestPublicGetMissingKeyReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/cache/nope", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublicPutMalformedBodyReturns400(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/cache/bad", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublicDeleteReturns204(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	body, _ := json.Marshal(cachePutRequest{Value: rawValue(t, "x")})
	putReq := httptest.NewRequest(http.MethodPost, "/cache/k", bytes.NewReader(body))
	handler.ServeHTTP(httptest.NewRecorder(), putReq)

	delReq := httptest.NewRequest(http.MethodDelete, "/cache/k", nil)
	delRec := httptest.NewRecorder()
	handler.ServeHTTP(delRec, delReq)
	require.Equal(t, http.StatusNoContent, delRec.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/cache/k", nil)
	getRec := httptest.NewRecorder()
	handler.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusNotFound, getRec.Code)
}

func TestInternalHeartbeatAddsSenderToMembership(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	hb := peer.HeartbeatRequest{NodeID: "peer-a", NodeHost: "10.0.0.5", NodePort: 9100, Timestamp: time.Now().UnixMilli()}
	body, _ := json.Marshal(hb)
	req := httptest.NewRequest(http.MethodPost, "/internal/cache/heartbeat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Contains(t, srv.membership.ActivePeerAddresses(), "10.0.0.5:9100")
}

func TestHeartbeatProbeDoesNotAddToMembership(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/internal/cache/heartbeat", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, srv.membership.ActivePeerAddresses())
}

func TestAdminStatsReflectsCounters(t *testing.T) {
	srv, self := newTestServer(t)
	handler := srv.Handler()

	body, _ := json.Marshal(cachePutRequest{Value: rawValue(t, "v")})
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/cache/k", bytes.NewReader(body)))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/cache/k", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/cache/missing", nil))

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp adminStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, self.ID, resp.NodeID)
	require.Equal(t, int64(1), resp.PutCount)
	require.Equal(t, int64(1), resp.CacheHitCount)
	require.Equal(t, int64(1), resp.CacheMissCount)
}

func rawValue(t *testing.T, s string) entry.Value {
	t.Helper()
	v, err := entry.NewValue(s)
	require.NoError(t, err)
	return v
}
