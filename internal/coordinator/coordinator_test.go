package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/distcache/ringcache/internal/entry"
	"github.com/distcache/ringcache/internal/store"
	"github.com/distcache/ringcache/pkg/hashring"
)

// fakeRing lets tests pin the primary/replica set without a real hash
// function in the loop.
type fakeRing struct {
	mu      sync.Mutex
	primary hashring.Node
	set     []hashring.Node
	empty   bool
}

func (f *fakeRing) AddPhysical(hashring.Node)    {}
func (f *fakeRing) RemovePhysical(hashring.Node) {}
func (f *fakeRing) Primary(string) (hashring.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.empty {
		return hashring.Node{}, hashring.ErrRingEmpty
	}
	return f.primary, nil
}
func (f *fakeRing) ReplicaSet(string, int) ([]hashring.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.empty {
		return nil, hashring.ErrRingEmpty
	}
	return f.set, nil
}
func (f *fakeRing) PhysicalNodes() []hashring.Node { return f.set }

type call struct {
	method string
	key    string
	target hashring.Node
}

type fakeForwarder struct {
	mu       sync.Mutex
	calls    []call
	putErr   error
	getValue entry.Value
	getFound bool
	getErr   error
}

func (f *fakeForwarder) ForwardGet(_ context.Context, target hashring.Node, key string) (entry.Value, bool, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{"get", key, target})
	f.mu.Unlock()
	return f.getValue, f.getFound, f.getErr
}

func (f *fakeForwarder) ForwardPut(_ context.Context, target hashring.Node, key string, _ entry.Value, _ time.Duration) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{"put", key, target})
	f.mu.Unlock()
	return f.putErr
}

func (f *fakeForwarder) ForwardDelete(_ context.Context, target hashring.Node, key string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{"delete", key, target})
	f.mu.Unlock()
	return nil
}

func (f *fakeForwarder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func val(t *testing.T, v any) entry.Value {
	ev, err := entry.NewValue(v)
	require.NoError(t, err)
	return ev
}

var self = hashring.Node{ID: "self", Host: "127.0.0.1", Port: 9000}
var other = hashring.Node{ID: "other", Host: "127.0.0.1", Port: 9001}

func TestPutServesLocallyWhenPrimary(t *testing.T) {
	st := store.New(10, nil)
	defer st.Shutdown()
	ring := &fakeRing{primary: self, set: []hashring.Node{self}}
	fwd := &fakeForwarder{}
	c := New(self, ring, st, fwd, 1, nil)

	err := c.Put(context.Background(), "k", val(t, "v"), 0)
	require.NoError(t, err)
	require.Equal(t, 0, fwd.callCount())

	got, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	var s string
	require.NoError(t, got.Decode(&s))
	require.Equal(t, "v", s)
}

func TestPutForwardsWhenNotPrimary(t *testing.T) {
	st := store.New(10, nil)
	defer st.Shutdown()
	ring := &fakeRing{primary: other, set: []hashring.Node{other, self}}
	fwd := &fakeForwarder{}
	c := New(self, ring, st, fwd, 1, nil)

	err := c.Put(context.Background(), "k", val(t, "v"), 0)
	require.NoError(t, err)
	require.Equal(t, 1, fwd.callCount())
	require.Equal(t, "put", fwd.calls[0].method)
	require.Equal(t, other, fwd.calls[0].target)
}

func TestGetForwardsWhenNotPrimary(t *testing.T) {
	st := store.New(10, nil)
	defer st.Shutdown()
	ring := &fakeRing{primary: other, set: []hashring.Node{other, self}}
	fwd := &fakeForwarder{getFound: true, getValue: val(t, "remote")}
	c := New(self, ring, st, fwd, 1, nil)

	v, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	var s string
	require.NoError(t, v.Decode(&s))
	require.Equal(t, "remote", s)
}

func TestPutOnEmptyRingReturnsError(t *testing.T) {
	st := store.New(10, nil)
	defer st.Shutdown()
	ring := &fakeRing{empty: true}
	c := New(self, ring, st, &fakeForwarder{}, 1, nil)

	err := c.Put(context.Background(), "k", val(t, "v"), 0)
	require.ErrorIs(t, err, ErrNoNodesAvailable)
}

func TestDeleteOnEmptyRingIsNoopSuccess(t *testing.T) {
	st := store.New(10, nil)
	defer st.Shutdown()
	ring := &fakeRing{empty: true}
	c := New(self, ring, st, &fakeForwarder{}, 1, nil)

	err := c.Delete(context.Background(), "k")
	require.NoError(t, err)
}

func TestPrimaryWriteFansOutAsynchronouslyAndReturnsImmediately(t *testing.T) {
	st := store.New(10, nil)
	defer st.Shutdown()
	ring := &fakeRing{primary: self, set: []hashring.Node{self, other}}
	fwd := &fakeForwarder{}
	c := New(self, ring, st, fwd, 2, nil)

	start := time.Now()
	err := c.Put(context.Background(), "k", val(t, "v"), 0)
	require.NoError(t, err)
	require.Less(t, time.Since(start), 50*time.Millisecond)

	require.Eventually(t, func() bool { return fwd.callCount() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, other, fwd.calls[0].target)
}

func TestOnInternalPutRoutesToReplicaWriteWhenNotPrimary(t *testing.T) {
	st := store.New(10, nil)
	defer st.Shutdown()
	// this node is NOT primary for the key -> internal put must be a
	// local replica write, not a forward.
	ring := &fakeRing{primary: other, set: []hashring.Node{other, self}}
	fwd := &fakeForwarder{}
	c := New(self, ring, st, fwd, 2, nil)

	err := c.OnInternalPut(context.Background(), "k", val(t, "v"), 0)
	require.NoError(t, err)
	require.Equal(t, 0, fwd.callCount())

	_, ok := st.Get("k")
	require.True(t, ok)
}

func TestOnInternalPutRunsPrimaryWriteWhenPrimary(t *testing.T) {
	st := store.New(10, nil)
	defer st.Shutdown()
	ring := &fakeRing{primary: self, set: []hashring.Node{self, other}}
	fwd := &fakeForwarder{}
	c := New(self, ring, st, fwd, 2, nil)

	err := c.OnInternalPut(context.Background(), "k", val(t, "v"), 0)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return fwd.callCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestOnInternalGetDoesNotRoute(t *testing.T) {
	st := store.New(10, nil)
	defer st.Shutdown()
	st.Put("k", val(t, "local-only"), 0)
	// ring says primary is elsewhere, but OnInternalGet must not forward.
	ring := &fakeRing{primary: other, set: []hashring.Node{other}}
	fwd := &fakeForwarder{}
	c := New(self, ring, st, fwd, 1, nil)

	v, ok := c.OnInternalGet("k")
	require.True(t, ok)
	var s string
	require.NoError(t, v.Decode(&s))
	require.Equal(t, "local-only", s)
	require.Equal(t, 0, fwd.callCount())
}

func TestGetAllIsLocalSnapshot(t *testing.T) {
	st := store.New(10, nil)
	defer st.Shutdown()
	st.Put("a", val(t, 1), 0)
	st.Put("b", val(t, 2), 0)
	ring := &fakeRing{primary: self, set: []hashring.Node{self}}
	c := New(self, ring, st, &fakeForwarder{}, 1, nil)

	all := c.GetAll()
	require.Len(t, all, 2)
}
