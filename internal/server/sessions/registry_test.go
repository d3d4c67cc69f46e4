package sessions

import (
	"fmt"
	"sync"
	"testing"

	"github.com/dmitrijs2005/vaultrelay/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   []any
	closed bool
}

func (c *fakeConn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func TestRegistry_BindIsImmutable(t *testing.T) {
	r := NewRegistry()
	s := r.Open(&fakeConn{}, "1.2.3.4")

	_, ok := r.VaultOf(s.ID())
	assert.False(t, ok)

	require.NoError(t, r.Bind(s.ID(), "v1"))
	require.NoError(t, r.Bind(s.ID(), "v1"))
	assert.ErrorIs(t, r.Bind(s.ID(), "v2"), common.ErrorAlreadyRegistered)

	v, ok := r.VaultOf(s.ID())
	assert.True(t, ok)
	assert.Equal(t, "v1", v)

	assert.ErrorIs(t, r.Bind("missing", "v1"), common.ErrorNotFound)
}

func TestRegistry_UnbindVault(t *testing.T) {
	r := NewRegistry()
	a := r.Open(&fakeConn{}, "a")
	b := r.Open(&fakeConn{}, "b")
	c := r.Open(&fakeConn{}, "c")
	require.NoError(t, r.Bind(a.ID(), "v1"))
	require.NoError(t, r.Bind(b.ID(), "v1"))
	require.NoError(t, r.Bind(c.ID(), "v2"))

	assert.Equal(t, 2, r.UnbindVault("v1"))
	assert.Equal(t, 0, r.UnbindVault("v1"))

	_, ok := r.VaultOf(a.ID())
	assert.False(t, ok)
	assert.Empty(t, r.Peers("v1", ""))
	assert.Equal(t, 1, r.VaultCount())
	assert.Equal(t, 3, r.Count())

	require.NoError(t, r.Bind(a.ID(), "v3"), "released session may register again")
	r.Close(b.ID())
	assert.Equal(t, 2, r.VaultCount())
}

func TestRegistry_PeersExcludeOriginAndOtherVaults(t *testing.T) {
	r := NewRegistry()
	a := r.Open(&fakeConn{}, "a")
	b := r.Open(&fakeConn{}, "b")
	c := r.Open(&fakeConn{}, "c")
	require.NoError(t, r.Bind(a.ID(), "v1"))
	require.NoError(t, r.Bind(b.ID(), "v1"))
	require.NoError(t, r.Bind(c.ID(), "v2"))

	peers := r.Peers("v1", a.ID())
	require.Len(t, peers, 1)
	assert.Equal(t, b.ID(), peers[0].ID())

	assert.Empty(t, r.Peers("v3", ""))
}

func TestRegistry_ClosePrunesEmptyVaults(t *testing.T) {
	r := NewRegistry()
	a := r.Open(&fakeConn{}, "a")
	b := r.Open(&fakeConn{}, "b")
	require.NoError(t, r.Bind(a.ID(), "v1"))
	require.NoError(t, r.Bind(b.ID(), "v1"))
	assert.Equal(t, 1, r.VaultCount())

	r.Close(a.ID())
	assert.Equal(t, 1, r.VaultCount())
	assert.Len(t, r.Peers("v1", ""), 1)

	r.Close(b.ID())
	assert.Equal(t, 0, r.VaultCount())
	assert.Equal(t, 0, r.Count())

	r.Close("unknown")
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry()
	c1, c2 := &fakeConn{}, &fakeConn{}
	r.Open(c1, "a")
	r.Open(c2, "b")

	r.CloseAll()
	assert.True(t, c1.closed)
	assert.True(t, c2.closed)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := r.Open(&fakeConn{}, "x")
			_ = r.Bind(s.ID(), fmt.Sprintf("v%d", i%5))
			_ = r.Peers(fmt.Sprintf("v%d", i%5), s.ID())
			r.Close(s.ID())
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 0, r.VaultCount())
}
