package registry_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notify-service/internal/registry"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	closed bool
}

func (f *fakeConn) ID() string        { return f.id }
func (f *fakeConn) Send([]byte) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestAddThenRemove_LeavesNoTrace(t *testing.T) {
	reg := registry.New()
	conn := &fakeConn{id: "c1"}

	require.NoError(t, reg.Add("user-1", conn))
	reg.Remove("user-1", conn)

	assert.Empty(t, reg.ListFor("user-1"))

	// The entry itself must be gone, not merely empty.
	identities, connections := reg.Counts()
	assert.Zero(t, identities)
	assert.Zero(t, connections)
}

func TestListFor_UnknownIdentity(t *testing.T) {
	reg := registry.New()

	conns := reg.ListFor("nobody")

	assert.NotNil(t, conns)
	assert.Empty(t, conns)
}

func TestAdd_DuplicateConnectionRejected(t *testing.T) {
	reg := registry.New()
	conn := &fakeConn{id: "c1"}

	require.NoError(t, reg.Add("user-1", conn))
	err := reg.Add("user-1", conn)

	assert.ErrorIs(t, err, registry.ErrDuplicateConn)
	assert.Len(t, reg.ListFor("user-1"), 1)
}

func TestRemove_AbsentConnectionIsNoOp(t *testing.T) {
	reg := registry.New()
	conn := &fakeConn{id: "c1"}

	// Disconnect handlers may double-invoke; neither call may panic or
	// disturb other state.
	reg.Remove("user-1", conn)

	require.NoError(t, reg.Add("user-1", conn))
	reg.Remove("user-1", conn)
	reg.Remove("user-1", conn)

	assert.Empty(t, reg.ListFor("user-1"))
}

func TestMultipleConnectionsPerIdentity(t *testing.T) {
	reg := registry.New()
	tab1 := &fakeConn{id: "tab-1"}
	tab2 := &fakeConn{id: "tab-2"}

	require.NoError(t, reg.Add("user-1", tab1))
	require.NoError(t, reg.Add("user-1", tab2))

	assert.Len(t, reg.ListFor("user-1"), 2)

	reg.Remove("user-1", tab1)

	conns := reg.ListFor("user-1")
	require.Len(t, conns, 1)
	assert.Equal(t, "tab-2", conns[0].ID())
}

func TestConcurrentAddRemove_NoLostUpdates(t *testing.T) {
	reg := registry.New()

	const workers = 64

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			conn := &fakeConn{id: fmt.Sprintf("conn-%d", i)}
			assert.NoError(t, reg.Add("user-1", conn))
			if i%2 == 0 {
				reg.Remove("user-1", conn)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, reg.ListFor("user-1"), workers/2)
}

func TestConcurrentDistinctIdentities(t *testing.T) {
	reg := registry.New()

	const users = 100

	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			identity := fmt.Sprintf("user-%d", i)
			conn := &fakeConn{id: fmt.Sprintf("conn-%d", i)}
			assert.NoError(t, reg.Add(identity, conn))
		}(i)
	}
	wg.Wait()

	identities, connections := reg.Counts()
	assert.Equal(t, users, identities)
	assert.Equal(t, users, connections)
}

func TestCloseAll(t *testing.T) {
	reg := registry.New()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}

	require.NoError(t, reg.Add("user-1", a))
	require.NoError(t, reg.Add("user-2", b))

	reg.CloseAll()

	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
}
