// Package registry owns the process-wide mapping from user identity to the
// set of open connections for that user. All mutation goes through Add and
// Remove so the invariants hold in one place: no empty entries, each
// connection registered at most once, per-identity updates linearized.
package registry

import (
	"errors"
	"hash/fnv"
	"sync"
)

var ErrDuplicateConn = errors.New("connection already registered")

// Conn is the surface the registry requires from a registered connection.
// *ws.Conn implements it; tests use lightweight fakes.
type Conn interface {
	ID() string
	Send(payload []byte) error
	Close() error
}

// Registry shards its entries so operations on different identities do not
// block each other; a shard lock is held only for map bookkeeping, never
// across a send.
type Registry struct {
	shards [shardCount]shard
}

const shardCount = 32

type shard struct {
	mu      sync.RWMutex
	entries map[string]map[string]Conn
}

func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].entries = make(map[string]map[string]Conn)
	}
	return r
}

func (r *Registry) shardFor(identity string) *shard {
	h := fnv.New32a()
	h.Write([]byte(identity))
	return &r.shards[h.Sum32()%shardCount]
}

// Add inserts conn into the entry for identity, creating the entry if
// absent. Each physical connection is added exactly once; a duplicate is
// rejected, not silently accepted.
func (r *Registry) Add(identity string, conn Conn) error {
	s := r.shardFor(identity)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entries[identity]
	if entry == nil {
		entry = make(map[string]Conn)
		s.entries[identity] = entry
	}
	if _, ok := entry[conn.ID()]; ok {
		return ErrDuplicateConn
	}
	entry[conn.ID()] = conn

	return nil
}

// Remove deletes conn from the entry for identity. Removing a connection
// that is not present is a no-op: disconnect handlers may race with cleanup
// and double-invoke. An entry left empty is deleted with it.
func (r *Registry) Remove(identity string, conn Conn) {
	s := r.shardFor(identity)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[identity]
	if !ok {
		return
	}
	delete(entry, conn.ID())
	if len(entry) == 0 {
		delete(s.entries, identity)
	}
}

// ListFor returns a snapshot of the open connections for identity. An
// identity with no connections yields an empty slice, never an error.
func (r *Registry) ListFor(identity string) []Conn {
	s := r.shardFor(identity)

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry := s.entries[identity]
	conns := make([]Conn, 0, len(entry))
	for _, c := range entry {
		conns = append(conns, c)
	}
	return conns
}

// Counts reports the number of identities with at least one open connection
// and the total number of open connections.
func (r *Registry) Counts() (identities, connections int) {
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		identities += len(s.entries)
		for _, entry := range s.entries {
			connections += len(entry)
		}
		s.mu.RUnlock()
	}
	return identities, connections
}

// CloseAll closes every registered connection. Entries are not removed
// here; each connection's close handler performs its own Remove, keeping
// shutdown on the same path as any other disconnect.
func (r *Registry) CloseAll() {
	for i := range r.shards {
		s := &r.shards[i]

		s.mu.RLock()
		conns := make([]Conn, 0)
		for _, entry := range s.entries {
			for _, c := range entry {
				conns = append(conns, c)
			}
		}
		s.mu.RUnlock()

		for _, c := range conns {
			c.Close()
		}
	}
}
