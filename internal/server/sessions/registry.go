// Package sessions tracks open client connections and the vault each one is
// bound to.
package sessions

import (
	"sync"

	"github.com/dmitrijs2005/vaultrelay/internal/common"
	"github.com/google/uuid"
)

// Conn is the outbound half of a client connection.
type Conn interface {
	Send(v any) error
	Close() error
}

// Session is one open connection. Its id and remote address never change;
// the bound vault lives in the Registry.
type Session struct {
	id         string
	remoteAddr string
	conn       Conn
}

func (s *Session) ID() string         { return s.id }
func (s *Session) RemoteAddr() string { return s.remoteAddr }
func (s *Session) Send(v any) error   { return s.conn.Send(v) }

// Registry owns all live sessions. A session is bound to at most one vault
// and the binding only ends when the session closes or the vault is deleted.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	bound    map[string]string
	byVault  map[string]map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		bound:    make(map[string]string),
		byVault:  make(map[string]map[string]*Session),
	}
}

// Open registers a new unbound session for conn.
func (r *Registry) Open(conn Conn, remoteAddr string) *Session {
	s := &Session{id: uuid.NewString(), remoteAddr: remoteAddr, conn: conn}

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()

	return s
}

// Bind attaches session id to vaultID. Binding again to the same vault is a
// no-op; binding to a different one fails with common.ErrorAlreadyRegistered.
func (r *Registry) Bind(id, vaultID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return common.ErrorNotFound
	}
	if current, ok := r.bound[id]; ok {
		if current == vaultID {
			return nil
		}
		return common.ErrorAlreadyRegistered
	}

	r.bound[id] = vaultID
	set, ok := r.byVault[vaultID]
	if !ok {
		set = make(map[string]*Session)
		r.byVault[vaultID] = set
	}
	set[id] = s
	return nil
}

// VaultOf returns the vault session id is bound to.
func (r *Registry) VaultOf(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.bound[id]
	return v, ok
}

// Close forgets session id and drops it from its vault's set. Empty sets
// are pruned.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	vaultID, ok := r.bound[id]
	if !ok {
		return
	}
	delete(r.bound, id)

	set := r.byVault[vaultID]
	delete(set, id)
	if len(set) == 0 {
		delete(r.byVault, vaultID)
	}
}

// UnbindVault releases every session bound to vaultID and returns how many
// there were. The sessions stay open and may register again.
func (r *Registry) UnbindVault(vaultID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.byVault[vaultID]
	for id := range set {
		delete(r.bound, id)
	}
	delete(r.byVault, vaultID)
	return len(set)
}

// Peers returns the sessions bound to vaultID other than excludeID.
func (r *Registry) Peers(vaultID, excludeID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byVault[vaultID]
	peers := make([]*Session, 0, len(set))
	for id, s := range set {
		if id != excludeID {
			peers = append(peers, s)
		}
	}
	return peers
}

// Count returns the number of open sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// VaultCount returns the number of vaults with at least one bound session.
func (r *Registry) VaultCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byVault)
}

// CloseAll closes every open connection. Sessions are removed by their
// read loops as the connections shut down.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.sessions))
	for _, s := range r.sessions {
		conns = append(conns, s.conn)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
	}
}
