package core

import (
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// Registry is the authoritative nickname <-> session mapping. The lock
// covers map operations only, never network I/O.
type Registry struct {
	mu        sync.Mutex
	byName    map[string]*Session
	bySession map[*Session]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:    make(map[string]*Session),
		bySession: make(map[*Session]string),
	}
}

// Insert registers s under nickname. It returns false without changing
// anything if the nickname is taken or s is already registered.
func (r *Registry) Insert(nickname string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byName[nickname]; taken {
		return false
	}
	if _, registered := r.bySession[s]; registered {
		return false
	}
	s.nickname = nickname
	r.byName[nickname] = s
	r.bySession[s] = nickname
	return true
}

// Remove deletes s. It reports the nickname s was registered under and
// whether this call removed it; removing an absent session is a no-op.
func (r *Registry) Remove(s *Session) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nickname, ok := r.bySession[s]
	if !ok {
		return "", false
	}
	delete(r.bySession, s)
	delete(r.byName, nickname)
	return nickname, true
}

// Lookup finds the session registered under nickname.
func (r *Registry) Lookup(nickname string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byName[nickname]
	return s, ok
}

// Snapshot copies the registered sessions, ordered by nickname, leaving out
// exclude (which may be nil).
func (r *Registry) Snapshot(exclude *Session) []*Session {
	r.mu.Lock()
	sessions := lo.Filter(lo.Values(r.byName), func(s *Session, _ int) bool {
		return s != exclude
	})
	r.mu.Unlock()

	slices.SortFunc(sessions, func(a, b *Session) int {
		return strings.Compare(a.nickname, b.nickname)
	})
	return sessions
}

// Nicknames returns the registered nicknames in sorted order.
func (r *Registry) Nicknames() []string {
	r.mu.Lock()
	names := lo.Keys(r.byName)
	r.mu.Unlock()

	slices.Sort(names)
	return names
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName)
}
