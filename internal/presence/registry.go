package presence

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const defaultShards = 32

// Registry maps an identity to the set of its live connection ids. An
// identity is present iff its set is non-empty.
type Registry struct {
	shards []*registryShard
}

type registryShard struct {
	mu    sync.RWMutex
	users map[string]map[string]struct{}
}

func NewRegistry(shards int) *Registry {
	if shards <= 0 {
		shards = defaultShards
	}
	r := &Registry{shards: make([]*registryShard, shards)}
	for i := range r.shards {
		r.shards[i] = &registryShard{users: make(map[string]map[string]struct{})}
	}
	return r
}

func (r *Registry) shardFor(identity string) *registryShard {
	return r.shards[xxhash.Sum64String(identity)%uint64(len(r.shards))]
}

// Register adds connID to the identity's set and returns the session count
// observed right before the mutation. Registering a known pair changes nothing.
func (r *Registry) Register(identity, connID string) int {
	s := r.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.users[identity]
	if !ok {
		conns = make(map[string]struct{})
		s.users[identity] = conns
	}
	before := len(conns)
	conns[connID] = struct{}{}
	return before
}

// Unregister removes connID from the identity's set, dropping the identity
// once the set is empty. It returns the count observed before the removal,
// or ErrUnknownConnection when the pair was never registered.
func (r *Registry) Unregister(identity, connID string) (int, error) {
	s := r.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.users[identity]
	if !ok {
		return 0, ErrUnknownConnection
	}
	before := len(conns)
	if _, ok := conns[connID]; !ok {
		return before, ErrUnknownConnection
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(s.users, identity)
	}
	return before, nil
}

// RemoveUser drops every session of identity and returns the removed ids.
func (r *Registry) RemoveUser(identity string) []string {
	s := r.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.users[identity]
	if !ok {
		return nil
	}
	delete(s.users, identity)
	return sortedKeys(conns)
}

func (r *Registry) SessionCount(identity string) int {
	s := r.shardFor(identity)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users[identity])
}

func (r *Registry) IsOnline(identity string) bool {
	return r.SessionCount(identity) > 0
}

// Sessions returns a sorted snapshot of the identity's connection ids.
func (r *Registry) Sessions(identity string) []string {
	s := r.shardFor(identity)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.users[identity])
}

// OnlineUsers returns a sorted snapshot of every identity with at least one
// live connection.
func (r *Registry) OnlineUsers() []string {
	var users []string
	for _, s := range r.shards {
		s.mu.RLock()
		for identity := range s.users {
			users = append(users, identity)
		}
		s.mu.RUnlock()
	}
	sort.Strings(users)
	return users
}

func (r *Registry) OnlineCount() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.users)
		s.mu.RUnlock()
	}
	return n
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
