package presence

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// keyLock hands out one mutex per key. Shard mutexes guard only the
// bookkeeping maps, so two keys never wait on each other's critical section.
type keyLock struct {
	shards []*keyLockShard
}

type keyLockShard struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyLock(shards int) *keyLock {
	if shards <= 0 {
		shards = defaultShards
	}
	k := &keyLock{shards: make([]*keyLockShard, shards)}
	for i := range k.shards {
		k.shards[i] = &keyLockShard{locks: make(map[string]*refMutex)}
	}
	return k
}

// Lock blocks until key is held and returns the matching unlock func.
func (k *keyLock) Lock(key string) func() {
	s := k.shards[xxhash.Sum64String(key)%uint64(len(k.shards))]

	s.mu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &refMutex{}
		s.locks[key] = m
	}
	m.refs++
	s.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		s.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}
