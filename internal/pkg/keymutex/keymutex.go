package keymutex

import "sync"

// KeyMutex serializes operations per key so that work on one book
// never blocks work on another. Entries are created lazily and kept
// for the process lifetime; the key space (catalog size) is small
// enough that eviction is not worth the bookkeeping.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// New creates an empty KeyMutex
func New() *KeyMutex {
	return &KeyMutex{
		locks: make(map[uint]*sync.Mutex),
	}
}

// Lock acquires the mutex for the given key
func (k *KeyMutex) Lock(key uint) {
	k.get(key).Lock()
}

// Unlock releases the mutex for the given key
func (k *KeyMutex) Unlock(key uint) {
	k.get(key).Unlock()
}

func (k *KeyMutex) get(key uint) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}
