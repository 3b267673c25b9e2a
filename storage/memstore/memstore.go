package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/airdrop-session/storage"
)

var _ storage.Store = (*MemStore)(nil)

// ErrInjected is returned by every operation while the store is failing
var ErrInjected = errors.New("memstore: injected failure")

// MemStore is an in-memory storage.Store. It backs the "memory" driver and
// doubles as the test fake; SetFailing makes every call return ErrInjected.
type MemStore struct {
	values  map[string]string
	failing bool
	writes  int
	lock    sync.RWMutex
}

func New() *MemStore {
	return &MemStore{
		values: make(map[string]string),
	}
}

func (ms *MemStore) Get(_ context.Context, key string) (string, error) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()

	if ms.failing {
		return "", ErrInjected
	}
	v, ok := ms.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (ms *MemStore) Set(_ context.Context, key, value string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	if ms.failing {
		return ErrInjected
	}
	ms.values[key] = value
	ms.writes++
	return nil
}

func (ms *MemStore) Delete(_ context.Context, key string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	if ms.failing {
		return ErrInjected
	}
	delete(ms.values, key)
	ms.writes++
	return nil
}

// SetFailing toggles failure injection
func (ms *MemStore) SetFailing(failing bool) {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	ms.failing = failing
}

// Has reports whether key holds a value, ignoring failure injection
func (ms *MemStore) Has(key string) bool {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	_, ok := ms.values[key]
	return ok
}

// Snapshot returns a copy of every key and value
func (ms *MemStore) Snapshot() map[string]string {
	ms.lock.RLock()
	defer ms.lock.RUnlock()

	out := make(map[string]string, len(ms.values))
	for k, v := range ms.values {
		out[k] = v
	}
	return out
}

// Writes counts successful Set and Delete calls
func (ms *MemStore) Writes() int {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	return ms.writes
}
