package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	token   string
	expires time.Time
}

// MemoryLock is an in-process DistributedLock for single-node `serve`
// runs and tests, honoring the same token-based CAS contract as
// RedisLock without a Redis dependency.
type MemoryLock struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryLock constructs an empty in-memory lock table.
func NewMemoryLock() *MemoryLock {
	return &MemoryLock{entries: make(map[string]memoryEntry)}
}

// Acquire implements DistributedLock.
func (l *MemoryLock) Acquire(_ context.Context, resourceID string, ttlSeconds int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.entries[resourceID]; ok && time.Now().Before(entry.expires) {
		return false, nil
	}
	l.entries[resourceID] = memoryEntry{
		token:   uuid.New().String(),
		expires: time.Now().Add(time.Duration(ttlSeconds) * time.Second),
	}
	return true, nil
}

// Release implements DistributedLock. It is a no-op returning false when
// the lock has already expired.
func (l *MemoryLock) Release(_ context.Context, resourceID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[resourceID]
	if !ok || time.Now().After(entry.expires) {
		return false, nil
	}
	delete(l.entries, resourceID)
	return true, nil
}

// Extend implements DistributedLock.
func (l *MemoryLock) Extend(_ context.Context, resourceID string, ttlSeconds int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[resourceID]
	if !ok || time.Now().After(entry.expires) {
		return false, nil
	}
	entry.expires = time.Now().Add(time.Duration(ttlSeconds) * time.Second)
	l.entries[resourceID] = entry
	return true, nil
}

// IsLocked implements DistributedLock.
func (l *MemoryLock) IsLocked(_ context.Context, resourceID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[resourceID]
	return ok && time.Now().Before(entry.expires), nil
}
