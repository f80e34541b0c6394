package repository

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemorySessionStore is the in-process session store. Entries expire after ttl
// without a write; a zero ttl keeps them forever.
type MemorySessionStore struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl: ttl,
		now: time.Now,
	}
}

func (r *MemorySessionStore) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	k := sessionKey(sessionID, key)
	val, ok := r.entries.Load(k)
	if !ok {
		return nil, nil
	}
	entry := val.(memoryEntry)
	if !entry.expiresAt.IsZero() && r.now().After(entry.expiresAt) {
		r.entries.CompareAndDelete(k, val)
		return nil, nil
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (r *MemorySessionStore) Set(ctx context.Context, sessionID, key string, value []byte) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if r.ttl > 0 {
		entry.expiresAt = r.now().Add(r.ttl)
	}
	r.entries.Store(sessionKey(sessionID, key), entry)
	return nil
}

func (r *MemorySessionStore) Delete(ctx context.Context, sessionID, key string) error {
	r.entries.Delete(sessionKey(sessionID, key))
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (r *MemorySessionStore) Sweep() int {
	now := r.now()
	removed := 0
	r.entries.Range(func(k, v any) bool {
		entry := v.(memoryEntry)
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			if r.entries.CompareAndDelete(k, v) {
				removed++
			}
		}
		return true
	})
	return removed
}
