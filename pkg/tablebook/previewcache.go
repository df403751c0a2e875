package tablebook

import (
	"context"
	"sync"
	"time"
)

// DefaultPreviewTTL bounds how long an unconfirmed preview stays held.
const DefaultPreviewTTL = 15 * time.Minute

// MemoryPreviewCache is an in-process PreviewCache. One entry per guest;
// Put replaces, Take consumes.
type MemoryPreviewCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	nowFn   func() time.Time
	entries map[GuestID]memoryPreviewEntry
}

type memoryPreviewEntry struct {
	preview   Preview
	expiresAt time.Time
}

// NewMemoryPreviewCache wires a memory cache with the given TTL; zero
// means DefaultPreviewTTL.
func NewMemoryPreviewCache(ttl time.Duration, now func() time.Time) *MemoryPreviewCache {
	if ttl <= 0 {
		ttl = DefaultPreviewTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryPreviewCache{
		ttl:     ttl,
		nowFn:   now,
		entries: make(map[GuestID]memoryPreviewEntry),
	}
}

// Put holds the preview for its guest, replacing any previous one.
func (cache *MemoryPreviewCache) Put(_ context.Context, preview Preview) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.entries[preview.GuestID] = memoryPreviewEntry{
		preview:   preview,
		expiresAt: cache.nowFn().Add(cache.ttl),
	}
	return nil
}

// Take removes and returns the guest's held preview, if any and unexpired.
func (cache *MemoryPreviewCache) Take(_ context.Context, guestID GuestID) (Preview, bool, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	entry, held := cache.entries[guestID]
	if !held {
		return Preview{}, false, nil
	}
	delete(cache.entries, guestID)
	if cache.nowFn().After(entry.expiresAt) {
		return Preview{}, false, nil
	}
	return entry.preview, true, nil
}
