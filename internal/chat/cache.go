package chat

import (
	"sync"
	"time"

	"github.com/gymsmart/gymsmart-backend/internal/domain"
)

// Entry is the cached message list of one conversation
type Entry struct {
	OwnerID       string
	PeerID        string
	Messages      []domain.Message
	LastWrittenAt time.Time
}

// Cache keeps one entry per (owner, peer). Store replaces the entry as a
// whole; there is no merge.
type Cache interface {
	Load(ownerID, peerID string) (Entry, bool)
	Store(entry Entry) error
	Clear(ownerID, peerID string) error
}

// MemoryCache is a process-local Cache
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryCache creates an empty MemoryCache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

func cacheKey(ownerID, peerID string) string {
	return ownerID + "/" + peerID
}

func (c *MemoryCache) Load(ownerID, peerID string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[cacheKey(ownerID, peerID)]
	if !ok {
		return Entry{}, false
	}
	e.Messages = cloneMessages(e.Messages)
	return e, true
}

func (c *MemoryCache) Store(entry Entry) error {
	entry.Messages = cloneMessages(entry.Messages)
	c.mu.Lock()
	c.entries[cacheKey(entry.OwnerID, entry.PeerID)] = entry
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Clear(ownerID, peerID string) error {
	c.mu.Lock()
	delete(c.entries, cacheKey(ownerID, peerID))
	c.mu.Unlock()
	return nil
}

func cloneMessages(in []domain.Message) []domain.Message {
	if in == nil {
		return nil
	}
	out := make([]domain.Message, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
