// Package interactions tracks short-lived interaction handles awaiting a
// deferred reply. Handles expire after a TTL; taking a handle invalidates it,
// so every interaction can be replied to at most once.
package interactions

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultCapacity = 4096

// Handle identifies one pending interaction and carries the token needed to
// reply to it.
type Handle struct {
	ID        uint64
	GuildID   uint64
	ChannelID uint64
	UserID    uint64
	Token     string
	CreatedAt time.Time
}

// Registry is a TTL cache of pending interaction handles.
type Registry struct {
	// mu makes Take's lookup-and-invalidate atomic; the cache's own locking
	// only covers single calls.
	mu    sync.Mutex
	cache *expirable.LRU[uint64, *Handle]
}

// NewRegistry creates a registry whose handles expire after ttl.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		cache: expirable.NewLRU[uint64, *Handle](defaultCapacity, nil, ttl),
	}
}

// Put registers a pending handle under its interaction id.
func (r *Registry) Put(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Add(h.ID, h)
}

// Take returns the handle for the given interaction id and invalidates it.
// A second Take for the same id reports false.
func (r *Registry) Take(id uint64) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.cache.Get(id)
	if !ok {
		return nil, false
	}
	r.cache.Remove(id)
	return h, true
}

// Len reports how many handles are currently pending.
func (r *Registry) Len() int {
	return r.cache.Len()
}
