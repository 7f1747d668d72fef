package friendships

import (
	"context"
	"sync"
	"time"

	"github.com/koinonia/backend/internal/models"
)

type suggestionEntry struct {
	items   []models.PublicProfile
	expires time.Time
}

// CachingStore wraps another Store with a TTL-based in-memory cache for
// suggestion queries, which are the most expensive read in the package. Any
// successful mutation clears the cache so new relations stop being suggested.
// Changes made outside the store, such as a profile deactivation, are not
// seen until the TTL expires; send-request guards re-check active status in
// the transaction, so a stale suggestion cannot create an invalid request.
type CachingStore struct {
	Store
	ttl time.Duration

	mu    sync.RWMutex
	items map[string]suggestionEntry
}

// NewCachingStore returns a Store that caches suggestion lookups for the
// provided TTL.
func NewCachingStore(base Store, ttl time.Duration) *CachingStore {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingStore{
		Store: base,
		ttl:   ttl,
		items: make(map[string]suggestionEntry),
	}
}

// SuggestCandidates returns cached suggestions when available, otherwise it
// delegates to the underlying store and stores the result.
func (c *CachingStore) SuggestCandidates(ctx context.Context, userID string, limit int) ([]models.PublicProfile, error) {
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.items[userID]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.items, nil
	}

	items, err := c.Store.SuggestCandidates(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.items[userID] = suggestionEntry{items: items, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return items, nil
}

// InTx delegates to the underlying store and drops all cached suggestions
// after a successful mutation.
func (c *CachingStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := c.Store.InTx(ctx, fn); err != nil {
		return err
	}

	c.mu.Lock()
	c.items = make(map[string]suggestionEntry)
	c.mu.Unlock()

	return nil
}
