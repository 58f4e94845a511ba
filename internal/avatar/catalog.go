package avatar

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultCatalogTTL = 10 * time.Minute

// Catalog is a snapshot of the avatars and voices available to the account.
type Catalog struct {
	Avatars   []Avatar  `json:"avatars"`
	Voices    []Voice   `json:"voices"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CachedCatalog wraps a Client to cache the avatar and voice lists with a
// TTL. Both lists are fetched together so they never come from different
// refreshes.
type CachedCatalog struct {
	client Client
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Catalog
}

func NewCachedCatalog(client Client, logger *slog.Logger) *CachedCatalog {
	return &CachedCatalog{
		client: client,
		ttl:    defaultCatalogTTL,
		logger: logger,
	}
}

// Get returns the cached catalog if fresh, otherwise refetches.
func (c *CachedCatalog) Get(ctx context.Context) (*Catalog, error) {
	c.mu.RLock()
	if c.cached != nil && time.Since(c.cached.FetchedAt) < c.ttl {
		cat := c.cached
		c.mu.RUnlock()
		return cat, nil
	}
	c.mu.RUnlock()

	return c.Refresh(ctx)
}

// Refresh forces a refetch regardless of cache freshness. If the fetch fails
// and an older catalog exists, the stale copy is returned.
func (c *CachedCatalog) Refresh(ctx context.Context) (*Catalog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cat, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("avatar catalog fetch failed", "error", err)
		if c.cached != nil {
			c.logger.Info("returning stale avatar catalog")
			return c.cached, nil
		}
		return nil, err
	}

	c.cached = cat
	return cat, nil
}

// Validate checks that the configured key can list avatars. It bypasses the
// cache.
func (c *CachedCatalog) Validate(ctx context.Context) error {
	_, err := c.client.ListAvatars(ctx)
	return err
}

func (c *CachedCatalog) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

func (c *CachedCatalog) fetch(ctx context.Context) (*Catalog, error) {
	avatars, err := c.client.ListAvatars(ctx)
	if err != nil {
		return nil, err
	}
	voices, err := c.client.ListVoices(ctx)
	if err != nil {
		return nil, err
	}
	return &Catalog{Avatars: avatars, Voices: voices, FetchedAt: time.Now()}, nil
}
