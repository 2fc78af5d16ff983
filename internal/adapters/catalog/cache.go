package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/realtyflow/settlement-engine/internal/domain"
	"github.com/realtyflow/settlement-engine/internal/domain/ports"
)

// DefaultTTL is how long a catalog record stays fresh
const DefaultTTL = 5 * time.Minute

// CachedProvider is a read-through cache over an upstream catalog. The
// engine only ever reads offices, teams and agents; entries expire after a
// TTL and are refetched on demand.
type CachedProvider struct {
	upstream ports.CatalogProvider
	ttl      time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	offices map[string]cachedEntry[*domain.Office]
	teams   map[string]cachedEntry[*domain.Team]
	agents  map[string]cachedEntry[*domain.Agent]
}

type cachedEntry[T any] struct {
	value     T
	fetchedAt time.Time
}

// NewCachedProvider wraps upstream with a TTL cache
func NewCachedProvider(upstream ports.CatalogProvider, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedProvider{
		upstream: upstream,
		ttl:      ttl,
		now:      time.Now,
		offices:  make(map[string]cachedEntry[*domain.Office]),
		teams:    make(map[string]cachedEntry[*domain.Team]),
		agents:   make(map[string]cachedEntry[*domain.Agent]),
	}
}

// GetOffice returns the office, fetching from upstream on miss or expiry
func (c *CachedProvider) GetOffice(ctx context.Context, id string) (*domain.Office, error) {
	c.mu.RLock()
	entry, ok := c.offices[id]
	c.mu.RUnlock()
	if ok && c.fresh(entry.fetchedAt) {
		return entry.value, nil
	}

	office, err := c.upstream.GetOffice(ctx, id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.offices[id] = cachedEntry[*domain.Office]{value: office, fetchedAt: c.now()}
	c.mu.Unlock()
	return office, nil
}

// GetTeam returns the team, fetching from upstream on miss or expiry
func (c *CachedProvider) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	c.mu.RLock()
	entry, ok := c.teams[id]
	c.mu.RUnlock()
	if ok && c.fresh(entry.fetchedAt) {
		return entry.value, nil
	}

	team, err := c.upstream.GetTeam(ctx, id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.teams[id] = cachedEntry[*domain.Team]{value: team, fetchedAt: c.now()}
	c.mu.Unlock()
	return team, nil
}

// GetAgent returns the agent, fetching from upstream on miss or expiry
func (c *CachedProvider) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	c.mu.RLock()
	entry, ok := c.agents[id]
	c.mu.RUnlock()
	if ok && c.fresh(entry.fetchedAt) {
		return entry.value, nil
	}

	agent, err := c.upstream.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.agents[id] = cachedEntry[*domain.Agent]{value: agent, fetchedAt: c.now()}
	c.mu.Unlock()
	return agent, nil
}

// Invalidate drops every cached record, forcing refetch on next read
func (c *CachedProvider) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offices = make(map[string]cachedEntry[*domain.Office])
	c.teams = make(map[string]cachedEntry[*domain.Team])
	c.agents = make(map[string]cachedEntry[*domain.Agent])
}

func (c *CachedProvider) fresh(fetchedAt time.Time) bool {
	return c.now().Sub(fetchedAt) < c.ttl
}
