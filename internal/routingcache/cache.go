// Package routingcache implements the RoutingDecisionCache contract: a
// mutex-protected, TTL-bounded memo of RouterExecutor decisions keyed by a
// fingerprint over (normalized request text, catalog signature). It caches
// ONLY the routing decision — never agent output — so a cache hit always
// still re-executes the chosen agent and any tool side effects.
package routingcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kandev/orchestrator/pkg/contracts"
)

// CatalogSignature derives the catalog half of a fingerprint from the
// currently registered agent names: sorted, case-folded names only (per
// the resolved Open Question — descriptions do not participate, so editing
// an agent's description does not invalidate cached routing decisions).
func CatalogSignature(names []string) string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	for i := range sorted {
		sorted[i] = strings.ToLower(sorted[i])
	}
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// Fingerprint hashes the normalized request text together with the catalog
// signature into the cache key.
func Fingerprint(normalizedRequest, catalogSignature string) string {
	h := sha256.New()
	h.Write([]byte(normalizedRequest))
	h.Write([]byte{0})
	h.Write([]byte(catalogSignature))
	return hex.EncodeToString(h.Sum(nil))
}

// SemanticMatcher is an optional similarity backend a Cache can consult on
// an exact-match miss. No implementation ships with this module — wiring an
// embedding provider is left to the surrounding process — but the interface
// lets one be plugged in without touching the Cache's exact-match path.
type SemanticMatcher interface {
	// Nearest returns the fingerprint of the closest previously-cached
	// request to normalizedRequest among the supplied candidate
	// fingerprints. ok is false when no candidate meets the matcher's own
	// similarity threshold.
	Nearest(ctx context.Context, normalizedRequest string, candidates []string) (fingerprint string, ok bool)
}

// Cache is a thread-safe RoutingDecisionCache.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]contracts.RoutingCacheEntry
	ttl      time.Duration
	semantic SemanticMatcher
}

// New creates an empty Cache. ttl is the default entry lifetime used by Put
// when no explicit ttl is supplied via PutWithTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{
		entries: make(map[string]contracts.RoutingCacheEntry),
		ttl:     ttl,
	}
}

// WithSemanticMatcher attaches an optional similarity backend consulted by
// GetSemantic on exact-match misses.
func (c *Cache) WithSemanticMatcher(m SemanticMatcher) *Cache {
	c.semantic = m
	return c
}

// GetSemantic tries an exact match first, then falls back to the attached
// SemanticMatcher (if any) over the currently cached, non-expired
// fingerprints. When multiple candidates match, the matcher itself is
// responsible for picking the highest-similarity one above its threshold.
func (c *Cache) GetSemantic(ctx context.Context, fingerprint, normalizedRequest string) (contracts.AgentChoice, bool) {
	if choice, ok := c.Get(ctx, fingerprint); ok {
		return choice, ok
	}
	if c.semantic == nil {
		return contracts.AgentChoice{}, false
	}

	c.mu.RLock()
	now := time.Now().UTC()
	candidates := make([]string, 0, len(c.entries))
	for key, entry := range c.entries {
		if !entry.Expired(now) {
			candidates = append(candidates, key)
		}
	}
	c.mu.RUnlock()

	match, ok := c.semantic.Nearest(ctx, normalizedRequest, candidates)
	if !ok {
		return contracts.AgentChoice{}, false
	}
	return c.Get(ctx, match)
}

// Get returns the cached AgentChoice for fingerprint, if present and not
// expired. Callers are still required to revalidate the choice's agent IDs
// against the live catalog — this cache has no knowledge of the catalog
// beyond the signature baked into the fingerprint.
func (c *Cache) Get(_ context.Context, fingerprint string) (contracts.AgentChoice, bool) {
	c.mu.RLock()
	entry, ok := c.entries[fingerprint]
	c.mu.RUnlock()
	if !ok {
		return contracts.AgentChoice{}, false
	}
	if entry.Expired(time.Now().UTC()) {
		c.mu.Lock()
		delete(c.entries, fingerprint)
		c.mu.Unlock()
		return contracts.AgentChoice{}, false
	}
	return entry.Choice, true
}

// Put stores choice under fingerprint using the cache's default TTL.
func (c *Cache) Put(_ context.Context, fingerprint string, choice contracts.AgentChoice) {
	c.PutWithTTL(context.Background(), fingerprint, choice, c.ttl)
}

// PutWithTTL stores choice under fingerprint with an explicit TTL.
func (c *Cache) PutWithTTL(_ context.Context, fingerprint string, choice contracts.AgentChoice, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = contracts.RoutingCacheEntry{
		Fingerprint: fingerprint,
		Choice:      choice,
		CreatedAt:   time.Now().UTC(),
		TTL:         ttl,
	}
}

// Invalidate removes a single entry, e.g. after a catalog change the caller
// has already detected outside of the signature mechanism.
func (c *Cache) Invalidate(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, fingerprint)
}

// CleanupExpired removes all expired entries and reports how many were
// removed. Intended to be called periodically by a background goroutine.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	removed := 0
	for key, entry := range c.entries {
		if entry.Expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the current entry count, including not-yet-swept expired
// entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
