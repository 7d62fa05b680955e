// Package session implements SessionCache: a short-TTL, size-bounded store
// of recent multi-turn conversation history keyed by session id.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/kandev/orchestrator/pkg/contracts"
)

// Cache is a thread-safe SessionCache.
type Cache struct {
	mu             sync.RWMutex
	sessions       map[string]contracts.SessionData
	ttl            time.Duration
	maxHistoryItems int
}

// New creates an empty Cache. ttl and maxHistoryItems come from
// SessionCacheConfig (SessionCacheLengthMinutes, MaxHistoryItems).
func New(ttl time.Duration, maxHistoryItems int) *Cache {
	if maxHistoryItems <= 0 {
		maxHistoryItems = 20
	}
	return &Cache{
		sessions:        make(map[string]contracts.SessionData),
		ttl:             ttl,
		maxHistoryItems: maxHistoryItems,
	}
}

// Get returns the SessionData for sessionID, or false if absent or expired.
// An expired entry is evicted as a side effect of the lookup.
func (c *Cache) Get(_ context.Context, sessionID string) (contracts.SessionData, bool) {
	c.mu.RLock()
	data, ok := c.sessions[sessionID]
	c.mu.RUnlock()
	if !ok {
		return contracts.SessionData{}, false
	}
	if c.ttl > 0 && time.Since(data.LastUpdated) > c.ttl {
		c.mu.Lock()
		delete(c.sessions, sessionID)
		c.mu.Unlock()
		return contracts.SessionData{}, false
	}
	return data, true
}

// Save appends turns to the session's history (creating it if missing),
// trims to the newest MaxHistoryItems entries, and updates LastUpdated.
func (c *Cache) Save(_ context.Context, sessionID string, turns ...contracts.SessionTurn) contracts.SessionData {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.sessions[sessionID]
	if !ok {
		data = contracts.SessionData{SessionID: sessionID}
	}
	data.History = append(data.History, turns...)
	if len(data.History) > c.maxHistoryItems {
		data.History = data.History[len(data.History)-c.maxHistoryItems:]
	}
	data.LastUpdated = time.Now().UTC()
	c.sessions[sessionID] = data
	return data
}

// CleanupExpired removes sessions idle longer than the configured TTL and
// reports how many were removed. Intended to run periodically.
func (c *Cache) CleanupExpired() int {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, data := range c.sessions {
		if now.Sub(data.LastUpdated) > c.ttl {
			delete(c.sessions, id)
			removed++
		}
	}
	return removed
}
