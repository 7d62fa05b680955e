package session

import "github.com/kandev/orchestrator/internal/config"

// Provide constructs a SessionCache from configuration.
func Provide(cfg config.SessionCacheConfig) (*Cache, func() error, error) {
	return New(cfg.TTL(), cfg.MaxHistoryItems), func() error { return nil }, nil
}
