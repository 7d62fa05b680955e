package routingcache

import "github.com/kandev/orchestrator/internal/config"

// Provide constructs a Cache from configuration. It ignores cfg.Enabled: the
// cache returned here is always usable, and the caller decides whether to
// consult it (cmd/orchestratord drops it when Enabled is false).
func Provide(cfg config.RoutingCacheConfig) (*Cache, func() error, error) {
	c := New(cfg.TTL())
	return c, func() error { return nil }, nil
}
