package router

import (
	"github.com/kandev/orchestrator/internal/catalog"
	"github.com/kandev/orchestrator/internal/config"
	"github.com/kandev/orchestrator/internal/logging"
	"github.com/kandev/orchestrator/internal/routingcache"
)

// Provide constructs a RouterExecutor wired to the given catalog, optional
// routing cache, chat client, and routing observer.
func Provide(cfg config.RouterConfig, client ChatClient, reg *catalog.Registry, cache *routingcache.Cache, observer RoutingObserver, log *logging.Logger) (*Executor, func() error, error) {
	exec := New(cfg, client, reg, cache, observer, log)
	return exec, func() error { return nil }, nil
}
