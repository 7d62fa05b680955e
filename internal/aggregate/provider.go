package aggregate

import "github.com/kandev/orchestrator/internal/config"

// Provide constructs an AggregatorExecutor.
func Provide(cfg config.AggregatorConfig, observer ResponseObserver) (*Executor, func() error, error) {
	return New(cfg, observer), func() error { return nil }, nil
}
