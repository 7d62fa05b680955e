package dispatch

import "github.com/kandev/orchestrator/internal/logging"

// Provide constructs a DispatchExecutor from a pre-built invoker set. The
// invoker set itself (which agents are local vs. remote) is assembled by the
// caller from the live agent catalog, since that wiring depends on process-
// specific agent implementations outside this core's scope.
func Provide(invokers map[string]Invoker, observer AgentObserver, log *logging.Logger) (*Executor, func() error, error) {
	return New(invokers, observer, log), func() error { return nil }, nil
}
