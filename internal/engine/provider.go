package engine

import (
	"github.com/kandev/orchestrator/internal/catalog"
	"github.com/kandev/orchestrator/internal/eventbus"
	"github.com/kandev/orchestrator/internal/logging"
	"github.com/kandev/orchestrator/internal/session"
	"github.com/kandev/orchestrator/internal/taskstore"
	"github.com/kandev/orchestrator/internal/workflow"
)

// Provide constructs an Engine from its already-wired dependencies.
func Provide(sessions *session.Cache, tasks taskstore.Manager, reg *catalog.Registry, wf *workflow.Runtime, bus eventbus.Bus, log *logging.Logger) (*Engine, func() error, error) {
	return New(sessions, tasks, reg, wf, bus, log), func() error { return nil }, nil
}
