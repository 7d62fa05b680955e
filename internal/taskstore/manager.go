// Package taskstore implements TaskManager: a durable, per-conversation
// append-only message log with a validated status state machine.
package taskstore

import (
	"context"
	"fmt"

	"github.com/kandev/orchestrator/pkg/contracts"
	"github.com/kandev/orchestrator/pkg/protocol"
)

// Manager is the TaskManager contract.
type Manager interface {
	CreateTask(ctx context.Context, sessionID, taskID string) (contracts.AgentTask, error)
	GetTask(ctx context.Context, taskID string) (contracts.AgentTask, bool, error)
	UpdateStatus(ctx context.Context, taskID string, state contracts.TaskState, message *contracts.AgentMessage, final bool) error
	SendMessage(ctx context.Context, params protocol.SendMessageParams) (protocol.SendMessageResult, error)
	Close() error
}

// validTransitions enumerates the AgentTask state machine from spec §3.
var validTransitions = map[contracts.TaskState]map[contracts.TaskState]bool{
	contracts.TaskStateWorking: {
		contracts.TaskStateWorking:       true,
		contracts.TaskStateInputRequired: true,
		contracts.TaskStateCompleted:     true,
		contracts.TaskStateFailed:        true,
		contracts.TaskStateCanceled:      true,
	},
	contracts.TaskStateInputRequired: {
		contracts.TaskStateWorking:  true,
		contracts.TaskStateFailed:   true,
		contracts.TaskStateCanceled: true,
	},
}

// validateTransition rejects illegal or post-terminal state changes.
func validateTransition(current, next contracts.TaskState) error {
	if current.IsTerminal() {
		return fmt.Errorf("task is already in terminal state %s", current)
	}
	allowed, ok := validTransitions[current]
	if !ok || !allowed[next] {
		return fmt.Errorf("invalid task state transition %s -> %s", current, next)
	}
	return nil
}
