package taskstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kandev/orchestrator/pkg/contracts"
	"github.com/kandev/orchestrator/pkg/protocol"
)

// MemoryManager is an in-memory TaskManager, useful for tests and for the
// no-durability deployment mode.
type MemoryManager struct {
	mu    sync.Mutex
	tasks map[string]contracts.AgentTask
}

// NewMemoryManager creates an empty MemoryManager.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{tasks: make(map[string]contracts.AgentTask)}
}

func (m *MemoryManager) CreateTask(_ context.Context, sessionID, taskID string) (contracts.AgentTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if taskID == "" {
		taskID = uuid.New().String()
	}
	if existing, ok := m.tasks[taskID]; ok {
		return existing, nil
	}

	now := time.Now().UTC()
	task := contracts.AgentTask{
		ID:        taskID,
		ContextID: sessionID,
		State:     contracts.TaskStateWorking,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.tasks[taskID] = task
	return task, nil
}

func (m *MemoryManager) GetTask(_ context.Context, taskID string) (contracts.AgentTask, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	return task, ok, nil
}

func (m *MemoryManager) UpdateStatus(_ context.Context, taskID string, state contracts.TaskState, message *contracts.AgentMessage, final bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %q not found", taskID)
	}
	if err := validateTransition(task.State, state); err != nil {
		return err
	}

	task.State = state
	task.UpdatedAt = time.Now().UTC()
	if message != nil {
		task.History = append(task.History, *message)
	}
	if final {
		// final is not recorded: later updates are rejected only when state
		// is terminal, so a final update to Working or InputRequired does not
		// block further updates
	}
	m.tasks[taskID] = task
	return nil
}

// SendMessage appends a user message to the named task (creating the task
// if params.TaskID is empty or unknown) and returns the updated task.
func (m *MemoryManager) SendMessage(ctx context.Context, params protocol.SendMessageParams) (protocol.SendMessageResult, error) {
	m.mu.Lock()
	task, ok := m.tasks[params.TaskID]
	m.mu.Unlock()

	if !ok {
		created, err := m.CreateTask(ctx, params.ContextID, params.TaskID)
		if err != nil {
			return protocol.SendMessageResult{}, err
		}
		task = created
	}

	msg := contracts.AgentMessage{
		MessageID: uuid.New().String(),
		Role:      contracts.RoleUser,
		TaskID:    task.ID,
		ContextID: params.ContextID,
		Parts:     []contracts.MessagePart{{Text: params.Text}},
		CreatedAt: time.Now().UTC(),
	}

	nextState := contracts.TaskStateWorking
	if err := m.UpdateStatus(ctx, task.ID, nextState, &msg, false); err != nil {
		return protocol.SendMessageResult{}, err
	}

	updated, _, _ := m.GetTask(ctx, task.ID)
	return protocol.SendMessageResult{Kind: protocol.ResultKindTask, Task: &updated}, nil
}

func (m *MemoryManager) Close() error { return nil }
