package taskstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/orchestrator/pkg/contracts"
	"github.com/kandev/orchestrator/pkg/protocol"
)

func TestCreateTaskIsIdempotent(t *testing.T) {
	m := NewMemoryManager()
	ctx := context.Background()

	first, err := m.CreateTask(ctx, "sess-1", "task-1")
	require.NoError(t, err)
	second, err := m.CreateTask(ctx, "sess-1", "task-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, contracts.TaskStateWorking, first.State)
}

func TestGetTaskMissingReturnsFalse(t *testing.T) {
	m := NewMemoryManager()
	_, ok, err := m.GetTask(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateStatusAppendsMessageAndTransitions(t *testing.T) {
	m := NewMemoryManager()
	ctx := context.Background()
	task, err := m.CreateTask(ctx, "sess-1", "task-1")
	require.NoError(t, err)

	msg := contracts.AgentMessage{Role: contracts.RoleAgent, Parts: []contracts.MessagePart{{Text: "done"}}}
	err = m.UpdateStatus(ctx, task.ID, contracts.TaskStateCompleted, &msg, true)
	require.NoError(t, err)

	updated, ok, err := m.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, contracts.TaskStateCompleted, updated.State)
	require.Len(t, updated.History, 1)
	assert.Equal(t, "done", updated.History[0].Parts[0].Text)
}

func TestUpdateStatusRejectsTransitionFromTerminalState(t *testing.T) {
	m := NewMemoryManager()
	ctx := context.Background()
	task, err := m.CreateTask(ctx, "sess-1", "task-1")
	require.NoError(t, err)

	require.NoError(t, m.UpdateStatus(ctx, task.ID, contracts.TaskStateCompleted, nil, true))

	err = m.UpdateStatus(ctx, task.ID, contracts.TaskStateWorking, nil, false)
	assert.Error(t, err)
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	m := NewMemoryManager()
	ctx := context.Background()
	task, err := m.CreateTask(ctx, "sess-1", "task-1")
	require.NoError(t, err)

	require.NoError(t, m.UpdateStatus(ctx, task.ID, contracts.TaskStateInputRequired, nil, false))

	err = m.UpdateStatus(ctx, task.ID, contracts.TaskStateCompleted, nil, true)
	assert.Error(t, err)
}

func TestSendMessageCreatesTaskWhenMissing(t *testing.T) {
	m := NewMemoryManager()
	ctx := context.Background()

	result, err := m.SendMessage(ctx, protocol.SendMessageParams{ContextID: "sess-1", Text: "hello"})
	require.NoError(t, err)
	require.NotNil(t, result.Task)
	assert.Equal(t, contracts.TaskStateWorking, result.Task.State)
	require.Len(t, result.Task.History, 1)
	assert.Equal(t, "hello", result.Task.History[0].Parts[0].Text)
}
