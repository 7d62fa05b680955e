package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/orchestrator/internal/catalog"
	"github.com/kandev/orchestrator/internal/session"
	"github.com/kandev/orchestrator/internal/taskstore"
	"github.com/kandev/orchestrator/internal/workflow"
	"github.com/kandev/orchestrator/pkg/contracts"
)

type fakeRouter struct{}

func (fakeRouter) Route(_ context.Context, _ string) (contracts.AgentChoice, error) {
	return contracts.AgentChoice{AgentID: "music"}, nil
}

type fakeDispatcher struct{}

func (fakeDispatcher) Dispatch(_ context.Context, _ string, _ contracts.AgentChoice, _ string) ([]contracts.AgentResponse, error) {
	return []contracts.AgentResponse{{AgentID: "music", Success: true, Content: "playing jazz"}}, nil
}

type fakeAggregator struct{}

func (fakeAggregator) Aggregate(_ context.Context, _ []contracts.AgentResponse) (contracts.OrchestratorResult, error) {
	return contracts.OrchestratorResult{Text: "playing jazz"}, nil
}

type erroringRouter struct{}

func (erroringRouter) Route(_ context.Context, _ string) (contracts.AgentChoice, error) {
	return contracts.AgentChoice{}, errors.New("router failed")
}

func newTestEngine(t *testing.T, wf *workflow.Runtime) (*Engine, *catalog.Registry) {
	t.Helper()
	reg := catalog.New(nil)
	require.NoError(t, reg.Register(contracts.AgentCard{Name: "music"}))

	eng := New(session.New(time.Minute, 20), taskstore.NewMemoryManager(), reg, wf, nil, nil)
	return eng, reg
}

func TestProcessRequestHappyPath(t *testing.T) {
	wf := workflow.New(fakeRouter{}, fakeDispatcher{}, fakeAggregator{})
	eng, _ := newTestEngine(t, wf)

	result := eng.ProcessRequest(context.Background(), Request{UserRequest: "play some jazz", TaskID: "task-1", SessionID: "sess-1"})
	assert.Equal(t, "playing jazz", result.Text)
	assert.False(t, result.NeedsInput)
}

func TestProcessRequestEmptyRequestReturnsApology(t *testing.T) {
	wf := workflow.New(fakeRouter{}, fakeDispatcher{}, fakeAggregator{})
	eng, _ := newTestEngine(t, wf)

	result := eng.ProcessRequest(context.Background(), Request{UserRequest: "   ", TaskID: "task-1", SessionID: "sess-1"})
	assert.Equal(t, cannedApologyMessage, result.Text)
}

func TestProcessRequestEmptyCatalogFails(t *testing.T) {
	wf := workflow.New(fakeRouter{}, fakeDispatcher{}, fakeAggregator{})
	reg := catalog.New(nil)
	eng := New(session.New(time.Minute, 20), taskstore.NewMemoryManager(), reg, wf, nil, nil)

	result := eng.ProcessRequest(context.Background(), Request{UserRequest: "anything", TaskID: "task-1", SessionID: "sess-1"})
	assert.Equal(t, cannedNoAgentsMessage, result.Text)
}

func TestProcessRequestWorkflowErrorReturnsApologyAndFailsTask(t *testing.T) {
	wf := workflow.New(erroringRouter{}, fakeDispatcher{}, fakeAggregator{})
	reg := catalog.New(nil)
	require.NoError(t, reg.Register(contracts.AgentCard{Name: "music"}))
	tasks := taskstore.NewMemoryManager()
	eng := New(session.New(time.Minute, 20), tasks, reg, wf, nil, nil)

	result := eng.ProcessRequest(context.Background(), Request{UserRequest: "anything", TaskID: "task-1", SessionID: "sess-1"})
	assert.Equal(t, cannedApologyMessage, result.Text)
}

func TestComposeHistoryAwareRequestWithNoHistory(t *testing.T) {
	out := composeHistoryAwareRequest(contracts.SessionData{}, "hello")
	assert.Equal(t, "hello", out)
}

func TestComposeHistoryAwareRequestWithHistory(t *testing.T) {
	data := contracts.SessionData{History: []contracts.SessionTurn{
		{Role: contracts.RoleUser, Content: "hi"},
		{Role: contracts.RoleAgent, Content: "hello there"},
	}}
	out := composeHistoryAwareRequest(data, "what's next")
	assert.Contains(t, out, "user: hi")
	assert.Contains(t, out, "agent: hello there")
	assert.Contains(t, out, "user: what's next")
}
