package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/orchestrator/pkg/contracts"
	"github.com/kandev/orchestrator/pkg/protocol"
)

type stubInvoker struct {
	resp  contracts.AgentResponse
	delay time.Duration

	gotSessionID *string
}

func (s stubInvoker) Invoke(ctx context.Context, sessionID string, _ string) contracts.AgentResponse {
	if s.gotSessionID != nil {
		*s.gotSessionID = sessionID
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}
	return s.resp
}

type recordingAgentObserver struct {
	responses []contracts.AgentResponse
}

func (o *recordingAgentObserver) OnAgentExecutionCompleted(_ context.Context, r contracts.AgentResponse) error {
	o.responses = append(o.responses, r)
	return nil
}

func TestDispatchClarificationShortCircuits(t *testing.T) {
	obs := &recordingAgentObserver{}
	e := New(nil, obs, nil)

	choice := contracts.AgentChoice{AgentID: "clarification", Reasoning: "Did you mean X or Y?"}
	responses, err := e.Dispatch(context.Background(), "sess-1", choice, "hello")
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "clarification", responses[0].AgentID)
	assert.True(t, responses[0].NeedsInput)
	assert.Len(t, obs.responses, 1)
}

func TestDispatchOrdersPrimaryFirstThenAdditional(t *testing.T) {
	invokers := map[string]Invoker{
		"music":   stubInvoker{resp: contracts.AgentResponse{AgentID: "music", Success: true, Content: "playing"}},
		"weather": stubInvoker{resp: contracts.AgentResponse{AgentID: "weather", Success: true, Content: "sunny"}},
	}
	e := New(invokers, nil, nil)

	choice := contracts.AgentChoice{AgentID: "music", AdditionalAgents: []string{"weather"}}
	responses, err := e.Dispatch(context.Background(), "sess-1", choice, "hello")
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, "music", responses[0].AgentID)
	assert.Equal(t, "weather", responses[1].AgentID)
}

func TestDispatchPassesSessionIDToInvoker(t *testing.T) {
	var gotMusic, gotWeather string
	invokers := map[string]Invoker{
		"music":   stubInvoker{resp: contracts.AgentResponse{AgentID: "music", Success: true}, gotSessionID: &gotMusic},
		"weather": stubInvoker{resp: contracts.AgentResponse{AgentID: "weather", Success: true}, gotSessionID: &gotWeather},
	}
	e := New(invokers, nil, nil)

	choice := contracts.AgentChoice{AgentID: "music", AdditionalAgents: []string{"weather"}}
	_, err := e.Dispatch(context.Background(), "sess-42", choice, "hello")
	require.NoError(t, err)
	assert.Equal(t, "sess-42", gotMusic)
	assert.Equal(t, "sess-42", gotWeather)
}

func TestDispatchMissingInvokerProducesSyntheticFailure(t *testing.T) {
	e := New(map[string]Invoker{}, nil, nil)

	choice := contracts.AgentChoice{AgentID: "missing"}
	responses, err := e.Dispatch(context.Background(), "sess-1", choice, "hello")
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.False(t, responses[0].Success)
	assert.Contains(t, responses[0].ErrorMessage, "not available")
}

func TestDispatchAdditionalAgentsRunConcurrently(t *testing.T) {
	invokers := map[string]Invoker{
		"primary": stubInvoker{resp: contracts.AgentResponse{AgentID: "primary", Success: true}, delay: 5 * time.Millisecond},
		"second":  stubInvoker{resp: contracts.AgentResponse{AgentID: "second", Success: true}, delay: 5 * time.Millisecond},
		"third":   stubInvoker{resp: contracts.AgentResponse{AgentID: "third", Success: true}, delay: 5 * time.Millisecond},
	}
	e := New(invokers, nil, nil)

	choice := contracts.AgentChoice{AgentID: "primary", AdditionalAgents: []string{"second", "third"}}
	start := time.Now()
	responses, err := e.Dispatch(context.Background(), "sess-1", choice, "hello")
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Len(t, responses, 3)
	assert.Less(t, elapsed, 14*time.Millisecond)
}

func TestLocalInvokerSuccess(t *testing.T) {
	inv := &LocalInvoker{
		AgentID: "music",
		Agent:   localAgentFunc(func(_ context.Context, thread AgentThread, message string) (string, AgentThread, error) {
			return "played " + message, thread, nil
		}),
		Threads: NewMemoryThreadStore(),
		Timeout: time.Second,
	}

	resp := inv.Invoke(context.Background(), "sess-1", "jazz")
	assert.True(t, resp.Success)
	assert.Equal(t, "played jazz", resp.Content)
}

func TestLocalInvokerTimeout(t *testing.T) {
	inv := &LocalInvoker{
		AgentID: "music",
		Agent: localAgentFunc(func(ctx context.Context, thread AgentThread, _ string) (string, AgentThread, error) {
			<-ctx.Done()
			return "", thread, ctx.Err()
		}),
		Threads: NewMemoryThreadStore(),
		Timeout: 5 * time.Millisecond,
	}

	resp := inv.Invoke(context.Background(), "sess-1", "jazz")
	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "timed out")
}

func TestRemoteInvokerMapsCompletedTaskToSuccess(t *testing.T) {
	inv := &RemoteInvoker{
		Card: contracts.AgentCard{Name: "weather"},
		Tasks: stubTaskManager{result: protocol.SendMessageResult{
			Kind: protocol.ResultKindTask,
			Task: &contracts.AgentTask{
				State:   contracts.TaskStateCompleted,
				History: []contracts.AgentMessage{{Parts: []contracts.MessagePart{{Text: "sunny today"}}}},
			},
		}},
		Timeout: time.Second,
	}

	resp := inv.Invoke(context.Background(), "sess-1", "weather?")
	assert.True(t, resp.Success)
	assert.Equal(t, "sunny today", resp.Content)
}

func TestRemoteInvokerMapsCanceledTaskToFailure(t *testing.T) {
	inv := &RemoteInvoker{
		Card: contracts.AgentCard{Name: "weather"},
		Tasks: stubTaskManager{result: protocol.SendMessageResult{
			Kind: protocol.ResultKindTask,
			Task: &contracts.AgentTask{State: contracts.TaskStateCanceled},
		}},
		Timeout: time.Second,
	}

	resp := inv.Invoke(context.Background(), "sess-1", "weather?")
	assert.False(t, resp.Success)
}

func TestMemoryThreadStoreRoundTrip(t *testing.T) {
	store := NewMemoryThreadStore()
	ctx := context.Background()

	_, ok, err := store.Load(ctx, "sess-1", "music")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "sess-1", "music", AgentThread{Data: []byte("state")}))
	thread, ok, err := store.Load(ctx, "sess-1", "music")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("state"), thread.Data)
}

type localAgentFunc func(ctx context.Context, thread AgentThread, message string) (string, AgentThread, error)

func (f localAgentFunc) Run(ctx context.Context, thread AgentThread, message string) (string, AgentThread, error) {
	return f(ctx, thread, message)
}

type stubTaskManager struct {
	result protocol.SendMessageResult
}

func (s stubTaskManager) SendMessage(_ context.Context, _ protocol.SendMessageParams) (protocol.SendMessageResult, error) {
	return s.result, nil
}
