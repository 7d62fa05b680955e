// Package dispatch implements the AgentInvoker contracts (local in-process
// and remote over the task protocol) and the DispatchExecutor that fans a
// routing decision out to them.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kandev/orchestrator/pkg/contracts"
	"github.com/kandev/orchestrator/pkg/protocol"
)

// Invoker is the AgentInvoker contract: invoke one agent with a message
// under a timeout, never returning an error — failures are reported inside
// AgentResponse.
type Invoker interface {
	Invoke(ctx context.Context, sessionID string, message string) contracts.AgentResponse
}

// LocalAgent is the in-process agent contract a LocalInvoker drives. Concrete
// agent implementations (skills, tool-calling loops, model adapters) are out
// of scope for this core.
type LocalAgent interface {
	// Run advances thread with message and returns the agent's reply text
	// plus the updated thread to persist.
	Run(ctx context.Context, thread AgentThread, message string) (reply string, updated AgentThread, err error)
}

// AgentThread is opaque per-(session,agent) conversational state owned by
// SessionStore. A LocalAgent decides its own internal shape; this core only
// stores and retrieves it.
type AgentThread struct {
	Data []byte
}

// ThreadStore is the SessionStore contract: per-agent thread persistence
// across turns, keyed by (session_id, agent_id). A no-op implementation is
// valid for stateless agents.
type ThreadStore interface {
	Load(ctx context.Context, sessionID, agentID string) (AgentThread, bool, error)
	Save(ctx context.Context, sessionID, agentID string, thread AgentThread) error
}

// LocalInvoker invokes one local in-process agent.
type LocalInvoker struct {
	AgentID string
	Agent   LocalAgent
	Threads ThreadStore
	Timeout time.Duration
}

// Invoke never panics or returns a Go error; all failure modes are encoded
// in the returned AgentResponse.
func (i *LocalInvoker) Invoke(ctx context.Context, sessionID, message string) contracts.AgentResponse {
	start := time.Now()
	timeout := i.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	thread, _, err := i.Threads.Load(ctx, sessionID, i.AgentID)
	if err != nil {
		return failure(i.AgentID, err.Error(), start)
	}

	type result struct {
		reply   string
		updated AgentThread
		err     error
	}
	resultCh := make(chan result, 1)
	go func() {
		reply, updated, runErr := i.Agent.Run(ctx, thread, message)
		resultCh <- result{reply: reply, updated: updated, err: runErr}
	}()

	select {
	case <-ctx.Done():
		return failure(i.AgentID, fmt.Sprintf("Agent execution timed out after %dms", timeout.Milliseconds()), start)
	case res := <-resultCh:
		if res.err != nil {
			return failure(i.AgentID, res.err.Error(), start)
		}
		if err := i.Threads.Save(ctx, sessionID, i.AgentID, res.updated); err != nil {
			return failure(i.AgentID, err.Error(), start)
		}
		return success(i.AgentID, res.reply, start)
	}
}

// RemoteTaskManager is the subset of the remote TaskManager contract a
// RemoteInvoker needs: send one message and get back either a durable task
// or a direct message.
type RemoteTaskManager interface {
	SendMessage(ctx context.Context, params protocol.SendMessageParams) (protocol.SendMessageResult, error)
}

// RemoteInvoker invokes a remote agent over the task protocol.
type RemoteInvoker struct {
	Card    contracts.AgentCard
	Tasks   RemoteTaskManager
	Timeout time.Duration
}

func (i *RemoteInvoker) Invoke(ctx context.Context, sessionID, message string) contracts.AgentResponse {
	start := time.Now()
	timeout := i.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		res protocol.SendMessageResult
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		res, err := i.Tasks.SendMessage(ctx, protocol.SendMessageParams{
			Text:      message,
			ContextID: sessionID,
		})
		resultCh <- result{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return failure(i.Card.Name, fmt.Sprintf("Agent execution timed out after %dms", timeout.Milliseconds()), start)
	case r := <-resultCh:
		if r.err != nil {
			return failure(i.Card.Name, r.err.Error(), start)
		}
		return i.toResponse(r.res, start)
	}
}

func (i *RemoteInvoker) toResponse(res protocol.SendMessageResult, start time.Time) contracts.AgentResponse {
	switch res.Kind {
	case protocol.ResultKindMessage:
		if res.Message == nil {
			return failure(i.Card.Name, "remote agent returned an empty message", start)
		}
		return success(i.Card.Name, res.Message.Text(), start)
	case protocol.ResultKindTask:
		if res.Task == nil {
			return failure(i.Card.Name, "remote agent returned an empty task", start)
		}
		var text string
		if n := len(res.Task.History); n > 0 {
			text = res.Task.History[n-1].Text()
		}
		switch res.Task.State {
		case contracts.TaskStateCompleted, contracts.TaskStateWorking, contracts.TaskStateInputRequired:
			return success(i.Card.Name, text, start)
		default:
			return failure(i.Card.Name, fmt.Sprintf("remote task ended in state %s", res.Task.State), start)
		}
	default:
		return failure(i.Card.Name, "remote agent returned an unrecognized result kind", start)
	}
}

func success(agentID, content string, start time.Time) contracts.AgentResponse {
	return contracts.AgentResponse{
		AgentID:         agentID,
		Content:         content,
		Success:         true,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		NeedsInput:      strings.HasSuffix(strings.TrimSpace(content), "?"),
	}
}

func failure(agentID, message string, start time.Time) contracts.AgentResponse {
	return contracts.AgentResponse{
		AgentID:         agentID,
		Success:         false,
		ErrorMessage:    message,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}
}
