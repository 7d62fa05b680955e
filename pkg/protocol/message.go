// Package protocol defines the wire-level message shapes exchanged with a
// remote agent over the task protocol referenced by TaskManager. The
// transport itself (HTTP, websocket, stdio) is not part of this core — only
// these message shapes and the TaskManager interface they flow through.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/kandev/orchestrator/pkg/contracts"
)

// SendMessageParams is sent to a remote TaskManager to advance or create a task.
type SendMessageParams struct {
	Text      string `json:"text"`
	ContextID string `json:"context_id"`
	TaskID    string `json:"task_id,omitempty"`
}

// SendMessageResultKind distinguishes the two shapes a remote TaskManager may
// return from SendMessage.
type SendMessageResultKind string

const (
	ResultKindTask    SendMessageResultKind = "task"
	ResultKindMessage SendMessageResultKind = "message"
)

// SendMessageResult wraps the union type returned by a remote TaskManager:
// either a durable AgentTask (when the agent is long-running/stateful) or a
// single direct AgentMessage (when the agent replies immediately).
type SendMessageResult struct {
	Kind    SendMessageResultKind `json:"kind"`
	Task    *contracts.AgentTask  `json:"task,omitempty"`
	Message *contracts.AgentMessage `json:"message,omitempty"`
}

// Envelope is a framed message for transports that multiplex several message
// types over one connection (analogous to the teacher's ACP Message framing).
// Included for completeness of the wire contract; no transport in this core
// constructs or parses an Envelope — that is left to the surrounding process.
type Envelope struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	AgentID   string                 `json:"agent_id"`
	TaskID    string                 `json:"task_id"`
	Data      map[string]interface{} `json:"data"`
}

// MarshalJSON formats Timestamp as RFC3339Nano, matching the wire convention
// used elsewhere in this codebase for inter-process message timestamps.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	type alias Envelope
	return json.Marshal(&struct {
		*alias
		Timestamp string `json:"timestamp"`
	}{
		alias:     (*alias)(e),
		Timestamp: e.Timestamp.Format(time.RFC3339Nano),
	})
}

// IsValid checks that required envelope fields are present.
func (e *Envelope) IsValid() bool {
	return e.Type != "" && e.TaskID != ""
}
