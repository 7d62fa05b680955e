package contracts

import "time"

// MessageRole distinguishes who authored an AgentMessage or SessionTurn.
type MessageRole string

const (
	RoleUser  MessageRole = "user"
	RoleAgent MessageRole = "agent"
)

// TaskState is the AgentTask state machine's current state.
type TaskState string

const (
	TaskStateWorking       TaskState = "Working"
	TaskStateInputRequired TaskState = "InputRequired"
	TaskStateCompleted     TaskState = "Completed"
	TaskStateFailed        TaskState = "Failed"
	TaskStateCanceled      TaskState = "Canceled"
)

// IsTerminal reports whether no further messages may be appended in this state.
func (s TaskState) IsTerminal() bool {
	return s == TaskStateCompleted || s == TaskStateFailed || s == TaskStateCanceled
}

// MessagePart is a single content part of an AgentMessage. Only text parts are
// modeled; richer part kinds (artifacts, tool calls) are out of scope for this
// core.
type MessagePart struct {
	Text string `json:"text"`
}

// AgentMessage is a durable, append-only entry in a task's message log.
type AgentMessage struct {
	MessageID string        `json:"message_id"`
	Role      MessageRole   `json:"role"`
	TaskID    string        `json:"task_id"`
	ContextID string        `json:"context_id"`
	Parts     []MessagePart `json:"parts"`
	CreatedAt time.Time     `json:"created_at"`
}

// Text concatenates the message's text parts.
func (m AgentMessage) Text() string {
	var out string
	for i, p := range m.Parts {
		if i > 0 {
			out += " "
		}
		out += p.Text
	}
	return out
}

// AgentTask is a durable, per-conversation record with a state machine. A task
// is keyed by ID within a ContextID (typically the session ID, or an
// independent identifier for agent-to-agent tasks with no session).
type AgentTask struct {
	ID        string         `json:"id"`
	ContextID string         `json:"context_id"`
	State     TaskState      `json:"state"`
	History   []AgentMessage `json:"history"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SessionTurn is one turn of short-lived multi-turn conversation history.
type SessionTurn struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// SessionData is the SessionCache's per-session value: a trimmed window of
// recent turns.
type SessionData struct {
	SessionID   string        `json:"session_id"`
	History     []SessionTurn `json:"history"`
	LastUpdated time.Time     `json:"last_updated"`
}

// RoutingCacheEntry is one RoutingDecisionCache record.
type RoutingCacheEntry struct {
	Fingerprint string
	Choice      AgentChoice
	CreatedAt   time.Time
	TTL         time.Duration
}

// Expired reports whether the entry is past its TTL as of now.
func (e RoutingCacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}
