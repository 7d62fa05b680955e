// Package contracts holds the wire/data-model types shared between the
// orchestration core and its external collaborators (agent registries, remote
// task managers, a future dashboard process). Keeping these in a standalone
// package lets callers depend on the shapes without pulling in orchestration
// internals.
package contracts

// AgentCard describes a registered agent available for routing. Cards are
// immutable for the duration of one Router call and are owned by the external
// AgentRegistry, not by this module.
type AgentCard struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url,omitempty"` // presence implies a remote agent
	Streaming   bool     `json:"streaming"`
	Push        bool     `json:"push"`
	StateHistory bool    `json:"state_history"`
	SkillExamples []string `json:"skill_examples,omitempty"`
}

// IsRemote reports whether the card describes a remote agent (has a URL).
func (c AgentCard) IsRemote() bool {
	return c.URL != ""
}

// AgentInstruction pairs a dispatched agent with the instruction text it
// should receive.
type AgentInstruction struct {
	AgentID     string `json:"agent_id"`
	Instruction string `json:"instruction"`
}

// AgentChoice is the RouterExecutor's output: which agent(s) to dispatch to,
// and why.
type AgentChoice struct {
	AgentID           string             `json:"agent_id"`
	Confidence        float64            `json:"confidence"`
	Reasoning         string             `json:"reasoning"`
	AdditionalAgents  []string           `json:"additional_agents,omitempty"`
	AgentInstructions []AgentInstruction `json:"agent_instructions"`
}

// AgentResponse is one agent's result, produced by an AgentInvoker.
type AgentResponse struct {
	AgentID         string `json:"agent_id"`
	Content         string `json:"content"`
	Success         bool   `json:"success"`
	ErrorMessage    string `json:"error_message,omitempty"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
	NeedsInput      bool   `json:"needs_input"`
}

// AggregationResult is the AggregatorExecutor's full accounting of one
// dispatch round, prior to being collapsed into an OrchestratorResult.
type AggregationResult struct {
	Message             string          `json:"message"`
	SuccessfulAgents     []string        `json:"successful_agents"`
	FailedAgents         []FailedAgent   `json:"failed_agents"`
	TotalExecutionTimeMs int64           `json:"total_execution_time_ms"`
	NeedsInput           bool            `json:"needs_input"`
}

// FailedAgent records one agent's failure reason.
type FailedAgent struct {
	AgentID string `json:"agent_id"`
	Error   string `json:"error"`
}

// OrchestratorResult is the public return type of Engine.ProcessRequest.
type OrchestratorResult struct {
	Text       string `json:"text"`
	NeedsInput bool   `json:"needs_input"`
}
