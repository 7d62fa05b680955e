package dispatch

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kandev/orchestrator/internal/logging"
	"github.com/kandev/orchestrator/pkg/contracts"
)

// AgentObserver receives a completion notification for each dispatched
// agent. DispatchExecutor calls it once per AgentResponse; it is a narrower
// view of the ObserverBus so this package does not need to depend on
// eventbus's full Observer surface.
type AgentObserver interface {
	OnAgentExecutionCompleted(ctx context.Context, response contracts.AgentResponse) error
}

const clarificationAgentID = "clarification"

// Executor is the DispatchExecutor implementation.
type Executor struct {
	invokers map[string]Invoker // keyed by lowercased agent name
	observer AgentObserver
	logger   *logging.Logger
}

// New constructs an Executor from a set of invokers keyed by agent name
// (case-insensitive lookup is applied internally).
func New(invokers map[string]Invoker, observer AgentObserver, log *logging.Logger) *Executor {
	if log == nil {
		log = logging.Default()
	}
	byLower := make(map[string]Invoker, len(invokers))
	for name, inv := range invokers {
		byLower[strings.ToLower(name)] = inv
	}
	return &Executor{
		invokers: byLower,
		observer: observer,
		logger:   log.WithFields(),
	}
}

// Dispatch never returns an error and always returns len(result) entries
// matching the dispatched order: [agent_id] ++ (additional_agents \
// {agent_id}), or a single synthetic clarification response when choice is
// a clarification. sessionID keys per-agent thread/remote-context state, so
// two sessions routed to the same agent never share one AgentThread.
func (e *Executor) Dispatch(ctx context.Context, sessionID string, choice contracts.AgentChoice, userMessage string) ([]contracts.AgentResponse, error) {
	if strings.EqualFold(choice.AgentID, clarificationAgentID) {
		resp := contracts.AgentResponse{
			AgentID:    clarificationAgentID,
			Content:    choice.Reasoning,
			Success:    true,
			NeedsInput: true,
		}
		e.notify(ctx, resp)
		return []contracts.AgentResponse{resp}, nil
	}

	ordered := orderedDispatchList(choice)
	instructions := instructionsByAgent(choice.AgentInstructions)

	responses := make([]contracts.AgentResponse, len(ordered))

	primary := ordered[0]
	responses[0] = e.invokeOne(ctx, sessionID, primary, instructions, userMessage)
	e.notify(ctx, responses[0])

	if len(ordered) == 1 {
		return responses, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for idx := 1; idx < len(ordered); idx++ {
		idx := idx
		agentID := ordered[idx]
		g.Go(func() error {
			resp := e.invokeOne(gctx, sessionID, agentID, instructions, userMessage)
			responses[idx] = resp
			e.notify(ctx, resp)
			return nil
		})
	}
	_ = g.Wait() // per-agent failures are carried in responses, never cancel siblings

	return responses, nil
}

func (e *Executor) invokeOne(ctx context.Context, sessionID, agentID string, instructions map[string]string, userMessage string) contracts.AgentResponse {
	inv, ok := e.invokers[strings.ToLower(agentID)]
	if !ok {
		return contracts.AgentResponse{
			AgentID:      agentID,
			Success:      false,
			ErrorMessage: fmt.Sprintf("Agent '%s' is not available.", agentID),
		}
	}

	message := userMessage
	if instruction, ok := instructions[strings.ToLower(agentID)]; ok && instruction != "" {
		message = instruction
	}

	return inv.Invoke(ctx, sessionID, message)
}

func (e *Executor) notify(ctx context.Context, resp contracts.AgentResponse) {
	if e.observer == nil {
		return
	}
	if err := e.observer.OnAgentExecutionCompleted(ctx, resp); err != nil {
		e.logger.Warn("agent observer returned error")
	}
}

func orderedDispatchList(choice contracts.AgentChoice) []string {
	ordered := []string{choice.AgentID}
	seen := map[string]bool{strings.ToLower(choice.AgentID): true}
	for _, a := range choice.AdditionalAgents {
		key := strings.ToLower(a)
		if seen[key] {
			continue
		}
		seen[key] = true
		ordered = append(ordered, a)
	}
	return ordered
}

func instructionsByAgent(instructions []contracts.AgentInstruction) map[string]string {
	out := make(map[string]string, len(instructions))
	for _, inst := range instructions {
		out[strings.ToLower(inst.AgentID)] = inst.Instruction
	}
	return out
}
