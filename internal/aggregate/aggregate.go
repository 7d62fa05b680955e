// Package aggregate implements AggregatorExecutor: ordering, merging, and
// formatting dispatched agent responses into one final OrchestratorResult.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kandev/orchestrator/internal/config"
	"github.com/kandev/orchestrator/pkg/contracts"
)

// ResponseObserver receives the final aggregated text.
type ResponseObserver interface {
	OnResponseAggregated(ctx context.Context, finalText string) error
}

// Executor is the AggregatorExecutor implementation.
type Executor struct {
	cfg      config.AggregatorConfig
	priority map[string]int
	observer ResponseObserver
}

// New constructs an Executor from config.
func New(cfg config.AggregatorConfig, observer ResponseObserver) *Executor {
	priority := make(map[string]int, len(cfg.AgentPriority))
	for i, name := range cfg.AgentPriority {
		priority[strings.ToLower(name)] = i
	}
	return &Executor{cfg: cfg, priority: priority, observer: observer}
}

// Aggregate never returns an error.
func (e *Executor) Aggregate(ctx context.Context, responses []contracts.AgentResponse) (contracts.OrchestratorResult, error) {
	ordered := make([]contracts.AgentResponse, len(responses))
	copy(ordered, responses)
	e.sortResponses(ordered)

	var successes []contracts.AgentResponse
	var failures []contracts.FailedAgent
	needsInput := false

	for _, r := range ordered {
		if r.Success {
			successes = append(successes, r)
			if r.NeedsInput {
				needsInput = true
			}
			continue
		}
		errMsg := r.ErrorMessage
		if errMsg == "" {
			errMsg = e.cfg.DefaultFailureMessage
		}
		failures = append(failures, contracts.FailedAgent{AgentID: r.AgentID, Error: errMsg})
	}

	var text string
	switch {
	case needsInput:
		text = firstClarifyingContent(successes)
	case len(successes) == 0 && len(failures) == 0:
		text = e.cfg.DefaultFallbackMessage
	default:
		text = e.composeText(successes, failures)
	}

	if e.observer != nil {
		_ = e.observer.OnResponseAggregated(ctx, text)
	}

	return contracts.OrchestratorResult{Text: text, NeedsInput: needsInput}, nil
}

func firstClarifyingContent(successes []contracts.AgentResponse) string {
	for _, s := range successes {
		if s.NeedsInput {
			return s.Content
		}
	}
	return ""
}

func (e *Executor) composeText(successes []contracts.AgentResponse, failures []contracts.FailedAgent) string {
	var parts []string
	for _, s := range successes {
		content := strings.TrimSpace(s.Content)
		if content == "" {
			content = fmt.Sprintf(e.cfg.DefaultSuccessTemplate, formatAgentName(s.AgentID))
		}
		parts = append(parts, content)
	}
	text := strings.Join(parts, " ")

	if len(failures) == 1 {
		text = strings.TrimSpace(text + fmt.Sprintf(" However, I couldn't complete %s: %s.", formatAgentName(failures[0].AgentID), failures[0].Error))
	} else if len(failures) > 1 {
		var segs []string
		for _, f := range failures {
			segs = append(segs, fmt.Sprintf("%s (%s)", formatAgentName(f.AgentID), f.Error))
		}
		text = strings.TrimSpace(text + fmt.Sprintf(" However, I ran into issues with %s.", strings.Join(segs, ", ")))
	}

	return strings.TrimSpace(text)
}

// sortResponses stable-sorts by the configured AgentPriority index (unknowns
// last), then by agent_id case-insensitively.
func (e *Executor) sortResponses(responses []contracts.AgentResponse) {
	sort.SliceStable(responses, func(i, j int) bool {
		pi, oki := e.priority[strings.ToLower(responses[i].AgentID)]
		pj, okj := e.priority[strings.ToLower(responses[j].AgentID)]
		switch {
		case oki && okj:
			if pi != pj {
				return pi < pj
			}
		case oki && !okj:
			return true
		case !oki && okj:
			return false
		}
		return strings.ToLower(responses[i].AgentID) < strings.ToLower(responses[j].AgentID)
	})
}

// formatAgentName splits on '-' or '_', title-cases each token, and joins
// with spaces, e.g. "general-assistant" -> "General Assistant".
func formatAgentName(agentID string) string {
	tokens := strings.FieldsFunc(agentID, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, t := range tokens {
		if t == "" {
			continue
		}
		tokens[i] = strings.ToUpper(t[:1]) + t[1:]
	}
	return strings.Join(tokens, " ")
}
