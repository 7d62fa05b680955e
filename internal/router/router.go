// Package router implements RouterExecutor: the LLM-driven request router
// that turns one user message plus the live agent catalog into a validated
// AgentChoice, with retries, confidence-gated clarification, and fallback.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/kandev/orchestrator/internal/apperrors"
	"github.com/kandev/orchestrator/internal/config"
	"github.com/kandev/orchestrator/internal/logging"
	"github.com/kandev/orchestrator/internal/routingcache"
	"github.com/kandev/orchestrator/pkg/contracts"
)

// RoutingObserver receives the routing decision made for one Route call.
type RoutingObserver interface {
	OnRoutingCompleted(ctx context.Context, choice contracts.AgentChoice, systemPrompt string) error
}

// ChatClient is the external LLM collaborator: given a system prompt, a user
// prompt, and sampling parameters, it returns the raw model completion text.
// Concrete provider adapters (OpenAI, Anthropic, local models) are out of
// scope for this core and are supplied by the surrounding process.
type ChatClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxOutputTokens int) (string, error)
}

// CatalogSource enumerates the live agent catalog.
type CatalogSource interface {
	ListAgents(ctx context.Context) ([]contracts.AgentCard, error)
	Names() []string
}

// rawChoice is the strict JSON shape the LLM is asked to emit.
type rawChoice struct {
	AgentID           string                      `json:"agent_id"`
	Confidence        float64                     `json:"confidence"`
	Reasoning         string                      `json:"reasoning"`
	AdditionalAgents  []string                     `json:"additional_agents"`
	AgentInstructions []contracts.AgentInstruction `json:"agent_instructions"`
}

// Executor is the RouterExecutor implementation.
type Executor struct {
	cfg      config.RouterConfig
	client   ChatClient
	catalog  CatalogSource
	cache    *routingcache.Cache
	observer RoutingObserver
	logger   *logging.Logger
}

// New constructs an Executor. cache may be nil to disable routing-decision
// memoization entirely. observer may be nil to skip routing notifications.
func New(cfg config.RouterConfig, client ChatClient, catalog CatalogSource, cache *routingcache.Cache, observer RoutingObserver, log *logging.Logger) *Executor {
	if log == nil {
		log = logging.Default()
	}
	return &Executor{
		cfg:      cfg,
		client:   client,
		catalog:  catalog,
		cache:    cache,
		observer: observer,
		logger:   log.WithFields(zap.String("component", "router")),
	}
}

// Route never returns an error: every failure mode resolves to a valid
// AgentChoice (fallback or clarification), per the RouterExecutor contract.
// The only errors surfaced are programmer errors from misconfiguration.
func (e *Executor) Route(ctx context.Context, userMessage string) (contracts.AgentChoice, error) {
	cards, err := e.catalog.ListAgents(ctx)
	if err != nil {
		choice := e.fallback(fmt.Sprintf("catalog enumeration failed: %v", err))
		e.notifyRouting(ctx, choice, "")
		return choice, nil
	}
	if len(cards) == 0 {
		choice := e.fallback("No registered agents available for routing.")
		e.notifyRouting(ctx, choice, "")
		return choice, nil
	}

	normalized := normalize(userMessage)
	catalogSig := routingcache.CatalogSignature(e.catalog.Names())
	fingerprint := routingcache.Fingerprint(normalized, catalogSig)

	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, fingerprint); ok {
			if e.validateAgainstCatalog(cached, cards) {
				e.notifyRouting(ctx, cached, e.cfg.SystemPrompt)
				return cached, nil
			}
		}
	}

	systemPrompt := e.cfg.SystemPrompt
	userPrompt := e.renderUserPrompt(userMessage, cards)

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		raw, err := e.client.Complete(ctx, systemPrompt, userPrompt, e.cfg.Temperature, e.cfg.MaxOutputTokens)
		if err != nil {
			lastErr = err
			continue
		}

		choice, err := e.parseAndValidate(raw, cards, userMessage)
		if err != nil {
			lastErr = err
			e.logger.Debug("router attempt failed validation", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		choice = e.applyConfidencePolicy(choice, userMessage)

		if e.cache != nil && !isFallback(choice, e.cfg) && !isClarification(choice, e.cfg) {
			e.cache.Put(ctx, fingerprint, choice)
		}
		e.notifyRouting(ctx, choice, systemPrompt)
		return choice, nil
	}

	cause := "no attempts configured"
	if lastErr != nil {
		cause = lastErr.Error()
	}
	choice := e.fallback(cause)
	e.notifyRouting(ctx, choice, systemPrompt)
	return choice, nil
}

func (e *Executor) notifyRouting(ctx context.Context, choice contracts.AgentChoice, systemPrompt string) {
	if e.observer == nil {
		return
	}
	if err := e.observer.OnRoutingCompleted(ctx, choice, systemPrompt); err != nil {
		e.logger.Warn("routing observer returned error", zap.Error(err))
	}
}

func (e *Executor) parseAndValidate(raw string, cards []contracts.AgentCard, userMessage string) (contracts.AgentChoice, error) {
	var parsed rawChoice
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		return contracts.AgentChoice{}, apperrors.RouterMalformedOutput(err)
	}
	if parsed.AgentID == "" {
		return contracts.AgentChoice{}, apperrors.RouterMalformedOutput(fmt.Errorf("missing agent_id"))
	}

	byName := make(map[string]string, len(cards)) // lower -> canonical
	for _, c := range cards {
		byName[strings.ToLower(c.Name)] = c.Name
	}

	canonicalID, ok := byName[strings.ToLower(parsed.AgentID)]
	if !ok {
		return contracts.AgentChoice{}, apperrors.RouterInvalidChoice(fmt.Sprintf("unknown agent_id %q", parsed.AgentID))
	}

	additional := dedupeAdditional(parsed.AdditionalAgents, canonicalID, byName)

	instructions := ensureInstructions(parsed.AgentInstructions, canonicalID, additional, userMessage)

	return contracts.AgentChoice{
		AgentID:           canonicalID,
		Confidence:        parsed.Confidence,
		Reasoning:         parsed.Reasoning,
		AdditionalAgents:  additional,
		AgentInstructions: instructions,
	}, nil
}

func dedupeAdditional(raw []string, primary string, byName map[string]string) []string {
	seen := map[string]bool{strings.ToLower(primary): true}
	out := make([]string, 0, len(raw))
	for _, a := range raw {
		canonical, ok := byName[strings.ToLower(a)]
		if !ok {
			continue
		}
		key := strings.ToLower(canonical)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, canonical)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func ensureInstructions(raw []contracts.AgentInstruction, primary string, additional []string, fallbackText string) []contracts.AgentInstruction {
	dispatched := append([]string{primary}, additional...)
	byAgent := make(map[string]string)
	for _, inst := range raw {
		key := strings.ToLower(inst.AgentID)
		if _, exists := byAgent[key]; exists {
			continue // keep the first on duplicate agent_id
		}
		byAgent[key] = inst.Instruction
	}

	out := make([]contracts.AgentInstruction, 0, len(dispatched))
	for _, agentID := range dispatched {
		instruction, ok := byAgent[strings.ToLower(agentID)]
		if !ok || instruction == "" {
			instruction = fallbackText
		}
		out = append(out, contracts.AgentInstruction{AgentID: agentID, Instruction: instruction})
	}
	return out
}

// applyConfidencePolicy rewrites a low-confidence choice into a
// clarification request. Confidence is preserved verbatim. The configured
// template takes three placeholders, in order: the candidate agent list,
// the original user request, and the originally chosen agent id.
func (e *Executor) applyConfidencePolicy(choice contracts.AgentChoice, userMessage string) contracts.AgentChoice {
	if choice.Confidence >= e.cfg.ConfidenceThreshold {
		return choice
	}
	candidates := strings.Join(append([]string{choice.AgentID}, choice.AdditionalAgents...), ", ")
	reasoning := fmt.Sprintf(e.cfg.ClarificationPromptTemplate, candidates, userMessage, choice.AgentID)
	if !strings.HasSuffix(strings.TrimSpace(reasoning), "?") {
		reasoning = strings.TrimSpace(reasoning) + "?"
	}
	return contracts.AgentChoice{
		AgentID:           e.cfg.ClarificationAgentID,
		Confidence:        choice.Confidence,
		Reasoning:         reasoning,
		AdditionalAgents:  nil,
		AgentInstructions: []contracts.AgentInstruction{{AgentID: e.cfg.ClarificationAgentID, Instruction: reasoning}},
	}
}

func (e *Executor) fallback(cause string) contracts.AgentChoice {
	reasoning := fmt.Sprintf(e.cfg.FallbackReasonTemplate, cause)
	return contracts.AgentChoice{
		AgentID:    e.cfg.FallbackAgentID,
		Confidence: 0,
		Reasoning:  reasoning,
		AgentInstructions: []contracts.AgentInstruction{
			{AgentID: e.cfg.FallbackAgentID, Instruction: reasoning},
		},
	}
}

func isFallback(choice contracts.AgentChoice, cfg config.RouterConfig) bool {
	return strings.EqualFold(choice.AgentID, cfg.FallbackAgentID) && choice.Confidence == 0
}

func isClarification(choice contracts.AgentChoice, cfg config.RouterConfig) bool {
	return strings.EqualFold(choice.AgentID, cfg.ClarificationAgentID)
}

func (e *Executor) validateAgainstCatalog(choice contracts.AgentChoice, cards []contracts.AgentCard) bool {
	known := make(map[string]bool, len(cards))
	for _, c := range cards {
		known[strings.ToLower(c.Name)] = true
	}
	if !known[strings.ToLower(choice.AgentID)] && !strings.EqualFold(choice.AgentID, e.cfg.ClarificationAgentID) {
		return false
	}
	for _, a := range choice.AdditionalAgents {
		if !known[strings.ToLower(a)] {
			return false
		}
	}
	return true
}

// renderUserPrompt substitutes the request text and a rendered catalog block
// into the configured user prompt template. The catalog block is one line
// per agent (`- <name>: <description>`) under the configured header, with
// optional capability tags and skill examples appended per config flags.
func (e *Executor) renderUserPrompt(userMessage string, cards []contracts.AgentCard) string {
	sorted := make([]contracts.AgentCard, len(cards))
	copy(sorted, cards)
	sort.Slice(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
	})

	var b strings.Builder
	if e.cfg.AgentCatalogHeader != "" {
		b.WriteString(e.cfg.AgentCatalogHeader)
		b.WriteString("\n")
	}
	for _, c := range sorted {
		fmt.Fprintf(&b, "- %s: %s", c.Name, c.Description)
		if e.cfg.IncludeAgentCapabilities {
			if tags := capabilityTags(c); tags != "" {
				fmt.Fprintf(&b, " [%s]", tags)
			}
		}
		if e.cfg.IncludeSkillExamples && len(c.SkillExamples) > 0 {
			fmt.Fprintf(&b, " (examples: %s)", strings.Join(c.SkillExamples, "; "))
		}
		b.WriteString("\n")
	}

	template := e.cfg.UserPromptTemplate
	template = strings.ReplaceAll(template, "{{request}}", userMessage)
	template = strings.ReplaceAll(template, "{{catalog}}", strings.TrimRight(b.String(), "\n"))
	return template
}

// capabilityTags renders an agent card's capability flags as a
// comma-separated tag list, e.g. "streaming, push".
func capabilityTags(c contracts.AgentCard) string {
	var tags []string
	if c.Streaming {
		tags = append(tags, "streaming")
	}
	if c.Push {
		tags = append(tags, "push")
	}
	if c.StateHistory {
		tags = append(tags, "state_history")
	}
	return strings.Join(tags, ", ")
}

// normalize lower-cases and collapses whitespace, so trivially different
// phrasing of the same request still produces the same cache fingerprint.
func normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
