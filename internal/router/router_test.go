package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/orchestrator/internal/config"
	"github.com/kandev/orchestrator/pkg/contracts"
)

func testConfig() config.RouterConfig {
	return config.RouterConfig{
		ConfidenceThreshold:         0.5,
		MaxAttempts:                 2,
		Temperature:                 0.1,
		MaxOutputTokens:             256,
		SystemPrompt:                "route the request",
		UserPromptTemplate:          "request: {{request}}\ncatalog:\n{{catalog}}",
		ClarificationPromptTemplate: "Did you mean one of: %s (for \"%s\", originally %s)",
		FallbackReasonTemplate:      "falling back: %s",
		ClarificationAgentID:        "clarification",
		FallbackAgentID:             "general-assistant",
	}
}

type recordingRoutingObserver struct {
	choices       []contracts.AgentChoice
	systemPrompts []string
}

func (o *recordingRoutingObserver) OnRoutingCompleted(_ context.Context, choice contracts.AgentChoice, systemPrompt string) error {
	o.choices = append(o.choices, choice)
	o.systemPrompts = append(o.systemPrompts, systemPrompt)
	return nil
}

type stubCatalog struct {
	cards []contracts.AgentCard
}

func (s stubCatalog) ListAgents(_ context.Context) ([]contracts.AgentCard, error) { return s.cards, nil }
func (s stubCatalog) Names() []string {
	names := make([]string, len(s.cards))
	for i, c := range s.cards {
		names[i] = c.Name
	}
	return names
}

type stubChatClient struct {
	responses []string
	errs      []error
	calls     int
}

func (s *stubChatClient) Complete(_ context.Context, _, _ string, _ float64, _ int) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", errors.New("no more stubbed responses")
}

func weatherMusicCatalog() stubCatalog {
	return stubCatalog{cards: []contracts.AgentCard{
		{Name: "weather", Description: "gives weather"},
		{Name: "music", Description: "plays music"},
	}}
}

func TestRouteReturnsFallbackWhenCatalogEmpty(t *testing.T) {
	cfg := testConfig()
	client := &stubChatClient{}
	e := New(cfg, client, stubCatalog{}, nil, nil, nil)

	choice, err := e.Route(context.Background(), "play some jazz")
	require.NoError(t, err)
	assert.Equal(t, cfg.FallbackAgentID, choice.AgentID)
	assert.Equal(t, 0, client.calls)
}

func TestRouteParsesValidChoice(t *testing.T) {
	cfg := testConfig()
	client := &stubChatClient{responses: []string{
		`{"agent_id":"music","confidence":0.9,"reasoning":"user wants music"}`,
	}}
	obs := &recordingRoutingObserver{}
	e := New(cfg, client, weatherMusicCatalog(), nil, obs, nil)

	choice, err := e.Route(context.Background(), "play some jazz")
	require.NoError(t, err)
	assert.Equal(t, "music", choice.AgentID)
	assert.Equal(t, 0.9, choice.Confidence)

	require.Len(t, obs.choices, 1)
	assert.Equal(t, "music", obs.choices[0].AgentID)
	assert.Equal(t, cfg.SystemPrompt, obs.systemPrompts[0])
}

func TestRouteRetriesOnMalformedOutputThenSucceeds(t *testing.T) {
	cfg := testConfig()
	client := &stubChatClient{responses: []string{
		"not json",
		`{"agent_id":"weather","confidence":0.8,"reasoning":"weather request"}`,
	}}
	e := New(cfg, client, weatherMusicCatalog(), nil, nil, nil)

	choice, err := e.Route(context.Background(), "what's the weather")
	require.NoError(t, err)
	assert.Equal(t, "weather", choice.AgentID)
	assert.Equal(t, 2, client.calls)
}

func TestRouteFallsBackAfterExhaustingAttempts(t *testing.T) {
	cfg := testConfig()
	client := &stubChatClient{responses: []string{"bad", "still bad"}}
	e := New(cfg, client, weatherMusicCatalog(), nil, nil, nil)

	choice, err := e.Route(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, cfg.FallbackAgentID, choice.AgentID)
	assert.Equal(t, cfg.MaxAttempts, client.calls)
}

func TestRouteLowConfidenceBecomesClarification(t *testing.T) {
	cfg := testConfig()
	client := &stubChatClient{responses: []string{
		`{"agent_id":"music","confidence":0.1,"reasoning":"unsure"}`,
	}}
	e := New(cfg, client, weatherMusicCatalog(), nil, nil, nil)

	choice, err := e.Route(context.Background(), "something vague")
	require.NoError(t, err)
	assert.Equal(t, cfg.ClarificationAgentID, choice.AgentID)
	assert.Equal(t, 0.1, choice.Confidence)
	assert.Contains(t, choice.Reasoning, "?")
	assert.Contains(t, choice.Reasoning, "something vague")
	assert.Contains(t, choice.Reasoning, "music")
}

func TestParseAndValidateRejectsUnknownAgent(t *testing.T) {
	cfg := testConfig()
	e := New(cfg, &stubChatClient{}, weatherMusicCatalog(), nil, nil, nil)

	_, err := e.parseAndValidate(`{"agent_id":"unknown","confidence":0.9}`, weatherMusicCatalog().cards, "anything")
	assert.Error(t, err)
}

func TestDedupeAdditionalDropsPrimaryAndUnknowns(t *testing.T) {
	byName := map[string]string{"music": "music", "weather": "weather"}
	out := dedupeAdditional([]string{"Music", "weather", "unknown"}, "music", byName)
	assert.Equal(t, []string{"weather"}, out)
}

func TestEnsureInstructionsFallsBackForMissing(t *testing.T) {
	out := ensureInstructions(nil, "music", []string{"weather"}, "do the thing")
	require.Len(t, out, 2)
	assert.Equal(t, "music", out[0].AgentID)
	assert.Equal(t, "do the thing", out[0].Instruction)
	assert.Equal(t, "weather", out[1].AgentID)
	assert.Equal(t, "do the thing", out[1].Instruction)
}

func TestEnsureInstructionsKeepsFirstOnDuplicateAgentID(t *testing.T) {
	raw := []contracts.AgentInstruction{
		{AgentID: "music", Instruction: "first"},
		{AgentID: "music", Instruction: "second"},
	}
	out := ensureInstructions(raw, "music", nil, "fallback")
	require.Len(t, out, 1)
	assert.Equal(t, "first", out[0].Instruction)
}

func TestRenderUserPromptIncludesHeaderCapabilitiesAndSkillExamples(t *testing.T) {
	cfg := testConfig()
	cfg.AgentCatalogHeader = "Available agents:"
	cfg.IncludeAgentCapabilities = true
	cfg.IncludeSkillExamples = true
	e := New(cfg, &stubChatClient{}, stubCatalog{}, nil, nil, nil)

	cards := []contracts.AgentCard{
		{Name: "music", Description: "plays music", Streaming: true, SkillExamples: []string{"play jazz"}},
	}

	prompt := e.renderUserPrompt("play some jazz", cards)
	assert.Contains(t, prompt, "Available agents:")
	assert.Contains(t, prompt, "[streaming]")
	assert.Contains(t, prompt, "(examples: play jazz)")
}

func TestRenderUserPromptOmitsCapabilitiesAndExamplesWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.IncludeAgentCapabilities = false
	cfg.IncludeSkillExamples = false
	e := New(cfg, &stubChatClient{}, stubCatalog{}, nil, nil, nil)

	cards := []contracts.AgentCard{
		{Name: "music", Description: "plays music", Streaming: true, SkillExamples: []string{"play jazz"}},
	}

	prompt := e.renderUserPrompt("play some jazz", cards)
	assert.NotContains(t, prompt, "[streaming]")
	assert.NotContains(t, prompt, "examples:")
}
