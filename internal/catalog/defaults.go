package catalog

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kandev/orchestrator/pkg/contracts"
)

//go:embed defaults.yaml
var defaultsFS embed.FS

type defaultAgentCard struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	URL           string   `yaml:"url"`
	Streaming     bool     `yaml:"streaming"`
	Push          bool     `yaml:"push"`
	StateHistory  bool     `yaml:"state_history"`
	SkillExamples []string `yaml:"skill_examples"`
}

type defaultsFile struct {
	Agents []defaultAgentCard `yaml:"agents"`
}

// DefaultAgents returns the bundled fallback catalog (general-assistant plus
// the clarification pseudo-agent), loaded from an embedded YAML file the way
// the teacher bundles default agent definitions via go:embed.
func DefaultAgents() ([]contracts.AgentCard, error) {
	data, err := defaultsFS.ReadFile("defaults.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded defaults: %w", err)
	}
	var parsed defaultsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedded defaults: %w", err)
	}
	out := make([]contracts.AgentCard, 0, len(parsed.Agents))
	for _, a := range parsed.Agents {
		out = append(out, contracts.AgentCard{
			Name:          a.Name,
			Description:   a.Description,
			URL:           a.URL,
			Streaming:     a.Streaming,
			Push:          a.Push,
			StateHistory:  a.StateHistory,
			SkillExamples: a.SkillExamples,
		})
	}
	return out, nil
}

// LoadDefaults registers the bundled default catalog into r.
func (r *Registry) LoadDefaults() error {
	defaults, err := DefaultAgents()
	if err != nil {
		return err
	}
	for _, card := range defaults {
		if err := r.Register(card); err != nil {
			return err
		}
	}
	return nil
}
