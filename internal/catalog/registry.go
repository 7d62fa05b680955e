// Package catalog implements the AgentRegistry contract: a mutex-protected,
// case-insensitive store of AgentCard descriptors used by RouterExecutor and
// DispatchExecutor to enumerate and validate agents. The registry is owned by
// the surrounding process (spec treats AgentCard creation as an external
// collaborator's responsibility) — this package is the in-process
// implementation that process wires in.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kandev/orchestrator/internal/logging"
	"github.com/kandev/orchestrator/pkg/contracts"
)

// Registry is a concurrency-safe, case-insensitive AgentCard catalog.
type Registry struct {
	mu     sync.RWMutex
	cards  map[string]contracts.AgentCard // keyed by lowercased name
	logger *logging.Logger
}

// New creates an empty Registry.
func New(log *logging.Logger) *Registry {
	if log == nil {
		log = logging.Default()
	}
	return &Registry{
		cards:  make(map[string]contracts.AgentCard),
		logger: log.WithFields(zap.String("component", "catalog")),
	}
}

// Register adds or replaces a card. Names are matched case-insensitively;
// the name "orchestrator" is reserved (the Router excludes self-references by
// this exact name per spec §4.2.1) and is rejected here.
func (r *Registry) Register(card contracts.AgentCard) error {
	if card.Name == "" {
		return fmt.Errorf("agent card name is required")
	}
	key := strings.ToLower(card.Name)
	if key == "orchestrator" {
		return fmt.Errorf("agent name %q is reserved", card.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cards[key] = card
	r.logger.Info("registered agent card", zap.String("name", card.Name))
	return nil
}

// Unregister removes a card by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cards, strings.ToLower(name))
}

// Get returns the card for name (case-insensitive), if present.
func (r *Registry) Get(name string) (contracts.AgentCard, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	card, ok := r.cards[strings.ToLower(name)]
	return card, ok
}

// ListAgents returns the current catalog, excluding any self-referential
// "orchestrator" entry, sorted by name for deterministic enumeration within
// one Router call.
func (r *Registry) ListAgents(_ context.Context) ([]contracts.AgentCard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]contracts.AgentCard, 0, len(r.cards))
	for key, card := range r.cards {
		if key == "orchestrator" {
			continue
		}
		out = append(out, card)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// Names returns the sorted, lower-cased list of registered agent names, used
// to build a RoutingDecisionCache catalog signature.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.cards))
	for key := range r.cards {
		if key == "orchestrator" {
			continue
		}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
