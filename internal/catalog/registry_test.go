package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/orchestrator/pkg/contracts"
)

func TestRegisterAndGet(t *testing.T) {
	r := New(nil)

	err := r.Register(contracts.AgentCard{Name: "Weather", Description: "gives weather"})
	require.NoError(t, err)

	card, ok := r.Get("weather")
	require.True(t, ok)
	assert.Equal(t, "Weather", card.Name)
}

func TestRegisterRejectsReservedName(t *testing.T) {
	r := New(nil)
	err := r.Register(contracts.AgentCard{Name: "orchestrator"})
	assert.Error(t, err)
}

func TestRegisterRejectsEmptyName(t *testing.T) {
	r := New(nil)
	err := r.Register(contracts.AgentCard{Name: ""})
	assert.Error(t, err)
}

func TestListAgentsExcludesOrchestratorAndSorts(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(contracts.AgentCard{Name: "Zebra"}))
	require.NoError(t, r.Register(contracts.AgentCard{Name: "apple"}))

	cards, err := r.ListAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "apple", cards[0].Name)
	assert.Equal(t, "Zebra", cards[1].Name)
}

func TestNamesSortedAndLowercased(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(contracts.AgentCard{Name: "Beta"}))
	require.NoError(t, r.Register(contracts.AgentCard{Name: "Alpha"}))

	assert.Equal(t, []string{"alpha", "beta"}, r.Names())
}

func TestLoadDefaults(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.LoadDefaults())

	_, ok := r.Get("general-assistant")
	assert.True(t, ok)
	_, ok = r.Get("clarification")
	assert.True(t, ok)
}

func TestUnregister(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(contracts.AgentCard{Name: "Weather"}))
	r.Unregister("Weather")

	_, ok := r.Get("weather")
	assert.False(t, ok)
}
