package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAgentCardIsRemote(t *testing.T) {
	assert.True(t, AgentCard{URL: "https://agents.example/weather"}.IsRemote())
	assert.False(t, AgentCard{}.IsRemote())
}

func TestTaskStateIsTerminal(t *testing.T) {
	assert.True(t, TaskStateCompleted.IsTerminal())
	assert.True(t, TaskStateFailed.IsTerminal())
	assert.True(t, TaskStateCanceled.IsTerminal())
	assert.False(t, TaskStateWorking.IsTerminal())
	assert.False(t, TaskStateInputRequired.IsTerminal())
}

func TestAgentMessageText(t *testing.T) {
	msg := AgentMessage{Parts: []MessagePart{{Text: "hello"}, {Text: "world"}}}
	assert.Equal(t, "hello world", msg.Text())
}

func TestAgentMessageTextEmpty(t *testing.T) {
	assert.Equal(t, "", AgentMessage{}.Text())
}

func TestRoutingCacheEntryExpired(t *testing.T) {
	now := time.Now()
	entry := RoutingCacheEntry{CreatedAt: now.Add(-time.Hour), TTL: time.Minute}
	assert.True(t, entry.Expired(now))

	fresh := RoutingCacheEntry{CreatedAt: now, TTL: time.Hour}
	assert.False(t, fresh.Expired(now))
}
