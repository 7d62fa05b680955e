package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/orchestrator/pkg/contracts"
)

type recordingObserver struct {
	requestsStarted int
	lastErr         error
}

func (o *recordingObserver) OnRequestStarted(_ context.Context, _ string, _ []contracts.SessionTurn) error {
	o.requestsStarted++
	return o.lastErr
}
func (o *recordingObserver) OnRoutingCompleted(_ context.Context, _ contracts.AgentChoice, _ string) error {
	return nil
}
func (o *recordingObserver) OnAgentExecutionCompleted(_ context.Context, _ contracts.AgentResponse) error {
	return nil
}
func (o *recordingObserver) OnResponseAggregated(_ context.Context, _ string) error { return nil }

func TestRegisterAndFanOut(t *testing.T) {
	bus := New(nil, 10)
	defer bus.Close()

	obs := &recordingObserver{}
	bus.Register(obs)

	err := bus.OnRequestStarted(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, obs.requestsStarted)
}

func TestObserverErrorIsSwallowed(t *testing.T) {
	bus := New(nil, 10)
	defer bus.Close()

	obs := &recordingObserver{lastErr: errors.New("boom")}
	bus.Register(obs)

	err := bus.OnRequestStarted(context.Background(), "hello", nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, obs.requestsStarted)
}

func TestActivityChannelReceivesEvents(t *testing.T) {
	bus := New(nil, 10)
	defer bus.Close()

	_ = bus.OnRequestStarted(context.Background(), "hello", nil)

	select {
	case ev := <-bus.Activity():
		assert.Equal(t, KindRequestStarted, ev.Kind)
	default:
		t.Fatal("expected an activity event")
	}
}

func TestActivityChannelDropsOldestWhenFull(t *testing.T) {
	bus := New(nil, 2)
	defer bus.Close()

	for i := 0; i < 5; i++ {
		_ = bus.OnRequestStarted(context.Background(), "hello", nil)
	}

	count := 0
	for {
		select {
		case <-bus.Activity():
			count++
		default:
			assert.LessOrEqual(t, count, 2)
			return
		}
	}
}
