package eventbus

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kandev/orchestrator/internal/logging"
	"github.com/kandev/orchestrator/pkg/contracts"
)

// CompositeBus is the in-process ObserverBus implementation: a slice of
// registered Observers fanned out to in order, each isolated so one
// observer's error (or panic) cannot take down the pipeline or its
// siblings, plus a bounded DropOldest LiveActivityChannel.
type CompositeBus struct {
	mu        sync.RWMutex
	observers []Observer
	logger    *logging.Logger

	activity chan ActivityEvent
	closed   bool
	closeMu  sync.Mutex
}

// New creates a CompositeBus with a LiveActivityChannel of the given
// capacity. A capacity of 0 falls back to 100, matching the spec's default.
func New(log *logging.Logger, capacity int) *CompositeBus {
	if log == nil {
		log = logging.Default()
	}
	if capacity <= 0 {
		capacity = 100
	}
	return &CompositeBus{
		logger:   log.WithFields(zap.String("component", "eventbus")),
		activity: make(chan ActivityEvent, capacity),
	}
}

// Register adds an observer to the fan-out list.
func (b *CompositeBus) Register(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
}

func (b *CompositeBus) OnRequestStarted(ctx context.Context, userRequest string, history []contracts.SessionTurn) error {
	b.fanOut(func(o Observer) error { return o.OnRequestStarted(ctx, userRequest, history) }, "OnRequestStarted")
	b.push(ActivityEvent{Kind: KindRequestStarted, Data: userRequest})
	return nil
}

func (b *CompositeBus) OnRoutingCompleted(ctx context.Context, choice contracts.AgentChoice, systemPrompt string) error {
	b.fanOut(func(o Observer) error { return o.OnRoutingCompleted(ctx, choice, systemPrompt) }, "OnRoutingCompleted")
	b.push(ActivityEvent{Kind: KindRoutingCompleted, Data: choice})
	return nil
}

func (b *CompositeBus) OnAgentExecutionCompleted(ctx context.Context, response contracts.AgentResponse) error {
	b.fanOut(func(o Observer) error { return o.OnAgentExecutionCompleted(ctx, response) }, "OnAgentExecutionCompleted")
	b.push(ActivityEvent{Kind: KindAgentExecutionDone, Data: response})
	return nil
}

func (b *CompositeBus) OnResponseAggregated(ctx context.Context, finalText string) error {
	b.fanOut(func(o Observer) error { return o.OnResponseAggregated(ctx, finalText) }, "OnResponseAggregated")
	b.push(ActivityEvent{Kind: KindResponseAggregated, Data: finalText})
	return nil
}

// fanOut calls fn against every registered observer, isolating panics and
// errors so one misbehaving observer never affects its siblings or the
// caller. Errors are logged and swallowed, per the ObserverBus contract.
func (b *CompositeBus) fanOut(fn func(Observer) error, event string) {
	b.mu.RLock()
	observers := make([]Observer, len(b.observers))
	copy(observers, b.observers)
	b.mu.RUnlock()

	for _, o := range observers {
		b.callOne(o, fn, event)
	}
}

func (b *CompositeBus) callOne(o Observer, fn func(Observer) error, event string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("observer panicked", zap.String("event", event), zap.Any("recover", r))
		}
	}()
	if err := fn(o); err != nil {
		b.logger.Warn("observer returned error", zap.String("event", event), zap.Error(err))
	}
}

// push writes to the LiveActivityChannel without ever blocking the caller:
// when the channel is full, the oldest queued event is dropped to make room.
// Slow dashboards must not backpressure the request path.
func (b *CompositeBus) push(ev ActivityEvent) {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.activity <- ev:
		return
	default:
	}
	select {
	case <-b.activity:
	default:
	}
	select {
	case b.activity <- ev:
	default:
	}
}

// Activity returns the receive side of the LiveActivityChannel.
func (b *CompositeBus) Activity() <-chan ActivityEvent {
	return b.activity
}

// Close releases the LiveActivityChannel. Safe to call once.
func (b *CompositeBus) Close() error {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.activity)
	return nil
}
