// Package eventbus implements the ObserverBus contract: a composite fan-out
// of pipeline lifecycle events to registered observers (for tracing/logging),
// plus a bounded, non-blocking LiveActivityChannel that bridges the same
// events to a streaming consumer without ever backpressuring the request
// path.
package eventbus

import (
	"context"

	"github.com/kandev/orchestrator/pkg/contracts"
)

// Observer receives pipeline lifecycle events. Implementations must return
// quickly; long-running work should be handed off to a goroutine by the
// observer itself. An observer's error is logged and swallowed — it never
// fails the pipeline.
type Observer interface {
	OnRequestStarted(ctx context.Context, userRequest string, history []contracts.SessionTurn) error
	OnRoutingCompleted(ctx context.Context, choice contracts.AgentChoice, systemPrompt string) error
	OnAgentExecutionCompleted(ctx context.Context, response contracts.AgentResponse) error
	OnResponseAggregated(ctx context.Context, finalText string) error
}

// ActivityEvent is one entry pushed onto the LiveActivityChannel: a single
// named occurrence with whatever payload that occurrence carries. Kept as a
// loosely typed envelope (rather than one channel per event kind) since
// streaming consumers want one ordered feed, not four.
type ActivityEvent struct {
	Kind string
	Data interface{}
}

const (
	KindRequestStarted      = "request_started"
	KindRoutingCompleted    = "routing_completed"
	KindAgentExecutionDone  = "agent_execution_completed"
	KindResponseAggregated  = "response_aggregated"
)

// Bus is the ObserverBus: a composite of registered Observers plus the
// bounded LiveActivityChannel side channel.
type Bus interface {
	Observer

	// Register adds an observer to the fan-out list. It may be called
	// concurrently with event dispatch; an observer registered mid-event
	// starts receiving events from the next dispatch on.
	Register(o Observer)

	// Activity returns the receive side of the LiveActivityChannel so a
	// streaming consumer can drain it. Closed when Close is called.
	Activity() <-chan ActivityEvent

	// Close releases the LiveActivityChannel and any backend connection.
	Close() error
}
