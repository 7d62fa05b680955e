// Package workflow wires the Router, Dispatch, and Aggregator stages into a
// single typed pipeline (WorkflowRuntime). It is a generalization of the
// teacher's step/trigger workflow engine: the same shape of "a registry of
// stage implementations plus one Run entry point" is kept, but the dynamic
// map[string]any action dispatch is replaced with three fixed, typed stages
// since this runtime's topology (Router → Dispatch → Aggregator) never
// varies at runtime.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kandev/orchestrator/pkg/contracts"
)

// Router produces a routing decision for one request.
type Router interface {
	Route(ctx context.Context, userMessage string) (contracts.AgentChoice, error)
}

// Dispatcher fans a routing decision out to one or more agents, keyed by the
// caller's session id so per-(session,agent) state (threads, remote context)
// never collapses across unrelated sessions.
type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID string, choice contracts.AgentChoice, userMessage string) ([]contracts.AgentResponse, error)
}

// Aggregator folds agent responses into one final result.
type Aggregator interface {
	Aggregate(ctx context.Context, responses []contracts.AgentResponse) (contracts.OrchestratorResult, error)
}

// Input is the single typed value threaded through the pipeline.
type Input struct {
	RunID       string
	SessionID   string
	UserMessage string
}

// tracerName identifies this package's spans in the configured otel
// TracerProvider; the provider itself is wired by the surrounding process.
const tracerName = "github.com/kandev/orchestrator/internal/workflow"

// Runtime runs the Router → Dispatch → Aggregator pipeline to completion for
// one request and reports a span covering the whole run.
type Runtime struct {
	router     Router
	dispatcher Dispatcher
	aggregator Aggregator
	tracer     trace.Tracer

	seenRuns map[string]contracts.OrchestratorResult
}

// New constructs a Runtime from its three stage implementations.
func New(router Router, dispatcher Dispatcher, aggregator Aggregator) *Runtime {
	return &Runtime{
		router:     router,
		dispatcher: dispatcher,
		aggregator: aggregator,
		tracer:     otel.Tracer(tracerName),
		seenRuns:   make(map[string]contracts.OrchestratorResult),
	}
}

// Run executes one pipeline pass for in.UserMessage. When in.RunID has
// already been run to completion by this Runtime instance (e.g. a caller
// retry after a transient transport error on the *response*, not the
// pipeline itself), the cached result is returned instead of re-invoking
// agents a second time — dispatch has side effects and must not repeat.
func (r *Runtime) Run(ctx context.Context, in Input) (contracts.OrchestratorResult, error) {
	if in.RunID != "" {
		if cached, ok := r.seenRuns[in.RunID]; ok {
			return cached, nil
		}
	}

	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(
			attribute.String("workflow.name", "router-dispatch-aggregator"),
			attribute.String("workflow.start.executor", "router"),
		),
	)
	defer span.End()

	result, err := r.run(ctx, in)

	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.Int64("execution.time.ms", elapsed.Milliseconds()),
		attribute.Int("output.length", len(result.Text)),
	)
	if err != nil {
		span.SetAttributes(
			attribute.Bool("success", false),
			attribute.String("error.message", err.Error()),
		)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Bool("success", true))
		span.SetStatus(codes.Ok, "")
	}

	if in.RunID != "" && err == nil {
		r.seenRuns[in.RunID] = result
	}
	return result, err
}

func (r *Runtime) run(ctx context.Context, in Input) (contracts.OrchestratorResult, error) {
	var errs []string

	choice, err := r.router.Route(ctx, in.UserMessage)
	if err != nil {
		errs = append(errs, fmt.Sprintf("router: %v", err))
		return r.errorOutput(errs)
	}

	responses, err := r.dispatcher.Dispatch(ctx, in.SessionID, choice, in.UserMessage)
	if err != nil {
		errs = append(errs, fmt.Sprintf("dispatch: %v", err))
		return r.errorOutput(errs)
	}

	result, err := r.aggregator.Aggregate(ctx, responses)
	if err != nil {
		errs = append(errs, fmt.Sprintf("aggregate: %v", err))
		return r.errorOutput(errs)
	}

	return result, nil
}

// errorOutput synthesizes an OrchestratorResult from accumulated stage
// errors when the pipeline produced no output at all, per the WorkflowRuntime
// contract: an error event with no output collapses into a joined-message
// result rather than propagating as a Go error to the caller.
func (r *Runtime) errorOutput(errs []string) (contracts.OrchestratorResult, error) {
	return contracts.OrchestratorResult{Text: strings.Join(errs, "; ")}, nil
}
