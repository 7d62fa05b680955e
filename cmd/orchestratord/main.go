// Command orchestratord wires and runs the multi-agent orchestration core as
// a standalone process: load configuration, construct every stateful
// component via its Provide constructor, and serve requests through the
// Engine until signaled to stop.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kandev/orchestrator/internal/aggregate"
	"github.com/kandev/orchestrator/internal/catalog"
	"github.com/kandev/orchestrator/internal/config"
	"github.com/kandev/orchestrator/internal/dispatch"
	"github.com/kandev/orchestrator/internal/engine"
	"github.com/kandev/orchestrator/internal/eventbus"
	"github.com/kandev/orchestrator/internal/logging"
	"github.com/kandev/orchestrator/internal/router"
	"github.com/kandev/orchestrator/internal/routingcache"
	"github.com/kandev/orchestrator/internal/session"
	"github.com/kandev/orchestrator/internal/taskstore"
	"github.com/kandev/orchestrator/internal/telemetry"
	"github.com/kandev/orchestrator/internal/workflow"
)

// unconfiguredChatClient is a placeholder ChatClient: the concrete LLM
// provider adapter is an external collaborator (out of scope for this
// core) and must be supplied by the surrounding process before production
// use. Left wired so the binary starts and the router exercises its
// fallback path end-to-end.
type unconfiguredChatClient struct{}

func (unconfiguredChatClient) Complete(_ context.Context, _, _ string, _ float64, _ int) (string, error) {
	return "", errors.New("no chat client configured")
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	logging.SetDefault(log)

	shutdownTracing, err := telemetry.Init(context.Background())
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if cerr := shutdownTracing(context.Background()); cerr != nil {
			log.WithError(cerr).Warn("tracing shutdown returned error")
		}
	}()

	var cleanups []func() error
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			if cerr := cleanups[i](); cerr != nil {
				log.WithError(cerr).Warn("cleanup returned error")
			}
		}
	}()

	reg, cleanup, err := catalog.Provide(log)
	if err != nil {
		return fmt.Errorf("provide catalog: %w", err)
	}
	cleanups = append(cleanups, cleanup)

	bus, cleanup, err := eventbus.Provide(cfg.EventBus, log)
	if err != nil {
		return fmt.Errorf("provide event bus: %w", err)
	}
	cleanups = append(cleanups, cleanup)

	cache, cleanup, err := routingcache.Provide(cfg.RoutingCache)
	if err != nil {
		return fmt.Errorf("provide routing cache: %w", err)
	}
	cleanups = append(cleanups, cleanup)
	if !cfg.RoutingCache.Enabled {
		cache = nil
	}

	sessions, cleanup, err := session.Provide(cfg.SessionCache)
	if err != nil {
		return fmt.Errorf("provide session cache: %w", err)
	}
	cleanups = append(cleanups, cleanup)

	tasks, cleanup, err := taskstore.Provide(cfg.TaskStore)
	if err != nil {
		return fmt.Errorf("provide task store: %w", err)
	}
	cleanups = append(cleanups, cleanup)

	routerExec, cleanup, err := router.Provide(cfg.Router, unconfiguredChatClient{}, reg, cache, bus, log)
	if err != nil {
		return fmt.Errorf("provide router: %w", err)
	}
	cleanups = append(cleanups, cleanup)

	invokers := buildInvokers(reg, cfg.Invoker)
	dispatchExec, cleanup, err := dispatch.Provide(invokers, bus, log)
	if err != nil {
		return fmt.Errorf("provide dispatcher: %w", err)
	}
	cleanups = append(cleanups, cleanup)

	aggregateExec, cleanup, err := aggregate.Provide(cfg.Aggregator, bus)
	if err != nil {
		return fmt.Errorf("provide aggregator: %w", err)
	}
	cleanups = append(cleanups, cleanup)

	wf := workflow.New(routerExec, dispatchExec, aggregateExec)

	eng, cleanup, err := engine.Provide(sessions, tasks, reg, wf, bus, log)
	if err != nil {
		return fmt.Errorf("provide engine: %w", err)
	}
	cleanups = append(cleanups, cleanup)

	log.Info("orchestrator core started")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("orchestrator core shutting down")
	_ = eng
	return nil
}

// buildInvokers constructs a dispatch.Invoker for every registered remote
// agent card. Local in-process agents require a concrete LocalAgent
// implementation supplied by the surrounding process; none ship with this
// core, so only remote cards are wired here by default. The remote-agent
// wire transport itself (HTTP, gRPC, ...) is out of scope for this core
// (spec Non-goals) and is supplied by the surrounding process, so
// RemoteInvoker.Tasks is left for that process to set.
func buildInvokers(reg *catalog.Registry, cfg config.InvokerConfig) map[string]dispatch.Invoker {
	invokers := make(map[string]dispatch.Invoker)
	cards, err := reg.ListAgents(context.Background())
	if err != nil {
		return invokers
	}
	for _, card := range cards {
		if !card.IsRemote() {
			continue
		}
		invokers[strings.ToLower(card.Name)] = &dispatch.RemoteInvoker{
			Card:    card,
			Tasks:   nil, // a concrete RemoteTaskManager transport is supplied by the surrounding process
			Timeout: cfg.Timeout(),
		}
	}
	return invokers
}
