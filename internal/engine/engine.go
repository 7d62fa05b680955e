// Package engine implements the Engine entry point: the end-to-end
// orchestration of one user request through session/task bookkeeping, the
// workflow pipeline, and result persistence.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kandev/orchestrator/internal/catalog"
	"github.com/kandev/orchestrator/internal/eventbus"
	"github.com/kandev/orchestrator/internal/logging"
	"github.com/kandev/orchestrator/internal/session"
	"github.com/kandev/orchestrator/internal/taskstore"
	"github.com/kandev/orchestrator/internal/workflow"
	"github.com/kandev/orchestrator/pkg/contracts"
)

const cannedNoAgentsMessage = "I don't have any agents available to help with that right now."
const cannedApologyMessage = "Sorry, something went wrong while handling that request."

// Request is the Engine's inbound request envelope.
type Request struct {
	UserRequest string
	TaskID      string
	SessionID   string
}

// Engine orchestrates one request end-to-end.
type Engine struct {
	sessions *session.Cache
	tasks    taskstore.Manager
	catalog  *catalog.Registry
	workflow *workflow.Runtime
	bus      eventbus.Bus
	logger   *logging.Logger
}

// New constructs an Engine from its wired dependencies.
func New(sessions *session.Cache, tasks taskstore.Manager, reg *catalog.Registry, wf *workflow.Runtime, bus eventbus.Bus, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Default()
	}
	return &Engine{
		sessions: sessions,
		tasks:    tasks,
		catalog:  reg,
		workflow: wf,
		bus:      bus,
		logger:   log.WithFields(zap.String("component", "engine")),
	}
}

// ProcessRequest never panics or returns a Go error to its caller; every
// failure path resolves to a canned OrchestratorResult, per the Engine's
// error-boundary contract.
func (e *Engine) ProcessRequest(ctx context.Context, req Request) (result contracts.OrchestratorResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine panic recovered", zap.Any("recover", r), zap.String("task_id", req.TaskID))
			e.bestEffortFail(context.Background(), req.TaskID)
			result = contracts.OrchestratorResult{Text: cannedApologyMessage}
		}
	}()

	if strings.TrimSpace(req.UserRequest) == "" {
		return contracts.OrchestratorResult{Text: cannedApologyMessage}
	}

	sessionData, _ := e.sessions.Get(ctx, req.SessionID)

	task, err := e.tasks.CreateTask(ctx, req.SessionID, req.TaskID)
	if err != nil {
		e.logger.WithError(err).Error("failed to load or create task")
		return contracts.OrchestratorResult{Text: cannedApologyMessage}
	}

	userMsg := contracts.AgentMessage{
		MessageID: uuid.New().String(),
		TaskID:    task.ID,
		ContextID: req.SessionID,
		Role:      contracts.RoleUser,
		Parts:     []contracts.MessagePart{{Text: req.UserRequest}},
		CreatedAt: time.Now().UTC(),
	}
	if err := e.tasks.UpdateStatus(ctx, task.ID, contracts.TaskStateWorking, &userMsg, false); err != nil {
		e.logger.WithError(err).Error("failed to append user message")
		return contracts.OrchestratorResult{Text: cannedApologyMessage}
	}

	cards, err := e.catalog.ListAgents(ctx)
	if err != nil || len(cards) == 0 {
		e.finalize(ctx, task.ID, contracts.TaskStateFailed, cannedNoAgentsMessage)
		return contracts.OrchestratorResult{Text: cannedNoAgentsMessage}
	}

	historyAwareRequest := composeHistoryAwareRequest(sessionData, req.UserRequest)

	if e.bus != nil {
		_ = e.bus.OnRequestStarted(ctx, req.UserRequest, sessionData.History)
	}

	runResult, err := e.workflow.Run(ctx, workflow.Input{
		RunID:       task.ID + ":" + userMsg.MessageID,
		SessionID:   req.SessionID,
		UserMessage: historyAwareRequest,
	})
	if err != nil {
		e.finalize(ctx, task.ID, contracts.TaskStateFailed, cannedApologyMessage)
		return contracts.OrchestratorResult{Text: cannedApologyMessage}
	}

	assistantMsg := contracts.AgentMessage{
		TaskID:    task.ID,
		ContextID: req.SessionID,
		Role:      contracts.RoleAgent,
		Parts:     []contracts.MessagePart{{Text: runResult.Text}},
		CreatedAt: time.Now().UTC(),
	}
	finalState := contracts.TaskStateCompleted
	if runResult.NeedsInput {
		finalState = contracts.TaskStateInputRequired
	}
	if err := e.tasks.UpdateStatus(ctx, task.ID, finalState, &assistantMsg, !runResult.NeedsInput); err != nil {
		e.logger.WithError(err).Error("failed to append assistant message")
	}

	e.sessions.Save(ctx, req.SessionID,
		contracts.SessionTurn{Role: contracts.RoleUser, Content: req.UserRequest, Timestamp: userMsg.CreatedAt},
		contracts.SessionTurn{Role: contracts.RoleAgent, Content: runResult.Text, Timestamp: assistantMsg.CreatedAt},
	)

	return contracts.OrchestratorResult{Text: runResult.Text, NeedsInput: runResult.NeedsInput}
}

func (e *Engine) finalize(ctx context.Context, taskID string, state contracts.TaskState, message string) {
	msg := contracts.AgentMessage{
		TaskID:    taskID,
		Role:      contracts.RoleAgent,
		Parts:     []contracts.MessagePart{{Text: message}},
		CreatedAt: time.Now().UTC(),
	}
	if err := e.tasks.UpdateStatus(ctx, taskID, state, &msg, true); err != nil {
		e.logger.WithError(err).Warn("failed to finalize task")
	}
}

func (e *Engine) bestEffortFail(ctx context.Context, taskID string) {
	if taskID == "" {
		return
	}
	task, ok, err := e.tasks.GetTask(ctx, taskID)
	if err != nil || !ok || task.State.IsTerminal() {
		return
	}
	e.finalize(ctx, taskID, contracts.TaskStateFailed, cannedApologyMessage)
}

func composeHistoryAwareRequest(data contracts.SessionData, currentRequest string) string {
	if len(data.History) == 0 {
		return currentRequest
	}
	var b strings.Builder
	for _, turn := range data.History {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}
	b.WriteString("user: ")
	b.WriteString(currentRequest)
	return b.String()
}
