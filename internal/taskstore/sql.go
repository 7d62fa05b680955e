package taskstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	// Driver registrations: sqlite3 for the embedded/local deployment mode,
	// pgx's stdlib wrapper for the postgres mode. Both are imported for
	// side effect only; SQLManager talks to either through database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kandev/orchestrator/pkg/contracts"
	"github.com/kandev/orchestrator/pkg/protocol"
)

// Dialect distinguishes the two supported SQL backends' schema/placeholder
// conventions.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLManager is a durable TaskManager backed by SQLite or Postgres. Each
// task's message history is stored as a JSON-serialized array alongside the
// task row, following the same Store/serialize-to-column shape as the
// teacher's SQLite execution-log store, generalized from an append-only log
// table to a single row per task (simpler given this core's
// smaller per-task message volume).
type SQLManager struct {
	db      *sqlx.DB
	dialect Dialect
}

// OpenSQLite opens (and migrates) a SQLite-backed SQLManager at path.
func OpenSQLite(path string) (*SQLManager, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite task store: %w", err)
	}
	m := &SQLManager{db: db, dialect: DialectSQLite}
	if err := m.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

// OpenPostgres opens (and migrates) a Postgres-backed SQLManager using dsn.
func OpenPostgres(dsn string) (*SQLManager, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres task store: %w", err)
	}
	m := &SQLManager{db: db, dialect: DialectPostgres}
	if err := m.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

func (m *SQLManager) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS orchestrator_tasks (
	id TEXT PRIMARY KEY,
	context_id TEXT NOT NULL,
	state TEXT NOT NULL,
	history TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`
	_, err := m.db.Exec(schema)
	return err
}

type taskRow struct {
	ID        string    `db:"id"`
	ContextID string    `db:"context_id"`
	State     string    `db:"state"`
	History   string    `db:"history"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (m *SQLManager) rebind(query string) string {
	return m.db.Rebind(query)
}

func (r taskRow) toTask() (contracts.AgentTask, error) {
	var history []contracts.AgentMessage
	if r.History != "" {
		if err := json.Unmarshal([]byte(r.History), &history); err != nil {
			return contracts.AgentTask{}, fmt.Errorf("decode task history: %w", err)
		}
	}
	return contracts.AgentTask{
		ID:        r.ID,
		ContextID: r.ContextID,
		State:     contracts.TaskState(r.State),
		History:   history,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func (m *SQLManager) CreateTask(ctx context.Context, sessionID, taskID string) (contracts.AgentTask, error) {
	if existing, ok, err := m.GetTask(ctx, taskID); err != nil {
		return contracts.AgentTask{}, err
	} else if ok {
		return existing, nil
	}

	if taskID == "" {
		taskID = uuid.New().String()
	}
	now := time.Now().UTC()
	task := contracts.AgentTask{
		ID:        taskID,
		ContextID: sessionID,
		State:     contracts.TaskStateWorking,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := m.db.ExecContext(ctx, m.rebind(`
		INSERT INTO orchestrator_tasks (id, context_id, state, history, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), task.ID, task.ContextID, string(task.State), "[]", task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return contracts.AgentTask{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

func (m *SQLManager) GetTask(ctx context.Context, taskID string) (contracts.AgentTask, bool, error) {
	var row taskRow
	err := m.db.GetContext(ctx, &row, m.rebind(`
		SELECT id, context_id, state, history, created_at, updated_at
		FROM orchestrator_tasks WHERE id = ?
	`), taskID)
	if err == sql.ErrNoRows {
		return contracts.AgentTask{}, false, nil
	}
	if err != nil {
		return contracts.AgentTask{}, false, fmt.Errorf("get task: %w", err)
	}
	task, err := row.toTask()
	if err != nil {
		return contracts.AgentTask{}, false, err
	}
	return task, true, nil
}

func (m *SQLManager) UpdateStatus(ctx context.Context, taskID string, state contracts.TaskState, message *contracts.AgentMessage, final bool) error {
	task, ok, err := m.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("task %q not found", taskID)
	}
	if err := validateTransition(task.State, state); err != nil {
		return err
	}

	if message != nil {
		task.History = append(task.History, *message)
	}
	historyJSON, err := json.Marshal(task.History)
	if err != nil {
		return fmt.Errorf("encode task history: %w", err)
	}

	_, err = m.db.ExecContext(ctx, m.rebind(`
		UPDATE orchestrator_tasks SET state = ?, history = ?, updated_at = ? WHERE id = ?
	`), string(state), string(historyJSON), time.Now().UTC(), taskID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

func (m *SQLManager) SendMessage(ctx context.Context, params protocol.SendMessageParams) (protocol.SendMessageResult, error) {
	task, ok, err := m.GetTask(ctx, params.TaskID)
	if err != nil {
		return protocol.SendMessageResult{}, err
	}
	if !ok {
		created, err := m.CreateTask(ctx, params.ContextID, params.TaskID)
		if err != nil {
			return protocol.SendMessageResult{}, err
		}
		task = created
	}

	msg := contracts.AgentMessage{
		MessageID: uuid.New().String(),
		Role:      contracts.RoleUser,
		TaskID:    task.ID,
		ContextID: params.ContextID,
		Parts:     []contracts.MessagePart{{Text: params.Text}},
		CreatedAt: time.Now().UTC(),
	}
	if err := m.UpdateStatus(ctx, task.ID, contracts.TaskStateWorking, &msg, false); err != nil {
		return protocol.SendMessageResult{}, err
	}

	updated, _, err := m.GetTask(ctx, task.ID)
	if err != nil {
		return protocol.SendMessageResult{}, err
	}
	return protocol.SendMessageResult{Kind: protocol.ResultKindTask, Task: &updated}, nil
}

func (m *SQLManager) Close() error {
	return m.db.Close()
}
