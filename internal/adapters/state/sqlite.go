package state

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dantiel/aethercodex/internal/core"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// SQLiteTaskStore implements core.TaskStore with SQLite storage.
// Partial updates hit only the touched columns and rows, honoring the
// store contract of no full-record rewrites.
type SQLiteTaskStore struct {
	dbPath string
	db     *sql.DB
	mu     sync.Mutex
}

// NewSQLiteTaskStore opens (creating if necessary) the database at dbPath.
func NewSQLiteTaskStore(dbPath string) (*SQLiteTaskStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	// WAL mode for better concurrency between readers and the single writer.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteTaskStore{dbPath: dbPath, db: db}
	if err := s.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteTaskStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteTaskStore) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		// Table doesn't exist yet, run initial migration
		version = 0
	}
	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}
	return nil
}

// Create persists a new pending task.
func (s *SQLiteTaskStore) Create(ctx context.Context, params core.CreateTaskParams) (*core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := core.NewTask(core.TaskID(uuid.NewString()), params.Title, params.Variant).
		WithPlan(params.Plan).
		WithDescription(params.Description).
		WithParent(params.ParentID)
	if err := task.Validate(); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, plan, description, status, variant, current_step, parent_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(task.ID), task.Title, task.Plan, task.Description,
		string(task.Status), string(task.Variant), task.CurrentStep,
		nullableID(task.ParentID), task.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting task: %w", err)
	}
	return task, nil
}

// Get retrieves a task by id, nil when absent.
func (s *SQLiteTaskStore) Get(ctx context.Context, id core.TaskID) (*core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx, id)
}

func (s *SQLiteTaskStore) get(ctx context.Context, id core.TaskID) (*core.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, plan, description, status, variant, current_step, parent_id, created_at
		FROM tasks WHERE id = ?`, string(id))

	task, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("loading task %s: %w", id, err)
	}

	if err := s.loadStepResults(ctx, task); err != nil {
		return nil, err
	}
	if err := s.loadLog(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *SQLiteTaskStore) loadStepResults(ctx context.Context, task *core.Task) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step, result FROM step_results WHERE task_id = ? ORDER BY step`, string(task.ID))
	if err != nil {
		return fmt.Errorf("loading step results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var step int
		var result string
		if err := rows.Scan(&step, &result); err != nil {
			return fmt.Errorf("scanning step result: %w", err)
		}
		task.StepResults[step] = result
	}
	return rows.Err()
}

func (s *SQLiteTaskStore) loadLog(ctx context.Context, task *core.Task) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message FROM task_log WHERE task_id = ? ORDER BY id`, string(task.ID))
	if err != nil {
		return fmt.Errorf("loading task log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return fmt.Errorf("scanning log entry: %w", err)
		}
		task.Log = append(task.Log, msg)
	}
	return rows.Err()
}

// Update applies a partial update touching only the affected columns.
func (s *SQLiteTaskStore) Update(ctx context.Context, id core.TaskID, patch core.TaskPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tasks WHERE id = ?)`, string(id)).Scan(&exists); err != nil {
		return fmt.Errorf("checking task: %w", err)
	}
	if !exists {
		return core.ErrTaskNotFound(id)
	}

	if patch.Status != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status = ? WHERE id = ?`, string(*patch.Status), string(id)); err != nil {
			return fmt.Errorf("updating status: %w", err)
		}
	}
	if patch.CurrentStep != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET current_step = ? WHERE id = ?`, *patch.CurrentStep, string(id)); err != nil {
			return fmt.Errorf("updating current step: %w", err)
		}
	}
	if patch.StepResult != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO step_results (task_id, step, result) VALUES (?, ?, ?)
			ON CONFLICT(task_id, step) DO UPDATE SET result = excluded.result`,
			string(id), patch.StepResult.Step, patch.StepResult.Text); err != nil {
			return fmt.Errorf("upserting step result: %w", err)
		}
	}
	if patch.LogAppend != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO task_log (task_id, message) VALUES (?, ?)`,
			string(id), patch.LogAppend); err != nil {
			return fmt.Errorf("appending log: %w", err)
		}
	}

	return tx.Commit()
}

// ListChildren returns tasks referencing parent, oldest first.
func (s *SQLiteTaskStore) ListChildren(ctx context.Context, parent core.TaskID) ([]*core.Task, error) {
	return s.list(ctx,
		`SELECT id FROM tasks WHERE parent_id = ? ORDER BY created_at, id`, string(parent))
}

// List returns all tasks, oldest first.
func (s *SQLiteTaskStore) List(ctx context.Context) ([]*core.Task, error) {
	return s.list(ctx, `SELECT id FROM tasks ORDER BY created_at, id`)
}

func (s *SQLiteTaskStore) list(ctx context.Context, query string, args ...interface{}) ([]*core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	var ids []core.TaskID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scanning task id: %w", err)
		}
		ids = append(ids, core.TaskID(id))
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	tasks := make([]*core.Task, 0, len(ids))
	for _, id := range ids {
		task, err := s.get(ctx, id)
		if err != nil {
			return nil, err
		}
		if task != nil {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*core.Task, error) {
	var (
		id, title, plan, description, status, variant, createdAt string
		currentStep                                              int
		parentID                                                 sql.NullString
	)
	if err := row.Scan(&id, &title, &plan, &description, &status, &variant,
		&currentStep, &parentID, &createdAt); err != nil {
		return nil, err
	}

	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	task := &core.Task{
		ID:          core.TaskID(id),
		Title:       title,
		Plan:        plan,
		Description: description,
		Status:      core.TaskStatus(status),
		Variant:     core.WorkflowVariant(variant),
		CurrentStep: currentStep,
		StepResults: make(map[int]string),
		CreatedAt:   created,
	}
	if parentID.Valid {
		task.ParentID = core.TaskID(parentID.String)
	}
	return task, nil
}

func nullableID(id core.TaskID) sql.NullString {
	if id == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(id), Valid: true}
}
