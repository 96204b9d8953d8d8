package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"github.com/dantiel/aethercodex/internal/core"
)

// JSONTaskStore implements core.TaskStore with one JSON file per task.
// Writes go through an atomic rename so a crash mid-write never leaves a
// torn record behind.
type JSONTaskStore struct {
	dir string
	mu  sync.Mutex
}

// NewJSONTaskStore creates a store rooted at dir, creating it if needed.
func NewJSONTaskStore(dir string) (*JSONTaskStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating task directory: %w", err)
	}
	return &JSONTaskStore{dir: dir}, nil
}

func (s *JSONTaskStore) taskPath(id core.TaskID) string {
	return filepath.Join(s.dir, string(id)+".json")
}

// Create persists a new pending task.
func (s *JSONTaskStore) Create(_ context.Context, params core.CreateTaskParams) (*core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := core.NewTask(core.TaskID(uuid.NewString()), params.Title, params.Variant).
		WithPlan(params.Plan).
		WithDescription(params.Description).
		WithParent(params.ParentID)
	if err := task.Validate(); err != nil {
		return nil, err
	}
	if err := s.write(task); err != nil {
		return nil, err
	}
	return task, nil
}

// Get retrieves a task by id, nil when absent.
func (s *JSONTaskStore) Get(_ context.Context, id core.TaskID) (*core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

// Update loads, patches and atomically rewrites the task record.
func (s *JSONTaskStore) Update(_ context.Context, id core.TaskID, patch core.TaskPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.read(id)
	if err != nil {
		return err
	}
	if task == nil {
		return core.ErrTaskNotFound(id)
	}
	task.Apply(patch)
	return s.write(task)
}

// ListChildren returns tasks referencing parent, oldest first.
func (s *JSONTaskStore) ListChildren(ctx context.Context, parent core.TaskID) ([]*core.Task, error) {
	tasks, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var children []*core.Task
	for _, task := range tasks {
		if task.ParentID == parent {
			children = append(children, task)
		}
	}
	return children, nil
}

// List returns all tasks ordered by creation time, oldest first.
func (s *JSONTaskStore) List(_ context.Context) ([]*core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading task directory: %w", err)
	}

	var tasks []*core.Task
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		task, err := s.read(core.TaskID(strings.TrimSuffix(entry.Name(), ".json")))
		if err != nil {
			return nil, err
		}
		if task != nil {
			tasks = append(tasks, task)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (s *JSONTaskStore) read(id core.TaskID) (*core.Task, error) {
	data, err := os.ReadFile(s.taskPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading task %s: %w", id, err)
	}
	var task core.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("decoding task %s: %w", id, err)
	}
	if task.StepResults == nil {
		task.StepResults = make(map[int]string)
	}
	return &task, nil
}

func (s *JSONTaskStore) write(task *core.Task) error {
	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding task %s: %w", task.ID, err)
	}
	if err := renameio.WriteFile(s.taskPath(task.ID), data, 0o640); err != nil {
		return fmt.Errorf("writing task %s: %w", task.ID, err)
	}
	return nil
}
