package state

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dantiel/aethercodex/internal/core"
)

// MemoryTaskStore implements core.TaskStore in process memory.
// Used by tests and as a scratch backend; nothing survives a restart.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[core.TaskID]*core.Task
	order []core.TaskID
}

// NewMemoryTaskStore creates an empty in-memory store.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[core.TaskID]*core.Task)}
}

// Create persists a new pending task.
func (m *MemoryTaskStore) Create(_ context.Context, params core.CreateTaskParams) (*core.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task := core.NewTask(core.TaskID(uuid.NewString()), params.Title, params.Variant).
		WithPlan(params.Plan).
		WithDescription(params.Description).
		WithParent(params.ParentID)
	if err := task.Validate(); err != nil {
		return nil, err
	}
	m.tasks[task.ID] = task
	m.order = append(m.order, task.ID)
	return task.Clone(), nil
}

// Put inserts a fully-formed task, overwriting any existing record.
// Test seam for constructing specific states.
func (m *MemoryTaskStore) Put(task *core.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tasks[task.ID]; !exists {
		m.order = append(m.order, task.ID)
	}
	m.tasks[task.ID] = task.Clone()
}

// Get retrieves a task by id, nil when absent.
func (m *MemoryTaskStore) Get(_ context.Context, id core.TaskID) (*core.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	return task.Clone(), nil
}

// Update applies a partial update.
func (m *MemoryTaskStore) Update(_ context.Context, id core.TaskID, patch core.TaskPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return core.ErrTaskNotFound(id)
	}
	task.Apply(patch)
	return nil
}

// ListChildren returns tasks referencing parent, oldest first.
func (m *MemoryTaskStore) ListChildren(_ context.Context, parent core.TaskID) ([]*core.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var children []*core.Task
	for _, id := range m.order {
		if task := m.tasks[id]; task.ParentID == parent {
			children = append(children, task.Clone())
		}
	}
	return children, nil
}

// List returns all tasks, oldest first.
func (m *MemoryTaskStore) List(_ context.Context) ([]*core.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tasks := make([]*core.Task, 0, len(m.order))
	for _, id := range m.order {
		tasks = append(tasks, m.tasks[id].Clone())
	}
	return tasks, nil
}
