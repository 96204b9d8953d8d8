package state

import (
	"fmt"

	"github.com/dantiel/aethercodex/internal/core"
)

// NewTaskStore creates a TaskStore for the given backend name.
// Supported backends: "sqlite", "json", "memory".
func NewTaskStore(backend, path string) (core.TaskStore, error) {
	switch backend {
	case "sqlite", "":
		return NewSQLiteTaskStore(path)
	case "json":
		return NewJSONTaskStore(path)
	case "memory":
		return NewMemoryTaskStore(), nil
	default:
		return nil, fmt.Errorf("unknown state backend: %q", backend)
	}
}

// Closeable is an optional interface for stores that need cleanup.
type Closeable interface {
	Close() error
}

// CloseTaskStore safely closes a TaskStore if it implements Closeable.
func CloseTaskStore(store core.TaskStore) error {
	if closeable, ok := store.(Closeable); ok {
		return closeable.Close()
	}
	return nil
}
