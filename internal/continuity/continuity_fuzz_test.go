//go:build go1.18

package continuity

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/dantiel/aethercodex/internal/adapters/state"
	"github.com/dantiel/aethercodex/internal/core"
)

// FuzzDigestBounds verifies the digest never exceeds the total cap and
// never leaks the current or a future step, however much is stored.
func FuzzDigestBounds(f *testing.F) {
	f.Add(3, 2, "short")
	f.Add(10, 11, strings.Repeat("x", 2000))
	f.Add(1, 0, "")
	f.Add(5, -4, "negative upto")

	f.Fuzz(func(t *testing.T, stored int, uptoStep int, payload string) {
		store := state.NewMemoryTaskStore()
		svc := New(store)
		ctx := context.Background()

		task, err := store.Create(ctx, core.CreateTaskParams{Title: "fuzz", Variant: core.VariantFull})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		if stored < 0 {
			stored = -stored
		}
		stored %= 32
		// Keep the leak check below unambiguous: entry markers must only
		// come from the digest itself, never from stored payloads.
		payload = strings.ReplaceAll(payload, "Step", "")
		for step := 1; step <= stored; step++ {
			if err := svc.Store(ctx, task.ID, step, payload); err != nil {
				t.Fatalf("Store() error = %v", err)
			}
		}

		got, err := svc.Digest(ctx, task.ID, uptoStep)
		if err != nil {
			t.Fatalf("Digest() error = %v", err)
		}
		if n := len([]rune(got)); n > TotalLimit {
			t.Fatalf("digest length %d exceeds %d", n, TotalLimit)
		}
		if got == "" {
			t.Fatal("digest must never be empty; sentinel expected")
		}
		for step := uptoStep; step <= stored; step++ {
			marker := "Step " + strconv.Itoa(step) + ":"
			if strings.Contains(got, marker) {
				t.Fatalf("digest leaks step %d at uptoStep %d", step, uptoStep)
			}
		}
	})
}
