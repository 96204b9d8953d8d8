package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/dantiel/aethercodex/internal/adapters/oracle"
	"github.com/dantiel/aethercodex/internal/adapters/state"
	"github.com/dantiel/aethercodex/internal/config"
	"github.com/dantiel/aethercodex/internal/continuity"
	"github.com/dantiel/aethercodex/internal/core"
	"github.com/dantiel/aethercodex/internal/engine"
	"github.com/dantiel/aethercodex/internal/events"
	"github.com/dantiel/aethercodex/internal/logging"
	"github.com/dantiel/aethercodex/internal/tools"
)

// app bundles the wired components shared by the CLI commands.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	store  core.TaskStore
	sink   core.NotificationSink
	engine *engine.WorkflowEngine
}

// buildApp loads configuration and wires storage, oracle and engine.
// The returned cleanup closes the task store.
func buildApp() (*app, func(), error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})

	store, err := state.NewTaskStore(cfg.State.Backend, cfg.State.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening task store: %w", err)
	}
	cleanup := func() {
		if err := state.CloseTaskStore(store); err != nil {
			logger.Warn("closing task store", "error", err)
		}
	}

	sink := events.NewLogSink(logger)
	registry := tools.NewRegistry(cfg.Workspace.Root, store, sink)
	orc := oracle.New(oracle.Options{
		BaseURL: cfg.Oracle.BaseURL,
		APIKey:  cfg.Oracle.APIKey(),
		Model:   cfg.Oracle.Model,
	}, logger)

	executor := engine.NewStepExecutor(orc, continuity.New(store), registry.Tools(),
		engine.Deadlines{
			Normal:   cfg.Oracle.TimeoutNormal,
			Extended: cfg.Oracle.TimeoutExtended,
		}, logger)
	eng := engine.NewWorkflowEngine(store, executor, sink,
		logger, cfg.Engine.RecursionBudget)

	return &app{cfg: cfg, logger: logger, store: store, sink: sink, engine: eng}, cleanup, nil
}
