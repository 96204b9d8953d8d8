package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dantiel/aethercodex/internal/core"
)

var runCmd = &cobra.Command{
	Use:   "run <task-id>",
	Short: "Execute a task's phase loop",
	Long: `Execute the task's phases until it completes, halts, stops on a
retryable condition, or goes quiescent awaiting a control signal.
A retryable stop leaves the task re-runnable with the same command.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cobraCmd *cobra.Command, args []string) error {
	app, cleanup, err := buildApp()
	if err != nil {
		return err
	}
	defer cleanup()

	id := core.TaskID(args[0])
	runErr := app.engine.Run(cobraCmd.Context(), id)

	task, err := app.store.Get(cobraCmd.Context(), id)
	if err == nil && task != nil {
		fmt.Printf("task %s: %s, step %d of %d\n",
			task.ID, task.Status, task.CurrentStep, task.PhaseCount())
	}

	if runErr != nil {
		if core.IsRetryable(runErr) {
			fmt.Printf("stopped on a retryable condition, run again to retry: %v\n", runErr)
			return nil
		}
		return runErr
	}
	return nil
}
