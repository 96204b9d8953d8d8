package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dantiel/aethercodex/internal/core"
)

var statusSet string

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show a task's state, or reset its status with --set",
	Long: `Show a task's status, step pointer, stored step results and log.
With --set, reset the status instead; this is the escape hatch that
makes a halted task runnable again (e.g. --set pending).`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusSet, "set", "",
		"set the task status (pending, active, paused, failed, completed, cancelled, invalid)")
}

func runStatus(cobraCmd *cobra.Command, args []string) error {
	app, cleanup, err := buildApp()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cobraCmd.Context()
	id := core.TaskID(args[0])
	task, err := app.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if task == nil {
		return core.ErrTaskNotFound(id)
	}

	if statusSet != "" {
		status := core.TaskStatus(statusSet)
		if !core.ValidTaskStatus(status) {
			return core.ErrValidation(core.CodeInvalidStatus,
				fmt.Sprintf("unknown task status: %s", statusSet))
		}
		if err := app.store.Update(ctx, id, core.TaskPatch{Status: &status}); err != nil {
			return err
		}
		fmt.Printf("task %s status set to %s\n", id, status)
		return nil
	}

	fmt.Printf("id:       %s\n", task.ID)
	fmt.Printf("title:    %s\n", task.Title)
	fmt.Printf("status:   %s\n", task.Status)
	fmt.Printf("variant:  %s\n", task.Variant)
	fmt.Printf("step:     %d of %d\n", task.CurrentStep, task.PhaseCount())
	if task.ParentID != "" {
		fmt.Printf("parent:   %s\n", task.ParentID)
	}

	if len(task.StepResults) > 0 {
		steps := make([]int, 0, len(task.StepResults))
		for step := range task.StepResults {
			steps = append(steps, step)
		}
		sort.Ints(steps)
		fmt.Println("results:")
		for _, step := range steps {
			fmt.Printf("  %d: %s\n", step, task.StepResults[step])
		}
	}
	if len(task.Log) > 0 {
		fmt.Println("log:")
		for _, line := range task.Log {
			fmt.Printf("  %s\n", line)
		}
	}
	return nil
}
