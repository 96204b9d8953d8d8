package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dantiel/aethercodex/internal/core"
)

var (
	newPlan        string
	newDescription string
	newVariant     string
	newParent      string
)

var newCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "Create a task",
	Long: `Create a task with the given title. The workflow variant selects the
phase pipeline: full (10 phases), simple (3) or analysis (5).`,
	Args: cobra.ExactArgs(1),
	RunE: runNew,
}

func init() {
	rootCmd.AddCommand(newCmd)

	newCmd.Flags().StringVar(&newPlan, "plan", "", "plan text")
	newCmd.Flags().StringVar(&newDescription, "description", "", "description text")
	newCmd.Flags().StringVar(&newVariant, "variant", "simple",
		"workflow variant (full, simple, analysis)")
	newCmd.Flags().StringVar(&newParent, "parent", "",
		"parent task id, making this a child task")
}

func runNew(cobraCmd *cobra.Command, args []string) error {
	variant, err := core.ParseVariant(newVariant)
	if err != nil {
		return err
	}

	app, cleanup, err := buildApp()
	if err != nil {
		return err
	}
	defer cleanup()

	task, err := app.store.Create(cobraCmd.Context(), core.CreateTaskParams{
		Title:       args[0],
		Plan:        newPlan,
		Description: newDescription,
		Variant:     variant,
		ParentID:    core.TaskID(newParent),
	})
	if err != nil {
		return err
	}

	if err := app.sink.TaskCreated(cobraCmd.Context(), task); err != nil {
		app.logger.Warn("task created notification", "task_id", task.ID, "error", err)
	}

	fmt.Printf("created task %s (%s, %d phases)\n", task.ID, task.Variant, task.PhaseCount())
	return nil
}
