package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tOgg1/scriptdeck/internal/api"
	"github.com/tOgg1/scriptdeck/internal/engine"
	"github.com/tOgg1/scriptdeck/internal/view"
)

func newBatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run, stop, or delete several scripts at once",
		Long: "Apply one action to several scripts. Scripts are given as ids\n" +
			"(space or comma separated) or selected with --all and the list filters.",
	}
	cmd.AddCommand(
		newBatchOpCmd(a, engine.BatchRun, "Run the selected scripts"),
		newBatchOpCmd(a, engine.BatchStop, "Stop the selected scripts"),
		newBatchOpCmd(a, engine.BatchDelete, "Delete the selected scripts"),
	)
	return cmd
}

func newBatchOpCmd(a *app, op engine.BatchOp, short string) *cobra.Command {
	var (
		filters filterFlags
		all     bool
		yes     bool
	)
	cmd := &cobra.Command{
		Use:   string(op) + " [id...]",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(cmd, args)
			if err != nil {
				return err
			}
			if len(ids) > 0 && all {
				return usageError(cmd, "pass ids or --all, not both")
			}

			eng, err := a.loadedEngine(cmd.Context())
			if err != nil {
				return err
			}

			selection := eng.Selection
			selection.Enter()
			if all {
				opts, err := filters.options(cmd)
				if err != nil {
					return err
				}
				selection.SelectAll(view.IDs(view.Project(eng.Store.Snapshot(), opts)))
			} else {
				for _, id := range ids {
					if !selection.Contains(id) {
						selection.Toggle(id)
					}
				}
			}
			selected := selection.IDs()
			if len(selected) == 0 {
				if all {
					fmt.Fprintln(cmd.OutOrStdout(), "No scripts match the given filters.")
					return nil
				}
				return usageError(cmd, "no scripts selected")
			}

			var result engine.BatchResult
			switch op {
			case engine.BatchRun:
				result, err = eng.Batch.Run(cmd.Context(), selected)
			case engine.BatchStop:
				result, err = eng.Batch.Stop(cmd.Context(), selected)
			default:
				plan, planErr := eng.Batch.PlanDelete(selected)
				if planErr != nil {
					return commandError(planErr)
				}
				confirmed, confirmErr := a.confirm(cmd, plan.Prompt(), yes)
				if confirmErr != nil {
					return confirmErr
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
					return nil
				}
				result, err = eng.Batch.ConfirmDelete(cmd.Context(), plan)
			}
			if errors.Is(err, engine.ErrEmptySelection) {
				return usageError(cmd, "no scripts selected")
			}

			writeBatchResult(cmd.OutOrStdout(), result)
			if err != nil {
				return &ExitError{Code: ExitCodeFailure, Err: errors.New(result.Summary()), Printed: true}
			}
			return nil
		},
	}
	filters.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "select every script matching the filters")
	if op == engine.BatchDelete {
		cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	}
	return cmd
}

func writeBatchResult(out io.Writer, result engine.BatchResult) {
	fmt.Fprintln(out, result.Summary())
	for _, id := range result.FailedIDs() {
		reason := api.Detail(result.Failed[id])
		if reason == "" {
			reason = result.Failed[id].Error()
		}
		fmt.Fprintf(out, "  #%d: %s\n", id, reason)
	}
}
