package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"folio/internal/batch"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var (
		jobName    string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List job runs or show one run in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), func(rt *runtime) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					id, err := strconv.ParseInt(args[0], 10, 64)
					if err != nil {
						return fmt.Errorf("invalid run id %q", args[0])
					}
					run, err := rt.store.GetRun(cmd.Context(), id)
					if err != nil {
						return err
					}
					if jsonOutput {
						return writeJSON(cmd, run)
					}
					fmt.Fprint(out, renderRunDetail(run))
					return nil
				}

				list, err := rt.store.ListRuns(cmd.Context(), jobName, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					if list == nil {
						list = []*batch.JobRun{}
					}
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(out, "No job runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderRunList(list))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&jobName, "job", "", "Only show runs of this job")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")
	return cmd
}
