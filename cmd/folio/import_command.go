package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"folio/internal/batch"
	"folio/internal/fileutil"
	"folio/internal/jobs"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "import <path>...",
		Short: "Queue comic archives for import",
		Long: "Queue comic archives for import.\n\n" +
			"Directories are scanned recursively for cbz, cbr, cb7, cbt, and pdf files. " +
			"Queued archives become library records the next time the import job runs.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := fileutil.CollectArchives(args...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, "No comic archives found")
				return nil
			}
			return ctx.withRuntime(cmd.Context(), func(rt *runtime) error {
				queued, err := rt.store.Enqueue(cmd.Context(), files...)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Queued %d archive(s) for import\n", queued)
				if !runNow {
					return nil
				}
				run, err := rt.launch(cmd.Context(), jobs.JobImport, batch.Parameters{})
				if run != nil {
					fmt.Fprintln(out, formatRunSummary(run))
				}
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&runNow, "run", false, "Run the import job immediately after queueing")
	return cmd
}
