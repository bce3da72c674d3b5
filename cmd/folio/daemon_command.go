package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"folio/internal/daemon"
	"folio/internal/jobs"
	"folio/internal/logging"
	"folio/internal/workflow"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var scan bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the enabled jobs in the foreground until interrupted",
		Long: "Run the enabled jobs in the foreground until interrupted.\n\n" +
			"Each job in jobs.enabled gets its own lane that launches the job whenever it has work. " +
			"Only one daemon may run per lock directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd, ctx, scan)
		},
	}

	cmd.Flags().BoolVar(&scan, "scan", false, "Queue every archive under paths.library_dir before starting")
	return cmd
}

func runDaemonProcess(cmd *cobra.Command, ctx *commandContext, scan bool) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return ctx.withRuntime(signalCtx, func(rt *runtime) error {
		logger := rt.logger
		mgr := workflow.NewManager(rt.cfg, rt.launcher, rt.catalog, logger)
		for _, name := range rt.cfg.Jobs.Enabled {
			if !jobs.Known(name) {
				return fmt.Errorf("jobs.enabled: unknown job %q", name)
			}
			job := name
			lane := workflow.Lane{
				Job: job,
				Probe: func(ctx context.Context) (bool, error) {
					return rt.catalog.HasWork(ctx, job)
				},
			}
			if err := mgr.Register(lane); err != nil {
				return err
			}
		}

		d, err := daemon.New(rt.cfg, rt.store, logger, mgr)
		if err != nil {
			return fmt.Errorf("create daemon: %w", err)
		}

		pidPath := filepath.Join(rt.cfg.Paths.LockDir, "folio.pid")
		if err := writePIDFile(pidPath); err != nil {
			return fmt.Errorf("write pid file: %w", err)
		}
		defer os.Remove(pidPath)

		if scan {
			if _, err := d.ScanLibrary(signalCtx); err != nil {
				return err
			}
		}
		if err := d.Start(signalCtx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Folio daemon running %d job lane(s); press Ctrl+C to stop\n", len(rt.cfg.Jobs.Enabled))

		<-signalCtx.Done()
		logger.Info("folio daemon shutting down")
		status := d.Status(context.Background())
		d.Stop()
		for _, lane := range status.Workflow.Lanes {
			logger.Info("lane summary",
				logging.String(logging.FieldJob, lane.Job),
				logging.Int("runs", lane.Runs),
				logging.Int("failures", lane.Failures),
			)
		}
		return nil
	})
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
