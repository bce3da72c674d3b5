package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"folio/internal/batch"
	"folio/internal/jobs"
	"folio/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		rawParams   []string
		wait        bool
		jsonOutput  bool
		showMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "run <job>",
		Short: "Run a library job once",
		Long: "Run a library job once and print its outcome.\n\n" +
			"Jobs: " + strings.Join(jobs.Names(), ", ") + ".\n" +
			"Parameters are passed as --param key=value, for example --param targetDirectory=/srv/comics.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if !jobs.Known(name) {
				return fmt.Errorf("unknown job %q (expected one of %s)", name, strings.Join(jobs.Names(), ", "))
			}
			params, err := parseParams(rawParams)
			if err != nil {
				return err
			}

			return ctx.withRuntime(cmd.Context(), func(rt *runtime) error {
				out := cmd.OutOrStdout()
				if wait {
					probe := func(ctx context.Context) (bool, error) { return rt.catalog.HasWork(ctx, name) }
					found, err := workflow.WaitForWork(cmd.Context(), probe, rt.cfg.WaitTimeout(), rt.cfg.PollInterval())
					if err != nil {
						return err
					}
					if !found {
						fmt.Fprintf(out, "No work for %s after %s\n", name, rt.cfg.WaitTimeout())
						return nil
					}
				}

				run, runErr := rt.launch(cmd.Context(), name, params)
				if run == nil {
					return runErr
				}
				if jsonOutput {
					if err := writeJSON(cmd, run); err != nil {
						return err
					}
				} else {
					fmt.Fprintln(out, formatRunSummary(run))
				}
				if showMetrics {
					lines, err := collectCounters(cmd.Context(), rt)
					if err != nil {
						return err
					}
					for _, line := range lines {
						fmt.Fprintln(out, line)
					}
				}
				return runErr
			})
		},
	}

	cmd.Flags().StringArrayVarP(&rawParams, "param", "p", nil, "Job parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait up to jobs.wait_timeout for work before running")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run as JSON")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print chunk counters recorded during the run")
	return cmd
}

func parseParams(raw []string) (batch.Parameters, error) {
	params := batch.Parameters{}
	for _, entry := range raw {
		key, value, ok := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q (expected key=value)", entry)
		}
		params[key] = strings.TrimSpace(value)
	}
	return params, nil
}

// collectCounters reads the run's integer counters from the manual reader as
// "name job/step value" lines.
func collectCounters(ctx context.Context, rt *runtime) ([]string, error) {
	var rm metricdata.ResourceMetrics
	if err := rt.metrics.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}
	var lines []string
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				job, _ := dp.Attributes.Value("job")
				step, _ := dp.Attributes.Value("step")
				lines = append(lines, fmt.Sprintf("%s %s/%s %d", m.Name, job.AsString(), step.AsString(), dp.Value))
			}
		}
	}
	sort.Strings(lines)
	return lines, nil
}
