package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"folio/internal/batch"
)

func formatRunSummary(run *batch.JobRun) string {
	totals := run.Totals()
	line := fmt.Sprintf("Run %d (%s): %s, read %d, skipped %d, written %d",
		run.RunID, run.JobName, run.Status, totals.Read, totals.Skipped, totals.Written)
	if run.Iterations > 1 {
		line += fmt.Sprintf(", %d iterations", run.Iterations)
	}
	if run.Error != "" {
		line += "\nError: " + run.Error
	}
	return line
}

func renderRunList(list []*batch.JobRun) string {
	rows := make([][]string, 0, len(list))
	for _, run := range list {
		totals := run.Totals()
		rows = append(rows, []string{
			strconv.FormatInt(run.RunID, 10),
			run.JobName,
			string(run.Status),
			strconv.Itoa(totals.Read),
			strconv.Itoa(totals.Written),
			formatStamp(run.StartedAt),
			formatElapsed(run.StartedAt, run.EndedAt),
		})
	}
	return renderTable(
		[]string{"ID", "Job", "Status", "Read", "Written", "Started", "Elapsed"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight},
	)
}

func renderRunDetail(run *batch.JobRun) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run:         %d\n", run.RunID)
	fmt.Fprintf(&b, "Job:         %s\n", run.JobName)
	fmt.Fprintf(&b, "Status:      %s\n", run.Status)
	fmt.Fprintf(&b, "Correlation: %s\n", run.CorrelationID)
	fmt.Fprintf(&b, "Iterations:  %d\n", run.Iterations)
	fmt.Fprintf(&b, "Started:     %s\n", formatStamp(run.StartedAt))
	fmt.Fprintf(&b, "Ended:       %s\n", formatStamp(run.EndedAt))
	if len(run.Parameters) > 0 {
		keys := make([]string, 0, len(run.Parameters))
		for key := range run.Parameters {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, key := range keys {
			pairs = append(pairs, key+"="+run.Parameters[key])
		}
		fmt.Fprintf(&b, "Parameters:  %s\n", strings.Join(pairs, " "))
	}
	if run.Error != "" {
		fmt.Fprintf(&b, "Error:       %s\n", run.Error)
	}

	rows := make([][]string, 0, len(run.Steps))
	for _, step := range run.Steps {
		rows = append(rows, []string{
			step.Name,
			string(step.Status),
			strconv.Itoa(step.Read),
			strconv.Itoa(step.Skipped),
			strconv.Itoa(step.Written),
			fmt.Sprintf("%d/%d", step.Commits, step.Chunks),
			strconv.Itoa(step.Retries),
			formatElapsed(step.StartedAt, step.EndedAt),
		})
	}
	if len(rows) > 0 {
		b.WriteString(renderTable(
			[]string{"Step", "Status", "Read", "Skipped", "Written", "Commits", "Retries", "Elapsed"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
		))
		b.WriteString("\n")
	}
	return b.String()
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatElapsed(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return "-"
	}
	return end.Sub(start).Round(time.Millisecond).String()
}
