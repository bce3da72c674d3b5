package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"folio/internal/comic"
	"folio/internal/store"
)

func newComicsCommand(ctx *commandContext) *cobra.Command {
	var (
		stateFlag string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "comics [id]",
		Short: "Show library counts, list records, or inspect one record",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), func(rt *runtime) error {
				out := cmd.OutOrStdout()
				switch {
				case len(args) == 1:
					id, err := strconv.ParseInt(args[0], 10, 64)
					if err != nil {
						return fmt.Errorf("invalid comic id %q", args[0])
					}
					record, err := rt.store.Find(cmd.Context(), id)
					if err != nil {
						return err
					}
					history, err := rt.store.History(cmd.Context(), id)
					if err != nil {
						return err
					}
					fmt.Fprint(out, renderComicDetail(record, history))
					return nil

				case strings.TrimSpace(stateFlag) != "":
					state, err := comic.ParseState(stateFlag)
					if err != nil {
						return err
					}
					records, err := rt.store.FindBatch(cmd.Context(), comic.InStates(state), 0, limit)
					if err != nil {
						return err
					}
					if len(records) == 0 {
						fmt.Fprintf(out, "No comics in state %s\n", state.Label())
						return nil
					}
					fmt.Fprintln(out, renderComicList(records))
					return nil

				default:
					stats, err := rt.store.Stats(cmd.Context())
					if err != nil {
						return err
					}
					pending, err := rt.store.PendingDescriptors(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintln(out, renderStats(stats))
					fmt.Fprintf(out, "Queued for import: %d\n", pending)
					return nil
				}
			})
		},
	}

	cmd.Flags().StringVar(&stateFlag, "state", "", "List records in this state")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum records to list")
	return cmd
}

func renderStats(stats map[comic.State]int) string {
	rows := make([][]string, 0, len(stats)+1)
	total := 0
	for _, state := range comic.AllStates() {
		count := stats[state]
		total += count
		rows = append(rows, []string{state.Label(), strconv.Itoa(count)})
	}
	rows = append(rows, []string{"TOTAL", strconv.Itoa(total)})
	return renderTable([]string{"State", "Comics"}, rows, []columnAlignment{alignLeft, alignRight})
}

func renderComicList(records []*comic.Record) string {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			strconv.FormatInt(record.ID, 10),
			record.State.Label(),
			yesNo(record.Missing),
			record.Filename,
		})
	}
	return renderTable([]string{"ID", "State", "Missing", "File"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft})
}

func renderComicDetail(record *comic.Record, history []store.TransitionEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Comic:      %d\n", record.ID)
	fmt.Fprintf(&b, "State:      %s\n", record.State.Label())
	fmt.Fprintf(&b, "File:       %s\n", record.Filename)
	fmt.Fprintf(&b, "Archive:    %s\n", record.ArchiveType)
	fmt.Fprintf(&b, "Missing:    %s\n", yesNo(record.Missing))
	fmt.Fprintf(&b, "Contents:   %s\n", yesNo(record.ContentsLoaded))
	if record.FileDetails != nil {
		fmt.Fprintf(&b, "Size:       %d bytes\n", record.FileDetails.Size)
		fmt.Fprintf(&b, "SHA-256:    %s\n", record.FileDetails.Hash)
	}
	if record.BlockedPagesMarked {
		fmt.Fprintf(&b, "Blocked:    %d page(s)\n", record.BlockedPages)
	}
	if record.Series != "" {
		fmt.Fprintf(&b, "Series:     %s\n", record.Series)
	}

	rows := make([][]string, 0, len(history))
	for _, entry := range history {
		run := "-"
		if entry.RunID > 0 {
			run = strconv.FormatInt(entry.RunID, 10)
		}
		rows = append(rows, []string{
			formatStamp(entry.At),
			string(entry.Event),
			entry.Prior.Label() + " -> " + entry.Target.Label(),
			run,
		})
	}
	if len(rows) > 0 {
		b.WriteString(renderTable([]string{"At", "Event", "Transition", "Run"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}))
		b.WriteString("\n")
	}
	return b.String()
}
