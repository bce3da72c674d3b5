package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"folio/internal/comic"
)

func newTableCommand(ctx *commandContext) *cobra.Command {
	var stateFlag string

	cmd := &cobra.Command{
		Use:   "table",
		Short: "Show the lifecycle transition table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			table, err := loadTable(cfg)
			if err != nil {
				return err
			}

			var filter comic.State
			if strings.TrimSpace(stateFlag) != "" {
				if filter, err = comic.ParseState(stateFlag); err != nil {
					return err
				}
			}

			rows := make([][]string, 0, table.Len())
			for _, rule := range table.Rules() {
				if filter != "" && rule.Source != filter {
					continue
				}
				rows = append(rows, []string{
					rule.Source.Label(),
					string(rule.Event),
					rule.Target.Label(),
					dashIfEmpty(rule.GuardName()),
					dashIfEmpty(rule.ActionName()),
				})
			}
			source := "built-in"
			if cfg.Lifecycle.TablePath != "" {
				source = cfg.Lifecycle.TablePath
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Transition table: %s (%d rules)\n", source, table.Len())
			fmt.Fprintln(out, renderTable([]string{"Source", "Event", "Target", "Guard", "Action"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().StringVar(&stateFlag, "state", "", "Only show rules leaving this state")
	return cmd
}

func dashIfEmpty(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
