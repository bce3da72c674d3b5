package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"folio/internal/comic"
	"folio/internal/lifecycle"
)

func newEventCommand(ctx *commandContext) *cobra.Command {
	var rawHeaders []string

	cmd := &cobra.Command{
		Use:   "event <comic-id> <event>",
		Short: "Fire a lifecycle event against one comic",
		Long: "Fire a lifecycle event against one comic and save the result.\n\n" +
			"Headers are passed as --header key=value, for example --header targetDirectory=/srv/comics.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid comic id %q", args[0])
			}
			event, err := comic.ParseEvent(args[1])
			if err != nil {
				return err
			}
			headers := lifecycle.Headers{}
			for _, entry := range rawHeaders {
				key, value, ok := strings.Cut(entry, "=")
				if !ok || strings.TrimSpace(key) == "" {
					return fmt.Errorf("invalid header %q (expected key=value)", entry)
				}
				headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
			}

			return ctx.withRuntime(cmd.Context(), func(rt *runtime) error {
				change, err := rt.catalog.FireEvent(cmd.Context(), id, event, headers)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Comic %d: %s -> %s (%s)\n",
					id, change.Prior.Label(), change.Target.Label(), change.Event)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVarP(&rawHeaders, "header", "H", nil, "Event header as key=value (repeatable)")
	return cmd
}
