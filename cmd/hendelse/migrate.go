package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the event and event_checkpoint tables if they are missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts.cfg.Database)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.ensureSchema(ctx); err != nil {
				return err
			}
			slog.InfoContext(ctx, "Schema is up to date", "driver", opts.cfg.Database.Driver)
			return nil
		},
	}
}
