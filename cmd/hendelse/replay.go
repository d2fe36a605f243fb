package main

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/navikt/su-se-bakover-sub020/replay"
)

func newReplayCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <aggregate-id>",
		Short: "Rebuild the current state of an aggregate from its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			aggregateID, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, opts.cfg.Database)
			if err != nil {
				return err
			}
			defer a.close()

			state, err := a.service.Reconstruct(ctx, aggregateID, nil)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				State string `json:"state"`
				Value any    `json:"value"`
			}{
				State: replay.StateName(state),
				Value: state,
			})
		},
	}
	return cmd
}
