package main

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
	"github.com/navikt/su-se-bakover-sub020/infra/nats"
)

func newReadEventsCmd(opts *options) *cobra.Command {
	var (
		aggregate string
		owner     string
		eventType string
	)
	cmd := &cobra.Command{
		Use:   "read-events",
		Short: "Print the events of an aggregate, or of one type for an owner, as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts.cfg.Database)
			if err != nil {
				return err
			}
			defer a.close()

			var events []hendelse.Event
			switch {
			case aggregate != "":
				id, err := uuid.Parse(aggregate)
				if err != nil {
					return err
				}
				events, err = a.service.ReadAggregate(ctx, id)
				if err != nil {
					return err
				}
			case owner != "" && eventType != "":
				id, err := uuid.Parse(owner)
				if err != nil {
					return err
				}
				events, err = a.service.ReadForOwnerAndType(ctx, id, hendelse.Type(eventType))
				if err != nil {
					return err
				}
			default:
				return errors.New("either --aggregate or both --owner and --type are required")
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, evt := range events {
				if err := enc.Encode(nats.NewMessage(evt)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&aggregate, "aggregate", "", "aggregate id")
	cmd.Flags().StringVar(&owner, "owner", "", "owner (sak) id")
	cmd.Flags().StringVar(&eventType, "type", "", "event type, used with --owner")
	cmd.MarkFlagsMutuallyExclusive("aggregate", "owner")
	return cmd
}
