package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
)

func newOutstandingCmd(opts *options) *cobra.Command {
	var (
		consumerID string
		eventType  string
		limit      int
		byOwner    bool
	)
	cmd := &cobra.Command{
		Use:   "outstanding",
		Short: "List events of one type a consumer has not checkpointed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts.cfg.Database)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			if byOwner {
				grouped, err := a.service.PollOutstandingByOwner(ctx, hendelse.ConsumerID(consumerID), hendelse.Type(eventType), limit)
				if err != nil {
					return err
				}
				for owner, events := range grouped {
					for _, evt := range events {
						fmt.Fprintf(out, "%s\t%s\t%s\t%d\n", owner, evt.EventID, evt.AggregateID, evt.Version)
					}
				}
				return nil
			}

			events, err := a.service.PollOutstanding(ctx, hendelse.ConsumerID(consumerID), hendelse.Type(eventType), limit)
			if err != nil {
				return err
			}
			for _, evt := range events {
				fmt.Fprintf(out, "%s\t%s\t%s\t%d\n", evt.OwnerID, evt.EventID, evt.AggregateID, evt.Version)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&consumerID, "consumer", "", "consumer id")
	cmd.Flags().StringVar(&eventType, "type", "", "event type")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of events")
	cmd.Flags().BoolVar(&byOwner, "by-owner", false, "group by owner")
	_ = cmd.MarkFlagRequired("consumer")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}
