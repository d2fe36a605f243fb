package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/navikt/su-se-bakover-sub020/consumer"
	"github.com/navikt/su-se-bakover-sub020/hendelse"
	"github.com/navikt/su-se-bakover-sub020/infra/nats"
)

func newWorkerCmd(opts *options) *cobra.Command {
	var eventTypes []string
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Relay stored events to NATS JetStream until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if len(eventTypes) == 0 {
				eventTypes = cfg.Consumer.EventTypes
			}
			if len(eventTypes) == 0 {
				return errors.New("no event types to relay, set consumer.event_types or --type")
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := openApp(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer a.close()

			publisher, err := nats.NewPublisher(ctx, cfg.NATS.URL, cfg.NATS.Stream)
			if err != nil {
				return err
			}
			defer publisher.Close()
			slog.InfoContext(ctx, "NATS connection established", "stream", cfg.NATS.Stream)

			workerOpts := []consumer.Option{
				consumer.WithBatchSize(cfg.Consumer.BatchSize),
				consumer.WithInterval(cfg.Consumer.Interval),
				consumer.WithMaxElapsedTime(cfg.Consumer.MaxElapsedTime),
			}
			consumerID := hendelse.ConsumerID(cfg.Consumer.ID)

			var workers []*consumer.Worker
			for _, typ := range eventTypes {
				var w *consumer.Worker
				if cfg.Consumer.ByOwner {
					w = consumer.NewOwnerWorker(consumerID, hendelse.Type(typ), a.service, publishAll(publisher), workerOpts...)
				} else {
					w = consumer.NewWorker(consumerID, hendelse.Type(typ), a.service, publisher.Publish, workerOpts...)
				}
				w.Start(ctx)
				workers = append(workers, w)
			}
			slog.InfoContext(ctx, "Relay workers started", "consumer", consumerID, "eventTypes", eventTypes)

			<-ctx.Done()
			for _, w := range workers {
				w.Stop()
			}
			slog.Info("Relay workers stopped")
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&eventTypes, "type", nil, "event types to relay (default from consumer.event_types)")
	return cmd
}

func publishAll(p *nats.Publisher) consumer.OwnerHandler {
	return func(ctx context.Context, _ uuid.UUID, events []hendelse.Event) error {
		for _, evt := range events {
			if err := p.Publish(ctx, evt); err != nil {
				return err
			}
		}
		return nil
	}
}
