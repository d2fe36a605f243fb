package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/navikt/su-se-bakover-sub020/config"
)

type options struct {
	cfgFile string
	debug   bool
	cfg     config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "hendelse",
		Short: "Event store and consumer tooling",
		Long: `hendelse manages the append-only event log of the case-management backend.

Functions:
- Create the event and checkpoint tables
- Read the events of an aggregate or of an owner
- Rebuild the current state of an aggregate by replaying its events
- List events a consumer has not checkpointed yet
- Relay stored events to NATS JetStream`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return err
			}
			if opts.debug {
				cfg.Logging.Level = "debug"
			}
			logger, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			opts.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ./hendelse.yaml)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newMigrateCmd(opts),
		newReadEventsCmd(opts),
		newReplayCmd(opts),
		newOutstandingCmd(opts),
		newWorkerCmd(opts),
	)
	return root
}

func newLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid logging.level %q: %w", cfg.Level, err)
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
}
