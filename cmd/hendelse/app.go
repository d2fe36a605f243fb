package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/navikt/su-se-bakover-sub020/config"
	"github.com/navikt/su-se-bakover-sub020/domain/avkorting"
	"github.com/navikt/su-se-bakover-sub020/domain/soknad"
	"github.com/navikt/su-se-bakover-sub020/domain/tilbakekreving"
	"github.com/navikt/su-se-bakover-sub020/hendelse"
	"github.com/navikt/su-se-bakover-sub020/infra/postgres"
	"github.com/navikt/su-se-bakover-sub020/infra/sqlite"
	"github.com/navikt/su-se-bakover-sub020/replay"
	"github.com/navikt/su-se-bakover-sub020/service"
)

// app holds the wired service and the backend behind it.
type app struct {
	service      *service.Service
	ensureSchema func(ctx context.Context) error
	close        func()
}

func newRegistries() (*hendelse.Registry, *replay.Registry) {
	payloads := hendelse.NewRegistry()
	machines := replay.NewRegistry()

	tilbakekreving.RegisterPayloads(payloads)
	tilbakekreving.RegisterMachine(machines)
	avkorting.RegisterPayloads(payloads)
	avkorting.RegisterMachine(machines)
	soknad.RegisterPayloads(payloads)
	soknad.RegisterMachine(machines)

	return payloads, machines
}

func openApp(ctx context.Context, cfg config.DatabaseConfig) (*app, error) {
	payloads, machines := newRegistries()

	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := postgres.NewDB(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Database connection established", "driver", cfg.Driver)
		return &app{
			service:      service.New(postgres.NewEventStore(db), postgres.NewCheckpointStore(db), db, payloads, machines),
			ensureSchema: db.EnsureSchema,
			close:        db.Close,
		}, nil
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Database opened", "driver", cfg.Driver, "path", cfg.DSN)
		return &app{
			service:      service.New(sqlite.NewEventStore(db), sqlite.NewCheckpointStore(db), db, payloads, machines),
			ensureSchema: db.EnsureSchema,
			close: func() {
				if err := db.Close(); err != nil {
					slog.Error("Failed to close database", "error", err)
				}
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
