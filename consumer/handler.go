package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
)

// Handler performs the side effect of one event. It runs inside the
// transaction that checkpoints the event, so writes through ctx commit or roll
// back together with the checkpoint.
type Handler func(ctx context.Context, evt hendelse.Event) error

// OwnerHandler handles every outstanding event of one owner in one go.
type OwnerHandler func(ctx context.Context, ownerID uuid.UUID, events []hendelse.Event) error

// Checkpointer records handled events inside a transaction.
type Checkpointer interface {
	WithSession(ctx context.Context, fn hendelse.TransactionalHandler) error
	Checkpoint(ctx context.Context, consumerID hendelse.ConsumerID, eventIDs ...uuid.UUID) error
	WithTransaction(ctx context.Context, fn hendelse.TransactionalHandler) error
}

// checkpointing runs a unit of work and the checkpoint of its events in one
// transaction, retrying with exponential backoff.
type checkpointing struct {
	consumerID     hendelse.ConsumerID
	checkpointer   Checkpointer
	maxElapsedTime time.Duration
	maxTries       uint
}

func (h *checkpointing) run(ctx context.Context, eventIDs []uuid.UUID, fn func(ctx context.Context) error) error {
	operation := func() (struct{}, error) {
		txErr := h.checkpointer.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := fn(txCtx); err != nil {
				return fmt.Errorf("handler business logic failed: %w", err)
			}
			if err := h.checkpointer.Checkpoint(txCtx, h.consumerID, eventIDs...); err != nil {
				return fmt.Errorf("failed to checkpoint events: %w", err)
			}
			return nil
		})
		if txErr != nil && (errors.Is(txErr, context.Canceled) || errors.Is(txErr, hendelse.ErrNotFound)) {
			return struct{}{}, backoff.Permanent(txErr)
		}
		return struct{}{}, txErr
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(h.maxElapsedTime),
	}
	if h.maxTries > 0 {
		opts = append(opts, backoff.WithMaxTries(h.maxTries))
	}

	if _, err := backoff.Retry(ctx, operation, opts...); err != nil {
		slog.ErrorContext(
			ctx,
			"Failed to handle events after retries, leaving them outstanding",
			"error", err,
			"consumer", h.consumerID,
			"eventIDs", eventIDs,
		)
		return err
	}
	return nil
}
