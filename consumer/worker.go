// Package consumer runs background consumers that poll outstanding events,
// handle them and checkpoint them. Delivery is at least once: an event whose
// handler fails, or whose worker dies before committing, is polled again.
package consumer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
)

// Source is the part of the service facade a worker needs.
type Source interface {
	Checkpointer
	PollOutstanding(ctx context.Context, consumerID hendelse.ConsumerID, typ hendelse.Type, limit int) ([]hendelse.Event, error)
	PollOutstandingByOwner(ctx context.Context, consumerID hendelse.ConsumerID, typ hendelse.Type, limit int) (map[uuid.UUID][]hendelse.Event, error)
}

// Worker polls one (consumer, type) pair on an interval.
type Worker struct {
	consumerID   hendelse.ConsumerID
	eventType    hendelse.Type
	source       Source
	handler      Handler
	ownerHandler OwnerHandler
	batchSize    int
	interval     time.Duration
	exec         *checkpointing

	wg       sync.WaitGroup
	quit     chan struct{}
	stopOnce sync.Once
}

// Option configures a Worker.
type Option func(*Worker)

// WithBatchSize bounds the number of events read per poll.
func WithBatchSize(n int) Option {
	return func(w *Worker) {
		w.batchSize = n
	}
}

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		w.interval = d
	}
}

// WithMaxElapsedTime bounds the time spent retrying one unit of work.
func WithMaxElapsedTime(d time.Duration) Option {
	return func(w *Worker) {
		w.exec.maxElapsedTime = d
	}
}

// WithMaxTries bounds the attempts for one unit of work.
func WithMaxTries(n uint) Option {
	return func(w *Worker) {
		w.exec.maxTries = n
	}
}

// NewWorker creates a worker that handles events one at a time.
func NewWorker(consumerID hendelse.ConsumerID, eventType hendelse.Type, source Source, handler Handler, opts ...Option) *Worker {
	w := newWorker(consumerID, eventType, source, opts)
	w.handler = handler
	return w
}

// NewOwnerWorker creates a worker that handles the outstanding events of one
// owner together and checkpoints them as a batch.
func NewOwnerWorker(consumerID hendelse.ConsumerID, eventType hendelse.Type, source Source, handler OwnerHandler, opts ...Option) *Worker {
	w := newWorker(consumerID, eventType, source, opts)
	w.ownerHandler = handler
	return w
}

func newWorker(consumerID hendelse.ConsumerID, eventType hendelse.Type, source Source, opts []Option) *Worker {
	w := &Worker{
		consumerID: consumerID,
		eventType:  eventType,
		source:     source,
		batchSize:  100,
		interval:   5 * time.Second,
		exec: &checkpointing{
			consumerID:     consumerID,
			checkpointer:   source,
			maxElapsedTime: 1 * time.Minute,
		},
		quit: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins polling in a separate goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		slog.InfoContext(ctx, "Consumer started", "consumer", w.consumerID, "eventType", w.eventType)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := w.RunOnce(ctx); err != nil {
					slog.ErrorContext(ctx, "Failed to process consumer batch", "consumer", w.consumerID, "error", err)
				}
			case <-w.quit:
				slog.InfoContext(ctx, "Consumer shutting down", "consumer", w.consumerID)
				return
			case <-ctx.Done():
				slog.InfoContext(ctx, "Context cancelled, consumer shutting down", "consumer", w.consumerID)
				return
			}
		}
	}()
}

// Stop stops polling and waits for the current batch to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
	w.wg.Wait()
}

// RunOnce polls a single batch on one database session and returns the number
// of events checkpointed. Events that fail stay outstanding; their errors are
// joined.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	var handled int
	err := w.source.WithSession(ctx, func(ctx context.Context) error {
		var err error
		if w.ownerHandler != nil {
			handled, err = w.runByOwner(ctx)
		} else {
			handled, err = w.runEach(ctx)
		}
		return err
	})
	return handled, err
}

func (w *Worker) runEach(ctx context.Context) (int, error) {
	events, err := w.source.PollOutstanding(ctx, w.consumerID, w.eventType, w.batchSize)
	if err != nil {
		return 0, err
	}

	var (
		handled int
		errs    []error
	)
	for _, evt := range events {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := w.exec.run(ctx, []uuid.UUID{evt.EventID}, func(txCtx context.Context) error {
			return w.handler(txCtx, evt)
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		handled++
	}
	w.logBatch(ctx, len(events), handled)
	return handled, errors.Join(errs...)
}

func (w *Worker) runByOwner(ctx context.Context) (int, error) {
	grouped, err := w.source.PollOutstandingByOwner(ctx, w.consumerID, w.eventType, w.batchSize)
	if err != nil {
		return 0, err
	}

	owners := make([]uuid.UUID, 0, len(grouped))
	total := 0
	for owner, events := range grouped {
		owners = append(owners, owner)
		total += len(events)
	}
	slices.SortFunc(owners, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })

	var (
		handled int
		errs    []error
	)
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		events := grouped[owner]
		ids := make([]uuid.UUID, len(events))
		for i, evt := range events {
			ids[i] = evt.EventID
		}
		err := w.exec.run(ctx, ids, func(txCtx context.Context) error {
			return w.ownerHandler(txCtx, owner, events)
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		handled += len(events)
	}
	w.logBatch(ctx, total, handled)
	return handled, errors.Join(errs...)
}

func (w *Worker) logBatch(ctx context.Context, polled, handled int) {
	if polled == 0 {
		return
	}
	slog.InfoContext(ctx, "Consumer batch processed",
		"consumer", w.consumerID,
		"eventType", w.eventType,
		"polled", polled,
		"handled", handled,
	)
}
