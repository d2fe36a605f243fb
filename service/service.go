// Package service is the facade collaborators use to append events, rebuild
// aggregate state and drive consumers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
	"github.com/navikt/su-se-bakover-sub020/replay"
)

// AppendCommand describes one event to append. EventID and OccurredAt are
// generated when left zero. Payload is encoded with the codec registered for Type.
type AppendCommand struct {
	AggregateID     uuid.UUID
	OwnerID         uuid.UUID
	Type            hendelse.Type
	Payload         any
	ExpectedVersion int
	EventID         uuid.UUID
	OccurredAt      time.Time
	Metadata        hendelse.Metadata
}

// Service ties the event store, the checkpoint tracker and the replay
// registries together.
type Service struct {
	store    hendelse.Store
	tracker  hendelse.Tracker
	tx       hendelse.Transactor
	payloads *hendelse.Registry
	machines *replay.Registry
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the clock used when a command leaves OccurredAt empty.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a Service.
func New(
	store hendelse.Store,
	tracker hendelse.Tracker,
	tx hendelse.Transactor,
	payloads *hendelse.Registry,
	machines *replay.Registry,
	opts ...Option,
) *Service {
	s := &Service{
		store:    store,
		tracker:  tracker,
		tx:       tx,
		payloads: payloads,
		machines: machines,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AppendEvent appends cmd as version ExpectedVersion+1 of its aggregate and
// returns the event id. If the stream has moved past ExpectedVersion the call
// fails with a *hendelse.VersionConflictError. Resubmitting a command with an
// explicit EventID that is already stored returns that id without writing.
func (s *Service) AppendEvent(ctx context.Context, cmd AppendCommand) (uuid.UUID, error) {
	if cmd.ExpectedVersion < 0 {
		return uuid.Nil, fmt.Errorf("%w: negative expected version %d", hendelse.ErrInvalidEvent, cmd.ExpectedVersion)
	}
	payload, err := s.payloads.Encode(cmd.Type, cmd.Payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to encode %s payload: %w", cmd.Type, err)
	}

	eventID := cmd.EventID
	if eventID == uuid.Nil {
		eventID = uuid.New()
	}
	occurredAt := cmd.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if cmd.EventID != uuid.Nil {
			existing, err := s.store.ReadByID(ctx, cmd.EventID)
			switch {
			case err == nil:
				if existing.AggregateID == cmd.AggregateID && existing.Type == cmd.Type && existing.Version == cmd.ExpectedVersion+1 {
					slog.DebugContext(ctx, "Command already applied", "eventID", cmd.EventID, "aggregateID", cmd.AggregateID)
					return nil
				}
				return fmt.Errorf("event %s is stored as %s: %w", cmd.EventID, existing, hendelse.ErrEventIDReused)
			case !errors.Is(err, hendelse.ErrNotFound):
				return err
			}
		}

		head, err := s.store.Head(ctx, cmd.AggregateID)
		if err != nil {
			return err
		}
		if head.Version != cmd.ExpectedVersion {
			return &hendelse.VersionConflictError{AggregateID: cmd.AggregateID, Expected: cmd.ExpectedVersion, Actual: head.Version}
		}

		evt := head.Next()
		evt.EventID = eventID
		evt.OwnerID = cmd.OwnerID
		evt.Type = cmd.Type
		evt.Payload = payload
		evt.OccurredAt = occurredAt
		evt.Metadata = cmd.Metadata
		return s.store.Append(ctx, evt)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return eventID, nil
}

// ReadAggregate returns the verified event stream of one aggregate.
func (s *Service) ReadAggregate(ctx context.Context, aggregateID uuid.UUID) ([]hendelse.Event, error) {
	return s.store.ReadForAggregate(ctx, aggregateID)
}

// ReadForOwnerAndType returns the events of one type across an owner's aggregates.
func (s *Service) ReadForOwnerAndType(ctx context.Context, ownerID uuid.UUID, typ hendelse.Type) ([]hendelse.Event, error) {
	return s.store.ReadForOwnerAndType(ctx, ownerID, typ)
}

// Reconstruct replays an aggregate through the machine registered for the type
// of its first event.
func (s *Service) Reconstruct(ctx context.Context, aggregateID uuid.UUID, ext any) (any, error) {
	events, err := s.decoded(ctx, aggregateID)
	if err != nil {
		return nil, err
	}
	return s.machines.Reconstruct(aggregateID, events, ext)
}

// ReconstructAs replays an aggregate through a known machine.
func ReconstructAs[S any, X any](ctx context.Context, s *Service, aggregateID uuid.UUID, m replay.Machine[S, X], ext X) (S, error) {
	events, err := s.decoded(ctx, aggregateID)
	if err != nil {
		var zero S
		return zero, err
	}
	if len(events) == 0 {
		var zero S
		return zero, fmt.Errorf("aggregate %s has no events: %w", aggregateID, hendelse.ErrNotFound)
	}
	return replay.Fold(aggregateID, events, m, ext)
}

func (s *Service) decoded(ctx context.Context, aggregateID uuid.UUID) ([]replay.Decoded, error) {
	events, err := s.store.ReadForAggregate(ctx, aggregateID)
	if err != nil {
		return nil, err
	}
	return replay.Decode(s.payloads, events)
}

// PollOutstanding loads the events of typ that consumerID has not checkpointed,
// oldest first.
func (s *Service) PollOutstanding(ctx context.Context, consumerID hendelse.ConsumerID, typ hendelse.Type, limit int) ([]hendelse.Event, error) {
	ids, err := s.tracker.Outstanding(ctx, consumerID, typ, limit)
	if err != nil {
		return []hendelse.Event{}, err
	}
	return s.load(ctx, ids)
}

// PollOutstandingByOwner loads outstanding events grouped by owner.
func (s *Service) PollOutstandingByOwner(
	ctx context.Context,
	consumerID hendelse.ConsumerID,
	typ hendelse.Type,
	limit int,
) (map[uuid.UUID][]hendelse.Event, error) {
	grouped, err := s.tracker.OutstandingByOwner(ctx, consumerID, typ, limit)
	if err != nil {
		return map[uuid.UUID][]hendelse.Event{}, err
	}
	result := make(map[uuid.UUID][]hendelse.Event, len(grouped))
	for owner, ids := range grouped {
		events, err := s.load(ctx, ids)
		if err != nil {
			return map[uuid.UUID][]hendelse.Event{}, err
		}
		result[owner] = events
	}
	return result, nil
}

// Checkpoint records that consumerID is done with eventIDs.
func (s *Service) Checkpoint(ctx context.Context, consumerID hendelse.ConsumerID, eventIDs ...uuid.UUID) error {
	return s.tracker.MarkDone(ctx, consumerID, eventIDs...)
}

// WithSession runs fn on one pinned connection of the service's transactor.
func (s *Service) WithSession(ctx context.Context, fn hendelse.TransactionalHandler) error {
	return s.tx.WithSession(ctx, fn)
}

// WithTransaction runs fn in the service's transactor.
func (s *Service) WithTransaction(ctx context.Context, fn hendelse.TransactionalHandler) error {
	return s.tx.WithTransaction(ctx, fn)
}

// Payloads returns the payload registry.
func (s *Service) Payloads() *hendelse.Registry {
	return s.payloads
}

func (s *Service) load(ctx context.Context, ids []uuid.UUID) ([]hendelse.Event, error) {
	events := make([]hendelse.Event, 0, len(ids))
	for _, id := range ids {
		evt, err := s.store.ReadByID(ctx, id)
		if err != nil {
			return []hendelse.Event{}, err
		}
		events = append(events, evt)
	}
	return events, nil
}
