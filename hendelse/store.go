package hendelse

import (
	"context"

	"github.com/google/uuid"
)

// Store is the append-only event log.
type Store interface {
	// Append persists evt at Version == head+1. A stale version surfaces as a
	// VersionConflictError; resubmitting an already stored event is a no-op.
	Append(ctx context.Context, evt Event) error
	// Head returns the tip of an aggregate's stream.
	Head(ctx context.Context, aggregateID uuid.UUID) (Head, error)
	// ReadForAggregate returns every event of one aggregate ordered by version.
	ReadForAggregate(ctx context.Context, aggregateID uuid.UUID) ([]Event, error)
	// ReadForOwnerAndType returns the events of one type across an owner's aggregates.
	ReadForOwnerAndType(ctx context.Context, ownerID uuid.UUID, typ Type) ([]Event, error)
	// ReadByID is a point lookup returning ErrNotFound when absent.
	ReadByID(ctx context.Context, eventID uuid.UUID) (Event, error)
}

// Tracker records which events each consumer has finished handling.
type Tracker interface {
	// MarkDone checkpoints one or more events for a consumer. Duplicates are no-ops.
	MarkDone(ctx context.Context, consumerID ConsumerID, eventIDs ...uuid.UUID) error
	// Outstanding lists events of typ not yet checkpointed by consumerID.
	Outstanding(ctx context.Context, consumerID ConsumerID, typ Type, limit int) ([]uuid.UUID, error)
	// OutstandingByOwner groups outstanding events by owner. limit bounds the
	// total number of rows scanned, not the number per owner.
	OutstandingByOwner(ctx context.Context, consumerID ConsumerID, typ Type, limit int) (map[uuid.UUID][]uuid.UUID, error)
}

// TransactionalHandler is a unit of work executed inside a transaction.
type TransactionalHandler func(ctx context.Context) error

// Transactor runs units of work on the database. WithTransaction reuses a
// transaction already carried by ctx. WithSession pins one connection and fails
// with ErrNestedSession when ctx already carries a session or a transaction.
type Transactor interface {
	WithSession(ctx context.Context, fn TransactionalHandler) error
	WithTransaction(ctx context.Context, fn TransactionalHandler) error
}
