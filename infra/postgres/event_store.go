package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"

	versionConstraint = "event_aggregate_version_key"
)

const eventColumns = `event_id, aggregate_id, owner_id, type, version, payload, occurred_at, previous_event_id, metadata`

// EventStore implements the hendelse.Store interface for PostgreSQL.
type EventStore struct {
	db *DB
}

// NewEventStore creates a new PostgreSQL event store.
func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

// Append persists evt as the next version of its aggregate. It runs in the
// caller's transaction when ctx carries one.
func (s *EventStore) Append(ctx context.Context, evt hendelse.Event) error {
	if err := evt.Validate(); err != nil {
		return err
	}
	evt.OccurredAt = evt.OccurredAt.UTC().Truncate(time.Microsecond)

	return s.db.WithTransaction(ctx, func(ctx context.Context) error {
		q := s.db.Querier(ctx)

		existing, err := readByID(ctx, q, evt.EventID)
		switch {
		case err == nil:
			return resubmitted(ctx, existing, evt)
		case !errors.Is(err, hendelse.ErrNotFound):
			return err
		}

		head, owner, err := readHead(ctx, q, evt.AggregateID)
		if err != nil {
			return err
		}
		if head.Version > 0 && owner != evt.OwnerID {
			return &hendelse.CorruptChainError{
				AggregateID: evt.AggregateID,
				Version:     evt.Version,
				Reason:      fmt.Sprintf("owner %s does not match stream owner %s", evt.OwnerID, owner),
			}
		}
		if err := hendelse.VerifyNext(head, evt); err != nil {
			return err
		}

		inserted, err := insertEvent(ctx, q, evt)
		if err != nil {
			return err
		}
		if !inserted {
			// A concurrent writer stored the same event id after our lookup.
			existing, err := readByID(ctx, q, evt.EventID)
			if err != nil {
				return err
			}
			return resubmitted(ctx, existing, evt)
		}

		slog.DebugContext(ctx, "Event appended", "aggregateID", evt.AggregateID, "version", evt.Version, "eventType", evt.Type)
		return nil
	})
}

// Head returns the current version of an aggregate and the id of its last event.
func (s *EventStore) Head(ctx context.Context, aggregateID uuid.UUID) (hendelse.Head, error) {
	head, _, err := readHead(ctx, s.db.Querier(ctx), aggregateID)
	return head, err
}

// ReadForAggregate loads every event of one aggregate ordered by version and
// verifies the chain.
func (s *EventStore) ReadForAggregate(ctx context.Context, aggregateID uuid.UUID) ([]hendelse.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM event WHERE aggregate_id = $1 ORDER BY version ASC`
	events, err := queryEvents(ctx, s.db.Querier(ctx), query, aggregateID)
	if err != nil {
		return nil, err
	}
	if err := hendelse.VerifyChain(aggregateID, events); err != nil {
		slog.ErrorContext(ctx, "Stored event chain is corrupt", "aggregateID", aggregateID, "error", err)
		return nil, err
	}
	return events, nil
}

// ReadForOwnerAndType loads the events of one type across all aggregates of an
// owner, ordered by aggregate and version.
func (s *EventStore) ReadForOwnerAndType(ctx context.Context, ownerID uuid.UUID, typ hendelse.Type) ([]hendelse.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM event WHERE owner_id = $1 AND type = $2 ORDER BY aggregate_id, version`
	return queryEvents(ctx, s.db.Querier(ctx), query, ownerID, string(typ))
}

// ReadByID loads a single event.
func (s *EventStore) ReadByID(ctx context.Context, eventID uuid.UUID) (hendelse.Event, error) {
	return readByID(ctx, s.db.Querier(ctx), eventID)
}

func resubmitted(ctx context.Context, existing, evt hendelse.Event) error {
	if !existing.SameRecord(evt) {
		return fmt.Errorf("event %s is stored as %s, not %s: %w", evt.EventID, existing, evt, hendelse.ErrEventIDReused)
	}
	slog.DebugContext(ctx, "Event already stored, ignoring resubmission", "eventID", evt.EventID, "aggregateID", evt.AggregateID)
	return nil
}

func insertEvent(ctx context.Context, q Querier, evt hendelse.Event) (bool, error) {
	metadata, err := json.Marshal(evt.Metadata)
	if err != nil {
		return false, fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	query := `
        INSERT INTO event (` + eventColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (event_id) DO NOTHING
    `
	tag, err := q.Exec(ctx, query,
		evt.EventID,
		evt.AggregateID,
		evt.OwnerID,
		string(evt.Type),
		evt.Version,
		[]byte(evt.Payload),
		evt.OccurredAt,
		evt.PreviousEventID,
		metadata,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == versionConstraint {
			return false, &hendelse.VersionConflictError{AggregateID: evt.AggregateID, Expected: evt.Version - 1, Actual: -1}
		}
		return false, fmt.Errorf("failed to insert event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func readHead(ctx context.Context, q Querier, aggregateID uuid.UUID) (hendelse.Head, uuid.UUID, error) {
	query := `
        SELECT version, event_id, owner_id
        FROM event
        WHERE aggregate_id = $1
        ORDER BY version DESC
        LIMIT 1
    `
	head := hendelse.Head{AggregateID: aggregateID}
	var (
		eventID uuid.UUID
		owner   uuid.UUID
	)
	err := q.QueryRow(ctx, query, aggregateID).Scan(&head.Version, &eventID, &owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return head, uuid.Nil, nil
		}
		return head, uuid.Nil, fmt.Errorf("failed to read head of aggregate %s: %w", aggregateID, err)
	}
	head.EventID = &eventID
	return head, owner, nil
}

func readByID(ctx context.Context, q Querier, eventID uuid.UUID) (hendelse.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM event WHERE event_id = $1`
	evt, err := scanEvent(q.QueryRow(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return hendelse.Event{}, fmt.Errorf("event %s: %w", eventID, hendelse.ErrNotFound)
		}
		return hendelse.Event{}, fmt.Errorf("failed to read event %s: %w", eventID, err)
	}
	return evt, nil
}

func queryEvents(ctx context.Context, q Querier, query string, args ...any) ([]hendelse.Event, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []hendelse.Event{}
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event rows: %w", err)
	}
	return events, nil
}

func scanEvent(row pgx.Row) (hendelse.Event, error) {
	var (
		evt      hendelse.Event
		typ      string
		payload  []byte
		metadata []byte
	)
	err := row.Scan(
		&evt.EventID,
		&evt.AggregateID,
		&evt.OwnerID,
		&typ,
		&evt.Version,
		&payload,
		&evt.OccurredAt,
		&evt.PreviousEventID,
		&metadata,
	)
	if err != nil {
		return hendelse.Event{}, err
	}
	evt.Type = hendelse.Type(typ)
	evt.Payload = json.RawMessage(payload)
	evt.OccurredAt = evt.OccurredAt.UTC()
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &evt.Metadata); err != nil {
			return hendelse.Event{}, fmt.Errorf("failed to unmarshal event metadata: %w", err)
		}
	}
	return evt, nil
}
