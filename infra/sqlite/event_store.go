package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
)

const eventColumns = `event_id, aggregate_id, owner_id, type, version, payload, occurred_at, previous_event_id, metadata`

// EventStore implements hendelse.Store on SQLite.
type EventStore struct {
	db *DB
}

func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

// Append persists evt as the next version of its aggregate.
func (s *EventStore) Append(ctx context.Context, evt hendelse.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := evt.Validate(); err != nil {
		return err
	}
	evt.OccurredAt = fromMicros(toMicros(evt.OccurredAt))

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

		metadata, err := json.Marshal(evt.Metadata)
		if err != nil {
			return fmt.Errorf("marshal event metadata: %w", err)
		}
		var previous sql.NullString
		if evt.PreviousEventID != nil {
			previous = sql.NullString{String: evt.PreviousEventID.String(), Valid: true}
		}

		_, err = q.ExecContext(ctx,
			`INSERT INTO event (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			evt.EventID.String(),
			evt.AggregateID.String(),
			evt.OwnerID.String(),
			string(evt.Type),
			evt.Version,
			[]byte(evt.Payload),
			toMicros(evt.OccurredAt),
			previous,
			string(metadata),
		)
		if err != nil {
			if isUniqueViolation(err, "event.aggregate_id") {
				return &hendelse.VersionConflictError{AggregateID: evt.AggregateID, Expected: evt.Version - 1, Actual: -1}
			}
			return fmt.Errorf("insert event: %w", err)
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
	events, err := queryEvents(ctx, s.db.Querier(ctx),
		`SELECT `+eventColumns+` FROM event WHERE aggregate_id = ? ORDER BY version ASC`,
		aggregateID.String(),
	)
	if err != nil {
		return nil, err
	}
	if err := hendelse.VerifyChain(aggregateID, events); err != nil {
		slog.ErrorContext(ctx, "Stored event chain is corrupt", "aggregateID", aggregateID, "error", err)
		return nil, err
	}
	return events, nil
}

// ReadForOwnerAndType loads the events of one type across an owner's aggregates.
func (s *EventStore) ReadForOwnerAndType(ctx context.Context, ownerID uuid.UUID, typ hendelse.Type) ([]hendelse.Event, error) {
	return queryEvents(ctx, s.db.Querier(ctx),
		`SELECT `+eventColumns+` FROM event WHERE owner_id = ? AND type = ? ORDER BY aggregate_id, version`,
		ownerID.String(), string(typ),
	)
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

func readHead(ctx context.Context, q Querier, aggregateID uuid.UUID) (hendelse.Head, uuid.UUID, error) {
	head := hendelse.Head{AggregateID: aggregateID}
	var eventID, owner string
	err := q.QueryRowContext(ctx,
		`SELECT version, event_id, owner_id FROM event WHERE aggregate_id = ? ORDER BY version DESC LIMIT 1`,
		aggregateID.String(),
	).Scan(&head.Version, &eventID, &owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return head, uuid.Nil, nil
		}
		return head, uuid.Nil, fmt.Errorf("read head of aggregate %s: %w", aggregateID, err)
	}
	id, err := uuid.Parse(eventID)
	if err != nil {
		return head, uuid.Nil, fmt.Errorf("parse event id %q: %w", eventID, err)
	}
	ownerID, err := uuid.Parse(owner)
	if err != nil {
		return head, uuid.Nil, fmt.Errorf("parse owner id %q: %w", owner, err)
	}
	head.EventID = &id
	return head, ownerID, nil
}

func readByID(ctx context.Context, q Querier, eventID uuid.UUID) (hendelse.Event, error) {
	evt, err := scanEvent(q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM event WHERE event_id = ?`, eventID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return hendelse.Event{}, fmt.Errorf("event %s: %w", eventID, hendelse.ErrNotFound)
		}
		return hendelse.Event{}, fmt.Errorf("read event %s: %w", eventID, err)
	}
	return evt, nil
}

func queryEvents(ctx context.Context, q Querier, query string, args ...any) ([]hendelse.Event, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []hendelse.Event{}
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read event rows: %w", err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (hendelse.Event, error) {
	var (
		evt                           hendelse.Event
		eventID, aggregateID, ownerID string
		typ, metadata                 string
		payload                       []byte
		occurredAt                    int64
		previous                      sql.NullString
	)
	if err := row.Scan(&eventID, &aggregateID, &ownerID, &typ, &evt.Version, &payload, &occurredAt, &previous, &metadata); err != nil {
		return hendelse.Event{}, err
	}

	var err error
	if evt.EventID, err = uuid.Parse(eventID); err != nil {
		return hendelse.Event{}, fmt.Errorf("parse event id %q: %w", eventID, err)
	}
	if evt.AggregateID, err = uuid.Parse(aggregateID); err != nil {
		return hendelse.Event{}, fmt.Errorf("parse aggregate id %q: %w", aggregateID, err)
	}
	if evt.OwnerID, err = uuid.Parse(ownerID); err != nil {
		return hendelse.Event{}, fmt.Errorf("parse owner id %q: %w", ownerID, err)
	}
	if previous.Valid {
		id, err := uuid.Parse(previous.String)
		if err != nil {
			return hendelse.Event{}, fmt.Errorf("parse previous event id %q: %w", previous.String, err)
		}
		evt.PreviousEventID = &id
	}
	evt.Type = hendelse.Type(typ)
	evt.Payload = json.RawMessage(payload)
	evt.OccurredAt = fromMicros(occurredAt)
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &evt.Metadata); err != nil {
			return hendelse.Event{}, fmt.Errorf("unmarshal event metadata: %w", err)
		}
	}
	return evt, nil
}
