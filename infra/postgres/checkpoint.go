package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
)

// CheckpointStore implements the hendelse.Tracker interface for PostgreSQL.
// A row in event_checkpoint means the consumer has finished handling the event.
type CheckpointStore struct {
	db *DB
}

func NewCheckpointStore(db *DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

// MarkDone checkpoints events for a consumer. Checkpointing an event twice is
// not an error: another worker handling the same event concurrently is a
// legitimate scenario under at-least-once delivery.
func (s *CheckpointStore) MarkDone(ctx context.Context, consumerID hendelse.ConsumerID, eventIDs ...uuid.UUID) error {
	if len(eventIDs) == 0 {
		return nil
	}

	query := `
        INSERT INTO event_checkpoint (event_id, consumer_id)
        SELECT id, $2 FROM unnest($1::uuid[]) AS id
        ON CONFLICT (event_id, consumer_id) DO NOTHING
    `
	_, err := s.db.Querier(ctx).Exec(ctx, query, eventIDs, string(consumerID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return fmt.Errorf("cannot checkpoint unknown event for %s: %w", consumerID, hendelse.ErrNotFound)
		}
		return fmt.Errorf("failed to mark events as done: %w", err)
	}
	return nil
}

// Outstanding lists the ids of events of typ the consumer has not checkpointed.
// On a read failure it returns an empty list with the error; callers poll again.
func (s *CheckpointStore) Outstanding(
	ctx context.Context,
	consumerID hendelse.ConsumerID,
	typ hendelse.Type,
	limit int,
) ([]uuid.UUID, error) {
	if limit <= 0 {
		return []uuid.UUID{}, fmt.Errorf("limit %d: %w", limit, hendelse.ErrInvalidLimit)
	}

	rows, err := s.outstanding(ctx, consumerID, typ, limit)
	if err != nil {
		return []uuid.UUID{}, err
	}
	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.eventID
	}
	return ids, nil
}

// OutstandingByOwner groups the outstanding events of typ by owner. limit bounds
// the rows read in total.
func (s *CheckpointStore) OutstandingByOwner(
	ctx context.Context,
	consumerID hendelse.ConsumerID,
	typ hendelse.Type,
	limit int,
) (map[uuid.UUID][]uuid.UUID, error) {
	if limit <= 0 {
		return map[uuid.UUID][]uuid.UUID{}, fmt.Errorf("limit %d: %w", limit, hendelse.ErrInvalidLimit)
	}

	rows, err := s.outstanding(ctx, consumerID, typ, limit)
	if err != nil {
		return map[uuid.UUID][]uuid.UUID{}, err
	}
	grouped := make(map[uuid.UUID][]uuid.UUID)
	for _, r := range rows {
		grouped[r.ownerID] = append(grouped[r.ownerID], r.eventID)
	}
	return grouped, nil
}

type outstandingRow struct {
	ownerID uuid.UUID
	eventID uuid.UUID
}

func (s *CheckpointStore) outstanding(
	ctx context.Context,
	consumerID hendelse.ConsumerID,
	typ hendelse.Type,
	limit int,
) ([]outstandingRow, error) {
	query := `
        SELECT e.owner_id, e.event_id
        FROM event e
        WHERE e.type = $1
          AND NOT EXISTS (
              SELECT 1 FROM event_checkpoint c
              WHERE c.event_id = e.event_id AND c.consumer_id = $2
          )
        ORDER BY e.occurred_at, e.aggregate_id, e.version
        LIMIT $3
    `
	rows, err := s.db.Querier(ctx).Query(ctx, query, string(typ), string(consumerID), limit)
	if err != nil {
		slog.WarnContext(ctx, "Failed to query outstanding events", "consumer", consumerID, "eventType", typ, "error", err)
		return nil, fmt.Errorf("failed to query outstanding events: %w", err)
	}
	defer rows.Close()

	var result []outstandingRow
	for rows.Next() {
		var r outstandingRow
		if err := rows.Scan(&r.ownerID, &r.eventID); err != nil {
			slog.WarnContext(ctx, "Failed to scan outstanding event", "consumer", consumerID, "eventType", typ, "error", err)
			return nil, fmt.Errorf("failed to scan outstanding event: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		slog.WarnContext(ctx, "Failed to read outstanding events", "consumer", consumerID, "eventType", typ, "error", err)
		return nil, fmt.Errorf("failed to read outstanding events: %w", err)
	}
	return result, nil
}
