package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
)

// CheckpointStore implements hendelse.Tracker on SQLite.
type CheckpointStore struct {
	db *DB
}

func NewCheckpointStore(db *DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

// MarkDone checkpoints events for a consumer. Duplicates are ignored.
func (s *CheckpointStore) MarkDone(ctx context.Context, consumerID hendelse.ConsumerID, eventIDs ...uuid.UUID) error {
	if len(eventIDs) == 0 {
		return nil
	}
	return s.db.WithTransaction(ctx, func(ctx context.Context) error {
		q := s.db.Querier(ctx)
		for _, id := range eventIDs {
			_, err := q.ExecContext(ctx,
				`INSERT INTO event_checkpoint (event_id, consumer_id) VALUES (?, ?)
				 ON CONFLICT (event_id, consumer_id) DO NOTHING`,
				id.String(), string(consumerID),
			)
			if err != nil {
				if isForeignKeyViolation(err) {
					return fmt.Errorf("cannot checkpoint unknown event %s for %s: %w", id, consumerID, hendelse.ErrNotFound)
				}
				return fmt.Errorf("mark event %s as done: %w", id, err)
			}
		}
		return nil
	})
}

// Outstanding lists the ids of events of typ the consumer has not checkpointed.
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

// OutstandingByOwner groups the outstanding events of typ by owner.
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
	rows, err := s.db.Querier(ctx).QueryContext(ctx, `
		SELECT e.owner_id, e.event_id
		FROM event e
		WHERE e.type = ?
		  AND NOT EXISTS (
		      SELECT 1 FROM event_checkpoint c
		      WHERE c.event_id = e.event_id AND c.consumer_id = ?
		  )
		ORDER BY e.occurred_at, e.aggregate_id, e.version
		LIMIT ?`,
		string(typ), string(consumerID), limit,
	)
	if err != nil {
		slog.WarnContext(ctx, "Failed to query outstanding events", "consumer", consumerID, "eventType", typ, "error", err)
		return nil, fmt.Errorf("query outstanding events: %w", err)
	}
	defer rows.Close()

	var result []outstandingRow
	for rows.Next() {
		var owner, id string
		if err := rows.Scan(&owner, &id); err != nil {
			slog.WarnContext(ctx, "Failed to scan outstanding event", "consumer", consumerID, "eventType", typ, "error", err)
			return nil, fmt.Errorf("scan outstanding event: %w", err)
		}
		var r outstandingRow
		if r.ownerID, err = uuid.Parse(owner); err != nil {
			return nil, fmt.Errorf("parse owner id %q: %w", owner, err)
		}
		if r.eventID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse event id %q: %w", id, err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		slog.WarnContext(ctx, "Failed to read outstanding events", "consumer", consumerID, "eventType", typ, "error", err)
		return nil, fmt.Errorf("read outstanding events: %w", err)
	}
	return result, nil
}
