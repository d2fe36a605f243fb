package hendelse

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type tags an event's payload schema and selects the state machine it feeds.
type Type string

// ConsumerID names an independent consumer tracking its own checkpoints.
type ConsumerID string

// Metadata is carried for audit purposes only. The store never interprets it.
type Metadata struct {
	CorrelationID string   `json:"correlation_id,omitempty"`
	Actor         string   `json:"actor,omitempty"`
	Roles         []string `json:"roles,omitempty"`
}

// Event is an immutable, versioned fact about one aggregate.
type Event struct {
	EventID         uuid.UUID
	AggregateID     uuid.UUID
	OwnerID         uuid.UUID
	Type            Type
	Version         int
	Payload         json.RawMessage
	OccurredAt      time.Time
	PreviousEventID *uuid.UUID
	Metadata        Metadata
}

// String implements fmt.Stringer.
func (e Event) String() string {
	return fmt.Sprintf("%s@%s/%d", e.Type, e.AggregateID, e.Version)
}

// Validate checks the fields every stored event must carry.
func (e Event) Validate() error {
	switch {
	case e.EventID == uuid.Nil:
		return fmt.Errorf("%w: missing event id", ErrInvalidEvent)
	case e.AggregateID == uuid.Nil:
		return fmt.Errorf("%w: missing aggregate id", ErrInvalidEvent)
	case e.OwnerID == uuid.Nil:
		return fmt.Errorf("%w: missing owner id", ErrInvalidEvent)
	case e.Type == "":
		return fmt.Errorf("%w: missing type", ErrInvalidEvent)
	case len(e.Payload) == 0:
		return fmt.Errorf("%w: missing payload", ErrInvalidEvent)
	}
	return nil
}

// SameRecord reports whether two events describe the same stored fact. It is used
// to tell an idempotent resubmission apart from an id collision.
func (e Event) SameRecord(other Event) bool {
	return e.EventID == other.EventID &&
		e.AggregateID == other.AggregateID &&
		e.Version == other.Version &&
		e.Type == other.Type
}

// Head is the tip of one aggregate's stream. An empty stream has version 0 and
// no event id.
type Head struct {
	AggregateID uuid.UUID
	Version     int
	EventID     *uuid.UUID
}

// Next builds the skeleton of the event that extends this head.
func (h Head) Next() Event {
	return Event{
		AggregateID:     h.AggregateID,
		Version:         h.Version + 1,
		PreviousEventID: h.EventID,
	}
}
