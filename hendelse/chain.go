package hendelse

import (
	"fmt"

	"github.com/google/uuid"
)

// VerifyChain checks that events form the gap-free sequence 1..N of one
// aggregate, each linked to its predecessor and sharing a single owner.
func VerifyChain(aggregateID uuid.UUID, events []Event) error {
	var prev *Event
	for i := range events {
		evt := &events[i]
		want := i + 1
		if evt.AggregateID != aggregateID {
			return &CorruptChainError{
				AggregateID: aggregateID,
				Version:     evt.Version,
				Reason:      fmt.Sprintf("event %s belongs to aggregate %s", evt.EventID, evt.AggregateID),
			}
		}
		if evt.Version != want {
			return &CorruptChainError{
				AggregateID: aggregateID,
				Version:     evt.Version,
				Reason:      fmt.Sprintf("expected version %d got %d", want, evt.Version),
			}
		}
		if prev == nil {
			if evt.PreviousEventID != nil {
				return &CorruptChainError{
					AggregateID: aggregateID,
					Version:     evt.Version,
					Reason:      "first event references a previous event",
				}
			}
		} else {
			if evt.PreviousEventID == nil || *evt.PreviousEventID != prev.EventID {
				return &CorruptChainError{
					AggregateID: aggregateID,
					Version:     evt.Version,
					Reason:      fmt.Sprintf("previous event id %s does not match %s", describe(evt.PreviousEventID), prev.EventID),
				}
			}
			if evt.OwnerID != prev.OwnerID {
				return &CorruptChainError{
					AggregateID: aggregateID,
					Version:     evt.Version,
					Reason:      fmt.Sprintf("owner changed from %s to %s", prev.OwnerID, evt.OwnerID),
				}
			}
		}
		prev = evt
	}
	return nil
}

// VerifyNext checks that evt extends head.
func VerifyNext(head Head, evt Event) error {
	switch {
	case evt.Version < 1:
		return fmt.Errorf("version %d: %w", evt.Version, ErrVersionGap)
	case evt.Version <= head.Version:
		return &VersionConflictError{AggregateID: evt.AggregateID, Expected: evt.Version - 1, Actual: head.Version}
	case evt.Version > head.Version+1:
		return fmt.Errorf("aggregate %s at version %d, got %d: %w", evt.AggregateID, head.Version, evt.Version, ErrVersionGap)
	}
	if !sameID(head.EventID, evt.PreviousEventID) {
		return &CorruptChainError{
			AggregateID: evt.AggregateID,
			Version:     evt.Version,
			Reason:      fmt.Sprintf("previous event id %s does not match head %s", describe(evt.PreviousEventID), describe(head.EventID)),
		}
	}
	return nil
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func describe(id *uuid.UUID) string {
	if id == nil {
		return "<nil>"
	}
	return id.String()
}
