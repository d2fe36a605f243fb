package hendelse

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrVersionConflict is matched by a VersionConflictError. Callers reload the
	// aggregate and retry the operation.
	ErrVersionConflict = errors.New("version conflict")
	// ErrCorruptChain is matched by a CorruptChainError.
	ErrCorruptChain = errors.New("corrupt event chain")
	// ErrVersionGap is returned when an append skips versions ahead of the head.
	ErrVersionGap = errors.New("version is ahead of the stream head")
	// ErrEventIDReused is returned when an event id is resubmitted for a
	// different aggregate or version.
	ErrEventIDReused = errors.New("event id reused for a different record")
	// ErrInvalidEvent is returned when an event lacks an id, aggregate, owner or type.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrNotFound is returned by point lookups.
	ErrNotFound = errors.New("not found")
	// ErrNestedSession is returned when a unit of work opens a session on a
	// context that already carries a session or a transaction.
	ErrNestedSession = errors.New("session already open on this context")
	// ErrInvalidLimit is returned by polling with a non-positive limit.
	ErrInvalidLimit = errors.New("limit must be positive")
	// ErrUnknownType is returned when no codec is registered for an event type.
	ErrUnknownType = errors.New("event type is not registered")
	// ErrPayloadType is returned when a payload does not match its registered type.
	ErrPayloadType = errors.New("payload does not match event type")
)

// VersionConflictError reports that another writer extended the stream first.
type VersionConflictError struct {
	AggregateID uuid.UUID
	Expected    int
	Actual      int
}

func (e *VersionConflictError) Error() string {
	if e.Actual < 0 {
		return fmt.Sprintf("version conflict on aggregate %s: version %d already taken", e.AggregateID, e.Expected+1)
	}
	return fmt.Sprintf("version conflict on aggregate %s: expected version %d, stream is at %d", e.AggregateID, e.Expected, e.Actual)
}

func (e *VersionConflictError) Is(target error) bool { return target == ErrVersionConflict }

// CorruptChainError reports a gap or a broken previous-event link. It is never
// repaired automatically.
type CorruptChainError struct {
	AggregateID uuid.UUID
	Version     int
	Reason      string
}

func (e *CorruptChainError) Error() string {
	return fmt.Sprintf("corrupt event chain on aggregate %s at version %d: %s", e.AggregateID, e.Version, e.Reason)
}

func (e *CorruptChainError) Is(target error) bool { return target == ErrCorruptChain }
