package replay

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
)

var (
	// ErrUnknownTransition is returned when an event is not an edge out of the
	// current state.
	ErrUnknownTransition = errors.New("unknown transition")
	// ErrInvariant is returned when an edge exists but the event's payload breaks
	// an invariant of the target state.
	ErrInvariant = errors.New("transition invariant violated")
	// ErrExternalContext is returned when a bound machine receives an external
	// context of the wrong type.
	ErrExternalContext = errors.New("unexpected external context")
	// ErrNoMachine is returned when no machine is registered for a stream.
	ErrNoMachine = errors.New("no state machine registered")
)

// Decoded is a stored event together with its decoded payload.
type Decoded struct {
	hendelse.Event
	Data any
}

// Machine folds decoded events into a state of type S. The zero S means the
// aggregate has no state yet. X is read-only reference data passed in by the
// caller; Apply must not depend on anything else.
type Machine[S any, X any] interface {
	Apply(state S, evt Decoded, ext X) (S, error)
}

// Named is implemented by states that report a stable name for errors and logs.
type Named interface {
	StateName() string
}

// TransitionError reports an event the machine refused to fold.
type TransitionError struct {
	AggregateID uuid.UUID
	Version     int
	Type        hendelse.Type
	State       string
	Err         error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot apply %s (version %d) to aggregate %s in state %s: %v",
		e.Type, e.Version, e.AggregateID, e.State, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// Reject builds the error a machine returns for a non-edge.
func Reject(state any, evt Decoded) error {
	return fmt.Errorf("%w: %s from %s", ErrUnknownTransition, evt.Type, StateName(state))
}

// Invariant builds the error a machine returns when a payload breaks an invariant.
func Invariant(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

// StateName returns a printable name for a state value.
func StateName(state any) string {
	switch s := state.(type) {
	case nil:
		return "none"
	case Named:
		return s.StateName()
	default:
		return fmt.Sprintf("%T", state)
	}
}

// Decode pairs each event with its payload decoded through the registry.
func Decode(registry *hendelse.Registry, events []hendelse.Event) ([]Decoded, error) {
	decoded := make([]Decoded, 0, len(events))
	for _, evt := range events {
		data, err := registry.Decode(evt)
		if err != nil {
			return nil, err
		}
		decoded = append(decoded, Decoded{Event: evt, Data: data})
	}
	return decoded, nil
}

// Fold reconstructs the state of one aggregate from its ordered events. It
// verifies the chain, then applies every event in version order. The same input
// always produces the same state.
func Fold[S any, X any](aggregateID uuid.UUID, events []Decoded, m Machine[S, X], ext X) (S, error) {
	var state S

	raw := make([]hendelse.Event, len(events))
	for i := range events {
		raw[i] = events[i].Event
	}
	if err := hendelse.VerifyChain(aggregateID, raw); err != nil {
		slog.Error("Refusing to replay corrupt event chain", "aggregateID", aggregateID, "error", err)
		return state, err
	}

	for _, evt := range events {
		next, err := m.Apply(state, evt, ext)
		if err != nil {
			terr := &TransitionError{
				AggregateID: aggregateID,
				Version:     evt.Version,
				Type:        evt.Type,
				State:       StateName(state),
				Err:         err,
			}
			slog.Error(
				"Replay rejected event",
				"aggregateID", aggregateID,
				"version", evt.Version,
				"eventType", evt.Type,
				"eventID", evt.EventID,
				"state", terr.State,
				"error", err,
			)
			var zero S
			return zero, terr
		}
		state = next
	}
	return state, nil
}
