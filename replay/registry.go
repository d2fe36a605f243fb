package replay

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
)

// Reconstructor folds decoded events with an untyped external context.
type Reconstructor func(aggregateID uuid.UUID, events []Decoded, ext any) (any, error)

// Bind adapts a typed machine to a Reconstructor. A nil ext is replaced by the
// zero X.
func Bind[S any, X any](m Machine[S, X]) Reconstructor {
	return func(aggregateID uuid.UUID, events []Decoded, ext any) (any, error) {
		var x X
		if ext != nil {
			typed, ok := ext.(X)
			if !ok {
				return nil, fmt.Errorf("%w: got %T, expected %T", ErrExternalContext, ext, x)
			}
			x = typed
		}
		return Fold(aggregateID, events, m, x)
	}
}

// Registry selects a machine by the type of the event that opens a stream.
type Registry struct {
	mu       sync.RWMutex
	machines map[hendelse.Type]Reconstructor
}

// NewRegistry returns an empty machine registry.
func NewRegistry() *Registry {
	return &Registry{machines: make(map[hendelse.Type]Reconstructor)}
}

// Register binds the type of a stream's first event to a machine. It panics on
// duplicate registration.
func (r *Registry) Register(opening hendelse.Type, rec Reconstructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.machines[opening]; ok {
		panic(fmt.Sprintf("state machine for '%s' is already registered", opening))
	}
	r.machines[opening] = rec
}

// Reconstruct dispatches on the first event and folds the stream.
func (r *Registry) Reconstruct(aggregateID uuid.UUID, events []Decoded, ext any) (any, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("aggregate %s has no events: %w", aggregateID, hendelse.ErrNotFound)
	}

	r.mu.RLock()
	rec, ok := r.machines[events[0].Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stream opened by '%s'", ErrNoMachine, events[0].Type)
	}
	return rec(aggregateID, events, ext)
}
