package hendelse

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Codec encodes and decodes the payload of one event type.
type Codec interface {
	Encode(payload any) (json.RawMessage, error)
	Decode(data json.RawMessage) (any, error)
}

// Registry maps event types to payload codecs. Each aggregate module registers
// its own types; the store never sees the concrete payloads.
type Registry struct {
	mu     sync.RWMutex
	codecs map[Type]Codec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[Type]Codec)}
}

// Register associates a type with a codec. It panics if the type is registered
// twice, so it should be called while wiring the application.
func (r *Registry) Register(typ Type, codec Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.codecs[typ]; ok {
		panic(fmt.Sprintf("event type '%s' is already registered", typ))
	}
	r.codecs[typ] = codec
}

// RegisterJSON registers a JSON codec decoding typ into a T value.
func RegisterJSON[T any](r *Registry, typ Type) {
	r.Register(typ, jsonCodec[T]{typ: typ})
}

// Encode serializes payload with the codec registered for typ.
func (r *Registry) Encode(typ Type, payload any) (json.RawMessage, error) {
	codec, err := r.lookup(typ)
	if err != nil {
		return nil, err
	}
	return codec.Encode(payload)
}

// Decode deserializes the payload of evt.
func (r *Registry) Decode(evt Event) (any, error) {
	codec, err := r.lookup(evt.Type)
	if err != nil {
		return nil, err
	}
	payload, err := codec.Decode(evt.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload of %s: %w", evt, err)
	}
	return payload, nil
}

// Has reports whether typ is registered.
func (r *Registry) Has(typ Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.codecs[typ]
	return ok
}

// Types lists the registered types in lexical order.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]Type, 0, len(r.codecs))
	for typ := range r.codecs {
		types = append(types, typ)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func (r *Registry) lookup(typ Type) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codec, ok := r.codecs[typ]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownType, typ)
	}
	return codec, nil
}

type jsonCodec[T any] struct {
	typ Type
}

func (c jsonCodec[T]) Encode(payload any) (json.RawMessage, error) {
	var value T
	switch p := payload.(type) {
	case T:
		value = p
	case *T:
		if p == nil {
			return nil, fmt.Errorf("%w: nil payload for '%s'", ErrPayloadType, c.typ)
		}
		value = *p
	default:
		return nil, fmt.Errorf("%w: '%s' expects %T, got %T", ErrPayloadType, c.typ, value, payload)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload of '%s': %w", c.typ, err)
	}
	return data, nil
}

func (c jsonCodec[T]) Decode(data json.RawMessage) (any, error) {
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}
