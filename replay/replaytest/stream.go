// Package replaytest builds well-formed event streams for state machine tests.
package replaytest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
	"github.com/navikt/su-se-bakover-sub020/replay"
)

// Epoch is the business time of the first event in a Stream.
var Epoch = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

// Stream accumulates chained events for one aggregate.
type Stream struct {
	AggregateID uuid.UUID
	OwnerID     uuid.UUID
	Events      []replay.Decoded
}

// NewStream starts an empty stream with random aggregate and owner ids.
func NewStream() *Stream {
	return &Stream{AggregateID: uuid.New(), OwnerID: uuid.New()}
}

// Add appends an event at the next version. Each event occurs one hour after
// the previous one.
func (s *Stream) Add(typ hendelse.Type, data any) *Stream {
	payload, err := json.Marshal(data)
	if err != nil {
		panic(fmt.Sprintf("marshal %s: %v", typ, err))
	}

	evt := hendelse.Event{
		EventID:     uuid.New(),
		AggregateID: s.AggregateID,
		OwnerID:     s.OwnerID,
		Type:        typ,
		Version:     len(s.Events) + 1,
		Payload:     payload,
		OccurredAt:  Epoch.Add(time.Duration(len(s.Events)) * time.Hour),
	}
	if n := len(s.Events); n > 0 {
		prev := s.Events[n-1].EventID
		evt.PreviousEventID = &prev
	}
	s.Events = append(s.Events, replay.Decoded{Event: evt, Data: data})
	return s
}

// At returns the business time the event at version v occurs.
func (s *Stream) At(v int) time.Time {
	return Epoch.Add(time.Duration(v-1) * time.Hour)
}

// Raw returns the stored form of the stream.
func (s *Stream) Raw() []hendelse.Event {
	raw := make([]hendelse.Event, len(s.Events))
	for i, evt := range s.Events {
		raw[i] = evt.Event
	}
	return raw
}
