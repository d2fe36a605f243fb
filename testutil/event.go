package testutil

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
)

// TestCreated is a payload used by store tests.
type TestCreated struct {
	Name string `json:"name"`
}

const (
	CreatedType hendelse.Type = "TEST_CREATED"
	UpdatedType hendelse.Type = "TEST_UPDATED"
)

// NextEvent builds a new event extending head for ownerID.
func NextEvent(head hendelse.Head, ownerID uuid.UUID, typ hendelse.Type, payload any) hendelse.Event {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	evt := head.Next()
	evt.EventID = uuid.New()
	evt.OwnerID = ownerID
	evt.Type = typ
	evt.Payload = data
	evt.OccurredAt = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(evt.Version) * time.Minute)
	return evt
}

// HeadOf returns the head after evt.
func HeadOf(evt hendelse.Event) hendelse.Head {
	id := evt.EventID
	return hendelse.Head{AggregateID: evt.AggregateID, Version: evt.Version, EventID: &id}
}

// Stream builds n chained events for a new aggregate. The first is CreatedType,
// the rest UpdatedType.
func Stream(ownerID uuid.UUID, n int) []hendelse.Event {
	head := hendelse.Head{AggregateID: uuid.New()}
	events := make([]hendelse.Event, 0, n)
	for i := range n {
		typ := UpdatedType
		if i == 0 {
			typ = CreatedType
		}
		evt := NextEvent(head, ownerID, typ, TestCreated{Name: "test"})
		events = append(events, evt)
		head = HeadOf(evt)
	}
	return events
}
