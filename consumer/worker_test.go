package consumer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/navikt/su-se-bakover-sub020/consumer"
	"github.com/navikt/su-se-bakover-sub020/hendelse"
	"github.com/navikt/su-se-bakover-sub020/infra/sqlite"
	"github.com/navikt/su-se-bakover-sub020/replay"
	"github.com/navikt/su-se-bakover-sub020/service"
	"github.com/navikt/su-se-bakover-sub020/testutil"
)

const (
	consumerID hendelse.ConsumerID = "test-consumer"
	noteType   hendelse.Type       = "TEST_NOTE"
)

type WorkerSuite struct {
	suite.Suite
	db      *sqlite.DB
	events  *sqlite.EventStore
	service *service.Service
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupTest() {
	s.db = testutil.OpenSQLite(s.T())
	s.events = sqlite.NewEventStore(s.db)

	payloads := hendelse.NewRegistry()
	hendelse.RegisterJSON[testutil.TestCreated](payloads, testutil.CreatedType)
	hendelse.RegisterJSON[testutil.TestCreated](payloads, testutil.UpdatedType)
	hendelse.RegisterJSON[testutil.TestCreated](payloads, noteType)

	s.service = service.New(s.events, sqlite.NewCheckpointStore(s.db), s.db, payloads, replay.NewRegistry())
}

func (s *WorkerSuite) appendStreams(owner uuid.UUID, n int) []hendelse.Event {
	var created []hendelse.Event
	for range n {
		stream := testutil.Stream(owner, 2)
		for _, evt := range stream {
			s.Require().NoError(s.events.Append(context.Background(), evt))
		}
		created = append(created, stream[0])
	}
	return created
}

func (s *WorkerSuite) outstanding() []hendelse.Event {
	events, err := s.service.PollOutstanding(context.Background(), consumerID, testutil.CreatedType, 100)
	s.Require().NoError(err)
	return events
}

func (s *WorkerSuite) TestRunOnce_HandlesAndCheckpoints() {
	// GIVEN
	ctx := context.Background()
	created := s.appendStreams(uuid.New(), 3)
	var seen []uuid.UUID
	worker := consumer.NewWorker(consumerID, testutil.CreatedType, s.service, func(_ context.Context, evt hendelse.Event) error {
		seen = append(seen, evt.EventID)
		return nil
	})

	// WHEN
	handled, err := worker.RunOnce(ctx)

	// THEN
	s.Require().NoError(err)
	s.Equal(3, handled)
	s.Len(seen, 3)
	for _, evt := range created {
		s.Contains(seen, evt.EventID)
	}
	s.Empty(s.outstanding())

	handled, err = worker.RunOnce(ctx)
	s.NoError(err)
	s.Zero(handled)
}

func (s *WorkerSuite) TestRunOnce_FailedEventIsRedelivered() {
	// GIVEN a handler that fails on one event
	ctx := context.Background()
	created := s.appendStreams(uuid.New(), 2)
	poisoned := created[0].EventID
	failing := true
	calls := map[uuid.UUID]int{}
	worker := consumer.NewWorker(consumerID, testutil.CreatedType, s.service,
		func(_ context.Context, evt hendelse.Event) error {
			calls[evt.EventID]++
			if failing && evt.EventID == poisoned {
				return errors.New("downstream unavailable")
			}
			return nil
		},
		consumer.WithMaxTries(2),
		consumer.WithMaxElapsedTime(5*time.Second),
	)

	// WHEN
	handled, err := worker.RunOnce(ctx)

	// THEN the other event is checkpointed and the failed one stays outstanding
	s.Error(err)
	s.Equal(1, handled)
	s.Equal(2, calls[poisoned])
	remaining := s.outstanding()
	s.Require().Len(remaining, 1)
	s.Equal(poisoned, remaining[0].EventID)

	// AND it is delivered again once the handler recovers
	failing = false
	handled, err = worker.RunOnce(ctx)
	s.NoError(err)
	s.Equal(1, handled)
	s.Equal(3, calls[poisoned])
	s.Empty(s.outstanding())
}

func (s *WorkerSuite) TestRunOnce_BatchRunsOnOneSession() {
	// GIVEN a handler that tries to open its own session
	ctx := context.Background()
	s.appendStreams(uuid.New(), 2)
	var sessionErrs []error
	worker := consumer.NewWorker(consumerID, testutil.CreatedType, s.service, func(txCtx context.Context, _ hendelse.Event) error {
		sessionErrs = append(sessionErrs, s.db.WithSession(txCtx, func(context.Context) error { return nil }))
		return nil
	})

	// WHEN
	handled, err := worker.RunOnce(ctx)

	// THEN the handler already runs inside the worker's session
	s.Require().NoError(err)
	s.Equal(2, handled)
	s.Require().Len(sessionErrs, 2)
	for _, sessionErr := range sessionErrs {
		s.ErrorIs(sessionErr, hendelse.ErrNestedSession)
	}
}

func (s *WorkerSuite) TestRunOnce_HandlerWritesCommitWithCheckpoint() {
	// GIVEN a handler that appends a follow-up event and then fails
	ctx := context.Background()
	created := s.appendStreams(uuid.New(), 1)
	fail := true
	noteAggregate := uuid.New()
	handler := func(txCtx context.Context, evt hendelse.Event) error {
		_, err := s.service.AppendEvent(txCtx, service.AppendCommand{
			AggregateID: noteAggregate,
			OwnerID:     evt.OwnerID,
			Type:        noteType,
			Payload:     testutil.TestCreated{Name: evt.EventID.String()},
			EventID:     uuid.NewSHA1(uuid.NameSpaceOID, evt.EventID[:]),
		})
		if err != nil {
			return err
		}
		if fail {
			return errors.New("crashed after writing")
		}
		return nil
	}
	worker := consumer.NewWorker(consumerID, testutil.CreatedType, s.service, handler, consumer.WithMaxTries(1))

	// WHEN the first attempt fails
	_, err := worker.RunOnce(ctx)
	s.Error(err)

	// THEN neither the follow-up event nor the checkpoint is stored
	notes, err := s.service.ReadAggregate(ctx, noteAggregate)
	s.Require().NoError(err)
	s.Empty(notes)
	s.Len(s.outstanding(), 1)

	// WHEN it succeeds
	fail = false
	handled, err := worker.RunOnce(ctx)

	// THEN both are stored together
	s.Require().NoError(err)
	s.Equal(1, handled)
	notes, err = s.service.ReadAggregate(ctx, noteAggregate)
	s.Require().NoError(err)
	s.Require().Len(notes, 1)
	s.Equal(created[0].OwnerID, notes[0].OwnerID)
	s.Empty(s.outstanding())
}

func (s *WorkerSuite) TestOwnerWorker_GroupsByOwner() {
	// GIVEN
	ctx := context.Background()
	ownerA, ownerB := uuid.New(), uuid.New()
	s.appendStreams(ownerA, 2)
	s.appendStreams(ownerB, 1)
	got := map[uuid.UUID]int{}
	worker := consumer.NewOwnerWorker(consumerID, testutil.CreatedType, s.service,
		func(_ context.Context, owner uuid.UUID, events []hendelse.Event) error {
			got[owner] += len(events)
			for _, evt := range events {
				s.Equal(owner, evt.OwnerID)
			}
			return nil
		})

	// WHEN
	handled, err := worker.RunOnce(ctx)

	// THEN
	s.Require().NoError(err)
	s.Equal(3, handled)
	s.Equal(map[uuid.UUID]int{ownerA: 2, ownerB: 1}, got)
	s.Empty(s.outstanding())
}

func (s *WorkerSuite) TestStart_PollsUntilStopped() {
	// GIVEN
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.appendStreams(uuid.New(), 2)

	var (
		mu   sync.Mutex
		seen int
	)
	worker := consumer.NewWorker(consumerID, testutil.CreatedType, s.service,
		func(context.Context, hendelse.Event) error {
			mu.Lock()
			defer mu.Unlock()
			seen++
			return nil
		},
		consumer.WithInterval(20*time.Millisecond),
		consumer.WithBatchSize(1),
	)

	// WHEN
	worker.Start(ctx)

	// THEN every event is handled exactly once
	s.Eventually(func() bool { return len(s.outstanding()) == 0 }, 5*time.Second, 20*time.Millisecond)
	worker.Stop()
	worker.Stop()

	mu.Lock()
	defer mu.Unlock()
	s.Equal(2, seen)
}
