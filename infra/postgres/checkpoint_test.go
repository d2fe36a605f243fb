package postgres_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
	"github.com/navikt/su-se-bakover-sub020/infra/postgres"
	"github.com/navikt/su-se-bakover-sub020/testutil"
)

type CheckpointIntegrationSuite struct {
	testutil.DBIntegrationSuite
	events      *postgres.EventStore
	checkpoints *postgres.CheckpointStore
}

func TestCheckpointIntegrationSuite(t *testing.T) {
	suite.Run(t, new(CheckpointIntegrationSuite))
}

func (s *CheckpointIntegrationSuite) SetupTest() {
	s.events = postgres.NewEventStore(s.DB)
	s.checkpoints = postgres.NewCheckpointStore(s.DB)
	s.TruncateEvents()
}

func (s *CheckpointIntegrationSuite) appendAll(events ...hendelse.Event) {
	for _, evt := range events {
		s.Require().NoError(s.events.Append(context.Background(), evt))
	}
}

func (s *CheckpointIntegrationSuite) TestOutstanding_RedeliveredUntilMarkedDone() {
	// GIVEN one created event
	ctx := context.Background()
	consumer := hendelse.ConsumerID("C1")
	events := testutil.Stream(uuid.New(), 1)
	s.appendAll(events...)

	// WHEN the consumer polls but crashes before checkpointing
	first, err := s.checkpoints.Outstanding(ctx, consumer, testutil.CreatedType, 10)
	s.Require().NoError(err)
	s.Equal([]uuid.UUID{events[0].EventID}, first)

	// THEN the next poll returns the same event
	second, err := s.checkpoints.Outstanding(ctx, consumer, testutil.CreatedType, 10)
	s.Require().NoError(err)
	s.Equal(first, second)

	// AND once checkpointed it is no longer outstanding
	s.Require().NoError(s.checkpoints.MarkDone(ctx, consumer, events[0].EventID))
	third, err := s.checkpoints.Outstanding(ctx, consumer, testutil.CreatedType, 10)
	s.Require().NoError(err)
	s.Empty(third)
}

func (s *CheckpointIntegrationSuite) TestMarkDone_IsIdempotent() {
	ctx := context.Background()
	consumer := hendelse.ConsumerID("C1")
	events := testutil.Stream(uuid.New(), 3)
	s.appendAll(events...)

	s.Require().NoError(s.checkpoints.MarkDone(ctx, consumer, events[1].EventID))
	s.Require().NoError(s.checkpoints.MarkDone(ctx, consumer, events[1].EventID, events[2].EventID, events[2].EventID))
	s.Require().NoError(s.checkpoints.MarkDone(ctx, consumer))

	var count int
	err := s.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM event_checkpoint WHERE consumer_id = $1", "C1").Scan(&count)
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *CheckpointIntegrationSuite) TestMarkDone_UnknownEvent() {
	err := s.checkpoints.MarkDone(context.Background(), "C1", uuid.New())

	s.ErrorIs(err, hendelse.ErrNotFound)
}

func (s *CheckpointIntegrationSuite) TestOutstanding_ConsumersAreIndependent() {
	ctx := context.Background()
	events := testutil.Stream(uuid.New(), 1)
	s.appendAll(events...)

	s.Require().NoError(s.checkpoints.MarkDone(ctx, "C1", events[0].EventID))

	done, err := s.checkpoints.Outstanding(ctx, "C1", testutil.CreatedType, 10)
	s.Require().NoError(err)
	s.Empty(done)

	pending, err := s.checkpoints.Outstanding(ctx, "C2", testutil.CreatedType, 10)
	s.Require().NoError(err)
	s.Equal([]uuid.UUID{events[0].EventID}, pending)
}

func (s *CheckpointIntegrationSuite) TestOutstanding_FiltersByTypeAndRespectsLimit() {
	// GIVEN three aggregates with one created and two updated events each
	ctx := context.Background()
	var created []uuid.UUID
	for range 3 {
		events := testutil.Stream(uuid.New(), 3)
		s.appendAll(events...)
		created = append(created, events[0].EventID)
	}

	// WHEN
	all, err := s.checkpoints.Outstanding(ctx, "C1", testutil.CreatedType, 10)
	s.Require().NoError(err)
	limited, err := s.checkpoints.Outstanding(ctx, "C1", testutil.UpdatedType, 4)
	s.Require().NoError(err)

	// THEN
	s.ElementsMatch(created, all)
	s.Len(limited, 4)

	_, err = s.checkpoints.Outstanding(ctx, "C1", testutil.CreatedType, 0)
	s.ErrorIs(err, hendelse.ErrInvalidLimit)
}

func (s *CheckpointIntegrationSuite) TestOutstandingByOwner() {
	// GIVEN two owners, one with two aggregates
	ctx := context.Background()
	ownerA, ownerB := uuid.New(), uuid.New()
	a1 := testutil.Stream(ownerA, 1)
	a2 := testutil.Stream(ownerA, 1)
	b1 := testutil.Stream(ownerB, 1)
	s.appendAll(a1[0], a2[0], b1[0])
	s.Require().NoError(s.checkpoints.MarkDone(ctx, "C1", a2[0].EventID))

	// WHEN
	grouped, err := s.checkpoints.OutstandingByOwner(ctx, "C1", testutil.CreatedType, 10)

	// THEN
	s.Require().NoError(err)
	s.Equal(map[uuid.UUID][]uuid.UUID{
		ownerA: {a1[0].EventID},
		ownerB: {b1[0].EventID},
	}, grouped)

	none, err := s.checkpoints.OutstandingByOwner(ctx, "C1", testutil.UpdatedType, 10)
	s.Require().NoError(err)
	s.Empty(none)

	_, err = s.checkpoints.OutstandingByOwner(ctx, "C1", testutil.CreatedType, -1)
	s.ErrorIs(err, hendelse.ErrInvalidLimit)
}

func (s *CheckpointIntegrationSuite) TestOutstandingByOwner_LimitsTotalRows() {
	// GIVEN three outstanding updates for owner A and two for owner B
	ctx := context.Background()
	ownerA, ownerB := uuid.New(), uuid.New()
	a := testutil.Stream(ownerA, 4)
	b := testutil.Stream(ownerB, 3)
	s.appendAll(a...)
	s.appendAll(b...)
	idsOf := map[uuid.UUID][]uuid.UUID{
		ownerA: {a[1].EventID, a[2].EventID, a[3].EventID},
		ownerB: {b[1].EventID, b[2].EventID},
	}

	// WHEN
	grouped, err := s.checkpoints.OutstandingByOwner(ctx, "C1", testutil.UpdatedType, 3)

	// THEN the limit bounds the rows across owners
	s.Require().NoError(err)
	total := 0
	for owner, ids := range grouped {
		s.NotEmpty(ids)
		s.Subset(idsOf[owner], ids)
		total += len(ids)
	}
	s.Equal(3, total)
}

func (s *CheckpointIntegrationSuite) TestMarkDone_RolledBackWithCallerTransaction() {
	ctx := context.Background()
	events := testutil.Stream(uuid.New(), 1)
	s.appendAll(events...)

	err := s.DB.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.checkpoints.MarkDone(txCtx, "C1", events[0].EventID); err != nil {
			return err
		}
		return context.Canceled
	})
	s.Require().ErrorIs(err, context.Canceled)

	pending, err := s.checkpoints.Outstanding(ctx, "C1", testutil.CreatedType, 10)
	s.Require().NoError(err)
	s.Equal([]uuid.UUID{events[0].EventID}, pending)
}
