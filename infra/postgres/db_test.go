package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
	"github.com/navikt/su-se-bakover-sub020/infra/postgres"
	"github.com/navikt/su-se-bakover-sub020/testutil"
)

type SessionIntegrationSuite struct {
	testutil.DBIntegrationSuite
}

func TestSessionIntegrationSuite(t *testing.T) {
	suite.Run(t, new(SessionIntegrationSuite))
}

func (s *SessionIntegrationSuite) backendPID(ctx context.Context) int32 {
	var pid int32
	s.Require().NoError(s.DB.Querier(ctx).QueryRow(ctx, "SELECT pg_backend_pid()").Scan(&pid))
	return pid
}

func (s *SessionIntegrationSuite) TestWithSession_RejectsNestedSession() {
	// GIVEN
	ctx := context.Background()
	innerCalled := false

	// WHEN
	err := s.DB.WithSession(ctx, func(ctx context.Context) error {
		return s.DB.WithSession(ctx, func(context.Context) error {
			innerCalled = true
			return nil
		})
	})

	// THEN
	s.ErrorIs(err, hendelse.ErrNestedSession)
	s.False(innerCalled)
}

func (s *SessionIntegrationSuite) TestWithSession_RejectsSessionInsideTransaction() {
	// GIVEN an open transaction that has already written one event
	ctx := context.Background()
	s.TruncateEvents()
	store := postgres.NewEventStore(s.DB)
	events := testutil.Stream(uuid.New(), 2)
	var sessionErr error

	// WHEN a session is opened on the transaction's context
	err := s.DB.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := store.Append(txCtx, events[0]); err != nil {
			return err
		}
		sessionErr = s.DB.WithSession(txCtx, func(ctx context.Context) error {
			return store.Append(ctx, events[1])
		})
		return nil
	})

	// THEN the session is refused and nothing is written through it
	s.Require().NoError(err)
	s.ErrorIs(sessionErr, hendelse.ErrNestedSession)
	stored, err := store.ReadForAggregate(ctx, events[0].AggregateID)
	s.Require().NoError(err)
	s.Len(stored, 1)
}

func (s *SessionIntegrationSuite) TestWithSession_PinsOneConnection() {
	ctx := context.Background()

	err := s.DB.WithSession(ctx, func(ctx context.Context) error {
		pid := s.backendPID(ctx)
		s.Equal(pid, s.backendPID(ctx))
		return s.DB.WithTransaction(ctx, func(txCtx context.Context) error {
			s.True(postgres.InTransaction(txCtx))
			s.Equal(pid, s.backendPID(txCtx), "transaction should run on the session's connection")
			return nil
		})
	})

	s.NoError(err)
}

func (s *SessionIntegrationSuite) TestWithTransaction_JoinsOuterTransaction() {
	// GIVEN
	ctx := context.Background()
	_, err := s.Pool.Exec(ctx, "CREATE TABLE IF NOT EXISTS tx_probe (id INT PRIMARY KEY)")
	s.Require().NoError(err)
	s.TruncateTables("tx_probe")

	// WHEN the outer transaction fails after the inner one returned
	err = s.DB.WithTransaction(ctx, func(outer context.Context) error {
		outerPID := s.backendPID(outer)
		err := s.DB.WithTransaction(outer, func(inner context.Context) error {
			s.Equal(outerPID, s.backendPID(inner))
			_, err := s.DB.Querier(inner).Exec(inner, "INSERT INTO tx_probe (id) VALUES (1)")
			return err
		})
		if err != nil {
			return err
		}
		return errors.New("outer failed")
	})

	// THEN the inner write is rolled back with it
	s.Error(err)
	var count int
	s.Require().NoError(s.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM tx_probe").Scan(&count))
	s.Zero(count)
}

func (s *SessionIntegrationSuite) TestEnsureSchema_IsIdempotent() {
	s.NoError(s.DB.EnsureSchema(context.Background()))
}
