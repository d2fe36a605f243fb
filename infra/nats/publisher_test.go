package nats_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/navikt/su-se-bakover-sub020/infra/nats"
	"github.com/navikt/su-se-bakover-sub020/testutil"
)

type PublisherIntegrationSuite struct {
	suite.Suite
	container testcontainers.Container
	url       string
}

func TestPublisherIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PublisherIntegrationSuite))
}

func (s *PublisherIntegrationSuite) SetupSuite() {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.10-alpine",
			Cmd:          []string{"-js"},
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	s.Require().NoError(err, "could not start nats container")

	endpoint, err := container.PortEndpoint(ctx, "4222/tcp", "nats")
	s.Require().NoError(err)

	s.container = container
	s.url = endpoint
}

func (s *PublisherIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		s.NoError(s.container.Terminate(context.Background()))
	}
}

func (s *PublisherIntegrationSuite) newPublisher(stream string) *nats.Publisher {
	p, err := nats.NewPublisher(context.Background(), s.url, stream)
	s.Require().NoError(err)
	s.T().Cleanup(p.Close)
	return p
}

func (s *PublisherIntegrationSuite) streamMessages(stream string) uint64 {
	nc, err := natsgo.Connect(s.url)
	s.Require().NoError(err)
	defer nc.Close()
	js, err := nc.JetStream()
	s.Require().NoError(err)
	info, err := js.StreamInfo(stream)
	s.Require().NoError(err)
	return info.State.Msgs
}

func (s *PublisherIntegrationSuite) TestPublish_DeduplicatesRedelivery() {
	// GIVEN
	ctx := context.Background()
	stream := fmt.Sprintf("HENDELSE_%d", time.Now().UnixNano())
	p := s.newPublisher(stream)
	events := testutil.Stream(uuid.New(), 2)

	// WHEN the first event is published twice, as after a lost checkpoint
	s.Require().NoError(p.Publish(ctx, events[0]))
	s.Require().NoError(p.Publish(ctx, events[0]))
	s.Require().NoError(p.Publish(ctx, events[1]))

	// THEN JetStream keeps one message per event
	s.Equal(uint64(2), s.streamMessages(stream))
	s.Equal(fmt.Sprintf("%s.TEST_CREATED.%s", stream, events[0].AggregateID), p.Subject(events[0]))
}

func (s *PublisherIntegrationSuite) TestSubscribe_ReceivesPublishedEvents() {
	// GIVEN
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	stream := fmt.Sprintf("HENDELSE_%d", time.Now().UnixNano())
	p := s.newPublisher(stream)
	received := make(chan nats.Message, 4)
	_, err := p.Subscribe(ctx, "test-durable", func(_ context.Context, m nats.Message) error {
		received <- m
		return nil
	})
	s.Require().NoError(err)

	// WHEN
	evt := testutil.Stream(uuid.New(), 1)[0]
	s.Require().NoError(p.Publish(ctx, evt))

	// THEN
	select {
	case m := <-received:
		s.Equal(evt.EventID, m.EventID)
		s.Equal(evt.AggregateID, m.AggregateID)
		s.Equal(evt.Version, m.Version)
		s.JSONEq(string(evt.Payload), string(m.Payload))
	case <-ctx.Done():
		s.Fail("timed out waiting for message")
	}
}

func (s *PublisherIntegrationSuite) TestSubscribe_StopsWhenConnectionCloses() {
	// GIVEN a running subscriber
	stream := fmt.Sprintf("HENDELSE_%d", time.Now().UnixNano())
	p := s.newPublisher(stream)
	done, err := p.Subscribe(context.Background(), "closing-durable", func(context.Context, nats.Message) error {
		return nil
	})
	s.Require().NoError(err)

	// WHEN the connection is closed under it
	p.Close()

	// THEN the subscriber exits instead of fetching in a loop
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		s.Fail("subscriber did not stop after the connection closed")
	}
}

func (s *PublisherIntegrationSuite) TestSubscribe_StopsWhenContextIsCancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	stream := fmt.Sprintf("HENDELSE_%d", time.Now().UnixNano())
	p := s.newPublisher(stream)
	done, err := p.Subscribe(ctx, "cancelled-durable", func(context.Context, nats.Message) error {
		return nil
	})
	s.Require().NoError(err)

	cancel()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		s.Fail("subscriber did not stop after the context was cancelled")
	}
}

func (s *PublisherIntegrationSuite) TestNewPublisher_RequiresStream() {
	_, err := nats.NewPublisher(context.Background(), s.url, "")
	s.Error(err)
}
