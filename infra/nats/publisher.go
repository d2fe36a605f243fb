// Package nats relays stored events to NATS JetStream. The publisher is used as
// a consumer handler, so every event is published at least once and JetStream
// drops duplicates by event id.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
)

// Message is the JSON document published for each event.
type Message struct {
	EventID         uuid.UUID         `json:"event_id"`
	AggregateID     uuid.UUID         `json:"aggregate_id"`
	OwnerID         uuid.UUID         `json:"owner_id"`
	Type            hendelse.Type     `json:"type"`
	Version         int               `json:"version"`
	Payload         json.RawMessage   `json:"payload"`
	OccurredAt      time.Time         `json:"occurred_at"`
	PreviousEventID *uuid.UUID        `json:"previous_event_id,omitempty"`
	Metadata        hendelse.Metadata `json:"metadata"`
}

// NewMessage converts a stored event into its published form.
func NewMessage(evt hendelse.Event) Message {
	return Message{
		EventID:         evt.EventID,
		AggregateID:     evt.AggregateID,
		OwnerID:         evt.OwnerID,
		Type:            evt.Type,
		Version:         evt.Version,
		Payload:         evt.Payload,
		OccurredAt:      evt.OccurredAt,
		PreviousEventID: evt.PreviousEventID,
		Metadata:        evt.Metadata,
	}
}

// Publisher publishes events to one JetStream stream. Subjects are
// <stream>.<type>.<aggregate id>.
type Publisher struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	stream string
}

// NewPublisher connects to url and makes sure the stream exists.
func NewPublisher(ctx context.Context, url, stream string) (*Publisher, error) {
	if stream == "" {
		return nil, errors.New("stream name is required")
	}
	nc, err := nats.Connect(
		url,
		nats.Timeout(10*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	p := &Publisher{conn: nc, js: js, stream: stream}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return p, nil
}

func (p *Publisher) ensureStream(ctx context.Context) error {
	_, err := p.js.StreamInfo(p.stream, nats.Context(ctx))
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to get stream info for %s: %w", p.stream, err)
	}

	slog.InfoContext(ctx, "Stream not found, creating it", "stream", p.stream)
	_, err = p.js.AddStream(&nats.StreamConfig{
		Name:       p.stream,
		Subjects:   []string{p.stream + ".>"},
		Duplicates: 10 * time.Minute,
	}, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", p.stream, err)
	}
	return nil
}

// Subject returns the subject evt is published on.
func (p *Publisher) Subject(evt hendelse.Event) string {
	return fmt.Sprintf("%s.%s.%s", p.stream, subjectToken(string(evt.Type)), evt.AggregateID)
}

// Publish sends evt and waits for the JetStream acknowledgement. The event id is
// the message id, so republishing after a lost checkpoint is deduplicated.
func (p *Publisher) Publish(ctx context.Context, evt hendelse.Event) error {
	data, err := json.Marshal(NewMessage(evt))
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", evt.EventID, err)
	}

	subject := p.Subject(evt)
	ack, err := p.js.Publish(subject, data, nats.MsgId(evt.EventID.String()), nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to publish event %s to NATS: %w", evt.EventID, err)
	}

	slog.DebugContext(ctx, "Event published", "subject", subject, "eventID", evt.EventID, "sequence", ack.Sequence, "duplicate", ack.Duplicate)
	return nil
}

// Subscribe creates a durable pull subscription on the stream and calls handler
// for every message until ctx is done or the connection is closed. Messages are
// acked after handler succeeds and nacked otherwise. The returned channel is
// closed once the subscription has been removed.
func (p *Publisher) Subscribe(ctx context.Context, durable string, handler func(context.Context, Message) error) (<-chan struct{}, error) {
	sub, err := p.js.PullSubscribe(p.stream+".>", durable, nats.PullMaxWaiting(128))
	if err != nil {
		return nil, fmt.Errorf("failed to create pull subscription: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
				slog.WarnContext(ctx, "Failed to unsubscribe", "error", err, "stream", p.stream, "durable", durable)
			}
		}()

		retry := backoff.NewExponentialBackOff()
		retry.MaxInterval = 5 * time.Second

		slog.InfoContext(ctx, "Subscriber started", "stream", p.stream, "durable", durable)
		for {
			select {
			case <-ctx.Done():
				slog.InfoContext(ctx, "Subscriber stopping", "stream", p.stream, "durable", durable)
				return
			default:
			}

			msgs, err := sub.Fetch(10, nats.MaxWait(2*time.Second))
			switch {
			case errors.Is(err, nats.ErrConnectionClosed), errors.Is(err, nats.ErrBadSubscription):
				slog.InfoContext(ctx, "Connection closed, subscriber stopping", "stream", p.stream, "durable", durable)
				return
			case errors.Is(err, nats.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
				continue
			case err != nil:
				delay := retry.NextBackOff()
				slog.ErrorContext(ctx, "Failed to fetch messages", "error", err, "stream", p.stream, "retryIn", delay)
				select {
				case <-ctx.Done():
				case <-time.After(delay):
				}
				continue
			}
			retry.Reset()

			for _, msg := range msgs {
				var m Message
				if err := json.Unmarshal(msg.Data, &m); err != nil {
					slog.ErrorContext(ctx, "Failed to unmarshal message, terminating it", "error", err, "subject", msg.Subject)
					_ = msg.Term()
					continue
				}
				if err := handler(ctx, m); err != nil {
					slog.ErrorContext(ctx, "Handler failed to process message", "error", err, "eventID", m.EventID)
					_ = msg.Nak()
					continue
				}
				_ = msg.Ack()
			}
		}
	}()

	return done, nil
}

// Close closes the NATS connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// subjectToken replaces characters NATS treats as subject syntax.
func subjectToken(s string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}
