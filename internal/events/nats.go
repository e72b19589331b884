package events

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
)

// NATSPublisher publishes events to "<subject>.<event type>".
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url, subject string, opts ...nats.Option) (*NATSPublisher, error) {
	if subject == "" {
		return nil, ferrors.ValidationError("nats subject is required").Build()
	}
	opts = append([]nats.Option{nats.Name("autobuild")}, opts...)
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, ferrors.NetworkError("failed to connect to NATS").
			WithCause(err).
			WithContext("url", url).
			Build()
	}

	slog.Info("NATS publisher connected", slog.String("url", url), slog.String("subject", subject))
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// Publish sends the event and flushes so delivery failures surface here.
func (p *NATSPublisher) Publish(ctx context.Context, evt Event) error {
	data, err := Marshal(evt)
	if err != nil {
		return ferrors.InternalError("failed to marshal event").
			WithCause(err).
			WithContext("type", evt.EventType()).
			Build()
	}

	subject := p.subject + "." + evt.EventType()
	if err := p.conn.Publish(subject, data); err != nil {
		return ferrors.NetworkError("failed to publish event").
			WithCause(err).
			WithContext("subject", subject).
			Build()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return ferrors.NetworkError("failed to flush event").
			WithCause(err).
			WithContext("subject", subject).
			Build()
	}

	slog.Debug("Published run event", slog.String("subject", subject), slog.String("run_id", evt.EventRunID()))
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
