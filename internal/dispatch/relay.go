package dispatch

import (
	"context"
	"log/slog"
)

// Envelope is one outbound notification.
type Envelope struct {
	To      string
	Name    string
	Subject string
	Body    string
}

// Relay hands an envelope to the outside world.
type Relay interface {
	Send(ctx context.Context, env Envelope) error
}

// LogRelay records envelopes in the log instead of delivering them.
type LogRelay struct {
	Logger *slog.Logger
}

// Send implements Relay.
func (r LogRelay) Send(_ context.Context, env Envelope) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification relayed",
		slog.String("to", env.To),
		slog.String("subject", env.Subject),
		slog.Int("body_len", len(env.Body)))
	return nil
}
