package mail

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const simulatorOutboxSize = 100

// SimulatorTransport logs the message instead of delivering it and always
// reports success. The last few messages are kept in an outbox for local
// development and tests.
type SimulatorTransport struct {
	logger zerolog.Logger

	mu     sync.Mutex
	outbox []Message
}

// NewSimulatorTransport returns a simulator that logs through the global logger.
func NewSimulatorTransport() *SimulatorTransport {
	return &SimulatorTransport{logger: log.Logger.With().Str("transport", TransportSimulator).Logger()}
}

func (t *SimulatorTransport) Name() string { return TransportSimulator }

// Send never fails. The body is not logged because it carries the code.
func (t *SimulatorTransport) Send(_ context.Context, msg *Message) error {
	t.logger.Warn().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("body_bytes", len(msg.HTMLBody)).
		Msg("email simulated")

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.outbox) == simulatorOutboxSize {
		t.outbox = t.outbox[1:]
	}
	t.outbox = append(t.outbox, *msg)
	return nil
}

// Outbox returns a copy of the retained messages, oldest first.
func (t *SimulatorTransport) Outbox() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.outbox...)
}

// Last returns the most recent message sent to addr.
func (t *SimulatorTransport) Last(addr string) (Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.outbox) - 1; i >= 0; i-- {
		if t.outbox[i].To == addr {
			return t.outbox[i], true
		}
	}
	return Message{}, false
}
