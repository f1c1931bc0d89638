package mail

import (
	"context"

	"github.com/biihlive/authcodes/domain"
	"github.com/biihlive/authcodes/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Mailer renders a code email and delivers it with the configured transport.
type Mailer struct {
	renderer  *Renderer
	transport Transport
}

func NewMailer(renderer *Renderer, transport Transport) *Mailer {
	return &Mailer{renderer: renderer, transport: transport}
}

// Transport returns the transport chosen at startup.
func (m *Mailer) Transport() Transport { return m.transport }

// SendCode makes a single delivery attempt.
func (m *Mailer) SendCode(ctx context.Context, kind domain.CodeKind, to, code string) error {
	msg, err := m.renderer.Render(kind, to, code)
	if err != nil {
		return err
	}

	if err := m.transport.Send(ctx, msg); err != nil {
		metrics.EmailsSent.WithLabelValues(m.transport.Name(), "error").Inc()
		log.Error().Err(err).Str("transport", m.transport.Name()).Str("kind", string(kind)).Str("to", to).Msg("Code email delivery failed")
		return err
	}
	metrics.EmailsSent.WithLabelValues(m.transport.Name(), "ok").Inc()
	return nil
}
