package mail

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPTransport sends through an SMTP relay using gomail.
type SMTPTransport struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPTransport builds a transport for host:port with plain auth.
func NewSMTPTransport(host string, port int, user, password, from string) *SMTPTransport {
	return &SMTPTransport{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

func (t *SMTPTransport) Name() string { return TransportSMTP }

// Send dials, sends and closes the connection. gomail has no context
// support, so a cancelled ctx abandons the in-flight send and returns
// ctx.Err(); the dial itself times out after ten seconds.
func (t *SMTPTransport) Send(ctx context.Context, msg *Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)

	done := make(chan error, 1)
	go func() { done <- t.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email via smtp: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to send email via smtp: %w", ctx.Err())
	}
}
