// Package mail renders code emails and hands them to a delivery transport.
package mail

import "context"

// Message is a single-recipient HTML email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Transport delivers a rendered message. Implementations make exactly one
// delivery attempt.
//
//go:generate mockgen -source=transport.go -destination=mocks/mock_transport.go -package=mocks
type Transport interface {
	Send(ctx context.Context, msg *Message) error
	// Name identifies the transport in logs and metrics.
	Name() string
}

const (
	TransportSMTP      = "smtp"
	TransportSES       = "ses"
	TransportSimulator = "simulator"
)
