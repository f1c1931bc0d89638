package mail

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/rs/zerolog/log"
)

// Config carries the delivery settings resolved at startup.
type Config struct {
	// Transport forces a transport ("smtp", "ses", "simulator"). Empty
	// means smtp when credentials are complete, the simulator otherwise.
	Transport    string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	From         string
	SESRegion    string
}

// HasSMTPCredentials reports whether every SMTP setting is present.
func (c Config) HasSMTPCredentials() bool {
	return c.SMTPHost != "" && c.SMTPPort > 0 && c.SMTPUser != "" && c.SMTPPassword != "" && c.From != ""
}

// NewTransport selects the transport once. Missing SMTP credentials fall
// back to the simulator with a warning; an explicit ses or smtp request
// with missing settings is an error.
func NewTransport(ctx context.Context, cfg Config) (Transport, error) {
	switch cfg.Transport {
	case TransportSES:
		if cfg.From == "" {
			return nil, fmt.Errorf("ses transport requires a from address")
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SESRegion))
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		log.Info().Str("transport", TransportSES).Str("region", cfg.SESRegion).Msg("Mail transport selected")
		return NewSESTransport(ses.NewFromConfig(awsCfg), cfg.From), nil
	case TransportSimulator:
		log.Warn().Str("transport", TransportSimulator).Msg("Mail transport forced to simulator; no email will be delivered")
		return NewSimulatorTransport(), nil
	case TransportSMTP:
		if !cfg.HasSMTPCredentials() {
			return nil, fmt.Errorf("smtp transport requires host, port, user, password and from address")
		}
	case "":
		if !cfg.HasSMTPCredentials() {
			log.Warn().Str("transport", TransportSimulator).Msg("SMTP credentials missing; falling back to the email simulator")
			return NewSimulatorTransport(), nil
		}
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Transport)
	}

	log.Info().Str("transport", TransportSMTP).Str("host", cfg.SMTPHost).Int("port", cfg.SMTPPort).Msg("Mail transport selected")
	return NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.From), nil
}
