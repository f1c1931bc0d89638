package audit

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Actions recorded for code flows.
const (
	ActionCodeIssued      = "code_issued"
	ActionCodeResent      = "code_resent"
	ActionCodeVerified    = "code_verified"
	ActionCodeRejected    = "code_rejected"
	ActionPasswordReset   = "password_reset"
	ActionSessionsRevoked = "sessions_revoked"
	ActionEmailVerified   = "email_verified"
	ActionCodesSwept      = "codes_swept"
)

// Event represents an audit log event.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Action    string    `json:"action"`
	Subject   string    `json:"subject,omitempty"` // user id the code belongs to
	Target    string    `json:"target,omitempty"`  // email address or collection
	Details   string    `json:"details,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

var auditLogger = log.Output(os.Stdout).With().Logger()

// SetOutput replaces the audit destination. Tests use it to capture events.
func SetOutput(l zerolog.Logger) {
	auditLogger = l
}

// Log records an audit event. Codes must never be passed in details.
func Log(service, action, subject, target, details string, success bool, err error) {
	event := Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Service:   service,
		Action:    action,
		Subject:   subject,
		Target:    target,
		Details:   details,
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}

	entry, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		log.Error().Err(marshalErr).Msg("Failed to marshal audit event to JSON")
		auditLogger.Error().
			Str("service", service).
			Str("action", action).
			Str("subject", subject).
			Bool("success", success).
			Err(err).
			Msg("Audit Log (fallback)")
		return
	}
	auditLogger.Log().RawJSON("audit_event", entry).Msg("")
}
