package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/biihlive/authcodes/domain"
	"github.com/biihlive/authcodes/internal/metrics"
	"github.com/biihlive/authcodes/otp"
	"github.com/rs/zerolog/log"
)

// CodeSender delivers a freshly issued code. *mail.Mailer implements it.
type CodeSender interface {
	SendCode(ctx context.Context, kind domain.CodeKind, to, code string) error
}

// CodePolicy holds the lifetime and rate limits of issued codes.
type CodePolicy struct {
	TTL            time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
}

// DefaultCodePolicy is ten minutes, five attempts and a one minute cooldown.
func DefaultCodePolicy() CodePolicy {
	return CodePolicy{
		TTL:            domain.DefaultCodeTTL,
		MaxAttempts:    domain.DefaultMaxAttempts,
		ResendCooldown: domain.DefaultResendCooldown,
	}
}

// CodeService runs the one-time-code state machine for one code kind.
// It keeps no state of its own; every transition goes through the
// repository, whose conditional updates settle concurrent requests.
type CodeService struct {
	kind      domain.CodeKind
	repo      domain.CodeRepository
	generator otp.Generator
	sender    CodeSender
	policy    CodePolicy
	now       func() time.Time
}

// CodeServiceOption customizes a CodeService.
type CodeServiceOption func(*CodeService)

// WithClock replaces time.Now. Tests use it to move past expiry and cooldown.
func WithClock(now func() time.Time) CodeServiceOption {
	return func(s *CodeService) { s.now = now }
}

// NewCodeService creates a new CodeService.
func NewCodeService(kind domain.CodeKind, repo domain.CodeRepository, generator otp.Generator, sender CodeSender, policy CodePolicy, opts ...CodeServiceOption) *CodeService {
	s := &CodeService{
		kind:      kind,
		repo:      repo,
		generator: generator,
		sender:    sender,
		policy:    policy,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CodeService) Kind() domain.CodeKind { return s.kind }

// Issue replaces any pending code of the subject with a new one and mails
// it. The record is stored before delivery; a delivery failure returns
// ErrDeliveryFailed and leaves the record in place for a later resend.
func (s *CodeService) Issue(ctx context.Context, subjectID, email string) error {
	code, err := s.generator.Generate()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	rec := domain.NewCodeRecord(subjectID, email, code, s.now(), s.policy.TTL)
	if err := s.repo.Put(ctx, rec); err != nil {
		return fmt.Errorf("store %s code: %w", s.kind, err)
	}
	metrics.CodesIssuedTotal.WithLabelValues(string(s.kind)).Inc()

	if err := s.sender.SendCode(ctx, s.kind, email, code); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}

	log.Info().Str("kind", string(s.kind)).Str("subjectID", subjectID).Str("email", email).
		Time("expires_at", rec.ExpiresAt).Msg("One-time code issued")
	return nil
}

// Resend issues a new code unless the current record, whatever its state,
// was created less than ResendCooldown ago.
func (s *CodeService) Resend(ctx context.Context, subjectID, email string) error {
	rec, err := s.repo.Get(ctx, subjectID)
	switch {
	case err == nil:
		if s.now().Sub(rec.CreatedAt) < s.policy.ResendCooldown {
			return domain.ErrResendTooSoon
		}
	case errors.Is(err, domain.ErrCodeNotFound):
	case errors.Is(err, domain.ErrMalformedRecord):
		log.Warn().Err(err).Str("kind", string(s.kind)).Str("subjectID", subjectID).Msg("Overwriting malformed code record on resend")
	default:
		return fmt.Errorf("load %s code: %w", s.kind, err)
	}
	return s.Issue(ctx, subjectID, email)
}

// Check runs the verify preconditions in order: exists, not used, not
// expired, attempts left, code matches. A wrong code costs one attempt.
// Check never marks the record used.
func (s *CodeService) Check(ctx context.Context, subjectID, code string) (*domain.CodeRecord, error) {
	rec, err := s.check(ctx, subjectID, code)
	metrics.VerificationsTotal.WithLabelValues(string(s.kind), resultLabel(err)).Inc()
	return rec, err
}

func (s *CodeService) check(ctx context.Context, subjectID, code string) (*domain.CodeRecord, error) {
	rec, err := s.repo.Get(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch {
	case rec.IsUsed:
		return nil, domain.ErrCodeAlreadyUsed
	case rec.IsExpired(now):
		return nil, domain.ErrCodeExpired
	case rec.IsLocked(s.policy.MaxAttempts):
		return nil, domain.ErrTooManyAttempts
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		attempts, err := s.repo.IncrementAttempts(ctx, subjectID, s.policy.MaxAttempts)
		if err != nil {
			// Lost the race to other wrong guesses, or the record vanished.
			return nil, err
		}
		return nil, fmt.Errorf("%w (%d of %d attempts used)", domain.ErrCodeMismatch, attempts, s.policy.MaxAttempts)
	}
	return rec, nil
}

// Consume checks the code and claims the record. Of two concurrent
// consumers with the right code only one gets past MarkUsed.
func (s *CodeService) Consume(ctx context.Context, subjectID, code string) (*domain.CodeRecord, error) {
	rec, err := s.Check(ctx, subjectID, code)
	if err != nil {
		return nil, err
	}
	usedAt, err := s.MarkUsed(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	rec.IsUsed = true
	rec.UsedAt = &usedAt
	return rec, nil
}

// MarkUsed spends the subject's code without checking it again. Callers run
// Check first; ErrCodeAlreadyUsed means a concurrent caller spent it.
func (s *CodeService) MarkUsed(ctx context.Context, subjectID string) (time.Time, error) {
	usedAt := s.now()
	if err := s.repo.MarkUsed(ctx, subjectID, usedAt); err != nil {
		return time.Time{}, err
	}
	return usedAt.UTC().Truncate(time.Millisecond), nil
}

// Sweep deletes every record that expired before now.
func (s *CodeService) Sweep(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpiredBefore(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep %s codes: %w", s.kind, err)
	}
	return n, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrCodeMismatch):
		return "mismatch"
	case errors.Is(err, domain.ErrCodeExpired):
		return "expired"
	case errors.Is(err, domain.ErrCodeAlreadyUsed):
		return "used"
	case errors.Is(err, domain.ErrTooManyAttempts):
		return "locked"
	case errors.Is(err, domain.ErrCodeNotFound):
		return "not_found"
	default:
		return "error"
	}
}
