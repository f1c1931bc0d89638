package domain

import (
	"fmt"
	"time"
)

// Defaults applied when configuration does not override them.
const (
	DefaultCodeTTL        = 10 * time.Minute
	DefaultMaxAttempts    = 5
	DefaultResendCooldown = 60 * time.Second
	CodeLength            = 6
)

// CodeKind separates the two record families. Each kind lives in its own
// collection, bucket or key prefix.
type CodeKind string

const (
	CodeKindPasswordRecovery  CodeKind = "password_recovery"
	CodeKindEmailVerification CodeKind = "email_verification"
)

// CodeKinds lists every kind the sweeper has to visit.
func CodeKinds() []CodeKind {
	return []CodeKind{CodeKindPasswordRecovery, CodeKindEmailVerification}
}

// CodeState is derived from a record and the current time; it is never stored.
type CodeState string

const (
	CodeStateNone    CodeState = "NONE"
	CodeStatePending CodeState = "PENDING"
	CodeStateUsed    CodeState = "USED"
	CodeStateExpired CodeState = "EXPIRED"
	CodeStateLocked  CodeState = "LOCKED"
)

// CodeRecord is the pending one-time code of a subject. There is at most one
// per subject and kind; issuing a new code replaces it.
type CodeRecord struct {
	SubjectID string     `bson:"_id" json:"subject_id"`
	Email     string     `bson:"email" json:"email"`
	Code      string     `bson:"code" json:"code"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time  `bson:"expires_at" json:"expires_at"`
	Attempts  int        `bson:"attempts" json:"attempts"`
	IsUsed    bool       `bson:"is_used" json:"is_used"`
	UsedAt    *time.Time `bson:"used_at,omitempty" json:"used_at,omitempty"`
}

// NewCodeRecord builds a fresh PENDING record. createdAt is truncated to
// milliseconds so the value survives a round trip through a document store.
func NewCodeRecord(subjectID, email, code string, createdAt time.Time, ttl time.Duration) *CodeRecord {
	createdAt = createdAt.UTC().Truncate(time.Millisecond)
	return &CodeRecord{
		SubjectID: subjectID,
		Email:     email,
		Code:      code,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(ttl),
	}
}

// IsExpired reports whether now is strictly past ExpiresAt.
func (r *CodeRecord) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// IsLocked reports whether the attempt budget is spent.
func (r *CodeRecord) IsLocked(maxAttempts int) bool {
	return r.Attempts >= maxAttempts
}

// State evaluates the record in the same order the verify checks run.
func (r *CodeRecord) State(now time.Time, maxAttempts int) CodeState {
	switch {
	case r == nil:
		return CodeStateNone
	case r.IsUsed:
		return CodeStateUsed
	case r.IsExpired(now):
		return CodeStateExpired
	case r.IsLocked(maxAttempts):
		return CodeStateLocked
	default:
		return CodeStatePending
	}
}

// Validate rejects documents that do not match the schema. Stores call it on
// every decode so a hand-edited or truncated document never reaches a handler.
// There is no upper bound on Attempts: the limit is configuration, and a
// record past it is locked, not malformed.
func (r *CodeRecord) Validate() error {
	switch {
	case r.SubjectID == "":
		return fmt.Errorf("%w: empty subject id", ErrMalformedRecord)
	case r.Email == "":
		return fmt.Errorf("%w: empty email", ErrMalformedRecord)
	case !IsNumericCode(r.Code):
		return fmt.Errorf("%w: code is not %d digits", ErrMalformedRecord, CodeLength)
	case r.Attempts < 0:
		return fmt.Errorf("%w: negative attempts", ErrMalformedRecord)
	case !r.ExpiresAt.After(r.CreatedAt):
		return fmt.Errorf("%w: expires_at not after created_at", ErrMalformedRecord)
	}
	return nil
}

// IsNumericCode reports whether s is exactly CodeLength ASCII digits.
func IsNumericCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
