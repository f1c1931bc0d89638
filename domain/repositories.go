package domain

import (
	"context"
	"time"
)

// CodeRepository persists CodeRecords of a single kind, keyed by subject id.
//
// IncrementAttempts and MarkUsed are conditional and atomic per subject:
// the counter never passes limit, and only one caller can flip IsUsed.
type CodeRepository interface {
	// Put replaces any existing record for rec.SubjectID.
	Put(ctx context.Context, rec *CodeRecord) error
	// Get returns ErrCodeNotFound when the subject has no record.
	Get(ctx context.Context, subjectID string) (*CodeRecord, error)
	// IncrementAttempts adds one failed attempt and returns the new count.
	// It returns ErrTooManyAttempts, without changing the record, when the
	// count already reached limit.
	IncrementAttempts(ctx context.Context, subjectID string, limit int) (int, error)
	// MarkUsed flips IsUsed and stamps UsedAt. It returns ErrCodeAlreadyUsed
	// when another caller got there first.
	MarkUsed(ctx context.Context, subjectID string, at time.Time) error
	// DeleteExpiredBefore removes every record with ExpiresAt < now.
	DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error)
}

// UserRepository is the part of the identity provider the code flows need.
type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
}

// SessionRepository stores sessions so they can be revoked in bulk.
type SessionRepository interface {
	StoreSession(ctx context.Context, session *Session) error
	GetSessionByTokenID(ctx context.Context, tokenID string) (*Session, error)
	// RevokeSessionsByUserID revokes every active session of the user and
	// returns how many were revoked.
	RevokeSessionsByUserID(ctx context.Context, userID string) (int64, error)
}

// CodeStoreProvider hands out one CodeRepository per code kind from a single
// backend connection.
type CodeStoreProvider interface {
	CodeRepository(kind CodeKind) CodeRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
