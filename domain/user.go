package domain

import "time"

// UserStatus defines the possible statuses of a user account.
type UserStatus string

const (
	UserStatusActive  UserStatus = "ACTIVE"
	UserStatusLocked  UserStatus = "LOCKED"
	UserStatusPending UserStatus = "PENDING_VERIFICATION"
)

// User is the identity-provider view of an account: enough to find it by
// email, change its password and flag its address as verified.
type User struct {
	ID            string     `bson:"_id,omitempty"`
	Email         string     `bson:"email"`
	PasswordHash  string     `bson:"password_hash"`
	EmailVerified bool       `bson:"email_verified"`
	VerifiedAt    *time.Time `bson:"verified_at,omitempty"`
	Status        UserStatus `bson:"status"`
	CreatedAt     time.Time  `bson:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at"`
}
