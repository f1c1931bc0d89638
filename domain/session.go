package domain

import "time"

// Session is a signed-in device. Its TokenID is the jti of the session token
// handed to the client; revoking the session invalidates that token.
type Session struct {
	ID        string     `bson:"_id,omitempty"`
	UserID    string     `bson:"user_id"`
	TokenID   string     `bson:"token_id"`
	UserAgent string     `bson:"user_agent,omitempty"`
	ExpiresAt time.Time  `bson:"expires_at"`
	CreatedAt time.Time  `bson:"created_at"`
	IsRevoked bool       `bson:"is_revoked"`
	RevokedAt *time.Time `bson:"revoked_at,omitempty"`
}

// IsActive reports whether the session can still authenticate requests.
func (s *Session) IsActive(now time.Time) bool {
	return !s.IsRevoked && now.Before(s.ExpiresAt)
}
