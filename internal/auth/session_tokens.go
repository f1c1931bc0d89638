package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/biihlive/authcodes/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultSessionTTL is how long an issued session token stays valid.
const DefaultSessionTTL = 30 * 24 * time.Hour

// SessionClaims are the claims carried by a session token. The jti is the
// TokenID of the stored session.
type SessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// SessionTokens issues HS256 session tokens and checks them against the
// session repository, so revoking a session invalidates its token at once.
type SessionTokens struct {
	key      []byte
	issuer   string
	ttl      time.Duration
	sessions domain.SessionRepository
	now      func() time.Time
}

// SessionTokensOption customizes SessionTokens.
type SessionTokensOption func(*SessionTokens)

// WithTokenClock replaces time.Now for issuing and validating tokens.
func WithTokenClock(now func() time.Time) SessionTokensOption {
	return func(s *SessionTokens) { s.now = now }
}

func NewSessionTokens(key []byte, issuer string, ttl time.Duration, sessions domain.SessionRepository, opts ...SessionTokensOption) *SessionTokens {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &SessionTokens{key: key, issuer: issuer, ttl: ttl, sessions: sessions, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue stores a new session for user and returns its signed token.
func (s *SessionTokens) Issue(ctx context.Context, user *domain.User, userAgent string) (string, *domain.Session, error) {
	now := s.now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenID:   uuid.NewString(),
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.StoreSession(ctx, session); err != nil {
		return "", nil, fmt.Errorf("store session: %w", err)
	}

	claims := SessionClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.TokenID,
			Subject:   user.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return signed, session, nil
}

// Validate parses the token and returns its session. Revoked, expired or
// unknown sessions yield domain.ErrInvalidSessionID.
func (s *SessionTokens) Validate(ctx context.Context, token string) (*domain.Session, error) {
	var claims SessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSessionID, err)
	}

	session, err := s.sessions.GetSessionByTokenID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrInvalidSessionID
		}
		return nil, err
	}
	if session.UserID != claims.Subject || !session.IsActive(s.now()) {
		return nil, domain.ErrInvalidSessionID
	}
	return session, nil
}
