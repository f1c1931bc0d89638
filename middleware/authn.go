package middleware

import (
	"context"
	"strings"

	"connectrpc.com/authn"
	"connectrpc.com/connect"
	"github.com/biihlive/authcodes/domain"
)

// SessionValidator resolves a session token to its live session.
// *auth.SessionTokens implements it.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*domain.Session, error)
}

// NewSessionAuthFunc authenticates requests carrying a session token as a
// Bearer credential. The resolved *domain.Session is stored as the authn
// info of the request.
func NewSessionAuthFunc(validator SessionValidator) authn.AuthFunc {
	return func(ctx context.Context, req authn.Request) (any, error) {
		token, ok := bearerToken(req.Header().Get("Authorization"))
		if !ok {
			return nil, authn.Errorf("missing bearer token")
		}
		session, err := validator.Validate(ctx, token)
		if err != nil {
			return nil, authn.Errorf("invalid session token")
		}
		return session, nil
	}
}

// bearerToken extracts the credential of an "Authorization: Bearer" header.
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// NewSessionMiddleware wraps handlers so that only requests with a live
// session token reach them.
func NewSessionMiddleware(validator SessionValidator, opts ...connect.HandlerOption) *authn.Middleware {
	return authn.NewMiddleware(NewSessionAuthFunc(validator), opts...)
}

// SessionFromContext returns the session put there by the session middleware.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	session, ok := authn.GetInfo(ctx).(*domain.Session)
	return session, ok && session != nil
}
