package services

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"github.com/biihlive/authcodes/api"
	"github.com/biihlive/authcodes/middleware"
	"github.com/biihlive/authcodes/rpc"
)

// SessionServer answers who a session token belongs to. It runs behind the
// session middleware, which rejects revoked tokens before they get here.
type SessionServer struct{}

func NewSessionServer() *SessionServer {
	return &SessionServer{}
}

func (s *SessionServer) GetSession(ctx context.Context, _ *connect.Request[struct{}]) (*connect.Response[api.SessionInfo], error) {
	session, ok := middleware.SessionFromContext(ctx)
	if !ok {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("no session"))
	}
	return connect.NewResponse(&api.SessionInfo{
		UserID:    session.UserID,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt.Unix(),
	}), nil
}

var _ rpc.SessionServiceHandler = (*SessionServer)(nil)
