package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/biihlive/authcodes/api"
	"github.com/biihlive/authcodes/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoSession struct {
	header http.Header
}

func (e *echoSession) GetSession(_ context.Context, req *connect.Request[struct{}]) (*connect.Response[api.SessionInfo], error) {
	e.header = req.Header().Clone()
	return connect.NewResponse(&api.SessionInfo{UserID: "u1", SessionID: "s1", ExpiresAt: 42}), nil
}

func TestCheckEndpoint(t *testing.T) {
	base, err := checkEndpoint("http://localhost:8080/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", base)

	_, err = checkEndpoint("")
	assert.Error(t, err)
	_, err = checkEndpoint("localhost:8080")
	assert.Error(t, err)
}

func TestSessionServiceClient_SendsBearerToken(t *testing.T) {
	svc := &echoSession{}
	path, handler := rpc.NewSessionServiceHandler(svc)
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := SessionServiceClient(srv.URL, "tok-123")
	require.NoError(t, err)

	resp, err := c.GetSession(context.Background(), connect.NewRequest(&struct{}{}))
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.Msg.UserID)
	assert.Equal(t, "Bearer tok-123", svc.header.Get("Authorization"))
}

func TestSessionServiceClient_RequiresToken(t *testing.T) {
	_, err := SessionServiceClient("http://localhost:8080", "")
	assert.Error(t, err)
}
