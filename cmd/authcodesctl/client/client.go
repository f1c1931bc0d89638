// Package client builds the RPC clients used by authcodesctl.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/biihlive/authcodes/rpc"
)

const requestTimeout = 15 * time.Second

func httpClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

func checkEndpoint(endpoint string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("no server endpoint configured; use --endpoint or AUTHCODES_ENDPOINT")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return "", fmt.Errorf("endpoint %q must start with http:// or https://", endpoint)
	}
	return strings.TrimSuffix(endpoint, "/"), nil
}

// PasswordRecoveryServiceClient returns a new PasswordRecoveryService client.
func PasswordRecoveryServiceClient(endpoint string) (rpc.PasswordRecoveryServiceClient, error) {
	base, err := checkEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	return rpc.NewPasswordRecoveryServiceClient(httpClient(), base), nil
}

// EmailVerificationServiceClient returns a new EmailVerificationService client.
func EmailVerificationServiceClient(endpoint string) (rpc.EmailVerificationServiceClient, error) {
	base, err := checkEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	return rpc.NewEmailVerificationServiceClient(httpClient(), base), nil
}

// SessionServiceClient returns a new SessionService client that sends
// token as a Bearer credential.
func SessionServiceClient(endpoint, token string) (rpc.SessionServiceClient, error) {
	base, err := checkEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("a session token is required; use --token or AUTHCODES_TOKEN")
	}
	return rpc.NewSessionServiceClient(httpClient(), base,
		connect.WithInterceptors(&authInterceptor{token: token})), nil
}

// authInterceptor adds the session token to every outgoing call.
type authInterceptor struct {
	token string
}

func (i *authInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		req.Header().Set("Authorization", "Bearer "+i.token)
		return next(ctx, req)
	}
}

func (i *authInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		conn.RequestHeader().Set("Authorization", "Bearer "+i.token)
		return conn
	}
}

func (i *authInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

var _ connect.Interceptor = (*authInterceptor)(nil)
