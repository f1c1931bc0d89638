package rpc

import (
	"context"

	"connectrpc.com/connect"
	"github.com/biihlive/authcodes/api"
)

type PasswordRecoveryServiceClient interface {
	SendPasswordRecoveryCode(context.Context, *connect.Request[api.SendPasswordRecoveryCodeRequest]) (*connect.Response[api.CodeResponse], error)
	VerifyPasswordRecoveryCode(context.Context, *connect.Request[api.VerifyPasswordRecoveryCodeRequest]) (*connect.Response[api.CodeResponse], error)
	ResetPasswordWithCode(context.Context, *connect.Request[api.ResetPasswordWithCodeRequest]) (*connect.Response[api.CodeResponse], error)
	ResendPasswordRecoveryCode(context.Context, *connect.Request[api.ResendPasswordRecoveryCodeRequest]) (*connect.Response[api.CodeResponse], error)
}

type EmailVerificationServiceClient interface {
	SendEmailVerificationCode(context.Context, *connect.Request[api.SendEmailVerificationCodeRequest]) (*connect.Response[api.CodeResponse], error)
	VerifyEmailCode(context.Context, *connect.Request[api.VerifyEmailCodeRequest]) (*connect.Response[api.CodeResponse], error)
	ResendEmailVerificationCode(context.Context, *connect.Request[api.ResendEmailVerificationCodeRequest]) (*connect.Response[api.CodeResponse], error)
}

type SessionServiceClient interface {
	GetSession(context.Context, *connect.Request[struct{}]) (*connect.Response[api.SessionInfo], error)
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
}

type passwordRecoveryServiceClient struct {
	send   *connect.Client[api.SendPasswordRecoveryCodeRequest, api.CodeResponse]
	verify *connect.Client[api.VerifyPasswordRecoveryCodeRequest, api.CodeResponse]
	reset  *connect.Client[api.ResetPasswordWithCodeRequest, api.CodeResponse]
	resend *connect.Client[api.ResendPasswordRecoveryCodeRequest, api.CodeResponse]
}

// NewPasswordRecoveryServiceClient builds a client for baseURL (scheme and
// host, e.g. http://localhost:8080).
func NewPasswordRecoveryServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) PasswordRecoveryServiceClient {
	opts = clientOptions(opts)
	return &passwordRecoveryServiceClient{
		send:   connect.NewClient[api.SendPasswordRecoveryCodeRequest, api.CodeResponse](httpClient, baseURL+SendPasswordRecoveryCodeProcedure, opts...),
		verify: connect.NewClient[api.VerifyPasswordRecoveryCodeRequest, api.CodeResponse](httpClient, baseURL+VerifyPasswordRecoveryCodeProcedure, opts...),
		reset:  connect.NewClient[api.ResetPasswordWithCodeRequest, api.CodeResponse](httpClient, baseURL+ResetPasswordWithCodeProcedure, opts...),
		resend: connect.NewClient[api.ResendPasswordRecoveryCodeRequest, api.CodeResponse](httpClient, baseURL+ResendPasswordRecoveryCodeProcedure, opts...),
	}
}

func (c *passwordRecoveryServiceClient) SendPasswordRecoveryCode(ctx context.Context, req *connect.Request[api.SendPasswordRecoveryCodeRequest]) (*connect.Response[api.CodeResponse], error) {
	return c.send.CallUnary(ctx, req)
}

func (c *passwordRecoveryServiceClient) VerifyPasswordRecoveryCode(ctx context.Context, req *connect.Request[api.VerifyPasswordRecoveryCodeRequest]) (*connect.Response[api.CodeResponse], error) {
	return c.verify.CallUnary(ctx, req)
}

func (c *passwordRecoveryServiceClient) ResetPasswordWithCode(ctx context.Context, req *connect.Request[api.ResetPasswordWithCodeRequest]) (*connect.Response[api.CodeResponse], error) {
	return c.reset.CallUnary(ctx, req)
}

func (c *passwordRecoveryServiceClient) ResendPasswordRecoveryCode(ctx context.Context, req *connect.Request[api.ResendPasswordRecoveryCodeRequest]) (*connect.Response[api.CodeResponse], error) {
	return c.resend.CallUnary(ctx, req)
}

type emailVerificationServiceClient struct {
	send   *connect.Client[api.SendEmailVerificationCodeRequest, api.CodeResponse]
	verify *connect.Client[api.VerifyEmailCodeRequest, api.CodeResponse]
	resend *connect.Client[api.ResendEmailVerificationCodeRequest, api.CodeResponse]
}

func NewEmailVerificationServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) EmailVerificationServiceClient {
	opts = clientOptions(opts)
	return &emailVerificationServiceClient{
		send:   connect.NewClient[api.SendEmailVerificationCodeRequest, api.CodeResponse](httpClient, baseURL+SendEmailVerificationCodeProcedure, opts...),
		verify: connect.NewClient[api.VerifyEmailCodeRequest, api.CodeResponse](httpClient, baseURL+VerifyEmailCodeProcedure, opts...),
		resend: connect.NewClient[api.ResendEmailVerificationCodeRequest, api.CodeResponse](httpClient, baseURL+ResendEmailVerificationCodeProcedure, opts...),
	}
}

func (c *emailVerificationServiceClient) SendEmailVerificationCode(ctx context.Context, req *connect.Request[api.SendEmailVerificationCodeRequest]) (*connect.Response[api.CodeResponse], error) {
	return c.send.CallUnary(ctx, req)
}

func (c *emailVerificationServiceClient) VerifyEmailCode(ctx context.Context, req *connect.Request[api.VerifyEmailCodeRequest]) (*connect.Response[api.CodeResponse], error) {
	return c.verify.CallUnary(ctx, req)
}

func (c *emailVerificationServiceClient) ResendEmailVerificationCode(ctx context.Context, req *connect.Request[api.ResendEmailVerificationCodeRequest]) (*connect.Response[api.CodeResponse], error) {
	return c.resend.CallUnary(ctx, req)
}

type sessionServiceClient struct {
	get *connect.Client[struct{}, api.SessionInfo]
}

func NewSessionServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) SessionServiceClient {
	opts = clientOptions(opts)
	return &sessionServiceClient{
		get: connect.NewClient[struct{}, api.SessionInfo](httpClient, baseURL+GetSessionProcedure, opts...),
	}
}

func (c *sessionServiceClient) GetSession(ctx context.Context, req *connect.Request[struct{}]) (*connect.Response[api.SessionInfo], error) {
	return c.get.CallUnary(ctx, req)
}
