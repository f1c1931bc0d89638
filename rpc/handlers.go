package rpc

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/biihlive/authcodes/api"
)

// PasswordRecoveryServiceHandler is implemented by the recovery server.
type PasswordRecoveryServiceHandler interface {
	SendPasswordRecoveryCode(context.Context, *connect.Request[api.SendPasswordRecoveryCodeRequest]) (*connect.Response[api.CodeResponse], error)
	VerifyPasswordRecoveryCode(context.Context, *connect.Request[api.VerifyPasswordRecoveryCodeRequest]) (*connect.Response[api.CodeResponse], error)
	ResetPasswordWithCode(context.Context, *connect.Request[api.ResetPasswordWithCodeRequest]) (*connect.Response[api.CodeResponse], error)
	ResendPasswordRecoveryCode(context.Context, *connect.Request[api.ResendPasswordRecoveryCodeRequest]) (*connect.Response[api.CodeResponse], error)
}

// EmailVerificationServiceHandler is implemented by the verification server.
type EmailVerificationServiceHandler interface {
	SendEmailVerificationCode(context.Context, *connect.Request[api.SendEmailVerificationCodeRequest]) (*connect.Response[api.CodeResponse], error)
	VerifyEmailCode(context.Context, *connect.Request[api.VerifyEmailCodeRequest]) (*connect.Response[api.CodeResponse], error)
	ResendEmailVerificationCode(context.Context, *connect.Request[api.ResendEmailVerificationCodeRequest]) (*connect.Response[api.CodeResponse], error)
}

// SessionServiceHandler lets a client introspect its own session token.
type SessionServiceHandler interface {
	GetSession(context.Context, *connect.Request[struct{}]) (*connect.Response[api.SessionInfo], error)
}

func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
}

// routes dispatches on the exact procedure path.
func routes(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// NewPasswordRecoveryServiceHandler returns the mount path and handler.
func NewPasswordRecoveryServiceHandler(svc PasswordRecoveryServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return "/" + PasswordRecoveryServiceName + "/", routes(map[string]http.Handler{
		SendPasswordRecoveryCodeProcedure:   connect.NewUnaryHandler(SendPasswordRecoveryCodeProcedure, svc.SendPasswordRecoveryCode, opts...),
		VerifyPasswordRecoveryCodeProcedure: connect.NewUnaryHandler(VerifyPasswordRecoveryCodeProcedure, svc.VerifyPasswordRecoveryCode, opts...),
		ResetPasswordWithCodeProcedure:      connect.NewUnaryHandler(ResetPasswordWithCodeProcedure, svc.ResetPasswordWithCode, opts...),
		ResendPasswordRecoveryCodeProcedure: connect.NewUnaryHandler(ResendPasswordRecoveryCodeProcedure, svc.ResendPasswordRecoveryCode, opts...),
	})
}

// NewEmailVerificationServiceHandler returns the mount path and handler.
func NewEmailVerificationServiceHandler(svc EmailVerificationServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return "/" + EmailVerificationServiceName + "/", routes(map[string]http.Handler{
		SendEmailVerificationCodeProcedure:   connect.NewUnaryHandler(SendEmailVerificationCodeProcedure, svc.SendEmailVerificationCode, opts...),
		VerifyEmailCodeProcedure:             connect.NewUnaryHandler(VerifyEmailCodeProcedure, svc.VerifyEmailCode, opts...),
		ResendEmailVerificationCodeProcedure: connect.NewUnaryHandler(ResendEmailVerificationCodeProcedure, svc.ResendEmailVerificationCode, opts...),
	})
}

// NewSessionServiceHandler returns the mount path and handler.
func NewSessionServiceHandler(svc SessionServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return "/" + SessionServiceName + "/", routes(map[string]http.Handler{
		GetSessionProcedure: connect.NewUnaryHandler(GetSessionProcedure, svc.GetSession, opts...),
	})
}
