// Package errors maps domain failures onto Connect error codes and the
// user-facing messages the app shows.
package errors

import (
	stderrors "errors"

	"connectrpc.com/connect"
	"github.com/biihlive/authcodes/api"
	"github.com/biihlive/authcodes/domain"
)

// User-facing messages.
const (
	MsgUserNotFound      = "No existe ninguna cuenta con este correo electrónico"
	MsgCodeNotFound      = "No hay ningún código pendiente. Solicita uno nuevo"
	MsgCodeMismatch      = "Código incorrecto"
	MsgCodeAlreadyUsed   = "Este código ya fue utilizado"
	MsgCodeExpired       = "El código ha expirado. Solicita uno nuevo"
	MsgTooManyAttempts   = "Demasiados intentos. Solicita un nuevo código"
	MsgResendTooSoon     = "Espera un minuto antes de solicitar otro código"
	MsgDeliveryFailed    = "No se pudo enviar el correo. Inténtalo de nuevo"
	MsgInternal          = "Error interno. Inténtalo de nuevo más tarde"
	MsgInvalidRequest    = "Solicitud no válida"
	MsgInvalidSessionKey = "Sesión no válida"
)

type mapping struct {
	target  error
	code    connect.Code
	message string
}

// Order matters only for errors wrapping more than one sentinel.
var mappings = []mapping{
	{domain.ErrUserNotFound, connect.CodeNotFound, MsgUserNotFound},
	{domain.ErrCodeNotFound, connect.CodeNotFound, MsgCodeNotFound},
	{domain.ErrCodeMismatch, connect.CodeInvalidArgument, MsgCodeMismatch},
	{domain.ErrCodeAlreadyUsed, connect.CodeInvalidArgument, MsgCodeAlreadyUsed},
	{domain.ErrCodeExpired, connect.CodeDeadlineExceeded, MsgCodeExpired},
	{domain.ErrTooManyAttempts, connect.CodeResourceExhausted, MsgTooManyAttempts},
	{domain.ErrResendTooSoon, connect.CodeResourceExhausted, MsgResendTooSoon},
	{domain.ErrDeliveryFailed, connect.CodeInternal, MsgDeliveryFailed},
	{domain.ErrInvalidSessionID, connect.CodeUnauthenticated, MsgInvalidSessionKey},
}

// ToConnect converts err into a *connect.Error. Errors it does not know
// become CodeInternal with a generic message so store or driver details
// never reach the client.
func ToConnect(err error) *connect.Error {
	if err == nil {
		return nil
	}
	var cerr *connect.Error
	if stderrors.As(err, &cerr) {
		return cerr
	}
	var verr *api.ValidationError
	if stderrors.As(err, &verr) {
		return connect.NewError(connect.CodeInvalidArgument, stderrors.New(verr.Message))
	}
	for _, m := range mappings {
		if stderrors.Is(err, m.target) {
			return connect.NewError(m.code, stderrors.New(m.message))
		}
	}
	return connect.NewError(connect.CodeInternal, stderrors.New(MsgInternal))
}

// InvalidArgument builds a CodeInvalidArgument error with msg.
func InvalidArgument(msg string) *connect.Error {
	return connect.NewError(connect.CodeInvalidArgument, stderrors.New(msg))
}
