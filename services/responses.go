package services

import (
	"errors"

	"connectrpc.com/connect"
	"github.com/biihlive/authcodes/api"
	"github.com/biihlive/authcodes/domain"
)

func ok(message string) *connect.Response[api.CodeResponse] {
	return connect.NewResponse(&api.CodeResponse{Success: true, Message: message})
}

// isExpected reports whether err is an outcome the client caused and is
// told about, as opposed to a failure worth an error log.
func isExpected(err error) bool {
	for _, target := range []error{
		domain.ErrUserNotFound,
		domain.ErrCodeNotFound,
		domain.ErrCodeMismatch,
		domain.ErrCodeAlreadyUsed,
		domain.ErrCodeExpired,
		domain.ErrTooManyAttempts,
		domain.ErrResendTooSoon,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
