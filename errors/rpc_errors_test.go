package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"connectrpc.com/connect"
	"github.com/biihlive/authcodes/api"
	"github.com/biihlive/authcodes/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToConnect(t *testing.T) {
	tests := []struct {
		err     error
		code    connect.Code
		message string
	}{
		{domain.ErrUserNotFound, connect.CodeNotFound, MsgUserNotFound},
		{fmt.Errorf("lookup: %w", domain.ErrCodeNotFound), connect.CodeNotFound, MsgCodeNotFound},
		{domain.ErrCodeMismatch, connect.CodeInvalidArgument, MsgCodeMismatch},
		{domain.ErrCodeAlreadyUsed, connect.CodeInvalidArgument, MsgCodeAlreadyUsed},
		{domain.ErrCodeExpired, connect.CodeDeadlineExceeded, MsgCodeExpired},
		{domain.ErrTooManyAttempts, connect.CodeResourceExhausted, MsgTooManyAttempts},
		{domain.ErrResendTooSoon, connect.CodeResourceExhausted, MsgResendTooSoon},
		{fmt.Errorf("%w: smtp down", domain.ErrDeliveryFailed), connect.CodeInternal, MsgDeliveryFailed},
		{fmt.Errorf("%w: bad doc", domain.ErrMalformedRecord), connect.CodeInternal, MsgInternal},
		{stderrors.New("connection reset by peer"), connect.CodeInternal, MsgInternal},
		{&api.ValidationError{Field: "email", Message: "El correo electrónico no es válido"}, connect.CodeInvalidArgument, "El correo electrónico no es válido"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			cerr := ToConnect(tt.err)
			require.NotNil(t, cerr)
			assert.Equal(t, tt.code, cerr.Code())
			assert.Equal(t, tt.message, cerr.Message())
		})
	}

	assert.Nil(t, ToConnect(nil))

	passthrough := connect.NewError(connect.CodeUnavailable, stderrors.New("x"))
	assert.Same(t, passthrough, ToConnect(passthrough))
}
