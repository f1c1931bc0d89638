package domain

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrUserExists      = errors.New("user already exists")

	ErrCodeNotFound     = errors.New("code not found")
	ErrCodeAlreadyUsed  = errors.New("code already used")
	ErrCodeExpired      = errors.New("code expired")
	ErrTooManyAttempts  = errors.New("too many attempts")
	ErrCodeMismatch     = errors.New("code mismatch")
	ErrResendTooSoon    = errors.New("resend requested too soon")
	ErrMalformedRecord  = errors.New("malformed code record")
	ErrDeliveryFailed   = errors.New("code delivery failed")
	ErrInvalidSessionID = errors.New("invalid session token")
)
