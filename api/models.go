package api

// Request and response bodies of the code RPCs. JSON names follow the
// mobile client.

// SendPasswordRecoveryCodeRequest starts (or restarts) a recovery.
type SendPasswordRecoveryCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResendPasswordRecoveryCodeRequest has the same shape as the send request.
type ResendPasswordRecoveryCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyPasswordRecoveryCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,otp"`
}

type ResetPasswordWithCodeRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,otp"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
}

// SendEmailVerificationCodeRequest is sent right after sign-up, so the
// caller supplies the new account's id.
type SendEmailVerificationCodeRequest struct {
	Email  string `json:"email" validate:"required,email"`
	UserID string `json:"userId" validate:"required"`
}

type ResendEmailVerificationCodeRequest struct {
	Email  string `json:"email" validate:"required,email"`
	UserID string `json:"userId" validate:"required"`
}

type VerifyEmailCodeRequest struct {
	UserID string `json:"userId" validate:"required"`
	Code   string `json:"code" validate:"required,otp"`
}

// CodeResponse is returned by every code RPC on success.
type CodeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SessionInfo is returned by the session introspection endpoint.
type SessionInfo struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	ExpiresAt int64  `json:"expiresAt"`
}
