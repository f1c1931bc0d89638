package rpc

const (
	PasswordRecoveryServiceName  = "biihlive.auth.v1.PasswordRecoveryService"
	EmailVerificationServiceName = "biihlive.auth.v1.EmailVerificationService"
	SessionServiceName           = "biihlive.auth.v1.SessionService"
)

const (
	SendPasswordRecoveryCodeProcedure   = "/" + PasswordRecoveryServiceName + "/SendPasswordRecoveryCode"
	VerifyPasswordRecoveryCodeProcedure = "/" + PasswordRecoveryServiceName + "/VerifyPasswordRecoveryCode"
	ResetPasswordWithCodeProcedure      = "/" + PasswordRecoveryServiceName + "/ResetPasswordWithCode"
	ResendPasswordRecoveryCodeProcedure = "/" + PasswordRecoveryServiceName + "/ResendPasswordRecoveryCode"

	SendEmailVerificationCodeProcedure   = "/" + EmailVerificationServiceName + "/SendEmailVerificationCode"
	VerifyEmailCodeProcedure             = "/" + EmailVerificationServiceName + "/VerifyEmailCode"
	ResendEmailVerificationCodeProcedure = "/" + EmailVerificationServiceName + "/ResendEmailVerificationCode"

	GetSessionProcedure = "/" + SessionServiceName + "/GetSession"
)
