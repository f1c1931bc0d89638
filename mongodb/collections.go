package mongodb

import "github.com/biihlive/authcodes/domain"

const (
	UsersCollection                  = "users"
	UserSessionsCollection           = "user_sessions"
	PasswordRecoveryTokensCollection = "passwordRecoveryTokens"
	EmailVerificationCodesCollection = "emailVerificationCodes"
)

// CodeCollection maps a code kind to the collection holding its records.
func CodeCollection(kind domain.CodeKind) string {
	switch kind {
	case domain.CodeKindEmailVerification:
		return EmailVerificationCodesCollection
	default:
		return PasswordRecoveryTokensCollection
	}
}
