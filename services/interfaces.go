package services

// PasswordHasher hashes a new password before it is stored.
type PasswordHasher interface {
	Hash(password string) (string, error)
}
