package auth

import (
	"errors"
	"fmt"

	"github.com/biihlive/authcodes/services"
	"golang.org/x/crypto/bcrypt"
)

// bcrypt only reads the first 72 bytes of its input.
const maxPasswordBytes = 72

// ErrPasswordTooLong is returned for passwords bcrypt would silently truncate.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// BcryptPasswordHasher hashes reset passwords before they reach the
// identity provider.
type BcryptPasswordHasher struct {
	Cost int
}

// NewBcryptPasswordHasher uses bcrypt.DefaultCost when cost <= 0.
func NewBcryptPasswordHasher(cost int) *BcryptPasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPasswordHasher{Cost: cost}
}

func (h *BcryptPasswordHasher) Hash(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash generation failed: %w", err)
	}
	return string(hashedBytes), nil
}

var _ services.PasswordHasher = (*BcryptPasswordHasher)(nil)
