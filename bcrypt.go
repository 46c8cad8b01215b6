package auth

import (
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// BcryptVerifier is the default CredentialVerifier.
type BcryptVerifier struct{}

var _ CredentialVerifier = BcryptVerifier{}

// Verify reports whether password matches the bcrypt hash.
// bcrypt compares in constant time with respect to the guess.
func (BcryptVerifier) Verify(password, hash string) bool {
	return ComparePasswordAndHash(password, hash) == nil
}

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, passwordHashCost())
}

// HashPasswordWithCost hashes with an explicit bcrypt cost. Costs outside
// the bcrypt range fall back to the package default.
func HashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = passwordHashCost()
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// RandomPasswordHash hashes a random secret nobody knows.
func RandomPasswordHash(cost int) string {
	pwd := uuid.New()

	h, err := HashPasswordWithCost(pwd.String(), cost)
	if err != nil {
		return RandomPasswordHash(cost)
	}

	return h
}
