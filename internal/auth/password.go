package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is a bcrypt hash of a random string nobody knows. Login runs a
// comparison against it when the email is unknown so the two failure paths
// take comparable time and stay enumeration-safe.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5B0aF0yA0h0yBnLkWDXhJkYqUMG2e"

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with the stored hash. An empty
// hash falls back to the dummy comparison so missing accounts do not return
// faster than wrong passwords.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
