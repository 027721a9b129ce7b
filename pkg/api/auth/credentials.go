package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Credential errors.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNoCredentials      = errors.New("no API credentials configured")
)

// Credentials is the single API user the server authenticates against.
// The password is stored as a bcrypt hash, never in the clear.
type Credentials struct {
	// Username is the account name. Default: "admin".
	Username string

	// PasswordHash is the bcrypt hash of the account password.
	PasswordHash string
}

// Configured reports whether a usable credential pair is present.
func (c Credentials) Configured() bool {
	return c.Username != "" && c.PasswordHash != ""
}

// Validate checks a username/password pair against the stored credential.
// Returns ErrInvalidCredentials on any mismatch, so callers cannot tell a
// wrong username from a wrong password.
func (c Credentials) Validate(username, password string) error {
	if !c.Configured() {
		return ErrNoCredentials
	}
	if username != c.Username {
		// Burn a comparison anyway to keep timing consistent.
		_ = bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password))
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword returns the bcrypt hash for a plaintext password, for use
// by init flows that write the configuration file.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
