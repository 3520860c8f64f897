// Package auth checks the bearer token of HTTP API requests.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	// ErrNotConfigured is returned when the server has no API token
	ErrNotConfigured = errors.New("API token not configured")
	// ErrInvalidToken is returned for a token that does not match
	ErrInvalidToken = errors.New("invalid API token")
)

// TokenValidator compares request tokens with the configured one
type TokenValidator struct {
	token string
}

// NewTokenValidator creates a validator for the configured token
func NewTokenValidator(token string) *TokenValidator {
	return &TokenValidator{token: token}
}

// Validate validates an API token
func (v *TokenValidator) Validate(token string) error {
	if v.token == "" {
		return ErrNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(v.token)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// ValidateHeader extracts the bearer token of an Authorization header and
// validates it
func (v *TokenValidator) ValidateHeader(authHeader string) error {
	token, err := ExtractToken(authHeader)
	if err != nil {
		return err
	}
	return v.Validate(token)
}

// ExtractToken extracts the token from an Authorization header
func ExtractToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("missing Authorization header")
	}

	scheme, token, ok := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !ok {
		return "", errors.New("invalid Authorization header format")
	}
	if !strings.EqualFold(scheme, "bearer") {
		return "", errors.New("authorization header must use Bearer scheme")
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
