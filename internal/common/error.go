// Package common defines shared constants and sentinel errors used across
// client and server layers of memberauth. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Token errors.
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrMissingSigningKey  = errors.New("signing key is not configured")
	ErrUnknownHashingAlgo = errors.New("unknown password hashing algorithm")
)
