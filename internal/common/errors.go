// Package common defines shared constants and sentinel errors used across
// the DocVault layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("document not found")

	// Authorization errors: membership is required for edits,
	// ownership for grants.
	ErrorNotAuthorized = errors.New("not authorized")

	// Validation errors.
	ErrorInvalidTarget = errors.New("invalid grant target")

	// Generic internal flow control.
	ErrorInternal = errors.New("internal error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
