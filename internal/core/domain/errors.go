package domain

import (
	"errors"
	"fmt"
)

var (
	ErrBenchNotFound = errors.New("bench not found")

	// ErrGeolocationUnsupported means the client cannot provide a position at all.
	ErrGeolocationUnsupported = errors.New("geolocation not supported")
	// ErrPositionUnavailable covers denied permission, timeouts and missing fixes.
	ErrPositionUnavailable = errors.New("position unavailable")
)

// ValidationError rejects a single field of a bench payload.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
