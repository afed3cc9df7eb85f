package utils

import (
	"errors"
	"fmt"
)

// ErrTimeout is wrapped by TimeoutError so callers can test for it.
var ErrTimeout = errors.New("operation timed out")

// WrapError wraps an error with additional context
func WrapError(err error, msg string) error {
	if err == nil {
		return errors.New(msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// TimeoutError creates a timeout error
func TimeoutError(operation string) error {
	return fmt.Errorf("%s: %w", operation, ErrTimeout)
}
