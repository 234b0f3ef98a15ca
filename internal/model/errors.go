package model

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is returned when an image is not at the model's input size.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrLengthMismatch is returned when a score row and the vocabulary differ in length.
	ErrLengthMismatch = errors.New("length mismatch")
)

// ConfigurationError reports a missing or malformed model asset. It is fatal at startup.
type ConfigurationError struct {
	Asset string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Asset, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ExecutorError reports a failed model invocation.
type ExecutorError struct {
	Err error
}

func (e *ExecutorError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *ExecutorError) Unwrap() error { return e.Err }
