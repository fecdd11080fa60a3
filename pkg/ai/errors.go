// Package ai provides common types and utilities for speech provider implementations.
// It defines the error classification shared by STT, LLM and TTS providers.
package ai

import (
	"context"
	"errors"
)

// Common error types used across AI providers
var (
	// ErrRecoverable indicates a temporary failure that may succeed on a later turn.
	// Examples: network timeout, rate limiting, temporary service unavailability.
	ErrRecoverable = errors.New("recoverable AI provider error")

	// ErrFatal indicates a permanent failure that will not succeed if repeated.
	// Examples: invalid API key, unsupported format, malformed request.
	ErrFatal = errors.New("fatal AI provider error")
)

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

// IsFatal checks if an error is fatal.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// IsTimeout reports whether err was caused by a context deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// ProviderError wraps an underlying error with its provider and classification.
type ProviderError struct {
	Provider   string
	Underlying error
	Retryable  bool
	Message    string
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Underlying != nil {
		msg = e.Underlying.Error()
	} else if e.Underlying != nil {
		msg = msg + ": " + e.Underlying.Error()
	}
	if e.Provider != "" {
		return e.Provider + ": " + msg
	}
	return msg
}

// Unwrap exposes both the classification sentinel and the underlying cause,
// so errors.Is works for ErrRecoverable/ErrFatal and context errors alike.
func (e *ProviderError) Unwrap() []error {
	class := ErrFatal
	if e.Retryable {
		class = ErrRecoverable
	}
	if e.Underlying == nil {
		return []error{class}
	}
	return []error{class, e.Underlying}
}

// NewRecoverableError creates a recoverable error with context
func NewRecoverableError(provider string, underlying error, message string) error {
	return &ProviderError{
		Provider:   provider,
		Underlying: underlying,
		Retryable:  true,
		Message:    message,
	}
}

// NewFatalError creates a fatal error with context
func NewFatalError(provider string, underlying error, message string) error {
	return &ProviderError{
		Provider:   provider,
		Underlying: underlying,
		Retryable:  false,
		Message:    message,
	}
}

// Classify wraps err as recoverable when it is a timeout or cancellation and
// as fatal otherwise. Errors that are already classified pass through.
func Classify(provider string, err error, message string) error {
	if err == nil {
		return nil
	}
	if IsRecoverable(err) || IsFatal(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewRecoverableError(provider, err, message)
	}
	return NewFatalError(provider, err, message)
}
