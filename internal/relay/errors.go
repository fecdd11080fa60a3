package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedMessage marks inbound events that are dropped.
	ErrMalformedMessage = errors.New("malformed media-stream message")
	// ErrConnection marks transport failures that end the call.
	ErrConnection = errors.New("media-stream connection failed")
)

// Malformed message reasons, used as metric labels.
const (
	ReasonInvalidJSON = "invalid_json"
	ReasonSchema      = "schema"
	ReasonPayload     = "payload"
	ReasonBinary      = "binary_frame"
)

// MalformedMessageError is an inbound event that could not be used.
type MalformedMessageError struct {
	Reason string
	Err    error
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed message (%s): %v", e.Reason, e.Err)
}

func (e *MalformedMessageError) Unwrap() []error {
	return []error{ErrMalformedMessage, e.Err}
}

func malformed(reason string, err error) error {
	return &MalformedMessageError{Reason: reason, Err: err}
}

// ConnectionError is a failed read or write on the media-stream connection.
type ConnectionError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{ErrConnection, e.Err}
}
