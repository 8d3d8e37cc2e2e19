package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies preview failures.
type ErrorKind string

const (
	ErrKindDecode     ErrorKind = "decode_failure"
	ErrKindDetached   ErrorKind = "detached_buffer"
	ErrKindWorkerInit ErrorKind = "worker_init_failure"
	ErrKindRender     ErrorKind = "render_failure"
	ErrKindLoad       ErrorKind = "load_failure"
)

// PreviewError is a failure surfaced to the caller as an error result.
// Message is the user-visible text; Err keeps the cause for logs.
type PreviewError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PreviewError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *PreviewError) Unwrap() error { return e.Err }

// NewPreviewError builds a PreviewError.
func NewPreviewError(kind ErrorKind, message string, err error) *PreviewError {
	return &PreviewError{Kind: kind, Message: message, Err: err}
}

// ErrorKindOf returns the kind of a PreviewError in err's chain. A detached
// buffer anywhere in the chain is reported as ErrKindDetached.
func ErrorKindOf(err error) (ErrorKind, bool) {
	if err == nil {
		return "", false
	}
	if errors.Is(err, ErrDetachedBuffer) {
		return ErrKindDetached, true
	}
	var pe *PreviewError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// UserMessage returns the message to show for err.
func UserMessage(err error) string {
	var pe *PreviewError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
