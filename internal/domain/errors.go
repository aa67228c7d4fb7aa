package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failure for retry and terminal-status decisions.
type ErrorKind string

const (
	ErrKindRetryable ErrorKind = "retryable"
	ErrKindFatal     ErrorKind = "fatal"
	ErrKindCancelled ErrorKind = "cancelled"
)

// Errors surfaced synchronously by the queue manager.
var (
	ErrQueueFull       = errors.New("queue is at capacity")
	ErrQueueDraining   = errors.New("queue is draining and not accepting work")
	ErrNotFound        = errors.New("queue item not found")
	ErrAlreadyTerminal = errors.New("queue item already in a terminal state")
	ErrNotTerminal     = errors.New("queue item not in a terminal state")
)

// ExecutionError wraps a strategy failure with its retry classification.
// Strategies return these so the workflow can decide between retrying and
// failing outright without parsing error text.
type ExecutionError struct {
	Kind ErrorKind
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewRetryableError marks err as transient (network, timeout, rate limit).
func NewRetryableError(err error) *ExecutionError {
	return &ExecutionError{Kind: ErrKindRetryable, Err: err}
}

// NewFatalError marks err as permanent (unsupported URL, gone content, auth).
func NewFatalError(err error) *ExecutionError {
	return &ExecutionError{Kind: ErrKindFatal, Err: err}
}

// NewCancelledError marks err as the result of cooperative cancellation.
func NewCancelledError(err error) *ExecutionError {
	return &ExecutionError{Kind: ErrKindCancelled, Err: err}
}

// ClassifyError maps an arbitrary execution error to a kind. Typed execution
// errors keep their kind; context cancellation is cancelled; deadline expiry
// is retryable; anything unrecognized defaults to retryable so the retry
// bound, not the classification, decides when to give up.
func ClassifyError(err error) ErrorKind {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Kind
	}
	if errors.Is(err, context.Canceled) {
		return ErrKindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindRetryable
	}
	return ErrKindRetryable
}

// ErrorInfo is the serializable record of a failure attached to queue items
// and results. Callers see this, never a raw error chain.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// NewErrorInfo classifies err and captures it as an ErrorInfo. Returns nil
// for a nil error.
func NewErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	return &ErrorInfo{
		Kind:    ClassifyError(err),
		Message: err.Error(),
		At:      time.Now(),
	}
}
