package matcherr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can decide whether to surface it,
// retry it, or report it.
type Kind string

const (
	KindValidation     Kind = "VALIDATION"
	KindInvalidState   Kind = "INVALID_STATE"
	KindNotFound       Kind = "NOT_FOUND"
	KindNetwork        Kind = "NETWORK"
	KindTimeout        Kind = "TIMEOUT"
	KindQueueExhausted Kind = "QUEUE_EXHAUSTED"
)

// Error is a classified error. Validation, invalid-state and not-found
// errors surface synchronously to the caller; network and timeout errors
// are absorbed by the retry paths; queue exhaustion is reported, never
// thrown. Nothing in this taxonomy is process-fatal.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.err
}

// Validation reports bad input, e.g. an insufficient roster or a goal for a
// team not in play.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

// InvalidState reports an action that is illegal in the current lifecycle
// state, e.g. a goal while paused.
func InvalidState(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, msg: fmt.Sprintf(format, args...)}
}

// NotFound reports a lookup of an unknown entity, e.g. a goal event id.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, msg: fmt.Sprintf(format, args...)}
}

// Network wraps a transport failure. Always retryable.
func Network(err error, msg string) error {
	return &Error{Kind: KindNetwork, msg: msg, err: err}
}

// Timeout wraps a time-boxed operation that expired. Always retryable.
func Timeout(err error, msg string) error {
	return &Error{Kind: KindTimeout, msg: msg, err: err}
}

// QueueExhausted reports an item dropped after its retry budget.
func QueueExhausted(format string, args ...any) error {
	return &Error{Kind: KindQueueExhausted, msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err or anything it wraps carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether the error is a transport-class failure that the
// replicator and offline queue may retry.
func Retryable(err error) bool {
	return IsKind(err, KindNetwork) || IsKind(err, KindTimeout)
}
