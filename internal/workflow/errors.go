package workflow

import (
	"errors"
	"fmt"
)

// Kind classifies workflow failures so a UI can pick a recovery
type Kind int

const (
	// KindInvalidInput: no file, or a file of the wrong type, was chosen
	KindInvalidInput Kind = iota + 1
	// KindPreconditionFailed: an action was invoked out of order
	KindPreconditionFailed
	// KindTransportFailure: the request for a step did not succeed
	KindTransportFailure
	// KindRejectedByService: validation answered is_valid=false
	KindRejectedByService
	// KindProcessingFailure: processing failed or returned a malformed payload
	KindProcessingFailure
)

// Sentinel errors matched by errors.Is against *Error
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrTransportFailure   = errors.New("transport failure")
	ErrRejectedByService  = errors.New("rejected by service")
	ErrProcessingFailure  = errors.New("processing failure")

	// ErrInFlight is wrapped by the PreconditionFailed error returned when a
	// request for the session is already outstanding
	ErrInFlight = errors.New("request already in flight")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindPreconditionFailed:
		return ErrPreconditionFailed
	case KindTransportFailure:
		return ErrTransportFailure
	case KindRejectedByService:
		return ErrRejectedByService
	case KindProcessingFailure:
		return ErrProcessingFailure
	}
	return nil
}

func (k Kind) String() string {
	if err := k.sentinel(); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is returned by every Controller operation that fails
type Error struct {
	Kind   Kind
	Action Action
	// Reason is meant for display
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Action != 0 {
		msg = e.Action.String() + ": " + msg
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is matches the sentinel of the error's kind
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a workflow error, or 0 for other errors
func KindOf(err error) Kind {
	var wfErr *Error
	if errors.As(err, &wfErr) {
		return wfErr.Kind
	}
	return 0
}

// reasoner is implemented by errors that carry a display message,
// such as *remote.Error
type reasoner interface {
	Reason() string
}

func reasonOf(err error) string {
	var r reasoner
	if errors.As(err, &r) {
		return r.Reason()
	}
	return err.Error()
}
