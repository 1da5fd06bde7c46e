package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Sentinel errors wrapped by *Error
var (
	ErrTransport     = errors.New("transport failure")
	ErrStatus        = errors.New("unexpected response status")
	ErrMalformed     = errors.New("malformed response")
	ErrEmptyDocument = errors.New("document is empty")
)

// maxMessageLen bounds how much of a non-JSON error body ends up in a message
const maxMessageLen = 200

// Error describes a failed call to the receipt service
type Error struct {
	Op         string
	StatusCode int
	// Message is the reason reported by the service, if any
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", e.Op, e.Err)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Reason returns the most useful human-readable explanation
func (e *Error) Reason() string {
	if e.Message != "" {
		return e.Message
	}
	msg := e.Err.Error()
	for _, sentinel := range []error{ErrTransport, ErrMalformed} {
		if errors.Is(e.Err, sentinel) {
			return strings.TrimPrefix(msg, sentinel.Error()+": ")
		}
	}
	return msg
}

func transportError(op string, err error) *Error {
	return &Error{Op: op, Err: fmt.Errorf("%w: %w", ErrTransport, err)}
}

func malformedError(op string, status int, err error) *Error {
	return &Error{Op: op, StatusCode: status, Err: fmt.Errorf("%w: %w", ErrMalformed, err)}
}

// errorMessage extracts the reason from an error body. The service answers
// with {"error": "..."} and sometimes {"invalid_reason": "..."}; anything else
// is used as plain text.
func errorMessage(body []byte) string {
	var payload struct {
		Error         string `json:"error"`
		InvalidReason string `json:"invalid_reason"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.InvalidReason != "" {
			return payload.InvalidReason
		}
	}
	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "{") {
		return ""
	}
	if len(text) > maxMessageLen {
		cut := maxMessageLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}
