package workflow

import (
	"bytes"

	"github.com/zombor/receipt-workflow/internal/remote"
)

// Session is the in-memory record of one upload-validate-process attempt.
// Values returned by the Controller are snapshots.
type Session struct {
	ID    string
	State State

	// Document is the selected file, nil until one is chosen
	Document *remote.Document

	// FileID and FileName are set once the upload succeeds
	FileID   remote.ID
	FileName string

	// Validation is the verdict of the last completed validate call
	Validation *remote.Validation

	// Record is set once processing succeeds
	Record *remote.Record

	// LastError is the most recent failure, cleared by the next success
	LastError error
}

// Step returns the user-facing step ordinal
func (s Session) Step() Step {
	return s.State.Step()
}

// Uploaded reports whether the service has assigned identifiers
func (s Session) Uploaded() bool {
	return !s.FileID.IsZero() && s.FileName != ""
}

// Validated reports whether the uploaded file passed validation
func (s Session) Validated() bool {
	return s.Validation != nil && s.Validation.IsValid
}

// snapshot copies the session so callers cannot mutate controller state
func (s *Session) snapshot() Session {
	out := *s
	if s.Document != nil {
		doc := *s.Document
		doc.Data = bytes.Clone(doc.Data)
		out.Document = &doc
	}
	if s.Validation != nil {
		v := *s.Validation
		out.Validation = &v
	}
	if s.Record != nil {
		r := *s.Record
		out.Record = &r
	}
	return out
}
