// Package workflow drives a document through upload, validation and
// processing against the receipt service. State only moves forward on
// success; failures are reported and never retried automatically.
package workflow

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/zombor/receipt-workflow/internal/remote"
)

// AcceptedExtension is the only document type the flow accepts
const AcceptedExtension = ".pdf"

// Remote is the subset of the receipt service client the controller needs
type Remote interface {
	Upload(ctx context.Context, doc remote.Document) (remote.UploadResult, error)
	Validate(ctx context.Context, fileID remote.ID, fileName string) (remote.Validation, error)
	Process(ctx context.Context, fileID remote.ID, fileName string) (remote.Record, error)
}

// IDGenerator generates session IDs
type IDGenerator interface {
	Generate() string
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

// Controller owns one workflow session at a time. It is safe for concurrent
// use, but at most one request per session is ever in flight.
type Controller struct {
	remote Remote
	ids    IDGenerator

	mu      sync.Mutex
	session *Session
}

// NewController creates a Controller with a fresh session
func NewController(r Remote) *Controller {
	return NewControllerWithDeps(r, uuidGenerator{})
}

// NewControllerWithDeps creates a Controller with a custom ID generator for testing
func NewControllerWithDeps(r Remote, ids IDGenerator) *Controller {
	c := &Controller{remote: r, ids: ids}
	c.session = c.newSession()
	return c
}

func (c *Controller) newSession() *Session {
	return &Session{ID: c.ids.Generate(), State: Initial}
}

// Session returns a snapshot of the current session
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.snapshot()
}

// Permitted lists the actions currently available
func (c *Controller) Permitted() []Action {
	c.mu.Lock()
	defer c.mu.Unlock()

	actions := c.session.State.Permitted()
	if c.session.Document != nil {
		return actions
	}
	filtered := actions[:0:0]
	for _, a := range actions {
		if a != ActionUpload {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

// SelectFile stores the document to upload. No request is made.
func (c *Controller) SelectFile(doc remote.Document) error {
	if doc.IsEmpty() {
		return &Error{Kind: KindInvalidInput, Action: ActionSelectFile, Reason: "no file selected"}
	}
	if !strings.EqualFold(filepath.Ext(doc.Name), AcceptedExtension) {
		return &Error{
			Kind:   KindInvalidInput,
			Action: ActionSelectFile,
			Reason: fmt.Sprintf("only PDF files are accepted, got %q", doc.Name),
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if err := c.transition(s, SelectEvent); err != nil {
		return err
	}
	doc.Data = bytes.Clone(doc.Data)
	s.Document = &doc
	s.LastError = nil
	return nil
}

// SubmitUpload uploads the selected document
func (c *Controller) SubmitUpload(ctx context.Context) (Session, error) {
	c.mu.Lock()
	s := c.session
	if err := c.begin(s, ActionUpload); err != nil {
		c.mu.Unlock()
		return s.snapshot(), err
	}
	doc := *s.Document
	c.mu.Unlock()

	result, err := c.remote.Upload(ctx, doc)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		wfErr := c.fail(s, ActionUpload, KindTransportFailure, err)
		return s.snapshot(), wfErr
	}
	s.FileID = result.FileID
	s.FileName = result.FileName
	c.succeed(s, SucceedEvent)
	return s.snapshot(), nil
}

// SubmitValidate validates the uploaded file. A rejection keeps the session
// awaiting validation and returns a RejectedByService error.
func (c *Controller) SubmitValidate(ctx context.Context) (Session, error) {
	c.mu.Lock()
	s := c.session
	if err := c.begin(s, ActionValidate); err != nil {
		c.mu.Unlock()
		return s.snapshot(), err
	}
	fileID, fileName := s.FileID, s.FileName
	c.mu.Unlock()

	validation, err := c.remote.Validate(ctx, fileID, fileName)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		wfErr := c.fail(s, ActionValidate, KindTransportFailure, err)
		return s.snapshot(), wfErr
	}
	s.Validation = &validation
	if !validation.IsValid {
		c.succeed(s, RejectEvent)
		s.LastError = &Error{Kind: KindRejectedByService, Action: ActionValidate, Reason: validation.InvalidReason}
		slog.Info("File rejected by service", "session", s.ID, "file_name", fileName, "reason", validation.InvalidReason)
		return s.snapshot(), s.LastError
	}
	c.succeed(s, SucceedEvent)
	return s.snapshot(), nil
}

// SubmitProcess asks the service to extract the receipt
func (c *Controller) SubmitProcess(ctx context.Context) (Session, error) {
	c.mu.Lock()
	s := c.session
	if err := c.begin(s, ActionProcess); err != nil {
		c.mu.Unlock()
		return s.snapshot(), err
	}
	fileID, fileName := s.FileID, s.FileName
	c.mu.Unlock()

	record, err := c.remote.Process(ctx, fileID, fileName)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		wfErr := c.fail(s, ActionProcess, KindProcessingFailure, err)
		return s.snapshot(), wfErr
	}
	s.Record = &record
	c.succeed(s, SucceedEvent)
	return s.snapshot(), nil
}

// Restart discards the current session and starts a fresh one
func (c *Controller) Restart() (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.State.InFlight() {
		return c.session.snapshot(), inFlightError(ActionRestart, c.session.State)
	}
	if _, err := c.session.State.Next(RestartEvent); err != nil {
		return c.session.snapshot(), err
	}
	slog.Info("Workflow restarted", "previous_session", c.session.ID)
	c.session = c.newSession()
	return c.session.snapshot(), nil
}

// begin checks the preconditions of a submit and marks the session in
// flight. Callers hold c.mu.
func (c *Controller) begin(s *Session, action Action) error {
	if s.State.InFlight() {
		return inFlightError(action, s.State)
	}

	switch action {
	case ActionUpload:
		if s.Document == nil && (s.State == Initial || s.State.failedAt(ActionUpload)) {
			return &Error{Kind: KindInvalidInput, Action: action, Reason: "no file selected"}
		}
	case ActionValidate:
		if !s.Uploaded() {
			return &Error{Kind: KindPreconditionFailed, Action: action, Reason: "no file has been uploaded"}
		}
	case ActionProcess:
		if !s.Uploaded() {
			return &Error{Kind: KindPreconditionFailed, Action: action, Reason: "no file has been uploaded"}
		}
		if !s.Validated() {
			return &Error{Kind: KindPreconditionFailed, Action: action, Reason: "file has not passed validation"}
		}
	}

	return c.transition(s, Submit(action))
}

func (c *Controller) transition(s *Session, ev Event) error {
	next, err := s.State.Next(ev)
	if err != nil {
		return err
	}
	if next != s.State {
		slog.Info("Workflow transition", "session", s.ID, "event", ev.String(), "from", s.State.String(), "to", next.String())
	}
	s.State = next
	return nil
}

func (c *Controller) succeed(s *Session, ev Event) {
	// begin marked the session in flight, so completion events are legal
	if err := c.transition(s, ev); err != nil {
		slog.Error("Unexpected workflow transition", "session", s.ID, "error", err)
		return
	}
	s.LastError = nil
}

func (c *Controller) fail(s *Session, action Action, kind Kind, cause error) error {
	if err := c.transition(s, FailEvent); err != nil {
		slog.Error("Unexpected workflow transition", "session", s.ID, "error", err)
	}
	wfErr := &Error{Kind: kind, Action: action, Reason: reasonOf(cause), Err: cause}
	s.LastError = wfErr
	slog.Error("Workflow request failed", "session", s.ID, "action", action.String(), "error", cause)
	return wfErr
}

func inFlightError(action Action, state State) error {
	return &Error{
		Kind:   KindPreconditionFailed,
		Action: action,
		Reason: fmt.Sprintf("a request is already in flight (%s)", state),
		Err:    ErrInFlight,
	}
}
