package workflow

import "fmt"

// Phase is the position of a session in the upload-validate-process flow
type Phase int

const (
	PhaseSelectFile Phase = iota
	PhaseUploading
	PhaseAwaitingValidation
	PhaseValidating
	PhaseAwaitingProcessing
	PhaseProcessing
	PhaseDone
	// PhaseFailed is entered when a request fails; State.Failed names the action
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhaseSelectFile:         "SelectFile",
	PhaseUploading:          "Uploading",
	PhaseAwaitingValidation: "AwaitingValidation",
	PhaseValidating:         "Validating",
	PhaseAwaitingProcessing: "AwaitingProcessing",
	PhaseProcessing:         "Processing",
	PhaseDone:               "Done",
	PhaseFailed:             "Failed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Step is the coarse ordinal shown to users. It never decreases within a
// session.
type Step int

const (
	StepSelectFile Step = iota
	StepValidate
	StepProcess
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepSelectFile:
		return "SelectFile"
	case StepValidate:
		return "Validate"
	case StepProcess:
		return "Process"
	case StepDone:
		return "Done"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// Action is something a user can trigger
type Action int

const (
	ActionSelectFile Action = iota + 1
	ActionUpload
	ActionValidate
	ActionProcess
	ActionRestart
)

func (a Action) String() string {
	switch a {
	case ActionSelectFile:
		return "select file"
	case ActionUpload:
		return "upload"
	case ActionValidate:
		return "validate"
	case ActionProcess:
		return "process"
	case ActionRestart:
		return "restart"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// State is a phase plus, for PhaseFailed, the action whose request failed
type State struct {
	Phase  Phase
	Failed Action
}

// Initial is the state of a fresh session
var Initial = State{Phase: PhaseSelectFile}

func (s State) String() string {
	if s.Phase == PhaseFailed {
		return fmt.Sprintf("Failed(%s)", s.Failed)
	}
	return s.Phase.String()
}

// InFlight reports whether a request is outstanding
func (s State) InFlight() bool {
	switch s.Phase {
	case PhaseUploading, PhaseValidating, PhaseProcessing:
		return true
	}
	return false
}

func (s State) failedAt(a Action) bool {
	return s.Phase == PhaseFailed && s.Failed == a
}

// Step maps the state onto the user-facing step ordinal
func (s State) Step() Step {
	switch s.Phase {
	case PhaseAwaitingValidation, PhaseValidating:
		return StepValidate
	case PhaseAwaitingProcessing, PhaseProcessing:
		return StepProcess
	case PhaseDone:
		return StepDone
	case PhaseFailed:
		switch s.Failed {
		case ActionValidate:
			return StepValidate
		case ActionProcess:
			return StepProcess
		}
	}
	return StepSelectFile
}

// Permitted lists the actions a UI may offer in this state
func (s State) Permitted() []Action {
	switch {
	case s.Phase == PhaseSelectFile:
		return []Action{ActionSelectFile, ActionUpload}
	case s.failedAt(ActionUpload):
		return []Action{ActionSelectFile, ActionUpload, ActionRestart}
	case s.Phase == PhaseAwaitingValidation, s.failedAt(ActionValidate):
		return []Action{ActionValidate, ActionRestart}
	case s.Phase == PhaseAwaitingProcessing, s.failedAt(ActionProcess):
		return []Action{ActionProcess, ActionRestart}
	case s.Phase == PhaseDone:
		return []Action{ActionRestart}
	}
	return nil
}

// EventType enumerates the inputs of the state machine
type EventType int

const (
	EventSelect EventType = iota + 1
	EventSubmit
	EventSucceed
	EventReject
	EventFail
	EventRestart
)

// Event drives a transition. Action is only meaningful for EventSubmit.
type Event struct {
	Type   EventType
	Action Action
}

func (e Event) String() string {
	switch e.Type {
	case EventSelect:
		return "select"
	case EventSubmit:
		return "submit " + e.Action.String()
	case EventSucceed:
		return "succeed"
	case EventReject:
		return "reject"
	case EventFail:
		return "fail"
	case EventRestart:
		return "restart"
	}
	return fmt.Sprintf("Event(%d)", int(e.Type))
}

// Events without an action
var (
	SelectEvent  = Event{Type: EventSelect}
	SucceedEvent = Event{Type: EventSucceed}
	RejectEvent  = Event{Type: EventReject}
	FailEvent    = Event{Type: EventFail}
	RestartEvent = Event{Type: EventRestart}
)

// Submit starts the request for the given action
func Submit(a Action) Event {
	return Event{Type: EventSubmit, Action: a}
}

// inFlight maps a submittable action to its in-flight phase
var inFlight = map[Action]Phase{
	ActionUpload:   PhaseUploading,
	ActionValidate: PhaseValidating,
	ActionProcess:  PhaseProcessing,
}

// awaiting maps a submittable action to the phase it is submitted from
var awaiting = map[Action]Phase{
	ActionUpload:   PhaseSelectFile,
	ActionValidate: PhaseAwaitingValidation,
	ActionProcess:  PhaseAwaitingProcessing,
}

// Next applies an event. It performs no I/O; illegal events yield a
// PreconditionFailed error and the unchanged state.
func (s State) Next(ev Event) (State, error) {
	switch ev.Type {
	case EventSelect:
		if s.Phase == PhaseSelectFile || s.failedAt(ActionUpload) {
			return Initial, nil
		}

	case EventSubmit:
		from, ok := awaiting[ev.Action]
		if ok && (s.Phase == from || s.failedAt(ev.Action)) {
			return State{Phase: inFlight[ev.Action]}, nil
		}

	case EventSucceed:
		switch s.Phase {
		case PhaseUploading:
			return State{Phase: PhaseAwaitingValidation}, nil
		case PhaseValidating:
			return State{Phase: PhaseAwaitingProcessing}, nil
		case PhaseProcessing:
			return State{Phase: PhaseDone}, nil
		}

	case EventReject:
		if s.Phase == PhaseValidating {
			return State{Phase: PhaseAwaitingValidation}, nil
		}

	case EventFail:
		for action, phase := range inFlight {
			if s.Phase == phase {
				return State{Phase: PhaseFailed, Failed: action}, nil
			}
		}

	case EventRestart:
		if !s.InFlight() {
			return Initial, nil
		}
	}

	return s, &Error{
		Kind:   KindPreconditionFailed,
		Action: ev.Action,
		Reason: fmt.Sprintf("cannot %s in state %s", ev, s),
	}
}
