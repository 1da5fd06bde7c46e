package workflow

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("State", func() {
	var (
		uploading          = State{Phase: PhaseUploading}
		awaitingValidation = State{Phase: PhaseAwaitingValidation}
		validating         = State{Phase: PhaseValidating}
		awaitingProcessing = State{Phase: PhaseAwaitingProcessing}
		processing         = State{Phase: PhaseProcessing}
		done               = State{Phase: PhaseDone}
		failedUpload       = State{Phase: PhaseFailed, Failed: ActionUpload}
		failedValidate     = State{Phase: PhaseFailed, Failed: ActionValidate}
		failedProcess      = State{Phase: PhaseFailed, Failed: ActionProcess}
	)

	DescribeTable("legal transitions",
		func(from State, ev Event, to State) {
			next, err := from.Next(ev)
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(to))
		},
		Entry("select a file", Initial, SelectEvent, Initial),
		Entry("reselect after a failed upload", failedUpload, SelectEvent, Initial),
		Entry("submit upload", Initial, Submit(ActionUpload), uploading),
		Entry("upload succeeds", uploading, SucceedEvent, awaitingValidation),
		Entry("upload fails", uploading, FailEvent, failedUpload),
		Entry("retry upload", failedUpload, Submit(ActionUpload), uploading),
		Entry("submit validate", awaitingValidation, Submit(ActionValidate), validating),
		Entry("validation passes", validating, SucceedEvent, awaitingProcessing),
		Entry("validation rejects", validating, RejectEvent, awaitingValidation),
		Entry("validation fails", validating, FailEvent, failedValidate),
		Entry("retry validate", failedValidate, Submit(ActionValidate), validating),
		Entry("submit process", awaitingProcessing, Submit(ActionProcess), processing),
		Entry("processing succeeds", processing, SucceedEvent, done),
		Entry("processing fails", processing, FailEvent, failedProcess),
		Entry("retry process", failedProcess, Submit(ActionProcess), processing),
		Entry("restart when done", done, RestartEvent, Initial),
		Entry("restart after a failure", failedValidate, RestartEvent, Initial),
	)

	DescribeTable("illegal transitions",
		func(from State, ev Event) {
			next, err := from.Next(ev)
			Expect(err).To(MatchError(ErrPreconditionFailed))
			Expect(next).To(Equal(from))
		},
		Entry("validate before upload", Initial, Submit(ActionValidate)),
		Entry("process before upload", Initial, Submit(ActionProcess)),
		Entry("process before validation", awaitingValidation, Submit(ActionProcess)),
		Entry("upload twice", awaitingValidation, Submit(ActionUpload)),
		Entry("resubmit while uploading", uploading, Submit(ActionUpload)),
		Entry("retry a different step", failedValidate, Submit(ActionProcess)),
		Entry("select after upload", awaitingValidation, SelectEvent),
		Entry("succeed while idle", awaitingValidation, SucceedEvent),
		Entry("reject outside validation", processing, RejectEvent),
		Entry("fail while idle", done, FailEvent),
		Entry("restart while in flight", validating, RestartEvent),
		Entry("submit after done", done, Submit(ActionUpload)),
	)

	DescribeTable("Step",
		func(s State, step Step) {
			Expect(s.Step()).To(Equal(step))
		},
		Entry(nil, Initial, StepSelectFile),
		Entry(nil, uploading, StepSelectFile),
		Entry(nil, failedUpload, StepSelectFile),
		Entry(nil, awaitingValidation, StepValidate),
		Entry(nil, validating, StepValidate),
		Entry(nil, failedValidate, StepValidate),
		Entry(nil, awaitingProcessing, StepProcess),
		Entry(nil, processing, StepProcess),
		Entry(nil, failedProcess, StepProcess),
		Entry(nil, done, StepDone),
	)

	DescribeTable("Permitted",
		func(s State, actions []Action) {
			Expect(s.Permitted()).To(Equal(actions))
		},
		Entry(nil, Initial, []Action{ActionSelectFile, ActionUpload}),
		Entry(nil, failedUpload, []Action{ActionSelectFile, ActionUpload, ActionRestart}),
		Entry(nil, awaitingValidation, []Action{ActionValidate, ActionRestart}),
		Entry(nil, failedValidate, []Action{ActionValidate, ActionRestart}),
		Entry(nil, awaitingProcessing, []Action{ActionProcess, ActionRestart}),
		Entry(nil, failedProcess, []Action{ActionProcess, ActionRestart}),
		Entry(nil, done, []Action{ActionRestart}),
		Entry(nil, validating, []Action(nil)),
	)

	It("never lowers the step along a successful run", func() {
		s := Initial
		events := []Event{
			SelectEvent, Submit(ActionUpload), SucceedEvent,
			Submit(ActionValidate), RejectEvent, Submit(ActionValidate), FailEvent, Submit(ActionValidate), SucceedEvent,
			Submit(ActionProcess), FailEvent, Submit(ActionProcess), SucceedEvent,
		}
		for _, ev := range events {
			next, err := s.Next(ev)
			Expect(err).NotTo(HaveOccurred(), "event %s from %s", ev, s)
			Expect(next.Step()).To(BeNumerically(">=", s.Step()))
			s = next
		}
		Expect(s).To(Equal(done))
	})

	It("renders failed states with the action", func() {
		Expect(failedValidate.String()).To(Equal("Failed(validate)"))
		Expect(awaitingProcessing.String()).To(Equal("AwaitingProcessing"))
	})
})
