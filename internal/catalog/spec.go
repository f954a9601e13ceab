// Package catalog is the step catalog for the slip builder: it knows, for
// every step, which prompt to present, how to validate and apply the input,
// and which step comes next. It is stateless across sessions; everything a
// step needs lives in the draft passed in.
package catalog

import "fmt"

// Mode selects which variant of the builder flow a session runs.
type Mode string

const (
	// ModeSingle builds one flat bet.
	ModeSingle Mode = "single"
	// ModeParlay builds a multi-leg composite bet.
	ModeParlay Mode = "parlay"
	// ModeBrowse is the short-lived catalog browsing sub-flow.
	ModeBrowse Mode = "browse"
)

// StepID identifies one step of the builder flow.
type StepID string

const (
	StepCategory    StepID = "category"
	StepLineType    StepID = "line_type"
	StepSelection   StepID = "selection"
	StepDetails     StepID = "details"
	StepLegDecision StepID = "leg_decision"
	StepStake       StepID = "stake"
	StepDestination StepID = "destination"
	StepConfirm     StepID = "confirm"

	// StepDone is the terminal marker; it has no prompt.
	StepDone StepID = "done"
)

// PromptKind distinguishes the two prompt shapes the interaction surface
// can present.
type PromptKind string

const (
	PromptChoice PromptKind = "single-choice"
	PromptForm   PromptKind = "free-text-form"
)

// Option is one selectable entry of a choice prompt.
type Option struct {
	Label string
	Value string
}

// Field describes one line of a free-text form.
type Field struct {
	Name   string
	Prompt string
	MaxLen int
}

// StepSpec is the prompt specification for one step, consumed by the
// interaction surface.
type StepSpec struct {
	Step    StepID
	Kind    PromptKind
	Title   string
	Body    string
	Options []Option
	Fields  []Field
}

// InputKind tells Apply whether the raw input came from a choice selection
// or a typed message.
type InputKind string

const (
	InputChoice InputKind = "choice"
	InputText   InputKind = "text"
)

// Input is one raw user input delivered to a step.
type Input struct {
	Kind  InputKind
	Value string
}

// Outcome is the result of successfully applying an input to a step.
type Outcome struct {
	// Next is the step the session moves to. StepDone means terminal.
	Next StepID

	// Finalized is set when the confirm step accepted the final confirmation
	// and the engine should run the publication bridge.
	Finalized bool

	// Cancelled is set when the user chose to abandon the session.
	Cancelled bool

	// LegAppended is set when a parlay leg was added to the draft.
	LegAppended bool

	// Notice carries terminal informational text for flows that end without
	// publishing, such as browse lookups.
	Notice string
}

// ValidationError rejects one input without mutating the draft. The message
// names the offending field or value and is shown to the user inline.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}
