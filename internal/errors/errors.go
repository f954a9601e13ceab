package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Kind classifies where an error sits in the recovery taxonomy: validation
// errors are retried by the user inline, transient collaborator failures are
// degraded around, persistence failures at non-terminal steps are logged and
// survived, terminal failures stop the session.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindTransient   Kind = "transient"
	KindPersistence Kind = "persistence"
	KindTerminal    Kind = "terminal"
	KindConflict    Kind = "conflict"
)

type AppError struct {
	Code        string
	Kind        Kind
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// NewValidationError reports a bad user input. The message names the
// offending field or value and is shown to the user verbatim.
func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        "E100",
		Kind:        KindValidation,
		Message:     msg,
		UserMessage: msg,
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

// NewPersistenceError wraps a ledger failure. Non-terminal callers log it and
// carry on; the record is repaired on the next mutating step.
func NewPersistenceError(op string, cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        "E200",
		Kind:        KindPersistence,
		Message:     fmt.Sprintf("ledger %s failed: %s", op, underlyingMsg),
		UserMessage: "Temporary storage problem, please try again later",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewTransientError wraps an optional-collaborator failure (renderer,
// directory lookup). Sessions continue without the collaborator's output.
func NewTransientError(service string, cause error) *AppError {
	return &AppError{
		Code:        "E300",
		Kind:        KindTransient,
		Message:     fmt.Sprintf("%s temporarily unavailable", service),
		UserMessage: "A supporting service is temporarily unavailable",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewTerminalError wraps a failure at the confirm-and-publish step. The
// session is stopped and never retried automatically, since the external
// side effect may be partially applied.
func NewTerminalError(msg string, cause error) *AppError {
	return &AppError{
		Code:        "E400",
		Kind:        KindTerminal,
		Message:     msg,
		UserMessage: msg,
		Severity:    SeverityHigh,
		Retryable:   false,
		cause:       cause,
	}
}

// NewConflictError reports an operation that is impossible in the session's
// current state, such as finalizing a parlay with no legs.
func NewConflictError(msg string) *AppError {
	return &AppError{
		Code:        "E500",
		Kind:        KindConflict,
		Message:     msg,
		UserMessage: msg,
		Severity:    SeverityMedium,
		Retryable:   false,
		cause:       nil,
	}
}

// NewRateLimitError reports that the per-user limit was hit.
func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        "E600",
		Kind:        KindConflict,
		Message:     fmt.Sprintf("rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: fmt.Sprintf("Too many requests. Try again in %d seconds", retryAfter),
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}
