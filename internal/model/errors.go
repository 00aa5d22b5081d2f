package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Every pipeline failure unwraps to exactly one of
// these so callers can branch with errors.Is.
var (
	ErrInvalidColumnReference = errors.New("invalid column reference")
	ErrInvalidDateType        = errors.New("invalid date type")
	ErrInvalidWindowSize      = errors.New("invalid window size")
	ErrPosthocShape           = errors.New("posthoc shape error")
	ErrEstimatorEvaluation    = errors.New("estimator evaluation error")
)

// ColumnError reports a problem with a selected input column.
// Kind is ErrInvalidColumnReference or ErrInvalidDateType.
type ColumnError struct {
	Role   string // athlete, date, variable, value
	Column string
	Kind   error
	Detail string
}

func (e *ColumnError) Error() string {
	msg := fmt.Sprintf("%v: %s column %q", e.Kind, e.Role, e.Column)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ColumnError) Unwrap() error { return e.Kind }

// EstimatorError reports a failing user estimator together with the partition
// and row it was evaluated on. For group summaries Row is the index of the
// day group rather than a frame row. Row is -1 when no row had a full window
// and the estimator failed on the all-NA window used to name its outputs.
type EstimatorError struct {
	Stage    string // rolling, group
	Athlete  string
	Variable string
	Level    string
	Window   string
	Column   string
	Row      int
	Err      error
}

func (e *EstimatorError) Error() string {
	where := fmt.Sprintf("athlete %q variable %q", e.Athlete, e.Variable)
	if e.Level != "" {
		where += fmt.Sprintf(" level %q", e.Level)
	}
	if e.Window != "" {
		where += " window " + e.Window
	}
	if e.Column != "" {
		where += fmt.Sprintf(" column %q", e.Column)
	}
	return fmt.Sprintf("%v (%s): %s row %d: %v", ErrEstimatorEvaluation, e.Stage, where, e.Row, e.Err)
}

func (e *EstimatorError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrEstimatorEvaluation}
	}
	return []error{ErrEstimatorEvaluation, e.Err}
}

// PosthocError reports a posthoc function that failed or broke the frame shape.
type PosthocError struct {
	Reason string
	Err    error
}

func (e *PosthocError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", ErrPosthocShape, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v: %s", ErrPosthocShape, e.Reason)
}

func (e *PosthocError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPosthocShape}
	}
	return []error{ErrPosthocShape, e.Err}
}
