// Package errors provides the structured error types shared by the pipeline.
// Each type carries the operation that failed and an optional cause so callers
// can branch with errors.Is / errors.As instead of matching strings.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel causes wrapped by the typed errors below.
var (
	ErrAllSourcesFailed = errors.New("all discovery sources failed")
	ErrNoSources        = errors.New("no discovery sources enabled")
	ErrStageTimeout     = errors.New("stage attempt timed out")
	ErrCircuitOpen      = errors.New("circuit open")
	ErrNoFallback       = errors.New("no fallback registered")
	ErrEmptyResult      = errors.New("empty result")
)

func format(kind, op, msg string, err error) string {
	if err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", kind, op, msg, err)
	}
	return fmt.Sprintf("%s: %s: %s", kind, op, msg)
}

// ValidationError indicates invalid input, config or venue state.
type ValidationError struct {
	Op    string
	Msg   string
	Field string // optional offending field
	Err   error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return format("validation", e.Op, e.Msg, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
func (e *ValidationError) Context() map[string]any {
	return map[string]any{"op": e.Op, "msg": e.Msg, "field": e.Field}
}

func NewValidation(op, msg string, err error) error {
	return &ValidationError{Op: op, Msg: msg, Err: err}
}

// NewFieldValidation reports a failed check on a single named field.
func NewFieldValidation(op, field, msg string) error {
	return &ValidationError{Op: op, Field: field, Msg: msg}
}

// DBError represents run history store failures.
type DBError struct {
	Op  string
	Msg string
	Err error
}

func (e *DBError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return format("db", e.Op, e.Msg, e.Err)
}

func (e *DBError) Unwrap() error { return e.Err }

func NewDB(op, msg string, err error) error { return &DBError{Op: op, Msg: msg, Err: err} }

// ExternalAPIError represents a failed call to an outside system
// (place search, feeds, the language model).
type ExternalAPIError struct {
	Op     string
	Msg    string
	Err    error
	System string // e.g. "google_maps", "openai", "feed"
}

func (e *ExternalAPIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	sys := e.System
	if sys == "" {
		sys = "external"
	}
	return format(sys, e.Op, e.Msg, e.Err)
}

func (e *ExternalAPIError) Unwrap() error { return e.Err }
func (e *ExternalAPIError) Context() map[string]any {
	return map[string]any{"op": e.Op, "msg": e.Msg, "system": e.System}
}

func NewExternal(op, system, msg string, err error) error {
	return &ExternalAPIError{Op: op, System: system, Msg: msg, Err: err}
}

// BizError is for domain failures that aren't programmer bugs.
type BizError struct {
	Op  string
	Msg string
	Err error
}

func (e *BizError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return format("biz", e.Op, e.Msg, e.Err)
}

func (e *BizError) Unwrap() error { return e.Err }

func NewBiz(op, msg string, err error) error { return &BizError{Op: op, Msg: msg, Err: err} }

// StageError marks a pipeline stage that exhausted its attempts.
type StageError struct {
	Stage    string
	Attempts int
	Err      error
}

func (e *StageError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("stage %s failed after %d attempt(s): %v", e.Stage, e.Attempts, e.Err)
	}
	return fmt.Sprintf("stage %s failed after %d attempt(s)", e.Stage, e.Attempts)
}

func (e *StageError) Unwrap() error { return e.Err }

func NewStage(stage string, attempts int, err error) error {
	return &StageError{Stage: stage, Attempts: attempts, Err: err}
}

// Kind markers usable with Is.
var (
	ErrValidation = &ValidationError{}
	ErrDB         = &DBError{}
	ErrExternal   = &ExternalAPIError{}
	ErrBiz        = &BizError{}
	ErrStage      = &StageError{}
)

// Is reports whether err matches target. Kind markers match any error of
// that type in the chain; other targets fall through to errors.Is.
func Is(err, target error) bool {
	if err == nil || target == nil {
		return errors.Is(err, target)
	}
	switch target.(type) {
	case *ValidationError:
		var v *ValidationError
		return errors.As(err, &v)
	case *DBError:
		var d *DBError
		return errors.As(err, &d)
	case *ExternalAPIError:
		var ex *ExternalAPIError
		return errors.As(err, &ex)
	case *BizError:
		var b *BizError
		return errors.As(err, &b)
	case *StageError:
		var s *StageError
		return errors.As(err, &s)
	default:
		return errors.Is(err, target)
	}
}

// As is errors.As re-exported so callers need a single import.
func As(err error, target any) bool { return errors.As(err, target) }
