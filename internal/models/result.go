package models

import "time"

// ProcessingStatus is the lifecycle state of one stage execution.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "PENDING"
	StatusProcessing ProcessingStatus = "PROCESSING"
	StatusCompleted  ProcessingStatus = "COMPLETED"
	StatusFailed     ProcessingStatus = "FAILED"
	StatusSkipped    ProcessingStatus = "SKIPPED"
)

// IsTerminal reports whether no further transition is expected.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// ProcessingResult records the outcome of one pipeline stage in a run.
type ProcessingResult struct {
	Stage        string           `json:"stage"`
	Status       ProcessingStatus `json:"status"`
	Payload      any              `json:"-"`
	Errors       []string         `json:"errors,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
	Elapsed      time.Duration    `json:"elapsed"`
	Attempts     int              `json:"attempts"`
	UsedFallback bool             `json:"used_fallback,omitempty"`
}

// NewProcessingResult starts a result in the pending state.
func NewProcessingResult(stage string) *ProcessingResult {
	return &ProcessingResult{Stage: stage, Status: StatusPending}
}

// Start moves a pending result to processing.
func (r *ProcessingResult) Start() {
	if r.Status == StatusPending {
		r.Status = StatusProcessing
	}
}

// Complete marks success unless the result is already terminal.
func (r *ProcessingResult) Complete(payload any, elapsed time.Duration) {
	if r.Status.IsTerminal() {
		return
	}
	r.Status = StatusCompleted
	r.Payload = payload
	r.Elapsed = elapsed
}

// Fail records err and marks the result failed unless already terminal.
func (r *ProcessingResult) Fail(err error, elapsed time.Duration) {
	if r.Status.IsTerminal() {
		return
	}
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
	r.Status = StatusFailed
	r.Elapsed = elapsed
}

// Skip marks the result skipped unless already terminal.
func (r *ProcessingResult) Skip(reason string) {
	if r.Status.IsTerminal() {
		return
	}
	if reason != "" {
		r.Warnings = append(r.Warnings, reason)
	}
	r.Status = StatusSkipped
}

// AddError records a non-terminal error (e.g. a failed attempt).
func (r *ProcessingResult) AddError(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
}

func (r *ProcessingResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
