package processor

import (
	"context"

	"venue-discovery/internal/models"
)

// Stage is one step of a pipeline run. Process mutates data in place; the
// engine hands every attempt its own copy, so a failed or abandoned attempt
// never leaks partial output into the next one.
type Stage interface {
	Name() string
	Process(ctx context.Context, data *models.PipelineData) error
}

// StageFunc adapts a function to Stage.
type StageFunc struct {
	name string
	fn   func(ctx context.Context, data *models.PipelineData) error
}

func NewStage(name string, fn func(ctx context.Context, data *models.PipelineData) error) StageFunc {
	return StageFunc{name: name, fn: fn}
}

func (s StageFunc) Name() string { return s.name }

func (s StageFunc) Process(ctx context.Context, data *models.PipelineData) error {
	return s.fn(ctx, data)
}

// FallbackFunc substitutes the output of a stage that exhausted its
// attempts. It receives a copy of the stage input and the final error.
type FallbackFunc func(ctx context.Context, data *models.PipelineData, cause error) error

// CheckResult is the advisory verdict of one quality checker.
type CheckResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// QualityChecker inspects the final pipeline data. Checkers must not modify
// it; their verdicts are recorded but never change the result.
type QualityChecker interface {
	Name() string
	Check(data *models.PipelineData) CheckResult
}

// CheckFunc adapts a function to QualityChecker.
type CheckFunc struct {
	name string
	fn   func(data *models.PipelineData) (bool, string)
}

func NewCheck(name string, fn func(data *models.PipelineData) (bool, string)) CheckFunc {
	return CheckFunc{name: name, fn: fn}
}

func (c CheckFunc) Name() string { return c.name }

func (c CheckFunc) Check(data *models.PipelineData) CheckResult {
	ok, msg := c.fn(data)
	return CheckResult{Name: c.name, Passed: ok, Message: msg}
}
