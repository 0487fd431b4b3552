package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesKinds(t *testing.T) {
	base := NewExternal("scraper.Search", "google_maps", "text search", ErrCircuitOpen)
	wrapped := fmt.Errorf("discovery: %w", base)

	if !Is(wrapped, ErrExternal) {
		t.Fatalf("expected external kind to match")
	}
	if Is(wrapped, ErrValidation) {
		t.Fatalf("did not expect validation kind")
	}
	if !Is(wrapped, ErrCircuitOpen) {
		t.Fatalf("expected sentinel cause to match")
	}

	var ex *ExternalAPIError
	if !As(wrapped, &ex) || ex.System != "google_maps" {
		t.Fatalf("As failed: %+v", ex)
	}
}

func TestStageErrorMessage(t *testing.T) {
	err := NewStage("enrich", 3, ErrStageTimeout)
	if got := err.Error(); got != "stage enrich failed after 3 attempt(s): stage attempt timed out" {
		t.Fatalf("unexpected message %q", got)
	}
	if !Is(err, ErrStage) || !errors.Is(err, ErrStageTimeout) {
		t.Fatalf("stage error should match kind and cause")
	}
}

func TestFieldValidationContext(t *testing.T) {
	err := NewFieldValidation("quality.validate", "name", "too short")
	var v *ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected ValidationError")
	}
	if v.Context()["field"] != "name" {
		t.Fatalf("unexpected context %+v", v.Context())
	}
	if err.Error() != "validation: quality.validate: too short" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
