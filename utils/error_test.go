package utils

import (
	"errors"
	"testing"
)

func TestNewValidationErrorPreservesPercentSigns(t *testing.T) {
	// Upstream errors get passed through a "%s" verb so a literal percent in
	// the message never gets mangled as a format directive.
	upstream := errors.New("upload failed at 50% of quota")
	ve := NewValidationError("%s", upstream)
	if ve.Msg != "upload failed at 50% of quota" {
		t.Fatalf("Msg = %q", ve.Msg)
	}
}

func TestErrorPredicatesMatchWrappedErrors(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), NewValidationError("bad input"))
	if !IsValidationError(wrapped) {
		t.Fatalf("expected wrapped ValidationError to match")
	}
	if IsConflictError(wrapped) || IsAuthError(wrapped) {
		t.Fatalf("predicates matched the wrong error kind")
	}
	if !IsConflictError(&ConflictError{Msg: "duplicate name", References: 2}) {
		t.Fatalf("expected ConflictError to match")
	}
}
