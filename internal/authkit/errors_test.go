package authkit

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationErrorRendering(t *testing.T) {
	t.Parallel()

	validationErr := &ValidationError{Fields: []FieldError{
		{Field: "email", Reason: "malformed"},
		{Field: "password", Reason: "too_short"},
	}}
	want := "registration.validation_failure: email: malformed; password: too_short"
	if validationErr.Error() != want {
		t.Fatalf("rendered %q, want %q", validationErr.Error(), want)
	}

	empty := &ValidationError{}
	if empty.Error() != "registration.validation_failure" {
		t.Fatalf("empty rendering %q", empty.Error())
	}
}

func TestValidationErrorSurvivesWrapping(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("outer: %w", &ValidationError{Fields: []FieldError{{Field: "email", Reason: "required"}}})
	var validationErr *ValidationError
	if !errors.As(wrapped, &validationErr) {
		t.Fatalf("errors.As must unwrap to *ValidationError")
	}
	if len(validationErr.Fields) != 1 || validationErr.Fields[0].Field != "email" {
		t.Fatalf("unexpected fields: %v", validationErr.Fields)
	}
}
