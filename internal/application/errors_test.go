package application

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"start": "invalid", "date": "required"}}
	if got := withFields.Error(); got != "validation failed: date, start" {
		t.Fatalf("expected sorted field list for populated error, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_Add(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}

	base.add("first", "again")
	if len(base.FieldErrors) != 1 || base.FieldErrors["first"] != "again" {
		t.Fatalf("expected add to overwrite the field, got %v", base.FieldErrors)
	}
}

func TestRejection_Is(t *testing.T) {
	t.Parallel()

	err := newRejection(ReasonParticipantConflict, "bob", "busy during %s", "10:00-11:00")
	wrapped := fmt.Errorf("create booking: %w", err)

	if !errors.Is(wrapped, ErrParticipantConflict) {
		t.Fatalf("expected wrapped rejection to match its sentinel")
	}
	if errors.Is(wrapped, ErrOrganizerConflict) {
		t.Fatalf("expected different reasons not to match")
	}

	r, ok := AsRejection(wrapped)
	if !ok || r.PersonID != "bob" {
		t.Fatalf("expected rejection with person bob, got %v", r)
	}
	if got := r.Error(); got != "participant_conflict: busy during 10:00-11:00 (person bob)" {
		t.Fatalf("unexpected message %q", got)
	}
	if ErrParticipantConflict.PersonID != "" {
		t.Fatalf("sentinel must stay unmodified")
	}
}

func TestSystemFailure(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk I/O error")
	err := systemFailure("create booking", cause)

	if !IsSystemFailure(err) {
		t.Fatalf("expected system failure")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected system failure to unwrap to its cause")
	}
	if again := systemFailure("outer", err); again != err {
		t.Fatalf("expected existing system failure to be returned unchanged")
	}
	if systemFailure("noop", nil) != nil {
		t.Fatalf("expected nil for nil cause")
	}
}
