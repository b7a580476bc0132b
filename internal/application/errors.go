package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrCollaboratorUnavailable is returned when an operation needs an
	// external collaborator that is not configured.
	ErrCollaboratorUnavailable = errors.New("application: collaborator unavailable")
)

// RejectionReason names an expected refusal outcome.
type RejectionReason string

const (
	ReasonInvalidTimeWindow    RejectionReason = "invalid_time_window"
	ReasonRoomNotFound         RejectionReason = "room_not_found"
	ReasonRoomUnavailable      RejectionReason = "room_unavailable"
	ReasonOrganizerConflict    RejectionReason = "organizer_conflict"
	ReasonParticipantConflict  RejectionReason = "participant_conflict"
	ReasonCapacityExceeded     RejectionReason = "capacity_exceeded"
	ReasonBatchConflict        RejectionReason = "batch_conflict"
	ReasonNotAuthorized        RejectionReason = "not_authorized"
	ReasonAlreadyResponded     RejectionReason = "already_responded"
	ReasonDuplicateParticipant RejectionReason = "duplicate_participant"
)

// Rejection is a typed, expected refusal. PersonID is set for
// person-specific reasons such as ParticipantConflict.
type Rejection struct {
	Reason   RejectionReason
	PersonID string
	Message  string
}

// Error implements the error interface.
func (r *Rejection) Error() string {
	if r == nil {
		return ""
	}
	if r.PersonID != "" {
		return fmt.Sprintf("%s: %s (person %s)", r.Reason, r.Message, r.PersonID)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

// Is matches any Rejection with the same reason, so the sentinels below
// work with errors.Is regardless of PersonID and Message.
func (r *Rejection) Is(target error) bool {
	var other *Rejection
	if !errors.As(target, &other) || r == nil || other == nil {
		return false
	}
	return r.Reason == other.Reason
}

// Sentinels for errors.Is. Never mutate them; use newRejection instead.
var (
	ErrInvalidTimeWindow    = &Rejection{Reason: ReasonInvalidTimeWindow, Message: "time window is not allowed"}
	ErrRoomNotFound         = &Rejection{Reason: ReasonRoomNotFound, Message: "room does not exist"}
	ErrRoomUnavailable      = &Rejection{Reason: ReasonRoomUnavailable, Message: "room is not available"}
	ErrOrganizerConflict    = &Rejection{Reason: ReasonOrganizerConflict, Message: "organizer already has a booking in this interval"}
	ErrParticipantConflict  = &Rejection{Reason: ReasonParticipantConflict, Message: "participant already has a booking in this interval"}
	ErrCapacityExceeded     = &Rejection{Reason: ReasonCapacityExceeded, Message: "room capacity exceeded"}
	ErrBatchConflict        = &Rejection{Reason: ReasonBatchConflict, Message: "overlaps an earlier item of the same batch"}
	ErrNotAuthorized        = &Rejection{Reason: ReasonNotAuthorized, Message: "not allowed to perform this action"}
	ErrAlreadyResponded     = &Rejection{Reason: ReasonAlreadyResponded, Message: "already responded"}
	ErrDuplicateParticipant = &Rejection{Reason: ReasonDuplicateParticipant, Message: "participant listed more than once"}
)

func newRejection(reason RejectionReason, personID, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, PersonID: personID, Message: fmt.Sprintf(format, args...)}
}

// AsRejection extracts a Rejection from the error chain.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// SystemFailure wraps a store or collaborator fault. Callers should surface
// a generic failure and may retry.
type SystemFailure struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *SystemFailure) Error() string {
	return fmt.Sprintf("system failure during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying fault.
func (e *SystemFailure) Unwrap() error {
	return e.Err
}

// IsSystemFailure reports whether err is, or wraps, a SystemFailure.
func IsSystemFailure(err error) bool {
	var sf *SystemFailure
	return errors.As(err, &sf)
}

func systemFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsSystemFailure(err) {
		return err
	}
	return &SystemFailure{Op: op, Err: err}
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

func fieldError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}
