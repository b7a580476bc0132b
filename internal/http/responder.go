package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-booking/internal/application"
)

var (
	errBadRequestBody   = errors.New("request body is not valid JSON")
	errMissingPrincipal = errors.New("acting user is required")
)

const maxBodyBytes = 1 << 20

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: codeForStatus(status), Message: message})
}

// handleServiceError renders an engine error. System failures never leak
// their cause to the client.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	status := statusForError(err)
	body := errorResponse{ErrorCode: application.ErrorKind(err), Message: err.Error()}

	var vErr *application.ValidationError
	if rejection, ok := application.AsRejection(err); ok {
		body.Message = rejection.Message
		body.PersonID = rejection.PersonID
	} else if errors.As(err, &vErr) {
		body.ErrorCode = "validation_failed"
		body.Message = "request contains invalid fields"
		body.Errors = vErr.FieldErrors
	} else if status == http.StatusInternalServerError {
		body.ErrorCode = "internal_error"
		body.Message = "internal server error"
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "error", err, "error_kind", application.ErrorKind(err))
	}

	r.writeJSON(ctx, w, status, body)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, application.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, application.ErrNotFound), errors.Is(err, application.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, application.ErrRoomUnavailable),
		errors.Is(err, application.ErrOrganizerConflict),
		errors.Is(err, application.ErrParticipantConflict),
		errors.Is(err, application.ErrBatchConflict),
		errors.Is(err, application.ErrAlreadyResponded),
		errors.Is(err, application.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, application.ErrInvalidTimeWindow),
		errors.Is(err, application.ErrCapacityExceeded),
		errors.Is(err, application.ErrDuplicateParticipant):
		return http.StatusUnprocessableEntity
	case errors.Is(err, application.ErrCollaboratorUnavailable):
		return http.StatusServiceUnavailable
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusNotFound:
		return "not_found"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

// decodeJSON reads one JSON value from the request body. An empty body
// decodes to the zero value.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	PersonID  string            `json:"person_id,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}
