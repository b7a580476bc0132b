package http

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/scheduler"
)

// fieldErrors collects request parsing problems and renders them as a
// validation error.
type fieldErrors map[string]string

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &application.ValidationError{FieldErrors: f}
}

func (f fieldErrors) date(field, value string) time.Time {
	if strings.TrimSpace(value) == "" {
		f[field] = field + " is required"
		return time.Time{}
	}
	d, err := scheduler.ParseDate(value)
	if err != nil {
		f[field] = field + " must be YYYY-MM-DD"
	}
	return d
}

func (f fieldErrors) optionalDate(field, value string) *time.Time {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	d := f.date(field, value)
	return &d
}

func (f fieldErrors) timeOfDay(field, value string) scheduler.TimeOfDay {
	if strings.TrimSpace(value) == "" {
		f[field] = field + " is required"
		return 0
	}
	t, err := scheduler.ParseTimeOfDay(value)
	if err != nil {
		f[field] = field + " must be HH:MM"
	}
	return t
}

func (f fieldErrors) boolean(field, value string) *bool {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		f[field] = field + " must be true or false"
		return nil
	}
	return &b
}

func (f fieldErrors) integer(field, value string) int {
	if strings.TrimSpace(value) == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		f[field] = field + " must be an integer"
	}
	return n
}

func queryValue(values url.Values, key string) string {
	return strings.TrimSpace(values.Get(key))
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatOptionalTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTimestamp(*t)
	return &s
}
