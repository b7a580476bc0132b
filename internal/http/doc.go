// Package http exposes the booking engine over net/http.
//
// Every route except GET /healthz requires an acting user. An upstream
// gateway authenticates; this package trusts the X-User-ID header and
// treats X-User-Role: manager as the manager role. The websocket stream at
// GET /invitations/stream also accepts ?user_id= because browsers cannot
// set headers on the upgrade request.
//
// Routes:
//   - POST /availability: room and person availability for one interval.
//   - GET/POST /bookings, GET/PATCH/DELETE /bookings/{id}: booking lifecycle.
//     PATCH takes a field-change set; absent fields are left alone.
//   - POST /bookings/{id}/cancel, /approve, /reject: status transitions.
//   - GET /bookings/{id}/invitations: invitations of one booking.
//   - POST /bookings/batch: ordered bulk commit with per-item outcomes.
//   - POST /suggestions: feasible rooms per activity, ranked when possible.
//   - GET /invitations, GET /invitations/counts, POST /invitations/{id}/respond,
//     PATCH /invitations/{id}/read, POST /invitations/read-all.
//   - GET /invitations/stream: websocket push of events for the caller.
//   - GET/POST /rooms, GET/PUT/DELETE /rooms/{id}, PATCH /rooms/{id}/availability.
//   - GET/POST /users, GET /users/{id}.
//
// Errors are rendered as {"error_code","message","person_id","errors"}.
// Dates are YYYY-MM-DD and times of day are HH:MM.
package http
