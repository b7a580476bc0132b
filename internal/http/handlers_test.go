package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/scheduler"
)

type bookingServiceStub struct {
	created  application.CreateBookingParams
	updated  application.UpdateBookingParams
	listed   application.ListBookingsParams
	booking  application.Booking
	bookings []application.Booking
	err      error
}

func (s *bookingServiceStub) Create(_ context.Context, params application.CreateBookingParams) (application.Booking, error) {
	s.created = params
	return s.booking, s.err
}

func (s *bookingServiceStub) Update(_ context.Context, params application.UpdateBookingParams) (application.Booking, error) {
	s.updated = params
	return s.booking, s.err
}

func (s *bookingServiceStub) Cancel(context.Context, application.Principal, string) (application.Booking, error) {
	return s.booking, s.err
}

func (s *bookingServiceStub) Approve(context.Context, application.Principal, string) (application.Booking, error) {
	return s.booking, s.err
}

func (s *bookingServiceStub) Reject(_ context.Context, _ application.Principal, _ string, reason *string) (application.Booking, error) {
	s.booking.RejectionReason = reason
	return s.booking, s.err
}

func (s *bookingServiceStub) Get(context.Context, application.Principal, string) (application.Booking, error) {
	return s.booking, s.err
}

func (s *bookingServiceStub) List(_ context.Context, params application.ListBookingsParams) ([]application.Booking, error) {
	s.listed = params
	return s.bookings, s.err
}

func (s *bookingServiceStub) Delete(context.Context, application.Principal, string) error {
	return s.err
}

type batchServiceStub struct {
	params application.CommitBatchParams
	report application.BatchReport
}

func (s *batchServiceStub) CommitBatch(_ context.Context, params application.CommitBatchParams) (application.BatchReport, error) {
	s.params = params
	return s.report, nil
}

type availabilityStub struct {
	report application.AvailabilityReport
}

func (s availabilityStub) CheckAvailability(context.Context, application.AvailabilityParams) (application.AvailabilityReport, error) {
	return s.report, nil
}

type invitationServiceStub struct {
	status  application.InvitationStatus
	unread  int
	pending int
	err     error
}

func (s *invitationServiceStub) Respond(_ context.Context, _ application.Principal, id string, status application.InvitationStatus, note *string) (application.Invitation, error) {
	s.status = status
	return application.Invitation{ID: id, Status: status, Note: note}, s.err
}

func (s *invitationServiceStub) MarkRead(context.Context, application.Principal, string) error {
	return s.err
}

func (s *invitationServiceStub) MarkAllRead(context.Context, application.Principal) (int, error) {
	return 3, s.err
}

func (s *invitationServiceStub) UnreadCount(context.Context, application.Principal) (int, error) {
	return s.unread, s.err
}

func (s *invitationServiceStub) PendingCount(context.Context, application.Principal) (int, error) {
	return s.pending, s.err
}

func (s *invitationServiceStub) List(context.Context, application.ListInvitationsParams) ([]application.Invitation, error) {
	return nil, s.err
}

func (s *invitationServiceStub) ListForBooking(context.Context, application.Principal, string) ([]application.Invitation, error) {
	return nil, s.err
}

type roomServiceStub struct {
	rooms      []application.Room
	err        error
	listParams application.ListRoomsParams
}

func (s *roomServiceStub) CreateRoom(_ context.Context, params application.CreateRoomParams) (application.Room, error) {
	return application.Room{ID: "room-1", Name: params.Input.Name, Capacity: params.Input.Capacity}, s.err
}

func (s *roomServiceStub) UpdateRoom(context.Context, application.UpdateRoomParams) (application.Room, error) {
	return application.Room{}, s.err
}

func (s *roomServiceStub) SetAvailability(_ context.Context, _ application.Principal, roomID string, available bool) (application.Room, error) {
	return application.Room{ID: roomID, IsAvailable: available}, s.err
}

func (s *roomServiceStub) DeleteRoom(context.Context, application.Principal, string) error {
	return s.err
}

func (s *roomServiceStub) GetRoom(context.Context, string) (application.Room, error) {
	return application.Room{}, s.err
}

func (s *roomServiceStub) ListRooms(_ context.Context, params application.ListRoomsParams) ([]application.Room, error) {
	s.listParams = params
	return s.rooms, s.err
}

type testServer struct {
	handler     http.Handler
	bookings    *bookingServiceStub
	batch       *batchServiceStub
	invitations *invitationServiceStub
	rooms       *roomServiceStub
}

func newTestServer() *testServer {
	ts := &testServer{
		bookings:    &bookingServiceStub{},
		batch:       &batchServiceStub{},
		invitations: &invitationServiceStub{},
		rooms:       &roomServiceStub{},
	}
	availability := availabilityStub{report: application.AvailabilityReport{
		RoomID:   "room-a",
		Date:     time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC),
		Interval: scheduler.Interval{Start: scheduler.MustParseTimeOfDay("10:00"), End: scheduler.MustParseTimeOfDay("11:00")},
		RoomOpen: true,
		Conflicts: []scheduler.Conflict{{
			Type:          scheduler.ConflictTypeRoom,
			WithBookingID: "b-1",
			Interval:      scheduler.Interval{Start: scheduler.MustParseTimeOfDay("09:30"), End: scheduler.MustParseTimeOfDay("10:30")},
		}},
	}}
	ts.handler = NewRouter(RouterConfig{
		Bookings:    NewBookingHandler(ts.bookings, availability, ts.batch, nil),
		Invitations: NewInvitationHandler(ts.invitations, nil),
		Rooms:       NewRoomHandler(ts.rooms, nil),
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set(headerUserID, userID)
		if userID == "manager" {
			req.Header.Set(headerUserRole, roleManager)
		}
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestBookingHandlers(t *testing.T) {
	t.Run("create parses dates and times", func(t *testing.T) {
		ts := newTestServer()
		ts.bookings.booking = application.Booking{
			ID:     "b-1",
			RoomID: "room-a",
			Date:   time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC),
			Start:  scheduler.MustParseTimeOfDay("10:00"),
			End:    scheduler.MustParseTimeOfDay("11:00"),
		}

		rec := ts.do(t, http.MethodPost, "/bookings", "org", map[string]any{
			"room_id":         "room-a",
			"date":            "2025-06-02",
			"start_time":      "10:00",
			"end_time":        "11:00",
			"participant_ids": []string{"alice"},
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		got := ts.bookings.created
		if got.Principal.UserID != "org" || got.Start != scheduler.MustParseTimeOfDay("10:00") || scheduler.FormatDate(got.Date) != "2025-06-02" {
			t.Fatalf("unexpected params %+v", got)
		}

		var body bookingResponse
		decodeBody(t, rec, &body)
		if body.Booking.StartTime != "10:00" || body.Booking.Date != "2025-06-02" || body.Booking.ParticipantIDs == nil {
			t.Fatalf("unexpected body %+v", body.Booking)
		}
	})

	t.Run("malformed fields are collected", func(t *testing.T) {
		ts := newTestServer()
		rec := ts.do(t, http.MethodPost, "/bookings", "org", map[string]any{"date": "06/02/2025", "start_time": "25:00"})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		var body errorResponse
		decodeBody(t, rec, &body)
		for _, field := range []string{"room_id", "date", "start_time", "end_time"} {
			if _, ok := body.Errors[field]; !ok {
				t.Fatalf("expected error for %s, got %v", field, body.Errors)
			}
		}
	})

	t.Run("bad json", func(t *testing.T) {
		ts := newTestServer()
		if rec := ts.do(t, http.MethodPost, "/bookings", "org", "{"); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("missing principal", func(t *testing.T) {
		ts := newTestServer()
		rec := ts.do(t, http.MethodGet, "/bookings", "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("rejections carry reason and person", func(t *testing.T) {
		ts := newTestServer()
		ts.bookings.err = &application.Rejection{Reason: application.ReasonParticipantConflict, PersonID: "carol", Message: "carol is busy"}

		rec := ts.do(t, http.MethodPost, "/bookings", "org", map[string]any{
			"room_id": "room-a", "date": "2025-06-02", "start_time": "10:00", "end_time": "11:00",
		})
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		var body errorResponse
		decodeBody(t, rec, &body)
		if body.ErrorCode != "participant_conflict" || body.PersonID != "carol" {
			t.Fatalf("unexpected body %+v", body)
		}
	})

	t.Run("system failures are opaque", func(t *testing.T) {
		ts := newTestServer()
		ts.bookings.err = &application.SystemFailure{Op: "get booking", Err: errors.New("disk I/O error")}

		rec := ts.do(t, http.MethodGet, "/bookings/b-1", "org", nil)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "disk") {
			t.Fatalf("cause leaked to client: %s", rec.Body.String())
		}
	})

	t.Run("patch only sets provided fields", func(t *testing.T) {
		ts := newTestServer()
		rec := ts.do(t, http.MethodPatch, "/bookings/b-1", "org", map[string]any{"participant_ids": []string{"bob"}})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		changes := ts.bookings.updated.Changes
		if ts.bookings.updated.BookingID != "b-1" || changes.Date != nil || changes.Start != nil || changes.ParticipantIDs == nil || (*changes.ParticipantIDs)[0] != "bob" {
			t.Fatalf("unexpected changes %+v", ts.bookings.updated)
		}
	})

	t.Run("list passes filters", func(t *testing.T) {
		ts := newTestServer()
		rec := ts.do(t, http.MethodGet, "/bookings?status=upcoming&from=2025-06-01&to=2025-06-30&all=true", "manager", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		got := ts.bookings.listed
		if !got.All || !got.Principal.IsManager || got.Status != application.BookingStatusUpcoming || got.From == nil || got.To == nil {
			t.Fatalf("unexpected list params %+v", got)
		}
		var body listBookingsResponse
		decodeBody(t, rec, &body)
		if body.Bookings == nil {
			t.Fatal("expected an empty list, not null")
		}
	})

	t.Run("reject forwards the reason", func(t *testing.T) {
		ts := newTestServer()
		rec := ts.do(t, http.MethodPost, "/bookings/b-1/reject", "manager", map[string]any{"reason": "maintenance"})
		var body bookingResponse
		decodeBody(t, rec, &body)
		if body.Booking.RejectionReason == nil || *body.Booking.RejectionReason != "maintenance" {
			t.Fatalf("expected reason in response, got %+v", body.Booking)
		}
	})

	t.Run("availability report", func(t *testing.T) {
		ts := newTestServer()
		rec := ts.do(t, http.MethodPost, "/availability", "org", map[string]any{
			"room_id": "room-a", "date": "2025-06-02", "start_time": "10:00", "end_time": "11:00",
		})
		var body availabilityDTO
		decodeBody(t, rec, &body)
		if body.RoomAvailable || len(body.Conflicts) != 1 || body.Conflicts[0].StartTime != "09:30" || body.BusyPersonIDs == nil {
			t.Fatalf("unexpected report %+v", body)
		}
	})

	t.Run("batch report", func(t *testing.T) {
		ts := newTestServer()
		ts.batch.report = application.BatchReport{
			Created:      []string{"b-1"},
			Failed:       []application.BatchFailure{{Index: 1, Reason: "batch_conflict", Message: "overlaps"}},
			SuccessCount: 1,
			FailureCount: 1,
		}
		rec := ts.do(t, http.MethodPost, "/bookings/batch", "org", map[string]any{
			"date": "2025-06-02",
			"items": []map[string]any{
				{"room_id": "room-a", "start_time": "10:00", "end_time": "11:00"},
				{"room_id": "room-b", "start_time": "10:30", "end_time": "11:30"},
			},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(ts.batch.params.Items) != 2 || ts.batch.params.Items[1].RoomID != "room-b" {
			t.Fatalf("unexpected batch params %+v", ts.batch.params)
		}
		var body batchDTO
		decodeBody(t, rec, &body)
		if body.SuccessCount != 1 || body.Failed[0].Reason != "batch_conflict" {
			t.Fatalf("unexpected batch body %+v", body)
		}
	})

	t.Run("batch item errors name the item", func(t *testing.T) {
		ts := newTestServer()
		rec := ts.do(t, http.MethodPost, "/bookings/batch", "org", map[string]any{
			"date":  "2025-06-02",
			"items": []map[string]any{{"room_id": "room-a", "start_time": "x", "end_time": "11:00"}},
		})
		var body errorResponse
		decodeBody(t, rec, &body)
		if _, ok := body.Errors["items[0].start_time"]; !ok || rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected indexed field error, got %d %+v", rec.Code, body)
		}
	})
}

func TestInvitationHandlers(t *testing.T) {
	ts := newTestServer()
	ts.invitations.unread, ts.invitations.pending = 2, 5

	rec := ts.do(t, http.MethodPost, "/invitations/inv-1/respond", "alice", map[string]any{"status": "Rejected", "note": "away"})
	if rec.Code != http.StatusOK || ts.invitations.status != application.InvitationRejected {
		t.Fatalf("expected rejected response, got %d %q", rec.Code, ts.invitations.status)
	}

	rec = ts.do(t, http.MethodGet, "/invitations/counts", "alice", nil)
	var counts countsResponse
	decodeBody(t, rec, &counts)
	if counts.UnreadCount != 2 || counts.PendingCount != 5 {
		t.Fatalf("unexpected counts %+v", counts)
	}

	if rec := ts.do(t, http.MethodPatch, "/invitations/inv-1/read", "alice", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/invitations/read-all", "alice", nil)
	var all markAllReadResponse
	decodeBody(t, rec, &all)
	if all.Updated != 3 {
		t.Fatalf("expected 3 updated, got %d", all.Updated)
	}

	if rec := ts.do(t, http.MethodGet, "/invitations?limit=abc", "alice", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad limit, got %d", rec.Code)
	}

	ts.invitations.err = application.ErrAlreadyResponded
	if rec := ts.do(t, http.MethodPost, "/invitations/inv-1/respond", "alice", map[string]any{"status": "accepted"}); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestRoomHandlers(t *testing.T) {
	ts := newTestServer()
	ts.rooms.rooms = []application.Room{{ID: "room-a", Name: "A", Capacity: 4}}

	rec := ts.do(t, http.MethodGet, "/rooms", "alice", nil)
	var list listRoomsResponse
	decodeBody(t, rec, &list)
	if len(list.Rooms) != 1 || list.Rooms[0].Amenities == nil {
		t.Fatalf("unexpected rooms %+v", list)
	}

	rec = ts.do(t, http.MethodGet, "/rooms?min_capacity=6&amenity=projector,whiteboard&amenity=phone&available=true", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for filtered list, got %d", rec.Code)
	}
	got := ts.rooms.listParams
	if got.Principal.UserID != "alice" || got.MinCapacity != 6 || !got.AvailableOnly {
		t.Fatalf("unexpected list params %+v", got)
	}
	if !slices.Equal(got.Amenities, []string{"projector", "whiteboard", "phone"}) {
		t.Fatalf("unexpected amenities %v", got.Amenities)
	}
	if rec := ts.do(t, http.MethodGet, "/rooms?min_capacity=many", "alice", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad min_capacity, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPatch, "/rooms/room-a/availability", "manager", map[string]any{"is_available": false})
	var single roomResponse
	decodeBody(t, rec, &single)
	if single.Room.ID != "room-a" || single.Room.IsAvailable {
		t.Fatalf("unexpected room %+v", single.Room)
	}

	if rec := ts.do(t, http.MethodPatch, "/rooms/room-a/availability", "manager", map[string]any{}); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without flag, got %d", rec.Code)
	}

	ts.rooms.err = application.ErrNotAuthorized
	if rec := ts.do(t, http.MethodPost, "/rooms", "alice", map[string]any{"name": "X", "capacity": 2}); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHealthzIsPublic(t *testing.T) {
	ts := newTestServer()
	if rec := ts.do(t, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{application.ErrNotAuthorized, http.StatusForbidden},
		{application.ErrNotFound, http.StatusNotFound},
		{application.ErrRoomNotFound, http.StatusNotFound},
		{application.ErrRoomUnavailable, http.StatusConflict},
		{application.ErrOrganizerConflict, http.StatusConflict},
		{application.ErrBatchConflict, http.StatusConflict},
		{application.ErrAlreadyResponded, http.StatusConflict},
		{application.ErrInvalidTimeWindow, http.StatusUnprocessableEntity},
		{application.ErrCapacityExceeded, http.StatusUnprocessableEntity},
		{application.ErrDuplicateParticipant, http.StatusUnprocessableEntity},
		{&application.ValidationError{FieldErrors: map[string]string{"x": "y"}}, http.StatusUnprocessableEntity},
		{application.ErrCollaboratorUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := statusForError(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
