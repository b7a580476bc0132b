package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/scheduler"
)

type bookingService interface {
	Create(ctx context.Context, params application.CreateBookingParams) (application.Booking, error)
	Update(ctx context.Context, params application.UpdateBookingParams) (application.Booking, error)
	Cancel(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error)
	Approve(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error)
	Reject(ctx context.Context, principal application.Principal, bookingID string, reason *string) (application.Booking, error)
	Get(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error)
	List(ctx context.Context, params application.ListBookingsParams) ([]application.Booking, error)
	Delete(ctx context.Context, principal application.Principal, bookingID string) error
}

type availabilityService interface {
	CheckAvailability(ctx context.Context, params application.AvailabilityParams) (application.AvailabilityReport, error)
}

type batchService interface {
	CommitBatch(ctx context.Context, params application.CommitBatchParams) (application.BatchReport, error)
}

type BookingHandler struct {
	bookings     bookingService
	availability availabilityService
	batch        batchService
	responder    responder
	logger       *slog.Logger
}

func NewBookingHandler(bookings bookingService, availability availabilityService, batch batchService, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{
		bookings:     bookings,
		availability: availability,
		batch:        batch,
		responder:    newResponder(base),
		logger:       base,
	}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

func (h *BookingHandler) badRequest(w http.ResponseWriter, r *http.Request, operation string, err error) {
	h.log(r.Context(), operation, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode request", "error", err)
	h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, r, "Create", err)
		return
	}

	fe := fieldErrors{}
	params := application.CreateBookingParams{
		Principal:      principal,
		RoomID:         strings.TrimSpace(req.RoomID),
		Date:           fe.date("date", req.Date),
		Start:          fe.timeOfDay("start_time", req.StartTime),
		End:            fe.timeOfDay("end_time", req.EndTime),
		ParticipantIDs: req.ParticipantIDs,
	}
	if params.RoomID == "" {
		fe["room_id"] = "room_id is required"
	}
	if err := fe.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	booking, err := h.bookings.Create(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	booking, err := h.bookings.Get(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()

	fe := fieldErrors{}
	params := application.ListBookingsParams{
		Principal:      principal,
		Status:         application.BookingStatus(queryValue(query, "status")),
		ApprovalStatus: application.ApprovalStatus(queryValue(query, "approval")),
		RoomID:         queryValue(query, "room_id"),
		From:           fe.optionalDate("from", queryValue(query, "from")),
		To:             fe.optionalDate("to", queryValue(query, "to")),
	}
	if all := fe.boolean("all", queryValue(query, "all")); all != nil {
		params.All = *all
	}
	if err := fe.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	bookings, err := h.bookings.List(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]bookingDTO, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingDTO(b))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Bookings: out})
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req updateBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, r, "Update", err)
		return
	}

	changes, err := req.toChanges()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	booking, err := h.bookings.Update(r.Context(), application.UpdateBookingParams{
		Principal: principal,
		BookingID: r.PathValue("id"),
		Changes:   changes,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	if err := h.bookings.Delete(r.Context(), principal, r.PathValue("id")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	booking, err := h.bookings.Cancel(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	booking, err := h.bookings.Approve(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req struct {
		Reason *string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, r, "Reject", err)
		return
	}

	booking, err := h.bookings.Reject(r.Context(), principal, r.PathValue("id"), req.Reason)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, r, "CheckAvailability", err)
		return
	}

	fe := fieldErrors{}
	params := application.AvailabilityParams{
		RoomID:           strings.TrimSpace(req.RoomID),
		Date:             fe.date("date", req.Date),
		Start:            fe.timeOfDay("start_time", req.StartTime),
		End:              fe.timeOfDay("end_time", req.EndTime),
		PersonIDs:        req.PersonIDs,
		ExcludeBookingID: req.ExcludeBookingID,
	}
	if err := fe.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	report, err := h.availability.CheckAvailability(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toAvailabilityDTO(report))
}

func (h *BookingHandler) CommitBatch(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, r, "CommitBatch", err)
		return
	}

	fe := fieldErrors{}
	params := application.CommitBatchParams{
		Principal: principal,
		Date:      fe.date("date", req.Date),
		Items:     make([]application.BatchItem, 0, len(req.Items)),
	}
	if len(req.Items) == 0 {
		fe["items"] = "at least one item is required"
	}
	for i, item := range req.Items {
		prefix := "items[" + strconv.Itoa(i) + "]."
		params.Items = append(params.Items, application.BatchItem{
			Label:          item.Label,
			RoomID:         strings.TrimSpace(item.RoomID),
			Start:          fe.timeOfDay(prefix+"start_time", item.StartTime),
			End:            fe.timeOfDay(prefix+"end_time", item.EndTime),
			ParticipantIDs: item.ParticipantIDs,
		})
	}
	if err := fe.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	report, err := h.batch.CommitBatch(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBatchDTO(report))
}

type createBookingRequest struct {
	RoomID         string   `json:"room_id"`
	Date           string   `json:"date"`
	StartTime      string   `json:"start_time"`
	EndTime        string   `json:"end_time"`
	ParticipantIDs []string `json:"participant_ids"`
}

type updateBookingRequest struct {
	Date           *string   `json:"date"`
	StartTime      *string   `json:"start_time"`
	EndTime        *string   `json:"end_time"`
	ParticipantIDs *[]string `json:"participant_ids"`
	Status         *string   `json:"status"`
}

func (req updateBookingRequest) toChanges() (application.BookingChanges, error) {
	fe := fieldErrors{}
	var changes application.BookingChanges
	if req.Date != nil {
		d := fe.date("date", *req.Date)
		changes.Date = &d
	}
	if req.StartTime != nil {
		t := fe.timeOfDay("start_time", *req.StartTime)
		changes.Start = &t
	}
	if req.EndTime != nil {
		t := fe.timeOfDay("end_time", *req.EndTime)
		changes.End = &t
	}
	changes.ParticipantIDs = req.ParticipantIDs
	if req.Status != nil {
		status := application.BookingStatus(strings.TrimSpace(*req.Status))
		changes.Status = &status
	}
	return changes, fe.err()
}

type availabilityRequest struct {
	RoomID           string   `json:"room_id"`
	Date             string   `json:"date"`
	StartTime        string   `json:"start_time"`
	EndTime          string   `json:"end_time"`
	PersonIDs        []string `json:"person_ids"`
	ExcludeBookingID string   `json:"exclude_booking_id"`
}

type batchRequest struct {
	Date  string             `json:"date"`
	Items []batchItemRequest `json:"items"`
}

type batchItemRequest struct {
	Label          string   `json:"label"`
	RoomID         string   `json:"room_id"`
	StartTime      string   `json:"start_time"`
	EndTime        string   `json:"end_time"`
	ParticipantIDs []string `json:"participant_ids"`
}

type bookingResponse struct {
	Booking bookingDTO `json:"booking"`
}

type listBookingsResponse struct {
	Bookings []bookingDTO `json:"bookings"`
}

type bookingDTO struct {
	ID              string   `json:"id"`
	RoomID          string   `json:"room_id"`
	OrganizerID     string   `json:"organizer_id"`
	Date            string   `json:"date"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	Status          string   `json:"status"`
	ApprovalStatus  string   `json:"approval_status"`
	ApprovedBy      *string  `json:"approved_by,omitempty"`
	ApprovedAt      *string  `json:"approved_at,omitempty"`
	RejectionReason *string  `json:"rejection_reason,omitempty"`
	ParticipantIDs  []string `json:"participant_ids"`
	CreatedAt       string   `json:"created_at,omitempty"`
	UpdatedAt       string   `json:"updated_at,omitempty"`
}

func toBookingDTO(b application.Booking) bookingDTO {
	participants := b.ParticipantIDs
	if participants == nil {
		participants = []string{}
	}
	return bookingDTO{
		ID:              b.ID,
		RoomID:          b.RoomID,
		OrganizerID:     b.OrganizerID,
		Date:            scheduler.FormatDate(b.Date),
		StartTime:       b.Start.String(),
		EndTime:         b.End.String(),
		Status:          string(b.Status),
		ApprovalStatus:  string(b.ApprovalStatus),
		ApprovedBy:      b.ApprovedBy,
		ApprovedAt:      formatOptionalTimestamp(b.ApprovedAt),
		RejectionReason: b.RejectionReason,
		ParticipantIDs:  participants,
		CreatedAt:       formatTimestamp(b.CreatedAt),
		UpdatedAt:       formatTimestamp(b.UpdatedAt),
	}
}

type availabilityDTO struct {
	RoomID        string        `json:"room_id,omitempty"`
	Date          string        `json:"date"`
	StartTime     string        `json:"start_time"`
	EndTime       string        `json:"end_time"`
	RoomOpen      bool          `json:"room_open"`
	RoomAvailable bool          `json:"room_available"`
	BusyPersonIDs []string      `json:"busy_person_ids"`
	Conflicts     []conflictDTO `json:"conflicts"`
}

type conflictDTO struct {
	Type          string `json:"type"`
	WithBookingID string `json:"with_booking_id"`
	PersonID      string `json:"person_id,omitempty"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

func toAvailabilityDTO(report application.AvailabilityReport) availabilityDTO {
	out := availabilityDTO{
		RoomID:        report.RoomID,
		Date:          scheduler.FormatDate(report.Date),
		StartTime:     report.Interval.Start.String(),
		EndTime:       report.Interval.End.String(),
		RoomOpen:      report.RoomOpen,
		RoomAvailable: report.RoomAvailable,
		BusyPersonIDs: report.BusyPersonIDs,
		Conflicts:     make([]conflictDTO, 0, len(report.Conflicts)),
	}
	if out.BusyPersonIDs == nil {
		out.BusyPersonIDs = []string{}
	}
	for _, c := range report.Conflicts {
		out.Conflicts = append(out.Conflicts, conflictDTO{
			Type:          string(c.Type),
			WithBookingID: c.WithBookingID,
			PersonID:      c.PersonID,
			StartTime:     c.Interval.Start.String(),
			EndTime:       c.Interval.End.String(),
		})
	}
	return out
}

type batchDTO struct {
	Created      []string          `json:"created"`
	Failed       []batchFailureDTO `json:"failed"`
	SuccessCount int               `json:"success_count"`
	FailureCount int               `json:"failure_count"`
}

type batchFailureDTO struct {
	Index    int    `json:"index"`
	Label    string `json:"label,omitempty"`
	Reason   string `json:"reason"`
	Message  string `json:"message"`
	PersonID string `json:"person_id,omitempty"`
}

func toBatchDTO(report application.BatchReport) batchDTO {
	out := batchDTO{
		Created:      report.Created,
		Failed:       make([]batchFailureDTO, 0, len(report.Failed)),
		SuccessCount: report.SuccessCount,
		FailureCount: report.FailureCount,
	}
	if out.Created == nil {
		out.Created = []string{}
	}
	for _, f := range report.Failed {
		out.Failed = append(out.Failed, batchFailureDTO{
			Index:    f.Index,
			Label:    f.Label,
			Reason:   f.Reason,
			Message:  f.Message,
			PersonID: f.PersonID,
		})
	}
	return out
}
