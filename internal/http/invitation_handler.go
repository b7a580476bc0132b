package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-booking/internal/application"
)

type invitationService interface {
	Respond(ctx context.Context, principal application.Principal, invitationID string, status application.InvitationStatus, note *string) (application.Invitation, error)
	MarkRead(ctx context.Context, principal application.Principal, invitationID string) error
	MarkAllRead(ctx context.Context, principal application.Principal) (int, error)
	UnreadCount(ctx context.Context, principal application.Principal) (int, error)
	PendingCount(ctx context.Context, principal application.Principal) (int, error)
	List(ctx context.Context, params application.ListInvitationsParams) ([]application.Invitation, error)
	ListForBooking(ctx context.Context, principal application.Principal, bookingID string) ([]application.Invitation, error)
}

type InvitationHandler struct {
	service   invitationService
	responder responder
	logger    *slog.Logger
}

func NewInvitationHandler(service invitationService, logger *slog.Logger) *InvitationHandler {
	base := defaultLogger(logger)
	return &InvitationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()

	fe := fieldErrors{}
	params := application.ListInvitationsParams{
		Principal: principal,
		Status:    application.InvitationStatus(queryValue(query, "status")),
		IsRead:    fe.boolean("is_read", queryValue(query, "is_read")),
		Limit:     fe.integer("limit", queryValue(query, "limit")),
	}
	if err := fe.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	invitations, err := h.service.List(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listInvitationsResponse{Invitations: toInvitationDTOs(invitations)})
}

func (h *InvitationHandler) ListForBooking(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	invitations, err := h.service.ListForBooking(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listInvitationsResponse{Invitations: toInvitationDTOs(invitations)})
}

func (h *InvitationHandler) Counts(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	unread, err := h.service.UnreadCount(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	pending, err := h.service.PendingCount(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, countsResponse{UnreadCount: unread, PendingCount: pending})
}

func (h *InvitationHandler) Respond(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	invitationID := r.PathValue("id")

	var req struct {
		Status string  `json:"status"`
		Note   *string `json:"note"`
	}
	if err := decodeJSON(r, &req); err != nil {
		handlerLogger(r.Context(), h.logger, "InvitationHandler", "Respond", "invitation_id", invitationID).WarnContext(r.Context(), "failed to decode response", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	status := application.InvitationStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	invitation, err := h.service.Respond(r.Context(), principal, invitationID, status, req.Note)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, invitationResponse{Invitation: toInvitationDTO(invitation)})
}

func (h *InvitationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.MarkRead(r.Context(), principal, r.PathValue("id")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *InvitationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	updated, err := h.service.MarkAllRead(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, markAllReadResponse{Updated: updated})
}

type invitationResponse struct {
	Invitation invitationDTO `json:"invitation"`
}

type listInvitationsResponse struct {
	Invitations []invitationDTO `json:"invitations"`
}

type countsResponse struct {
	UnreadCount  int `json:"unread_count"`
	PendingCount int `json:"pending_count"`
}

type markAllReadResponse struct {
	Updated int `json:"updated"`
}

type invitationDTO struct {
	ID          string  `json:"id"`
	BookingID   string  `json:"booking_id"`
	InviterID   string  `json:"inviter_id"`
	InviteeID   string  `json:"invitee_id"`
	Status      string  `json:"status"`
	IsRead      bool    `json:"is_read"`
	Note        *string `json:"note,omitempty"`
	RespondedAt *string `json:"responded_at,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

func toInvitationDTO(inv application.Invitation) invitationDTO {
	return invitationDTO{
		ID:          inv.ID,
		BookingID:   inv.BookingID,
		InviterID:   inv.InviterID,
		InviteeID:   inv.InviteeID,
		Status:      string(inv.Status),
		IsRead:      inv.IsRead,
		Note:        inv.Note,
		RespondedAt: formatOptionalTimestamp(inv.RespondedAt),
		CreatedAt:   formatTimestamp(inv.CreatedAt),
		UpdatedAt:   formatTimestamp(inv.UpdatedAt),
	}
}

func toInvitationDTOs(invitations []application.Invitation) []invitationDTO {
	out := make([]invitationDTO, 0, len(invitations))
	for _, inv := range invitations {
		out = append(out, toInvitationDTO(inv))
	}
	return out
}
