package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// InvitationService manages invitee responses and read state.
type InvitationService struct {
	invitations InvitationRepository
	bookings    BookingRepository
	locks       *KeyedLocker
	notifier    Notifier
	now         func() time.Time
	logger      *slog.Logger
}

// NewInvitationService wires dependencies for invitation operations. Pass
// the locker shared with the BookingService so responses serialize with
// booking updates.
func NewInvitationService(invitations InvitationRepository, bookings BookingRepository, locks *KeyedLocker, notifier Notifier, now func() time.Time, logger *slog.Logger) *InvitationService {
	if now == nil {
		now = time.Now
	}
	if locks == nil {
		locks = NewKeyedLocker()
	}
	return &InvitationService{
		invitations: invitations,
		bookings:    bookings,
		locks:       locks,
		notifier:    notifierOrNop(notifier),
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *InvitationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "InvitationService", operation, attrs...)
}

// Accept records the invitee's acceptance.
func (s *InvitationService) Accept(ctx context.Context, principal Principal, invitationID string) (Invitation, error) {
	return s.respond(ctx, principal, invitationID, InvitationAccepted, nil)
}

// Reject records the invitee's refusal and removes them from the booking.
func (s *InvitationService) Reject(ctx context.Context, principal Principal, invitationID string, note *string) (Invitation, error) {
	return s.respond(ctx, principal, invitationID, InvitationRejected, note)
}

// Respond dispatches to Accept or Reject.
func (s *InvitationService) Respond(ctx context.Context, principal Principal, invitationID string, status InvitationStatus, note *string) (Invitation, error) {
	switch status {
	case InvitationAccepted:
		return s.Accept(ctx, principal, invitationID)
	case InvitationRejected:
		return s.Reject(ctx, principal, invitationID, note)
	default:
		return Invitation{}, fieldError("status", "status must be accepted or rejected")
	}
}

func (s *InvitationService) respond(ctx context.Context, principal Principal, invitationID string, status InvitationStatus, note *string) (inv Invitation, err error) {
	if s == nil {
		err = fmt.Errorf("InvitationService is nil")
		return
	}
	if s.invitations == nil {
		err = fmt.Errorf("invitation repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Respond",
		"principal_id", principal.UserID,
		"invitation_id", invitationID,
		"status", status,
	)
	defer func() {
		logResult(ctx, logger, err, "invitation answered")
	}()

	if err = requirePrincipal(principal); err != nil {
		return
	}

	inv, err = s.invitations.GetInvitation(ctx, invitationID)
	if err != nil {
		err = mapInvitationRepoError("get invitation", err)
		return
	}
	if inv.InviteeID != principal.UserID {
		inv, err = Invitation{}, newRejection(ReasonNotAuthorized, "", "only the invitee can respond")
		return
	}

	unlock := s.locks.Lock(invitationLockKey(invitationID), bookingLockKey(inv.BookingID))
	defer unlock()

	inv, err = s.invitations.GetInvitation(ctx, invitationID)
	if err != nil {
		err = mapInvitationRepoError("get invitation", err)
		return
	}
	if inv.Status != InvitationPending {
		inv, err = Invitation{}, newRejection(ReasonAlreadyResponded, "", "invitation is already %s", inv.Status)
		return
	}

	now := s.now()
	inv.Status = status
	inv.IsRead = true
	inv.RespondedAt = &now
	inv.UpdatedAt = now
	if status == InvitationRejected {
		inv.Note = normalizeOptionalString(note)
	}

	if err = s.invitations.SaveResponse(ctx, inv, status == InvitationRejected); err != nil {
		inv, err = Invitation{}, mapInvitationRepoError("save response", err)
		return
	}

	s.notifier.Publish(ctx, Event{
		Type:         EventInvitationResponded,
		RecipientID:  inv.InviterID,
		BookingID:    inv.BookingID,
		InvitationID: inv.ID,
		ActorID:      inv.InviteeID,
		Status:       status,
		OccurredAt:   now,
	})
	return
}

// MarkRead flags one of the principal's invitations as read.
func (s *InvitationService) MarkRead(ctx context.Context, principal Principal, invitationID string) error {
	if s == nil {
		return fmt.Errorf("InvitationService is nil")
	}
	if s.invitations == nil {
		return fmt.Errorf("invitation repository not configured")
	}
	if err := requirePrincipal(principal); err != nil {
		return err
	}

	inv, err := s.invitations.GetInvitation(ctx, invitationID)
	if err != nil {
		return mapInvitationRepoError("get invitation", err)
	}
	if inv.InviteeID != principal.UserID {
		return ErrNotAuthorized
	}
	if inv.IsRead {
		return nil
	}
	if err := s.invitations.MarkRead(ctx, invitationID); err != nil {
		return mapInvitationRepoError("mark read", err)
	}
	return nil
}

// MarkAllRead flags every unread invitation of the principal and returns
// how many changed.
func (s *InvitationService) MarkAllRead(ctx context.Context, principal Principal) (updated int, err error) {
	if s == nil {
		return 0, fmt.Errorf("InvitationService is nil")
	}
	if s.invitations == nil {
		return 0, fmt.Errorf("invitation repository not configured")
	}

	logger := s.loggerWith(ctx, "MarkAllRead", "principal_id", principal.UserID)
	defer func() {
		logResult(ctx, logger, err, "invitations marked read", "updated", updated)
	}()

	if err = requirePrincipal(principal); err != nil {
		return
	}
	updated, err = s.invitations.MarkAllRead(ctx, principal.UserID)
	if err != nil {
		updated, err = 0, systemFailure("mark all read", err)
	}
	return
}

// UnreadCount returns how many of the principal's invitations are unread.
func (s *InvitationService) UnreadCount(ctx context.Context, principal Principal) (int, error) {
	unread := false
	return s.count(ctx, principal, InvitationFilter{IsRead: &unread})
}

// PendingCount returns how many of the principal's invitations await a
// response.
func (s *InvitationService) PendingCount(ctx context.Context, principal Principal) (int, error) {
	return s.count(ctx, principal, InvitationFilter{Status: InvitationPending})
}

func (s *InvitationService) count(ctx context.Context, principal Principal, filter InvitationFilter) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("InvitationService is nil")
	}
	if s.invitations == nil {
		return 0, nil
	}
	if err := requirePrincipal(principal); err != nil {
		return 0, err
	}
	filter.InviteeID = principal.UserID
	n, err := s.invitations.CountInvitations(ctx, filter)
	if err != nil {
		return 0, systemFailure("count invitations", err)
	}
	return n, nil
}

// List returns the principal's invitations, newest first.
func (s *InvitationService) List(ctx context.Context, params ListInvitationsParams) ([]Invitation, error) {
	if s == nil {
		return nil, fmt.Errorf("InvitationService is nil")
	}
	if s.invitations == nil {
		return nil, nil
	}
	if err := requirePrincipal(params.Principal); err != nil {
		return nil, err
	}

	vErr := &ValidationError{}
	switch params.Status {
	case "", InvitationPending, InvitationAccepted, InvitationRejected:
	default:
		vErr.add("status", "unknown invitation status")
	}
	if params.Limit < 0 {
		vErr.add("limit", "limit must not be negative")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	invitations, err := s.invitations.ListInvitations(ctx, InvitationFilter{
		InviteeID: params.Principal.UserID,
		Status:    params.Status,
		IsRead:    params.IsRead,
		Limit:     params.Limit,
	})
	if err != nil {
		return nil, systemFailure("list invitations", err)
	}
	if invitations == nil {
		invitations = []Invitation{}
	}
	return invitations, nil
}

// ListForBooking returns every invitation of a booking to its organizer or
// a manager.
func (s *InvitationService) ListForBooking(ctx context.Context, principal Principal, bookingID string) ([]Invitation, error) {
	if s == nil {
		return nil, fmt.Errorf("InvitationService is nil")
	}
	if s.invitations == nil || s.bookings == nil {
		return nil, fmt.Errorf("invitation repositories not configured")
	}
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}

	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, mapBookingRepoError("get booking", err)
	}
	if booking.OrganizerID != principal.UserID && !principal.IsManager {
		return nil, ErrNotAuthorized
	}

	invitations, err := s.invitations.ListInvitations(ctx, InvitationFilter{BookingID: bookingID})
	if err != nil {
		return nil, systemFailure("list invitations", err)
	}
	if invitations == nil {
		invitations = []Invitation{}
	}
	return invitations, nil
}

func mapInvitationRepoError(op string, err error) error {
	return mapBookingRepoError(op, err)
}
