package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

// BookingServiceDeps carries the collaborators of a BookingService.
type BookingServiceDeps struct {
	Bookings    BookingRepository
	Rooms       RoomRepository
	Users       UserRepository
	Window      scheduler.Window
	Locks       *KeyedLocker
	Notifier    Notifier
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// BookingService owns the booking lifecycle: creation with full conflict
// validation, field-change updates, cancellation and manager approval.
type BookingService struct {
	bookings     BookingRepository
	rooms        RoomRepository
	users        UserRepository
	availability *AvailabilityChecker
	locks        *KeyedLocker
	notifier     Notifier
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewBookingService wires dependencies for booking operations.
func NewBookingService(deps BookingServiceDeps) *BookingService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Locks == nil {
		deps.Locks = NewKeyedLocker()
	}
	logger := defaultLogger(deps.Logger)
	return &BookingService{
		bookings:     deps.Bookings,
		rooms:        deps.Rooms,
		users:        deps.Users,
		availability: NewAvailabilityChecker(deps.Bookings, deps.Rooms, deps.Window, logger),
		locks:        deps.Locks,
		notifier:     notifierOrNop(deps.Notifier),
		idGenerator:  deps.IDGenerator,
		now:          deps.Now,
		logger:       logger,
	}
}

// Availability exposes the checker the service validates with.
func (s *BookingService) Availability() *AvailabilityChecker {
	return s.availability
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// Create validates and persists a booking organized by the principal. The
// room, organizer and participant calendars for the date stay locked from
// the first availability read until the write completes.
func (s *BookingService) Create(ctx context.Context, params CreateBookingParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Create",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		logResult(ctx, logger, err, "booking created", "booking_id", booking.ID)
	}()

	date := scheduler.NormalizeDate(params.Date)
	unlock := s.locks.Lock(intervalLockKeys(params.RoomID, date, params.Principal.UserID, params.ParticipantIDs)...)
	defer unlock()

	booking, err = s.create(ctx, params)
	return
}

// create runs the validation chain and persists the booking. Callers hold
// the interval locks.
func (s *BookingService) create(ctx context.Context, params CreateBookingParams) (Booking, error) {
	if s.bookings == nil || s.rooms == nil {
		return Booking{}, fmt.Errorf("booking repositories not configured")
	}
	if err := requirePrincipal(params.Principal); err != nil {
		return Booking{}, err
	}
	if params.Date.IsZero() {
		return Booking{}, fieldError("date", "date is required")
	}

	organizerID := params.Principal.UserID
	date := scheduler.NormalizeDate(params.Date)
	iv := scheduler.Interval{Start: params.Start, End: params.End}

	if !s.availability.Window().Admits(iv) {
		return Booking{}, newRejection(ReasonInvalidTimeWindow, "",
			"%s is outside %s-%s or empty", iv, s.availability.Window().Open, s.availability.Window().Close)
	}

	room, err := s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		return Booking{}, mapRoomLookupError(err)
	}
	if !room.IsAvailable {
		return Booking{}, newRejection(ReasonRoomUnavailable, "", "room %s is closed for booking", room.ID)
	}

	free, err := s.availability.RoomAvailable(ctx, room.ID, date, iv, "", nil)
	if err != nil {
		return Booking{}, err
	}
	if !free {
		return Booking{}, newRejection(ReasonRoomUnavailable, "", "room %s is already booked during %s", room.ID, iv)
	}

	if !params.SkipOrganizerCheck {
		free, err = s.availability.PersonAvailable(ctx, organizerID, date, iv, "", nil)
		if err != nil {
			return Booking{}, err
		}
		if !free {
			return Booking{}, newRejection(ReasonOrganizerConflict, organizerID, "organizer already has a booking during %s", iv)
		}
	}

	// Participant list checks run after the room and organizer checks so a
	// request against a missing or busy room reports the room first.
	if err := validateParticipants(organizerID, params.ParticipantIDs); err != nil {
		return Booking{}, err
	}
	participants := append([]string(nil), params.ParticipantIDs...)

	if err := s.ensureUsersExist(ctx, append([]string{organizerID}, participants...)); err != nil {
		return Booking{}, err
	}

	if !CapacityOK(room, len(participants)) {
		return Booking{}, newRejection(ReasonCapacityExceeded, "",
			"room %s holds %d people, request needs %d", room.ID, room.Capacity, len(participants)+1)
	}

	if err := s.ensureParticipantsFree(ctx, participants, date, iv, ""); err != nil {
		return Booking{}, err
	}

	createdAt := s.now()
	booking := Booking{
		ID:             s.idGenerator(),
		RoomID:         room.ID,
		OrganizerID:    organizerID,
		Date:           date,
		Start:          iv.Start,
		End:            iv.End,
		Status:         BookingStatusUpcoming,
		ApprovalStatus: ApprovalPending,
		ParticipantIDs: participants,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	invitations := s.newInvitations(booking, participants, createdAt)

	if err := s.bookings.CreateBooking(ctx, booking, invitations); err != nil {
		return Booking{}, mapBookingRepoError("create booking", err)
	}

	s.publishInvitations(ctx, booking, invitations)
	return booking, nil
}

// Update applies a field-change set to a booking. Only the organizer may
// update. A date or time change re-checks the room; a participant change
// re-checks capacity and every participant's calendar.
func (s *BookingService) Update(ctx context.Context, params UpdateBookingParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil || s.rooms == nil {
		err = fmt.Errorf("booking repositories not configured")
		return
	}

	logger := s.loggerWith(ctx, "Update",
		"principal_id", params.Principal.UserID,
		"booking_id", params.BookingID,
	)
	defer func() {
		logResult(ctx, logger, err, "booking updated")
	}()

	if err = requirePrincipal(params.Principal); err != nil {
		return
	}
	if params.Changes.IsEmpty() {
		err = fieldError("changes", "no changes supplied")
		return
	}

	unlockBooking := s.locks.Lock(bookingLockKey(params.BookingID))
	defer unlockBooking()

	var existing Booking
	existing, err = s.bookings.GetBooking(ctx, params.BookingID)
	if err != nil {
		err = mapBookingRepoError("get booking", err)
		return
	}
	if existing.OrganizerID != params.Principal.UserID {
		err = ErrNotAuthorized
		return
	}

	changes := params.Changes
	updated := existing
	if changes.Date != nil {
		updated.Date = scheduler.NormalizeDate(*changes.Date)
	}
	if changes.Start != nil {
		updated.Start = *changes.Start
	}
	if changes.End != nil {
		updated.End = *changes.End
	}
	if changes.ParticipantIDs != nil {
		updated.ParticipantIDs = append([]string(nil), (*changes.ParticipantIDs)...)
	}

	timeChanged := !updated.Date.Equal(existing.Date) || updated.Start != existing.Start || updated.End != existing.End
	participantsChanged := changes.ParticipantIDs != nil && !sameSet(updated.ParticipantIDs, existing.ParticipantIDs)

	vErr := &ValidationError{}
	if (timeChanged || participantsChanged) && existing.Status != BookingStatusUpcoming {
		vErr.add("status", fmt.Sprintf("%s bookings cannot be rescheduled", existing.Status))
	}
	if changes.Status != nil && *changes.Status != existing.Status {
		if !validStatusTransition(existing.Status, *changes.Status) {
			vErr.add("status", fmt.Sprintf("cannot move from %s to %s", existing.Status, *changes.Status))
		} else {
			updated.Status = *changes.Status
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if timeChanged && !s.availability.Window().Admits(updated.Interval()) {
		err = newRejection(ReasonInvalidTimeWindow, "", "%s is outside the operating window or empty", updated.Interval())
		return
	}

	keys := intervalLockKeys(existing.RoomID, existing.Date, existing.OrganizerID, existing.ParticipantIDs)
	keys = append(keys, intervalLockKeys(updated.RoomID, updated.Date, updated.OrganizerID, updated.ParticipantIDs)...)
	unlock := s.locks.Lock(keys...)
	defer unlock()

	var added []string
	if participantsChanged {
		if err = validateParticipants(updated.OrganizerID, updated.ParticipantIDs); err != nil {
			return
		}
		added = difference(updated.ParticipantIDs, existing.ParticipantIDs)
		if err = s.ensureUsersExist(ctx, added); err != nil {
			return
		}
	}

	if updated.Status == BookingStatusUpcoming {
		if timeChanged {
			var free bool
			free, err = s.availability.RoomAvailable(ctx, updated.RoomID, updated.Date, updated.Interval(), updated.ID, nil)
			if err != nil {
				return
			}
			if !free {
				err = newRejection(ReasonRoomUnavailable, "", "room %s is already booked during %s", updated.RoomID, updated.Interval())
				return
			}
		}
		if participantsChanged {
			var room Room
			room, err = s.rooms.GetRoom(ctx, updated.RoomID)
			if err != nil {
				err = mapRoomLookupError(err)
				return
			}
			if !CapacityOK(room, len(updated.ParticipantIDs)) {
				err = newRejection(ReasonCapacityExceeded, "",
					"room %s holds %d people, request needs %d", room.ID, room.Capacity, len(updated.ParticipantIDs)+1)
				return
			}
			if err = s.ensureParticipantsFree(ctx, updated.ParticipantIDs, updated.Date, updated.Interval(), updated.ID); err != nil {
				return
			}
		}
	}

	now := s.now()
	updated.UpdatedAt = now
	invitations := s.newInvitations(updated, added, now)

	if err = s.bookings.UpdateBooking(ctx, updated, invitations); err != nil {
		err = mapBookingRepoError("update booking", err)
		return
	}

	s.publishInvitations(ctx, updated, invitations)
	booking = updated
	return
}

// Cancel marks a booking cancelled. Cancelling an already cancelled
// booking succeeds without writing.
func (s *BookingService) Cancel(ctx context.Context, principal Principal, bookingID string) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Cancel",
		"principal_id", principal.UserID,
		"booking_id", bookingID,
	)
	defer func() {
		logResult(ctx, logger, err, "booking cancelled")
	}()

	if err = requirePrincipal(principal); err != nil {
		return
	}

	unlock := s.locks.Lock(bookingLockKey(bookingID))
	defer unlock()

	booking, err = s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		err = mapBookingRepoError("get booking", err)
		return
	}
	if booking.OrganizerID != principal.UserID {
		booking, err = Booking{}, ErrNotAuthorized
		return
	}

	switch booking.Status {
	case BookingStatusCancelled:
		return
	case BookingStatusCompleted:
		booking, err = Booking{}, fieldError("status", "completed bookings cannot be cancelled")
		return
	}

	booking.Status = BookingStatusCancelled
	booking.UpdatedAt = s.now()
	if err = s.bookings.UpdateBooking(ctx, booking, nil); err != nil {
		booking, err = Booking{}, mapBookingRepoError("cancel booking", err)
		return
	}

	for _, participantID := range booking.ParticipantIDs {
		s.notifier.Publish(ctx, Event{
			Type:        EventBookingCancelled,
			RecipientID: participantID,
			BookingID:   booking.ID,
			ActorID:     principal.UserID,
			OccurredAt:  booking.UpdatedAt,
		})
	}
	return
}

// Approve records a manager's approval of a pending booking.
func (s *BookingService) Approve(ctx context.Context, principal Principal, bookingID string) (Booking, error) {
	return s.decide(ctx, "Approve", principal, bookingID, ApprovalApproved, nil)
}

// Reject records a manager's rejection of a pending booking with an
// optional reason.
func (s *BookingService) Reject(ctx context.Context, principal Principal, bookingID string, reason *string) (Booking, error) {
	return s.decide(ctx, "Reject", principal, bookingID, ApprovalRejected, reason)
}

func (s *BookingService) decide(ctx context.Context, operation string, principal Principal, bookingID string, decision ApprovalStatus, reason *string) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, operation,
		"principal_id", principal.UserID,
		"booking_id", bookingID,
	)
	defer func() {
		logResult(ctx, logger, err, "approval recorded", "approval_status", decision)
	}()

	if err = requirePrincipal(principal); err != nil {
		return
	}
	if !principal.IsManager {
		err = newRejection(ReasonNotAuthorized, "", "only managers can approve or reject bookings")
		return
	}

	unlock := s.locks.Lock(bookingLockKey(bookingID))
	defer unlock()

	booking, err = s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		err = mapBookingRepoError("get booking", err)
		return
	}
	if booking.ApprovalStatus != ApprovalPending {
		booking, err = Booking{}, newRejection(ReasonAlreadyResponded, "", "booking is already %s", booking.ApprovalStatus)
		return
	}

	now := s.now()
	approver := principal.UserID
	booking.ApprovalStatus = decision
	booking.ApprovedBy = &approver
	booking.ApprovedAt = &now
	if decision == ApprovalRejected {
		booking.RejectionReason = normalizeOptionalString(reason)
	}
	booking.UpdatedAt = now

	if err = s.bookings.UpdateBooking(ctx, booking, nil); err != nil {
		booking, err = Booking{}, mapBookingRepoError("record approval", err)
		return
	}

	eventType := EventBookingApproved
	if decision == ApprovalRejected {
		eventType = EventBookingRejected
	}
	s.notifier.Publish(ctx, Event{
		Type:        eventType,
		RecipientID: booking.OrganizerID,
		BookingID:   booking.ID,
		ActorID:     approver,
		OccurredAt:  now,
	})
	return
}

// Get returns a booking visible to its organizer, its participants and
// managers.
func (s *BookingService) Get(ctx context.Context, principal Principal, bookingID string) (Booking, error) {
	if s == nil {
		return Booking{}, fmt.Errorf("BookingService is nil")
	}
	if s.bookings == nil {
		return Booking{}, fmt.Errorf("booking repository not configured")
	}
	if err := requirePrincipal(principal); err != nil {
		return Booking{}, err
	}

	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, mapBookingRepoError("get booking", err)
	}
	if !principal.IsManager && !booking.Involves(principal.UserID) {
		return Booking{}, ErrNotAuthorized
	}
	return booking, nil
}

// List returns bookings the principal organizes or attends. Managers may
// list every booking or the approval queue.
func (s *BookingService) List(ctx context.Context, params ListBookingsParams) (bookings []Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "List",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logResult(ctx, logger, err, "")
			return
		}
		logger.DebugContext(ctx, "bookings listed", "result_count", len(bookings))
	}()

	if err = requirePrincipal(params.Principal); err != nil {
		return
	}
	if params.All && !params.Principal.IsManager {
		err = newRejection(ReasonNotAuthorized, "", "only managers can list every booking")
		return
	}

	vErr := &ValidationError{}
	if params.Status != "" && !params.Status.Valid() {
		vErr.add("status", "unknown booking status")
	}
	if params.ApprovalStatus != "" && !params.ApprovalStatus.Valid() {
		vErr.add("approval_status", "unknown approval status")
	}
	if params.From != nil && params.To != nil && params.To.Before(*params.From) {
		vErr.add("to", "must not be before from")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	filter := BookingFilter{
		RoomID:         strings.TrimSpace(params.RoomID),
		From:           normalizeDatePtr(params.From),
		To:             normalizeDatePtr(params.To),
		Status:         params.Status,
		ApprovalStatus: params.ApprovalStatus,
	}
	manage := params.Principal.IsManager && (params.All || params.ApprovalStatus != "")
	if !manage {
		filter.PersonID = params.Principal.UserID
	}

	bookings, err = s.bookings.ListBookings(ctx, filter)
	if err != nil {
		err = systemFailure("list bookings", err)
		return
	}
	if bookings == nil {
		bookings = []Booking{}
	}
	return
}

// Delete removes a booking together with its invitations. Only the
// organizer or a manager may delete.
func (s *BookingService) Delete(ctx context.Context, principal Principal, bookingID string) (err error) {
	if s == nil {
		return fmt.Errorf("BookingService is nil")
	}
	if s.bookings == nil {
		return fmt.Errorf("booking repository not configured")
	}

	logger := s.loggerWith(ctx, "Delete",
		"principal_id", principal.UserID,
		"booking_id", bookingID,
	)
	defer func() {
		logResult(ctx, logger, err, "booking deleted")
	}()

	if err = requirePrincipal(principal); err != nil {
		return
	}

	unlock := s.locks.Lock(bookingLockKey(bookingID))
	defer unlock()

	existing, getErr := s.bookings.GetBooking(ctx, bookingID)
	if getErr != nil {
		err = mapBookingRepoError("get booking", getErr)
		return
	}
	if existing.OrganizerID != principal.UserID && !principal.IsManager {
		err = ErrNotAuthorized
		return
	}

	if delErr := s.bookings.DeleteBooking(ctx, bookingID); delErr != nil {
		err = mapBookingRepoError("delete booking", delErr)
	}
	return
}

func (s *BookingService) ensureUsersExist(ctx context.Context, ids []string) error {
	if s.users == nil {
		return nil
	}
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return nil
	}
	missing, err := s.users.MissingUserIDs(ctx, ids)
	if err != nil {
		return systemFailure("lookup users", err)
	}
	if len(missing) == 0 {
		return nil
	}
	return fieldError("participants", fmt.Sprintf("unknown user ids: %s", strings.Join(missing, ", ")))
}

// ensureParticipantsFree reports the first busy participant in input order.
func (s *BookingService) ensureParticipantsFree(ctx context.Context, participants []string, date time.Time, iv scheduler.Interval, excludeBookingID string) error {
	for _, participantID := range participants {
		free, err := s.availability.PersonAvailable(ctx, participantID, date, iv, excludeBookingID, nil)
		if err != nil {
			return err
		}
		if !free {
			return newRejection(ReasonParticipantConflict, participantID, "participant already has a booking during %s", iv)
		}
	}
	return nil
}

func (s *BookingService) newInvitations(booking Booking, invitees []string, at time.Time) []Invitation {
	if len(invitees) == 0 {
		return nil
	}
	invitations := make([]Invitation, 0, len(invitees))
	for _, inviteeID := range invitees {
		invitations = append(invitations, Invitation{
			ID:        s.idGenerator(),
			BookingID: booking.ID,
			InviterID: booking.OrganizerID,
			InviteeID: inviteeID,
			Status:    InvitationPending,
			CreatedAt: at,
			UpdatedAt: at,
		})
	}
	return invitations
}

func (s *BookingService) publishInvitations(ctx context.Context, booking Booking, invitations []Invitation) {
	for _, inv := range invitations {
		s.notifier.Publish(ctx, Event{
			Type:         EventInvitationCreated,
			RecipientID:  inv.InviteeID,
			BookingID:    booking.ID,
			InvitationID: inv.ID,
			ActorID:      booking.OrganizerID,
			Status:       InvitationPending,
			OccurredAt:   inv.CreatedAt,
		})
	}
}

// validateParticipants rejects empty ids, repeated ids and the organizer
// listed as a participant.
func validateParticipants(organizerID string, participants []string) error {
	seen := make(map[string]struct{}, len(participants))
	for _, id := range participants {
		if strings.TrimSpace(id) == "" {
			return fieldError("participant_ids", "participant ids must not be empty")
		}
		if id == organizerID {
			return newRejection(ReasonDuplicateParticipant, id, "organizer cannot be listed as a participant")
		}
		if _, ok := seen[id]; ok {
			return newRejection(ReasonDuplicateParticipant, id, "participant listed more than once")
		}
		seen[id] = struct{}{}
	}
	return nil
}

func validStatusTransition(from, to BookingStatus) bool {
	return from == BookingStatusUpcoming && (to == BookingStatusCancelled || to == BookingStatusCompleted)
}

func normalizeDatePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := scheduler.NormalizeDate(*t)
	return &d
}

func mapBookingRepoError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isNotFoundError(err):
		return ErrNotFound
	case errors.Is(err, persistence.ErrOverlap):
		return newRejection(ReasonRoomUnavailable, "", "room was booked by a concurrent request")
	case errors.Is(err, persistence.ErrStale):
		return ErrAlreadyResponded
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return fieldError("participants", "related records are missing")
	}
	return systemFailure(op, err)
}
