package main

import (
	"context"
	"fmt"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.User) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user)); err != nil {
		return application.User{}, err
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

func (a *userRepositoryAdapter) MissingUserIDs(ctx context.Context, ids []string) ([]string, error) {
	return a.repo.MissingUserIDs(ctx, ids)
}

type roomRepositoryAdapter struct {
	repo persistence.RoomRepository
}

func newRoomRepositoryAdapter(repo persistence.RoomRepository) *roomRepositoryAdapter {
	return &roomRepositoryAdapter{repo: repo}
}

func (a *roomRepositoryAdapter) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.CreateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *roomRepositoryAdapter) GetRoom(ctx context.Context, id string) (application.Room, error) {
	stored, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *roomRepositoryAdapter) UpdateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.UpdateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *roomRepositoryAdapter) DeleteRoom(ctx context.Context, id string) error {
	return a.repo.DeleteRoom(ctx, id)
}

func (a *roomRepositoryAdapter) ListRooms(ctx context.Context) ([]application.Room, error) {
	models, err := a.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		rooms = append(rooms, toApplicationRoom(model))
	}
	return rooms, nil
}

type bookingRepositoryAdapter struct {
	repo persistence.BookingRepository
}

func newBookingRepositoryAdapter(repo persistence.BookingRepository) *bookingRepositoryAdapter {
	return &bookingRepositoryAdapter{repo: repo}
}

func (a *bookingRepositoryAdapter) CreateBooking(ctx context.Context, booking application.Booking, invitations []application.Invitation) error {
	return a.repo.CreateBooking(ctx, toPersistenceBooking(booking), toPersistenceInvitations(invitations))
}

func (a *bookingRepositoryAdapter) UpdateBooking(ctx context.Context, booking application.Booking, newInvitations []application.Invitation) error {
	return a.repo.UpdateBooking(ctx, toPersistenceBooking(booking), toPersistenceInvitations(newInvitations))
}

func (a *bookingRepositoryAdapter) GetBooking(ctx context.Context, id string) (application.Booking, error) {
	stored, err := a.repo.GetBooking(ctx, id)
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(stored)
}

func (a *bookingRepositoryAdapter) DeleteBooking(ctx context.Context, id string) error {
	return a.repo.DeleteBooking(ctx, id)
}

func (a *bookingRepositoryAdapter) ListRoomBookings(ctx context.Context, roomID string, date time.Time, status application.BookingStatus) ([]application.Booking, error) {
	return a.list(ctx, persistence.BookingFilter{
		RoomID: roomID,
		Date:   scheduler.FormatDate(date),
		Status: string(status),
	})
}

func (a *bookingRepositoryAdapter) ListPersonBookings(ctx context.Context, personID string, date time.Time, status application.BookingStatus) ([]application.Booking, error) {
	return a.list(ctx, persistence.BookingFilter{
		PersonID: personID,
		Date:     scheduler.FormatDate(date),
		Status:   string(status),
	})
}

func (a *bookingRepositoryAdapter) ListBookings(ctx context.Context, filter application.BookingFilter) ([]application.Booking, error) {
	model := persistence.BookingFilter{
		RoomID:         filter.RoomID,
		PersonID:       filter.PersonID,
		Status:         string(filter.Status),
		ApprovalStatus: string(filter.ApprovalStatus),
	}
	if filter.From != nil {
		model.DateFrom = scheduler.FormatDate(*filter.From)
	}
	if filter.To != nil {
		model.DateTo = scheduler.FormatDate(*filter.To)
	}
	return a.list(ctx, model)
}

func (a *bookingRepositoryAdapter) list(ctx context.Context, filter persistence.BookingFilter) ([]application.Booking, error) {
	models, err := a.repo.ListBookings(ctx, filter)
	if err != nil {
		return nil, err
	}
	bookings := make([]application.Booking, 0, len(models))
	for _, model := range models {
		booking, err := toApplicationBooking(model)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, nil
}

type invitationRepositoryAdapter struct {
	repo persistence.InvitationRepository
}

func newInvitationRepositoryAdapter(repo persistence.InvitationRepository) *invitationRepositoryAdapter {
	return &invitationRepositoryAdapter{repo: repo}
}

func (a *invitationRepositoryAdapter) GetInvitation(ctx context.Context, id string) (application.Invitation, error) {
	stored, err := a.repo.GetInvitation(ctx, id)
	if err != nil {
		return application.Invitation{}, err
	}
	return toApplicationInvitation(stored), nil
}

func (a *invitationRepositoryAdapter) ListInvitations(ctx context.Context, filter application.InvitationFilter) ([]application.Invitation, error) {
	models, err := a.repo.ListInvitations(ctx, toPersistenceInvitationFilter(filter))
	if err != nil {
		return nil, err
	}
	invitations := make([]application.Invitation, 0, len(models))
	for _, model := range models {
		invitations = append(invitations, toApplicationInvitation(model))
	}
	return invitations, nil
}

func (a *invitationRepositoryAdapter) CountInvitations(ctx context.Context, filter application.InvitationFilter) (int, error) {
	return a.repo.CountInvitations(ctx, toPersistenceInvitationFilter(filter))
}

func (a *invitationRepositoryAdapter) SaveResponse(ctx context.Context, invitation application.Invitation, removeParticipant bool) error {
	return a.repo.SaveResponse(ctx, toPersistenceInvitation(invitation), removeParticipant)
}

func (a *invitationRepositoryAdapter) MarkRead(ctx context.Context, id string) error {
	return a.repo.MarkRead(ctx, id)
}

func (a *invitationRepositoryAdapter) MarkAllRead(ctx context.Context, inviteeID string) (int, error) {
	return a.repo.MarkAllRead(ctx, inviteeID)
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		IsManager:   model.IsManager,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User) persistence.User {
	return persistence.User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		IsManager:   user.IsManager,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

func toApplicationRoom(model persistence.Room) application.Room {
	return application.Room{
		ID:           model.ID,
		Name:         model.Name,
		Description:  cloneString(model.Description),
		Capacity:     model.Capacity,
		PricePerHour: model.PricePerHour,
		Amenities:    append([]string(nil), model.Amenities...),
		IsAvailable:  model.IsAvailable,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:           room.ID,
		Name:         room.Name,
		Description:  cloneString(room.Description),
		Capacity:     room.Capacity,
		PricePerHour: room.PricePerHour,
		Amenities:    append([]string(nil), room.Amenities...),
		IsAvailable:  room.IsAvailable,
		CreatedAt:    room.CreatedAt,
		UpdatedAt:    room.UpdatedAt,
	}
}

func toApplicationBooking(model persistence.Booking) (application.Booking, error) {
	date, err := scheduler.ParseDate(model.Date)
	if err != nil {
		return application.Booking{}, fmt.Errorf("booking %s: %w", model.ID, err)
	}
	start, err := scheduler.ParseTimeOfDay(model.StartTime)
	if err != nil {
		return application.Booking{}, fmt.Errorf("booking %s: start: %w", model.ID, err)
	}
	end, err := scheduler.ParseTimeOfDay(model.EndTime)
	if err != nil {
		return application.Booking{}, fmt.Errorf("booking %s: end: %w", model.ID, err)
	}

	return application.Booking{
		ID:              model.ID,
		RoomID:          model.RoomID,
		OrganizerID:     model.OrganizerID,
		Date:            date,
		Start:           start,
		End:             end,
		Status:          application.BookingStatus(model.Status),
		ApprovalStatus:  application.ApprovalStatus(model.ApprovalStatus),
		ApprovedBy:      cloneString(model.ApprovedBy),
		ApprovedAt:      cloneTime(model.ApprovedAt),
		RejectionReason: cloneString(model.RejectionReason),
		ParticipantIDs:  append([]string(nil), model.Participants...),
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}, nil
}

func toPersistenceBooking(booking application.Booking) persistence.Booking {
	return persistence.Booking{
		ID:              booking.ID,
		RoomID:          booking.RoomID,
		OrganizerID:     booking.OrganizerID,
		Date:            scheduler.FormatDate(booking.Date),
		StartTime:       booking.Start.String(),
		EndTime:         booking.End.String(),
		Status:          string(booking.Status),
		ApprovalStatus:  string(booking.ApprovalStatus),
		ApprovedBy:      cloneString(booking.ApprovedBy),
		ApprovedAt:      cloneTime(booking.ApprovedAt),
		RejectionReason: cloneString(booking.RejectionReason),
		Participants:    append([]string(nil), booking.ParticipantIDs...),
		CreatedAt:       booking.CreatedAt,
		UpdatedAt:       booking.UpdatedAt,
	}
}

func toApplicationInvitation(model persistence.Invitation) application.Invitation {
	return application.Invitation{
		ID:          model.ID,
		BookingID:   model.BookingID,
		InviterID:   model.InviterID,
		InviteeID:   model.InviteeID,
		Status:      application.InvitationStatus(model.Status),
		IsRead:      model.IsRead,
		Note:        cloneString(model.Note),
		RespondedAt: cloneTime(model.RespondedAt),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceInvitation(invitation application.Invitation) persistence.Invitation {
	return persistence.Invitation{
		ID:          invitation.ID,
		BookingID:   invitation.BookingID,
		InviterID:   invitation.InviterID,
		InviteeID:   invitation.InviteeID,
		Status:      string(invitation.Status),
		IsRead:      invitation.IsRead,
		Note:        cloneString(invitation.Note),
		RespondedAt: cloneTime(invitation.RespondedAt),
		CreatedAt:   invitation.CreatedAt,
		UpdatedAt:   invitation.UpdatedAt,
	}
}

func toPersistenceInvitations(invitations []application.Invitation) []persistence.Invitation {
	if len(invitations) == 0 {
		return nil
	}
	out := make([]persistence.Invitation, 0, len(invitations))
	for _, invitation := range invitations {
		out = append(out, toPersistenceInvitation(invitation))
	}
	return out
}

func toPersistenceInvitationFilter(filter application.InvitationFilter) persistence.InvitationFilter {
	return persistence.InvitationFilter{
		InviteeID: filter.InviteeID,
		BookingID: filter.BookingID,
		Status:    string(filter.Status),
		IsRead:    filter.IsRead,
		Limit:     filter.Limit,
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

var (
	_ application.UserRepository       = (*userRepositoryAdapter)(nil)
	_ application.RoomRepository       = (*roomRepositoryAdapter)(nil)
	_ application.BookingRepository    = (*bookingRepositoryAdapter)(nil)
	_ application.InvitationRepository = (*invitationRepositoryAdapter)(nil)
)
