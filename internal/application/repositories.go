package application

import (
	"context"
	"time"
)

// BookingRepository captures the booking persistence needed by the engine.
// CreateBooking and UpdateBooking must write the booking, its participant
// set and the given invitations atomically.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking, invitations []Invitation) error
	UpdateBooking(ctx context.Context, booking Booking, newInvitations []Invitation) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	ListRoomBookings(ctx context.Context, roomID string, date time.Time, status BookingStatus) ([]Booking, error)
	ListPersonBookings(ctx context.Context, personID string, date time.Time, status BookingStatus) ([]Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
}

// BookingFilter narrows ListBookings. Zero fields are ignored.
type BookingFilter struct {
	RoomID         string
	PersonID       string
	From           *time.Time
	To             *time.Time
	Status         BookingStatus
	ApprovalStatus ApprovalStatus
}

// InvitationRepository captures invitation persistence.
type InvitationRepository interface {
	GetInvitation(ctx context.Context, id string) (Invitation, error)
	ListInvitations(ctx context.Context, filter InvitationFilter) ([]Invitation, error)
	CountInvitations(ctx context.Context, filter InvitationFilter) (int, error)
	// SaveResponse stores a response on a pending invitation and, with
	// removeParticipant, drops the invitee from the booking atomically.
	SaveResponse(ctx context.Context, invitation Invitation, removeParticipant bool) error
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, inviteeID string) (int, error)
}

// InvitationFilter narrows invitation queries.
type InvitationFilter struct {
	InviteeID string
	BookingID string
	Status    InvitationStatus
	IsRead    *bool
	Limit     int
}

// RoomRepository captures the persistence operations needed for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) (Room, error)
	GetRoom(ctx context.Context, id string) (Room, error)
	UpdateRoom(ctx context.Context, room Room) (Room, error)
	DeleteRoom(ctx context.Context, id string) error
	ListRooms(ctx context.Context) ([]Room, error)
}

// UserRepository captures the persistence operations needed for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	MissingUserIDs(ctx context.Context, ids []string) ([]string, error)
}
