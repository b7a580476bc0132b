package persistence

import "context"

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	MissingUserIDs(ctx context.Context, ids []string) ([]string, error)
}

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// BookingFilter narrows booking queries. Empty fields are ignored.
type BookingFilter struct {
	RoomID         string
	PersonID       string
	Date           string
	DateFrom       string
	DateTo         string
	Status         string
	ApprovalStatus string
}

// BookingRepository stores bookings together with their participants.
type BookingRepository interface {
	// CreateBooking inserts the booking, its participants and the
	// invitations in one transaction.
	CreateBooking(ctx context.Context, booking Booking, invitations []Invitation) error
	// UpdateBooking rewrites the booking row and participant set and
	// inserts any new invitations in one transaction.
	UpdateBooking(ctx context.Context, booking Booking, invitations []Invitation) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

// InvitationFilter narrows invitation queries.
type InvitationFilter struct {
	InviteeID string
	BookingID string
	Status    string
	IsRead    *bool
	Limit     int
}

// InvitationRepository stores invitation state.
type InvitationRepository interface {
	GetInvitation(ctx context.Context, id string) (Invitation, error)
	ListInvitations(ctx context.Context, filter InvitationFilter) ([]Invitation, error)
	CountInvitations(ctx context.Context, filter InvitationFilter) (int, error)
	// SaveResponse persists an invitation response. When removeParticipant
	// is set the invitee is dropped from the booking in the same transaction.
	SaveResponse(ctx context.Context, invitation Invitation, removeParticipant bool) error
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, inviteeID string) (int, error)
}
