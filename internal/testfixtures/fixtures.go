package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// ReferenceTime is the baseline instant for fixtures: a Monday morning.
func ReferenceTime() time.Time {
	return time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC)
}

// ReferenceDate is ReferenceTime's booking date.
const ReferenceDate = "2025-06-02"

// Fixture user ids. Manager is the only user with the manager role.
const (
	Organizer = "org"
	Alice     = "alice"
	Bob       = "bob"
	Carol     = "carol"
	Erin      = "erin"
	Manager   = "manager"
)

// Fixture room ids.
const (
	RoomA    = "room-a"
	RoomB    = "room-b"
	RoomPair = "room-pair"
	RoomShut = "room-shut"
)

// Users returns the standard set of people.
func Users() []persistence.User {
	ids := []string{Organizer, Alice, Bob, Carol, Erin, Manager}
	users := make([]persistence.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, persistence.User{
			ID:          id,
			Email:       id + "@example.com",
			DisplayName: id,
			IsManager:   id == Manager,
			CreatedAt:   ReferenceTime(),
			UpdatedAt:   ReferenceTime(),
		})
	}
	return users
}

// Rooms returns the standard catalog. RoomPair fits the organizer and one
// participant; RoomShut is flagged unavailable.
func Rooms() []persistence.Room {
	return []persistence.Room{
		room(RoomA, "Atrium", 4, true, "projector", "whiteboard"),
		room(RoomB, "Boardroom", 10, true, "projector", "video"),
		room(RoomPair, "Pair", 2, true),
		room(RoomShut, "Shuttered", 8, false, "projector"),
	}
}

func room(id, name string, capacity int, available bool, amenities ...string) persistence.Room {
	return persistence.Room{
		ID:           id,
		Name:         name,
		Capacity:     capacity,
		PricePerHour: 25,
		Amenities:    amenities,
		IsAvailable:  available,
		CreatedAt:    ReferenceTime(),
		UpdatedAt:    ReferenceTime(),
	}
}

// Booking builds an upcoming, pending booking on ReferenceDate.
func Booking(id, roomID, organizerID, start, end string, participants ...string) persistence.Booking {
	return persistence.Booking{
		ID:             id,
		RoomID:         roomID,
		OrganizerID:    organizerID,
		Date:           ReferenceDate,
		StartTime:      start,
		EndTime:        end,
		Status:         "upcoming",
		ApprovalStatus: "pending",
		Participants:   participants,
		CreatedAt:      ReferenceTime(),
		UpdatedAt:      ReferenceTime(),
	}
}

// Invitations builds one pending, unread invitation per participant of
// booking, with ids "<booking id>-<invitee>".
func Invitations(booking persistence.Booking) []persistence.Invitation {
	out := make([]persistence.Invitation, 0, len(booking.Participants))
	for _, invitee := range booking.Participants {
		out = append(out, persistence.Invitation{
			ID:        booking.ID + "-" + invitee,
			BookingID: booking.ID,
			InviterID: booking.OrganizerID,
			InviteeID: invitee,
			Status:    "pending",
			CreatedAt: booking.CreatedAt,
			UpdatedAt: booking.CreatedAt,
		})
	}
	return out
}

type seedStore interface {
	CreateUser(ctx context.Context, user persistence.User) error
	CreateRoom(ctx context.Context, room persistence.Room) error
}

// Seed inserts Users and Rooms.
func Seed(tb testing.TB, store seedStore) {
	tb.Helper()
	ctx := context.Background()
	for _, user := range Users() {
		if err := store.CreateUser(ctx, user); err != nil {
			tb.Fatalf("seed user %s: %v", user.ID, err)
		}
	}
	for _, room := range Rooms() {
		if err := store.CreateRoom(ctx, room); err != nil {
			tb.Fatalf("seed room %s: %v", room.ID, err)
		}
	}
}
