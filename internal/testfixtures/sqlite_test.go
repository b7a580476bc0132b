package testfixtures

import (
	"context"
	"testing"
)

func TestNewSeededSQLiteHarness(t *testing.T) {
	h := NewSeededSQLiteHarness(t)
	ctx := context.Background()

	users, err := h.Storage.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != len(Users()) {
		t.Fatalf("expected %d users, got %d", len(Users()), len(users))
	}

	shut, err := h.Storage.GetRoom(ctx, RoomShut)
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if shut.IsAvailable {
		t.Fatal("expected the shuttered room to be unavailable")
	}

	booking := Booking("b-1", RoomA, Organizer, "09:00", "10:00", Alice, Bob)
	if err := h.Storage.CreateBooking(ctx, booking, Invitations(booking)); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}
	inv, err := h.Storage.GetInvitation(ctx, "b-1-alice")
	if err != nil {
		t.Fatalf("GetInvitation failed: %v", err)
	}
	if inv.InviterID != Organizer || inv.Status != "pending" || inv.IsRead {
		t.Fatalf("unexpected invitation %+v", inv)
	}
}
