package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

func TestInvitationRepository(t *testing.T) {
	ctx := context.Background()
	storage := setupBookingFixtures(t)

	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	first := invitationFor("inv-1", "b-1", "alice", "bob")
	first.CreatedAt = base
	second := invitationFor("inv-2", "b-2", "alice", "bob")
	second.CreatedAt = base.Add(time.Hour)

	if err := storage.CreateBooking(ctx, newBooking("b-1", "room-1", "alice", "2024-06-03", "09:00", "10:00", "bob"), []persistence.Invitation{first}); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}
	if err := storage.CreateBooking(ctx, newBooking("b-2", "room-2", "alice", "2024-06-04", "09:00", "10:00", "bob"), []persistence.Invitation{second}); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}

	t.Run("list newest first with limit", func(t *testing.T) {
		invitations, err := storage.ListInvitations(ctx, persistence.InvitationFilter{InviteeID: "bob", Limit: 1})
		if err != nil {
			t.Fatalf("ListInvitations failed: %v", err)
		}
		if len(invitations) != 1 || invitations[0].ID != "inv-2" {
			t.Fatalf("expected newest invitation, got %#v", invitations)
		}
	})

	t.Run("mark read", func(t *testing.T) {
		if err := storage.MarkRead(ctx, "inv-1"); err != nil {
			t.Fatalf("MarkRead failed: %v", err)
		}
		unread := false
		count, err := storage.CountInvitations(ctx, persistence.InvitationFilter{InviteeID: "bob", IsRead: &unread})
		if err != nil {
			t.Fatalf("CountInvitations failed: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected 1 unread, got %d", count)
		}
		if err := storage.MarkRead(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("mark all read", func(t *testing.T) {
		updated, err := storage.MarkAllRead(ctx, "bob")
		if err != nil {
			t.Fatalf("MarkAllRead failed: %v", err)
		}
		if updated != 1 {
			t.Fatalf("expected 1 updated, got %d", updated)
		}
		again, err := storage.MarkAllRead(ctx, "bob")
		if err != nil || again != 0 {
			t.Fatalf("expected no-op second call, got %d, %v", again, err)
		}
	})

	t.Run("accept keeps participant", func(t *testing.T) {
		invitation, _ := storage.GetInvitation(ctx, "inv-1")
		now := time.Now().UTC()
		invitation.Status = "accepted"
		invitation.RespondedAt = &now
		if err := storage.SaveResponse(ctx, invitation, false); err != nil {
			t.Fatalf("SaveResponse failed: %v", err)
		}

		booking, _ := storage.GetBooking(ctx, "b-1")
		if len(booking.Participants) != 1 || booking.Participants[0] != "bob" {
			t.Fatalf("participant should remain, got %v", booking.Participants)
		}

		stored, _ := storage.GetInvitation(ctx, "inv-1")
		if stored.Status != "accepted" || stored.RespondedAt == nil || !stored.IsRead {
			t.Fatalf("unexpected stored invitation: %#v", stored)
		}
	})

	t.Run("second response is stale", func(t *testing.T) {
		invitation, _ := storage.GetInvitation(ctx, "inv-1")
		invitation.Status = "rejected"
		if err := storage.SaveResponse(ctx, invitation, true); !errors.Is(err, persistence.ErrStale) {
			t.Fatalf("expected ErrStale, got %v", err)
		}
		booking, _ := storage.GetBooking(ctx, "b-1")
		if len(booking.Participants) != 1 {
			t.Fatalf("stale response must not remove participant, got %v", booking.Participants)
		}
	})

	t.Run("reject stores note and removes participant", func(t *testing.T) {
		invitation, _ := storage.GetInvitation(ctx, "inv-2")
		note := "conflicting meeting"
		invitation.Status = "rejected"
		invitation.Note = &note
		if err := storage.SaveResponse(ctx, invitation, true); err != nil {
			t.Fatalf("SaveResponse failed: %v", err)
		}
		stored, _ := storage.GetInvitation(ctx, "inv-2")
		if stored.Note == nil || *stored.Note != note {
			t.Fatalf("note not stored: %#v", stored.Note)
		}
		booking, _ := storage.GetBooking(ctx, "b-2")
		if len(booking.Participants) != 0 {
			t.Fatalf("expected participant removed, got %v", booking.Participants)
		}
	})

	t.Run("unknown invitation", func(t *testing.T) {
		err := storage.SaveResponse(ctx, persistence.Invitation{ID: "missing", Status: "accepted"}, false)
		if !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("deleting a booking cascades", func(t *testing.T) {
		if err := storage.DeleteBooking(ctx, "b-1"); err != nil {
			t.Fatalf("DeleteBooking failed: %v", err)
		}
		if _, err := storage.GetInvitation(ctx, "inv-1"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected invitation removed with booking, got %v", err)
		}
	})
}
