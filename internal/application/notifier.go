package application

import (
	"context"
	"time"
)

// Event types published through a Notifier.
const (
	EventInvitationCreated   = "invitation.created"
	EventInvitationResponded = "invitation.responded"
	EventBookingApproved     = "booking.approved"
	EventBookingRejected     = "booking.rejected"
	EventBookingCancelled    = "booking.cancelled"
)

// Event is a notification addressed to one user.
type Event struct {
	Type         string           `json:"type"`
	RecipientID  string           `json:"recipient_id"`
	BookingID    string           `json:"booking_id"`
	InvitationID string           `json:"invitation_id,omitempty"`
	ActorID      string           `json:"actor_id,omitempty"`
	Status       InvitationStatus `json:"status,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

// Notifier delivers events. Delivery is best effort and must not block the
// caller for long; failures are the notifier's concern.
type Notifier interface {
	Publish(ctx context.Context, event Event)
}

// NopNotifier discards every event.
type NopNotifier struct{}

// Publish implements Notifier.
func (NopNotifier) Publish(context.Context, Event) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return NopNotifier{}
	}
	return n
}
