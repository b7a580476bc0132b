package application

import (
	"slices"
	"time"

	"github.com/example/room-booking/internal/scheduler"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID    string
	IsManager bool
}

// BookingStatus is the lifecycle axis of a booking.
type BookingStatus string

const (
	BookingStatusUpcoming  BookingStatus = "upcoming"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is a known lifecycle status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusUpcoming, BookingStatusCompleted, BookingStatusCancelled:
		return true
	}
	return false
}

// ApprovalStatus is the manager sign-off axis of a booking, independent of
// its lifecycle status.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Valid reports whether s is a known approval status.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// InvitationStatus is the invitee's response state.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
)

// Room represents a catalog entry for a bookable room.
type Room struct {
	ID           string
	Name         string
	Description  *string
	Capacity     int
	PricePerHour float64
	Amenities    []string
	IsAvailable  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasAmenities reports whether the room offers every required amenity.
func (r Room) HasAmenities(required []string) bool {
	for _, amenity := range required {
		if !slices.Contains(r.Amenities, amenity) {
			return false
		}
	}
	return true
}

// User represents a person who can organize or attend bookings.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsManager   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Booking is a room reservation for one interval on one date. The
// organizer is not part of ParticipantIDs.
type Booking struct {
	ID              string
	RoomID          string
	OrganizerID     string
	Date            time.Time
	Start           scheduler.TimeOfDay
	End             scheduler.TimeOfDay
	Status          BookingStatus
	ApprovalStatus  ApprovalStatus
	ApprovedBy      *string
	ApprovedAt      *time.Time
	RejectionReason *string
	ParticipantIDs  []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Interval returns the booked time range.
func (b Booking) Interval() scheduler.Interval {
	return scheduler.Interval{Start: b.Start, End: b.End}
}

// Involves reports whether the person organizes or participates.
func (b Booking) Involves(personID string) bool {
	return b.OrganizerID == personID || slices.Contains(b.ParticipantIDs, personID)
}

// Invitation is one participant's invitation to a booking.
type Invitation struct {
	ID          string
	BookingID   string
	InviterID   string
	InviteeID   string
	Status      InvitationStatus
	IsRead      bool
	Note        *string
	RespondedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateBookingParams wraps the data required to create a booking. The
// principal is the organizer.
type CreateBookingParams struct {
	Principal      Principal
	RoomID         string
	Date           time.Time
	Start          scheduler.TimeOfDay
	End            scheduler.TimeOfDay
	ParticipantIDs []string
	// SkipOrganizerCheck disables the organizer availability check. The
	// batch coordinator sets it after performing that check itself.
	SkipOrganizerCheck bool
}

// BookingChanges is a field-change set: nil fields are left untouched.
type BookingChanges struct {
	Date           *time.Time
	Start          *scheduler.TimeOfDay
	End            *scheduler.TimeOfDay
	ParticipantIDs *[]string
	Status         *BookingStatus
}

// IsEmpty reports whether no field is set.
func (c BookingChanges) IsEmpty() bool {
	return c.Date == nil && c.Start == nil && c.End == nil && c.ParticipantIDs == nil && c.Status == nil
}

// UpdateBookingParams wraps the data required to update a booking.
type UpdateBookingParams struct {
	Principal Principal
	BookingID string
	Changes   BookingChanges
}

// ListBookingsParams selects bookings. Without All, only bookings the
// principal organizes or attends are returned.
type ListBookingsParams struct {
	Principal      Principal
	Status         BookingStatus
	ApprovalStatus ApprovalStatus
	RoomID         string
	From           *time.Time
	To             *time.Time
	All            bool
}

// ListRoomsParams narrows the room catalog. Zero values do not filter.
type ListRoomsParams struct {
	Principal     Principal
	MinCapacity   int
	Amenities     []string
	AvailableOnly bool
}

func (p ListRoomsParams) admits(room Room) bool {
	if p.AvailableOnly && !room.IsAvailable {
		return false
	}
	if room.Capacity < p.MinCapacity {
		return false
	}
	return room.HasAmenities(p.Amenities)
}

// AvailabilityParams describes a proposed interval to check.
type AvailabilityParams struct {
	RoomID           string
	Date             time.Time
	Start            scheduler.TimeOfDay
	End              scheduler.TimeOfDay
	PersonIDs        []string
	ExcludeBookingID string
}

// AvailabilityReport is the outcome of CheckAvailability.
type AvailabilityReport struct {
	RoomID        string
	Date          time.Time
	Interval      scheduler.Interval
	RoomAvailable bool
	RoomOpen      bool
	BusyPersonIDs []string
	Conflicts     []scheduler.Conflict
}

// BatchItem is one proposed booking in a batch.
type BatchItem struct {
	Label          string
	RoomID         string
	Start          scheduler.TimeOfDay
	End            scheduler.TimeOfDay
	ParticipantIDs []string
}

// CommitBatchParams wraps a batch sharing one organizer and one date.
type CommitBatchParams struct {
	Principal Principal
	Date      time.Time
	Items     []BatchItem
}

// BatchFailure records why one batch item was not committed. Reason holds
// the ErrorKind label.
type BatchFailure struct {
	Index    int
	Label    string
	Reason   string
	Message  string
	PersonID string
}

// BatchReport partitions batch items into created bookings and failures.
type BatchReport struct {
	Created      []string
	Failed       []BatchFailure
	SuccessCount int
	FailureCount int
}

// ListInvitationsParams selects the principal's invitations.
type ListInvitationsParams struct {
	Principal Principal
	Status    InvitationStatus
	IsRead    *bool
	Limit     int
}

// ActivityRequest is a structured activity as produced by an intent
// extractor.
type ActivityRequest struct {
	Name              string
	Start             scheduler.TimeOfDay
	End               scheduler.TimeOfDay
	ParticipantCount  int
	RequiredAmenities []string
}

// RankedRooms is a room ranker's advisory preference.
type RankedRooms struct {
	RoomIDs    []string
	Confidence float64
}

// SuggestParams asks for room suggestions either from structured
// activities or from free text handed to the intent extractor.
type SuggestParams struct {
	Principal  Principal
	Date       time.Time
	Activities []ActivityRequest
	Text       string
}

// ActivitySuggestion lists feasible rooms for one activity, best first.
type ActivitySuggestion struct {
	Activity   ActivityRequest
	Rooms      []Room
	Confidence float64
	Ranked     bool
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name         string
	Description  *string
	Capacity     int
	PricePerHour float64
	Amenities    []string
	IsAvailable  *bool
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Input     RoomInput
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email       string
	DisplayName string
	IsManager   bool
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}
