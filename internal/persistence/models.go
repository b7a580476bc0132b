package persistence

import "time"

// User represents a person who can organize or attend bookings.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsManager   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Room represents a bookable room catalog entry.
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

// Booking represents a room reservation stored in persistence. Times of day
// are stored as "HH:MM" strings and the date as "YYYY-MM-DD".
type Booking struct {
	ID              string
	RoomID          string
	OrganizerID     string
	Date            string
	StartTime       string
	EndTime         string
	Status          string
	ApprovalStatus  string
	ApprovedBy      *string
	ApprovedAt      *time.Time
	RejectionReason *string
	Participants    []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Invitation represents a participant's invitation to a booking.
type Invitation struct {
	ID          string
	BookingID   string
	InviterID   string
	InviteeID   string
	Status      string
	IsRead      bool
	Note        *string
	RespondedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
