package scheduler

// Slot is a committed booking interval as seen by conflict detection.
type Slot struct {
	BookingID string
	Interval  Interval
}

// ConflictType describes the resource that is double-booked.
type ConflictType string

const (
	// ConflictTypeRoom indicates the room already holds an overlapping booking.
	ConflictTypeRoom ConflictType = "room"
	// ConflictTypeParticipant indicates a participant is already busy.
	ConflictTypeParticipant ConflictType = "participant"
)

// Conflict details an overlapping relation that callers can present to users.
type Conflict struct {
	Type          ConflictType
	WithBookingID string
	PersonID      string
	Interval      Interval
}

// FindConflicts returns every slot in existing that overlaps candidate.
// A slot whose BookingID equals exclude is ignored, so that a booking
// being edited does not conflict with itself.
func FindConflicts(existing []Slot, candidate Interval, exclude string) []Slot {
	var out []Slot
	for _, slot := range existing {
		if exclude != "" && slot.BookingID == exclude {
			continue
		}
		if slot.Interval.Overlaps(candidate) {
			out = append(out, slot)
		}
	}
	return out
}

// HasConflict is FindConflicts without the allocation.
func HasConflict(existing []Slot, candidate Interval, exclude string) bool {
	for _, slot := range existing {
		if exclude != "" && slot.BookingID == exclude {
			continue
		}
		if slot.Interval.Overlaps(candidate) {
			return true
		}
	}
	return false
}
