package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/room-booking/internal/scheduler"
)

// AvailabilityChecker answers whether rooms and people are free for an
// interval, against durable bookings plus an optional batch ledger.
type AvailabilityChecker struct {
	bookings BookingRepository
	rooms    RoomRepository
	window   scheduler.Window
	logger   *slog.Logger
}

// NewAvailabilityChecker constructs a checker. A zero window falls back to
// scheduler.DefaultWindow.
func NewAvailabilityChecker(bookings BookingRepository, rooms RoomRepository, window scheduler.Window, logger *slog.Logger) *AvailabilityChecker {
	if window == (scheduler.Window{}) {
		window = scheduler.DefaultWindow()
	}
	return &AvailabilityChecker{bookings: bookings, rooms: rooms, window: window, logger: defaultLogger(logger)}
}

// Window returns the operational window used for validation.
func (c *AvailabilityChecker) Window() scheduler.Window {
	return c.window
}

// RoomConflicts lists upcoming bookings of the room that overlap iv.
func (c *AvailabilityChecker) RoomConflicts(ctx context.Context, roomID string, date time.Time, iv scheduler.Interval, excludeBookingID string) ([]scheduler.Slot, error) {
	slots, err := c.roomSlots(ctx, roomID, date)
	if err != nil {
		return nil, err
	}
	return scheduler.FindConflicts(slots, iv, excludeBookingID), nil
}

// RoomAvailable reports whether no upcoming booking of the room, other
// than excludeBookingID, overlaps iv and the ledger holds no overlap.
func (c *AvailabilityChecker) RoomAvailable(ctx context.Context, roomID string, date time.Time, iv scheduler.Interval, excludeBookingID string, ledger *scheduler.ShadowLedger) (bool, error) {
	if ledger.Conflicts(iv) {
		return false, nil
	}
	slots, err := c.roomSlots(ctx, roomID, date)
	if err != nil {
		return false, err
	}
	return !scheduler.HasConflict(slots, iv, excludeBookingID), nil
}

// PersonConflicts lists upcoming bookings the person organizes or attends
// that overlap iv.
func (c *AvailabilityChecker) PersonConflicts(ctx context.Context, personID string, date time.Time, iv scheduler.Interval, excludeBookingID string) ([]scheduler.Slot, error) {
	slots, err := c.personSlots(ctx, personID, date)
	if err != nil {
		return nil, err
	}
	return scheduler.FindConflicts(slots, iv, excludeBookingID), nil
}

// PersonAvailable is RoomAvailable for a person's calendar.
func (c *AvailabilityChecker) PersonAvailable(ctx context.Context, personID string, date time.Time, iv scheduler.Interval, excludeBookingID string, ledger *scheduler.ShadowLedger) (bool, error) {
	if ledger.Conflicts(iv) {
		return false, nil
	}
	slots, err := c.personSlots(ctx, personID, date)
	if err != nil {
		return false, err
	}
	return !scheduler.HasConflict(slots, iv, excludeBookingID), nil
}

func (c *AvailabilityChecker) roomSlots(ctx context.Context, roomID string, date time.Time) ([]scheduler.Slot, error) {
	bookings, err := c.bookings.ListRoomBookings(ctx, roomID, scheduler.NormalizeDate(date), BookingStatusUpcoming)
	if err != nil {
		return nil, systemFailure("list room bookings", err)
	}
	return toSlots(bookings), nil
}

func (c *AvailabilityChecker) personSlots(ctx context.Context, personID string, date time.Time) ([]scheduler.Slot, error) {
	bookings, err := c.bookings.ListPersonBookings(ctx, personID, scheduler.NormalizeDate(date), BookingStatusUpcoming)
	if err != nil {
		return nil, systemFailure("list person bookings", err)
	}
	return toSlots(bookings), nil
}

// CheckAvailability reports whether the room and each requested person are
// free, listing every conflicting booking.
func (c *AvailabilityChecker) CheckAvailability(ctx context.Context, params AvailabilityParams) (report AvailabilityReport, err error) {
	if c == nil {
		err = fmt.Errorf("AvailabilityChecker is nil")
		return
	}

	iv := scheduler.Interval{Start: params.Start, End: params.End}
	logger := serviceLogger(ctx, c.logger, "AvailabilityChecker", "CheckAvailability",
		"room_id", params.RoomID,
		"interval", iv.String(),
	)
	defer func() {
		logResult(ctx, logger, err, "availability checked",
			"room_available", report.RoomAvailable,
			"conflict_count", len(report.Conflicts),
		)
	}()

	if params.Date.IsZero() {
		err = fieldError("date", "date is required")
		return
	}
	if !c.window.Admits(iv) {
		err = ErrInvalidTimeWindow
		return
	}

	date := scheduler.NormalizeDate(params.Date)
	report = AvailabilityReport{
		RoomID:   params.RoomID,
		Date:     date,
		Interval: iv,
		RoomOpen: true,
	}

	if params.RoomID != "" {
		var room Room
		room, err = c.rooms.GetRoom(ctx, params.RoomID)
		if err != nil {
			err = mapRoomLookupError(err)
			return
		}
		report.RoomOpen = room.IsAvailable

		var slots []scheduler.Slot
		slots, err = c.RoomConflicts(ctx, params.RoomID, date, iv, params.ExcludeBookingID)
		if err != nil {
			return
		}
		report.RoomAvailable = room.IsAvailable && len(slots) == 0
		for _, slot := range slots {
			report.Conflicts = append(report.Conflicts, scheduler.Conflict{
				Type:          scheduler.ConflictTypeRoom,
				WithBookingID: slot.BookingID,
				Interval:      slot.Interval,
			})
		}
	}

	for _, personID := range uniqueStrings(params.PersonIDs) {
		var slots []scheduler.Slot
		slots, err = c.PersonConflicts(ctx, personID, date, iv, params.ExcludeBookingID)
		if err != nil {
			return
		}
		if len(slots) == 0 {
			continue
		}
		report.BusyPersonIDs = append(report.BusyPersonIDs, personID)
		for _, slot := range slots {
			report.Conflicts = append(report.Conflicts, scheduler.Conflict{
				Type:          scheduler.ConflictTypeParticipant,
				WithBookingID: slot.BookingID,
				PersonID:      personID,
				Interval:      slot.Interval,
			})
		}
	}

	return
}

func toSlots(bookings []Booking) []scheduler.Slot {
	slots := make([]scheduler.Slot, 0, len(bookings))
	for _, b := range bookings {
		slots = append(slots, scheduler.Slot{BookingID: b.ID, Interval: b.Interval()})
	}
	return slots
}

// mapRoomLookupError turns a missing room into RoomNotFound.
func mapRoomLookupError(err error) error {
	if isNotFoundError(err) {
		return ErrRoomNotFound
	}
	return systemFailure("get room", err)
}
