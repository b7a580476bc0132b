package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/room-booking/internal/scheduler"
)

// BatchNotAttempted labels items skipped because the batch was aborted.
const BatchNotAttempted = "not_attempted"

// BatchCoordinator commits an ordered batch of bookings for one organizer
// and date. Each item is committed on its own; a failed item never rolls
// back earlier ones.
type BatchCoordinator struct {
	bookings *BookingService
	logger   *slog.Logger
}

// NewBatchCoordinator constructs a coordinator delegating to bookings.
func NewBatchCoordinator(bookings *BookingService, logger *slog.Logger) *BatchCoordinator {
	return &BatchCoordinator{bookings: bookings, logger: defaultLogger(logger)}
}

// CommitBatch processes items in order against a ledger private to this
// call. The returned error is non-nil only when the batch as a whole is
// malformed; per-item outcomes are in the report.
func (c *BatchCoordinator) CommitBatch(ctx context.Context, params CommitBatchParams) (report BatchReport, err error) {
	if c == nil || c.bookings == nil {
		err = fmt.Errorf("BatchCoordinator is nil")
		return
	}

	logger := serviceLogger(ctx, c.logger, "BatchCoordinator", "CommitBatch",
		"principal_id", params.Principal.UserID,
		"item_count", len(params.Items),
	)
	defer func() {
		logResult(ctx, logger, err, "batch committed",
			"success_count", report.SuccessCount,
			"failure_count", report.FailureCount,
		)
	}()

	if err = requirePrincipal(params.Principal); err != nil {
		return
	}
	if params.Date.IsZero() {
		err = fieldError("date", "date is required")
		return
	}

	date := scheduler.NormalizeDate(params.Date)
	ledger := scheduler.NewShadowLedger()
	report.Created = []string{}
	report.Failed = []BatchFailure{}

	for i, item := range params.Items {
		if ctx.Err() != nil {
			for j := i; j < len(params.Items); j++ {
				report.Failed = append(report.Failed, BatchFailure{
					Index:   j,
					Label:   params.Items[j].Label,
					Reason:  BatchNotAttempted,
					Message: "batch aborted before this item",
				})
			}
			logger.WarnContext(ctx, "batch aborted", "remaining", len(params.Items)-i, "error", ctx.Err())
			break
		}

		bookingID, itemErr := c.commitItem(ctx, params.Principal, date, item, ledger)
		if itemErr != nil {
			failure := newBatchFailure(i, item, itemErr)
			report.Failed = append(report.Failed, failure)
			logger.WarnContext(ctx, "batch item failed",
				"index", i,
				"label", item.Label,
				"error_kind", failure.Reason,
				"error", itemErr,
			)
			continue
		}
		report.Created = append(report.Created, bookingID)
	}

	report.SuccessCount = len(report.Created)
	report.FailureCount = len(report.Failed)
	return
}

func (c *BatchCoordinator) commitItem(ctx context.Context, principal Principal, date time.Time, item BatchItem, ledger *scheduler.ShadowLedger) (string, error) {
	svc := c.bookings
	organizerID := principal.UserID
	iv := scheduler.Interval{Start: item.Start, End: item.End}

	unlock := svc.locks.Lock(intervalLockKeys(item.RoomID, date, organizerID, item.ParticipantIDs)...)
	defer unlock()

	room, err := svc.rooms.GetRoom(ctx, item.RoomID)
	if err != nil {
		return "", mapRoomLookupError(err)
	}

	// An invalid window is left for create to report.
	if svc.availability.Window().Admits(iv) {
		if !room.IsAvailable {
			return "", newRejection(ReasonRoomUnavailable, "", "room %s is closed for booking", room.ID)
		}
		free, err := svc.availability.RoomAvailable(ctx, room.ID, date, iv, "", nil)
		if err != nil {
			return "", err
		}
		if !free {
			return "", newRejection(ReasonRoomUnavailable, "", "room %s is already booked during %s", room.ID, iv)
		}

		if ledger.Conflicts(iv) {
			return "", newRejection(ReasonBatchConflict, organizerID, "%s overlaps an earlier item of this batch", iv)
		}

		free, err = svc.availability.PersonAvailable(ctx, organizerID, date, iv, "", nil)
		if err != nil {
			return "", err
		}
		if !free {
			return "", newRejection(ReasonOrganizerConflict, organizerID, "organizer already has a booking during %s", iv)
		}
	}

	booking, err := svc.create(ctx, CreateBookingParams{
		Principal:          principal,
		RoomID:             item.RoomID,
		Date:               date,
		Start:              item.Start,
		End:                item.End,
		ParticipantIDs:     item.ParticipantIDs,
		SkipOrganizerCheck: true,
	})
	if err != nil {
		return "", err
	}

	ledger.Accept(iv)
	return booking.ID, nil
}

func newBatchFailure(index int, item BatchItem, err error) BatchFailure {
	failure := BatchFailure{
		Index:  index,
		Label:  item.Label,
		Reason: ErrorKind(err),
	}
	switch rejection, ok := AsRejection(err); {
	case ok:
		failure.Message = rejection.Message
		failure.PersonID = rejection.PersonID
	case IsSystemFailure(err), failure.Reason == "unexpected":
		failure.Message = "internal error while committing this item"
	default:
		failure.Message = err.Error()
	}
	return failure
}
