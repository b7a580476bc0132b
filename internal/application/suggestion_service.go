package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/room-booking/internal/scheduler"
)

// IntentExtractor turns free text into structured activities. Existing
// bookings of the requester are passed as context.
type IntentExtractor interface {
	Extract(ctx context.Context, text string, existing []Booking) ([]ActivityRequest, error)
}

// RoomRanker orders an already feasible set of rooms for one activity.
// Its output is advisory.
type RoomRanker interface {
	Rank(ctx context.Context, activity ActivityRequest, feasible []Room) (RankedRooms, error)
}

// SuggestionService computes feasible rooms per activity and optionally
// asks a ranker to order them. It never commits bookings.
type SuggestionService struct {
	rooms        RoomRepository
	bookings     BookingRepository
	availability *AvailabilityChecker
	extractor    IntentExtractor
	ranker       RoomRanker
	logger       *slog.Logger
}

// NewSuggestionService wires dependencies. extractor and ranker may be nil.
func NewSuggestionService(rooms RoomRepository, bookings BookingRepository, availability *AvailabilityChecker, extractor IntentExtractor, ranker RoomRanker, logger *slog.Logger) *SuggestionService {
	return &SuggestionService{
		rooms:        rooms,
		bookings:     bookings,
		availability: availability,
		extractor:    extractor,
		ranker:       ranker,
		logger:       defaultLogger(logger),
	}
}

// FeasibleRooms lists rooms, in catalog order, that are flagged available,
// free for the activity's interval, large enough and equipped with every
// required amenity.
func (s *SuggestionService) FeasibleRooms(ctx context.Context, date time.Time, activity ActivityRequest) ([]Room, error) {
	if s == nil || s.rooms == nil || s.availability == nil {
		return nil, fmt.Errorf("SuggestionService is not configured")
	}

	iv := scheduler.Interval{Start: activity.Start, End: activity.End}
	if !s.availability.Window().Admits(iv) {
		return nil, newRejection(ReasonInvalidTimeWindow, "", "%s is outside the operating window or empty", iv)
	}
	if activity.ParticipantCount < 0 {
		return nil, fieldError("participant_count", "must not be negative")
	}

	catalog, err := s.rooms.ListRooms(ctx)
	if err != nil {
		return nil, systemFailure("list rooms", err)
	}

	// ParticipantCount is the attendee total; CapacityOK counts the
	// organizer separately.
	others := activity.ParticipantCount - 1
	if others < 0 {
		others = 0
	}

	feasible := make([]Room, 0, len(catalog))
	for _, room := range catalogOrder(catalog) {
		if !room.IsAvailable || !CapacityOK(room, others) || !room.HasAmenities(activity.RequiredAmenities) {
			continue
		}
		free, err := s.availability.RoomAvailable(ctx, room.ID, date, iv, "", nil)
		if err != nil {
			return nil, err
		}
		if free {
			feasible = append(feasible, room)
		}
	}
	return feasible, nil
}

// Suggest returns feasible rooms per activity, ranked when a ranker is
// configured. Text input goes through the intent extractor.
func (s *SuggestionService) Suggest(ctx context.Context, params SuggestParams) (suggestions []ActivitySuggestion, err error) {
	if s == nil {
		err = fmt.Errorf("SuggestionService is nil")
		return
	}

	logger := serviceLogger(ctx, s.logger, "SuggestionService", "Suggest",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		logResult(ctx, logger, err, "suggestions computed", "activity_count", len(suggestions))
	}()

	if err = requirePrincipal(params.Principal); err != nil {
		return
	}
	if params.Date.IsZero() {
		err = fieldError("date", "date is required")
		return
	}
	date := scheduler.NormalizeDate(params.Date)

	activities := params.Activities
	if len(activities) == 0 {
		activities, err = s.extract(ctx, params.Principal, date, params.Text)
		if err != nil {
			return
		}
	}

	suggestions = make([]ActivitySuggestion, 0, len(activities))
	for _, activity := range activities {
		var feasible []Room
		feasible, err = s.FeasibleRooms(ctx, date, activity)
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, s.rank(ctx, logger, activity, feasible))
	}
	return
}

func (s *SuggestionService) extract(ctx context.Context, principal Principal, date time.Time, text string) ([]ActivityRequest, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fieldError("activities", "activities or text is required")
	}
	if s.extractor == nil {
		return nil, ErrCollaboratorUnavailable
	}

	var existing []Booking
	if s.bookings != nil {
		d := date
		var err error
		existing, err = s.bookings.ListBookings(ctx, BookingFilter{
			PersonID: principal.UserID,
			From:     &d,
			To:       &d,
			Status:   BookingStatusUpcoming,
		})
		if err != nil {
			return nil, systemFailure("list bookings", err)
		}
	}

	activities, err := s.extractor.Extract(ctx, text, existing)
	if err != nil {
		return nil, systemFailure("extract intent", err)
	}
	return activities, nil
}

// rank applies the ranker's order to the feasible set. Ids outside the set
// are discarded and unranked rooms follow in catalog order.
func (s *SuggestionService) rank(ctx context.Context, logger *slog.Logger, activity ActivityRequest, feasible []Room) ActivitySuggestion {
	suggestion := ActivitySuggestion{Activity: activity, Rooms: feasible}
	if s.ranker == nil || len(feasible) == 0 {
		return suggestion
	}

	ranked, err := s.ranker.Rank(ctx, activity, feasible)
	if err != nil {
		logger.WarnContext(ctx, "room ranker failed, using catalog order", "activity", activity.Name, "error", err)
		return suggestion
	}

	byID := make(map[string]Room, len(feasible))
	for _, room := range feasible {
		byID[room.ID] = room
	}

	ordered := make([]Room, 0, len(feasible))
	for _, id := range ranked.RoomIDs {
		room, ok := byID[id]
		if !ok {
			continue
		}
		ordered = append(ordered, room)
		delete(byID, id)
	}
	for _, room := range feasible {
		if _, ok := byID[room.ID]; ok {
			ordered = append(ordered, room)
		}
	}

	suggestion.Rooms = ordered
	suggestion.Confidence = ranked.Confidence
	suggestion.Ranked = true
	return suggestion
}
