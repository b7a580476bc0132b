package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// RoomService orchestrates validation, authorization, and persistence for rooms.
type RoomService struct {
	rooms       RoomRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms RoomRepository, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms RoomRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{rooms: rooms, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// CreateRoom validates input and persists a new room for managers.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		logResult(ctx, logger, err, "room created", "room_id", room.ID)
	}()

	if !params.Principal.IsManager {
		err = ErrNotAuthorized
		return
	}

	vErr := validateRoomInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	available := true
	if params.Input.IsAvailable != nil {
		available = *params.Input.IsAvailable
	}

	room = Room{
		ID:           s.idGenerator(),
		Name:         strings.TrimSpace(params.Input.Name),
		Description:  normalizeOptionalString(params.Input.Description),
		Capacity:     params.Input.Capacity,
		PricePerHour: params.Input.PricePerHour,
		Amenities:    normalizeAmenities(params.Input.Amenities),
		IsAvailable:  available,
		CreatedAt:    s.now(),
	}
	room.UpdatedAt = room.CreatedAt

	if s.rooms == nil {
		return
	}

	var persisted Room
	persisted, err = s.rooms.CreateRoom(ctx, room)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	room = persisted
	return
}

// UpdateRoom validates input and updates an existing room for managers.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if !params.Principal.IsManager {
		err = ErrNotAuthorized
		return
	}
	if s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		logResult(ctx, logger, err, "room updated")
	}()

	var existing Room
	existing, err = s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	vErr := validateRoomInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Name = strings.TrimSpace(params.Input.Name)
	updated.Description = normalizeOptionalString(params.Input.Description)
	updated.Capacity = params.Input.Capacity
	updated.PricePerHour = params.Input.PricePerHour
	updated.Amenities = normalizeAmenities(params.Input.Amenities)
	if params.Input.IsAvailable != nil {
		updated.IsAvailable = *params.Input.IsAvailable
	}
	updated.UpdatedAt = s.now()

	room, err = s.rooms.UpdateRoom(ctx, updated)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	return
}

// SetAvailability flips the manager-controlled availability flag.
func (s *RoomService) SetAvailability(ctx context.Context, principal Principal, roomID string, available bool) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if !principal.IsManager {
		err = ErrNotAuthorized
		return
	}
	if s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "SetAvailability",
		"principal_id", principal.UserID,
		"room_id", roomID,
		"available", available,
	)
	defer func() {
		logResult(ctx, logger, err, "room availability changed")
	}()

	room, err = s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}
	if room.IsAvailable == available {
		return
	}

	room.IsAvailable = available
	room.UpdatedAt = s.now()
	room, err = s.rooms.UpdateRoom(ctx, room)
	if err != nil {
		err = mapRoomRepoError(err)
	}
	return
}

// DeleteRoom removes an existing room and, by cascade, its bookings.
func (s *RoomService) DeleteRoom(ctx context.Context, principal Principal, roomID string) error {
	if s == nil {
		return fmt.Errorf("RoomService is nil")
	}
	if !principal.IsManager {
		return ErrNotAuthorized
	}
	if s.rooms == nil {
		return fmt.Errorf("room repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteRoom",
		"principal_id", principal.UserID,
		"room_id", roomID,
	)

	if err := s.rooms.DeleteRoom(ctx, roomID); err != nil {
		err = mapRoomRepoError(err)
		logResult(ctx, logger, err, "")
		return err
	}

	logger.InfoContext(ctx, "room deleted")
	return nil
}

// GetRoom returns one room.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (Room, error) {
	if s == nil {
		return Room{}, fmt.Errorf("RoomService is nil")
	}
	if s.rooms == nil {
		return Room{}, ErrNotFound
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return Room{}, mapRoomRepoError(err)
	}
	return room, nil
}

// ListRooms returns the catalog of rooms ordered by name, keeping only
// rooms that hold at least MinCapacity people, offer every listed amenity
// and, with AvailableOnly, are open for booking.
func (s *RoomService) ListRooms(ctx context.Context, params ListRoomsParams) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListRooms",
		"principal_id", params.Principal.UserID,
		"min_capacity", params.MinCapacity,
		"amenities", params.Amenities,
	)
	defer func() {
		if err != nil {
			logResult(ctx, logger, err, "")
			return
		}
		logger.DebugContext(ctx, "rooms listed", "result_count", len(rooms))
	}()

	if params.MinCapacity < 0 {
		err = fieldError("min_capacity", "min_capacity must not be negative")
		return
	}
	params.Amenities = normalizeAmenities(params.Amenities)

	var raw []Room
	raw, err = s.rooms.ListRooms(ctx)
	if err != nil {
		err = systemFailure("list rooms", err)
		return
	}

	matching := raw[:0:0]
	for _, room := range raw {
		if params.admits(room) {
			matching = append(matching, room)
		}
	}
	rooms = catalogOrder(matching)
	return
}

// catalogOrder sorts rooms by case-insensitive name, then id.
func catalogOrder(raw []Room) []Room {
	rooms := make([]Room, len(raw))
	copy(rooms, raw)

	sort.SliceStable(rooms, func(i, j int) bool {
		if strings.EqualFold(rooms[i].Name, rooms[j].Name) {
			return rooms[i].ID < rooms[j].ID
		}
		return strings.ToLower(rooms[i].Name) < strings.ToLower(rooms[j].Name)
	})
	return rooms
}

func validateRoomInput(input RoomInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if input.Capacity <= 0 {
		vErr.add("capacity", "capacity must be positive")
	}
	if input.PricePerHour < 0 {
		vErr.add("price_per_hour", "price must not be negative")
	}

	return vErr
}

// normalizeAmenities trims, drops blanks and de-duplicates, keeping the
// first occurrence order.
func normalizeAmenities(values []string) []string {
	trimmed := make([]string, 0, len(values))
	for _, v := range values {
		trimmed = append(trimmed, strings.TrimSpace(v))
	}
	return uniqueStrings(trimmed)
}

func mapRoomRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFoundError(err) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) || errors.Is(err, ErrAlreadyExists) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("capacity", "capacity must be positive")
		return vErr
	}
	return systemFailure("room repository", err)
}
