package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/jmoiron/sqlx"
)

// RoomRepository implements persistence.RoomRepository using SQLite
type RoomRepository struct {
	repository
}

// NewRoomRepository creates a new SQLite room repository
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{repository: newRepository(pool)}
}

type roomRow struct {
	ID           string  `db:"id"`
	Name         string  `db:"name"`
	Description  *string `db:"description"`
	Capacity     int     `db:"capacity"`
	PricePerHour float64 `db:"price_per_hour"`
	Amenities    string  `db:"amenities"`
	IsAvailable  bool    `db:"is_available"`
	CreatedAt    string  `db:"created_at"`
	UpdatedAt    string  `db:"updated_at"`
}

const roomColumns = `id, name, description, capacity, price_per_hour, amenities, is_available, created_at, updated_at`

func newRoomRow(room persistence.Room) (roomRow, error) {
	amenities := room.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	encoded, err := json.Marshal(amenities)
	if err != nil {
		return roomRow{}, fmt.Errorf("failed to encode amenities: %w", err)
	}
	return roomRow{
		ID:           room.ID,
		Name:         room.Name,
		Description:  room.Description,
		Capacity:     room.Capacity,
		PricePerHour: room.PricePerHour,
		Amenities:    string(encoded),
		IsAvailable:  room.IsAvailable,
		CreatedAt:    formatTimestamp(room.CreatedAt),
		UpdatedAt:    formatTimestamp(room.UpdatedAt),
	}, nil
}

func (row roomRow) toModel() (persistence.Room, error) {
	room := persistence.Room{
		ID:           row.ID,
		Name:         row.Name,
		Description:  row.Description,
		Capacity:     row.Capacity,
		PricePerHour: row.PricePerHour,
		IsAvailable:  row.IsAvailable,
	}
	if err := json.Unmarshal([]byte(row.Amenities), &room.Amenities); err != nil {
		return persistence.Room{}, fmt.Errorf("failed to decode amenities for room %s: %w", row.ID, err)
	}
	var err error
	if room.CreatedAt, err = parseTimestamp(row.CreatedAt); err != nil {
		return persistence.Room{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if room.UpdatedAt, err = parseTimestamp(row.UpdatedAt); err != nil {
		return persistence.Room{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return room, nil
}

// CreateRoom inserts a new room into the database
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = room.CreatedAt
	}

	row, err := newRoomRow(room)
	if err != nil {
		return err
	}

	return r.write(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO rooms (`+roomColumns+`)
			VALUES (:id, :name, :description, :capacity, :price_per_hour, :amenities, :is_available, :created_at, :updated_at)
		`, row)
		return err
	})
}

// UpdateRoom updates an existing room in the database
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = time.Now().UTC()
	}

	row, err := newRoomRow(room)
	if err != nil {
		return err
	}

	return r.write(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.NamedExecContext(ctx, `
			UPDATE rooms
			SET name = :name, description = :description, capacity = :capacity,
			    price_per_hour = :price_per_hour, amenities = :amenities,
			    is_available = :is_available, updated_at = :updated_at
			WHERE id = :id
		`, row)
		if err != nil {
			return err
		}
		return requireAffected(result, persistence.ErrNotFound)
	})
}

// GetRoom retrieves a room by ID from the database
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}

	var row roomRow
	if err := r.pool.DB().GetContext(ctx, &row, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id); err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}
	return row.toModel()
}

// ListRooms returns all rooms in catalog order: by name, then ID.
func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	var rows []roomRow
	if err := r.pool.DB().SelectContext(ctx, &rows, `SELECT `+roomColumns+` FROM rooms ORDER BY name ASC, id ASC`); err != nil {
		return nil, r.mapper.MapError(err)
	}

	rooms := make([]persistence.Room, 0, len(rows))
	for _, row := range rows {
		room, err := row.toModel()
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// DeleteRoom removes a room and, through cascades, its bookings.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.write(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireAffected(result, persistence.ErrNotFound)
	})
}
