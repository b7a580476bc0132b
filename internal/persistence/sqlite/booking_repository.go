package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/jmoiron/sqlx"
)

// BookingRepository implements persistence.BookingRepository using SQLite
type BookingRepository struct {
	repository
}

// NewBookingRepository creates a new SQLite booking repository
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{repository: newRepository(pool)}
}

type bookingRow struct {
	ID              string  `db:"id"`
	RoomID          string  `db:"room_id"`
	OrganizerID     string  `db:"organizer_id"`
	Date            string  `db:"booking_date"`
	StartTime       string  `db:"start_time"`
	EndTime         string  `db:"end_time"`
	Status          string  `db:"status"`
	ApprovalStatus  string  `db:"approval_status"`
	ApprovedBy      *string `db:"approved_by"`
	ApprovedAt      *string `db:"approved_at"`
	RejectionReason *string `db:"rejection_reason"`
	CreatedAt       string  `db:"created_at"`
	UpdatedAt       string  `db:"updated_at"`
}

const bookingColumns = `b.id, b.room_id, b.organizer_id, b.booking_date, b.start_time, b.end_time,
	b.status, b.approval_status, b.approved_by, b.approved_at, b.rejection_reason,
	b.created_at, b.updated_at`

func newBookingRow(booking persistence.Booking) bookingRow {
	row := bookingRow{
		ID:              booking.ID,
		RoomID:          booking.RoomID,
		OrganizerID:     booking.OrganizerID,
		Date:            booking.Date,
		StartTime:       booking.StartTime,
		EndTime:         booking.EndTime,
		Status:          booking.Status,
		ApprovalStatus:  booking.ApprovalStatus,
		ApprovedBy:      booking.ApprovedBy,
		RejectionReason: booking.RejectionReason,
		CreatedAt:       formatTimestamp(booking.CreatedAt),
		UpdatedAt:       formatTimestamp(booking.UpdatedAt),
	}
	if booking.ApprovedAt != nil {
		approvedAt := formatTimestamp(*booking.ApprovedAt)
		row.ApprovedAt = &approvedAt
	}
	return row
}

func (row bookingRow) toModel() (persistence.Booking, error) {
	booking := persistence.Booking{
		ID:              row.ID,
		RoomID:          row.RoomID,
		OrganizerID:     row.OrganizerID,
		Date:            row.Date,
		StartTime:       row.StartTime,
		EndTime:         row.EndTime,
		Status:          row.Status,
		ApprovalStatus:  row.ApprovalStatus,
		ApprovedBy:      row.ApprovedBy,
		RejectionReason: row.RejectionReason,
	}
	if row.ApprovedAt != nil {
		approvedAt, err := parseTimestamp(*row.ApprovedAt)
		if err != nil {
			return persistence.Booking{}, fmt.Errorf("failed to parse approved_at: %w", err)
		}
		booking.ApprovedAt = &approvedAt
	}
	var err error
	if booking.CreatedAt, err = parseTimestamp(row.CreatedAt); err != nil {
		return persistence.Booking{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if booking.UpdatedAt, err = parseTimestamp(row.UpdatedAt); err != nil {
		return persistence.Booking{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return booking, nil
}

// CreateBooking inserts the booking, its participants and their
// invitations in a single transaction.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking, invitations []persistence.Invitation) error {
	if booking.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if err := validateBooking(booking); err != nil {
		return err
	}

	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	if booking.UpdatedAt.IsZero() {
		booking.UpdatedAt = booking.CreatedAt
	}

	return r.write(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO bookings (id, room_id, organizer_id, booking_date, start_time, end_time,
				status, approval_status, approved_by, approved_at, rejection_reason, created_at, updated_at)
			VALUES (:id, :room_id, :organizer_id, :booking_date, :start_time, :end_time,
				:status, :approval_status, :approved_by, :approved_at, :rejection_reason, :created_at, :updated_at)
		`, newBookingRow(booking))
		if err != nil {
			return err
		}

		if err := insertParticipants(ctx, tx, booking.ID, booking.Participants); err != nil {
			return err
		}
		return upsertInvitations(ctx, tx, invitations)
	})
}

// UpdateBooking rewrites the booking row and its participant set, and
// inserts the given invitations. An invitation for an invitee that already
// has one on this booking resets the existing row to pending and unread.
func (r *BookingRepository) UpdateBooking(ctx context.Context, booking persistence.Booking, invitations []persistence.Invitation) error {
	if booking.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if err := validateBooking(booking); err != nil {
		return err
	}

	if booking.UpdatedAt.IsZero() {
		booking.UpdatedAt = time.Now().UTC()
	}

	return r.write(ctx, func(tx *sqlx.Tx) error {
		// organizer_id and created_at are immutable.
		result, err := tx.NamedExecContext(ctx, `
			UPDATE bookings
			SET room_id = :room_id, booking_date = :booking_date, start_time = :start_time,
			    end_time = :end_time, status = :status, approval_status = :approval_status,
			    approved_by = :approved_by, approved_at = :approved_at,
			    rejection_reason = :rejection_reason, updated_at = :updated_at
			WHERE id = :id
		`, newBookingRow(booking))
		if err != nil {
			return err
		}
		if err := requireAffected(result, persistence.ErrNotFound); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM booking_participants WHERE booking_id = ?`, booking.ID); err != nil {
			return err
		}
		if err := insertParticipants(ctx, tx, booking.ID, booking.Participants); err != nil {
			return err
		}
		return upsertInvitations(ctx, tx, invitations)
	})
}

// GetBooking retrieves a booking with its participants.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}

	var row bookingRow
	if err := r.pool.DB().GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`, id); err != nil {
		return persistence.Booking{}, r.mapper.MapError(err)
	}

	booking, err := row.toModel()
	if err != nil {
		return persistence.Booking{}, err
	}

	participants, err := r.loadParticipants(ctx, []string{id})
	if err != nil {
		return persistence.Booking{}, err
	}
	booking.Participants = participants[id]
	return booking, nil
}

// ListBookings lists bookings matching the filter ordered by date, start
// time and ID.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	query, args := buildBookingListQuery(filter)

	var rows []bookingRow
	if err := r.pool.DB().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, r.mapper.MapError(err)
	}
	if len(rows) == 0 {
		return []persistence.Booking{}, nil
	}

	bookings := make([]persistence.Booking, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		booking, err := row.toModel()
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
		ids = append(ids, booking.ID)
	}

	participants, err := r.loadParticipants(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		bookings[i].Participants = participants[bookings[i].ID]
	}
	return bookings, nil
}

// DeleteBooking removes a booking. Participants and invitations cascade.
func (r *BookingRepository) DeleteBooking(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.write(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireAffected(result, persistence.ErrNotFound)
	})
}

func validateBooking(booking persistence.Booking) error {
	if booking.RoomID == "" || booking.OrganizerID == "" || booking.Date == "" {
		return persistence.ErrConstraintViolation
	}
	// "HH:MM" strings compare in time order.
	if booking.EndTime <= booking.StartTime {
		return persistence.ErrConstraintViolation
	}
	return nil
}

func insertParticipants(ctx context.Context, tx *sqlx.Tx, bookingID string, participants []string) error {
	seen := make(map[string]struct{}, len(participants))
	for _, participant := range participants {
		participant = strings.TrimSpace(participant)
		if participant == "" {
			continue
		}
		if _, ok := seen[participant]; ok {
			continue
		}
		seen[participant] = struct{}{}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO booking_participants (booking_id, user_id) VALUES (?, ?)`,
			bookingID, participant); err != nil {
			return err
		}
	}
	return nil
}

func upsertInvitations(ctx context.Context, tx *sqlx.Tx, invitations []persistence.Invitation) error {
	for _, invitation := range invitations {
		if invitation.ID == "" {
			return persistence.ErrConstraintViolation
		}
		if invitation.Status == "" {
			invitation.Status = "pending"
		}
		if invitation.CreatedAt.IsZero() {
			invitation.CreatedAt = time.Now().UTC()
		}
		if invitation.UpdatedAt.IsZero() {
			invitation.UpdatedAt = invitation.CreatedAt
		}

		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO booking_invitations (`+invitationColumns+`)
			VALUES (:id, :booking_id, :inviter_id, :invitee_id, :status, :is_read,
				:response_note, :responded_at, :created_at, :updated_at)
			ON CONFLICT (booking_id, invitee_id) DO UPDATE SET
				id = excluded.id,
				inviter_id = excluded.inviter_id,
				status = 'pending',
				is_read = 0,
				response_note = NULL,
				responded_at = NULL,
				created_at = excluded.created_at,
				updated_at = excluded.updated_at
		`, newInvitationRow(invitation))
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *BookingRepository) loadParticipants(ctx context.Context, bookingIDs []string) (map[string][]string, error) {
	query, args, err := sqlx.In(`
		SELECT booking_id, user_id
		FROM booking_participants
		WHERE booking_id IN (?)
		ORDER BY booking_id ASC, user_id ASC
	`, bookingIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build participant lookup: %w", err)
	}

	var rows []struct {
		BookingID string `db:"booking_id"`
		UserID    string `db:"user_id"`
	}
	if err := r.pool.DB().SelectContext(ctx, &rows, r.pool.DB().Rebind(query), args...); err != nil {
		return nil, r.mapper.MapError(err)
	}

	participants := make(map[string][]string, len(bookingIDs))
	for _, row := range rows {
		participants[row.BookingID] = append(participants[row.BookingID], row.UserID)
	}
	return participants, nil
}

func buildBookingListQuery(filter persistence.BookingFilter) (string, []interface{}) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b`

	var conditions []string
	var args []interface{}

	if filter.RoomID != "" {
		conditions = append(conditions, "b.room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.PersonID != "" {
		conditions = append(conditions, `(b.organizer_id = ? OR EXISTS (
			SELECT 1 FROM booking_participants p WHERE p.booking_id = b.id AND p.user_id = ?))`)
		args = append(args, filter.PersonID, filter.PersonID)
	}
	if filter.Date != "" {
		conditions = append(conditions, "b.booking_date = ?")
		args = append(args, filter.Date)
	}
	if filter.DateFrom != "" {
		conditions = append(conditions, "b.booking_date >= ?")
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		conditions = append(conditions, "b.booking_date <= ?")
		args = append(args, filter.DateTo)
	}
	if filter.Status != "" {
		conditions = append(conditions, "b.status = ?")
		args = append(args, filter.Status)
	}
	if filter.ApprovalStatus != "" {
		conditions = append(conditions, "b.approval_status = ?")
		args = append(args, filter.ApprovalStatus)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY b.booking_date ASC, b.start_time ASC, b.id ASC"
	return query, args
}
