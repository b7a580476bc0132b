package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/jmoiron/sqlx"
)

// InvitationRepository implements persistence.InvitationRepository using SQLite
type InvitationRepository struct {
	repository
}

// NewInvitationRepository creates a new SQLite invitation repository
func NewInvitationRepository(pool *ConnectionPool) *InvitationRepository {
	return &InvitationRepository{repository: newRepository(pool)}
}

type invitationRow struct {
	ID          string  `db:"id"`
	BookingID   string  `db:"booking_id"`
	InviterID   string  `db:"inviter_id"`
	InviteeID   string  `db:"invitee_id"`
	Status      string  `db:"status"`
	IsRead      bool    `db:"is_read"`
	Note        *string `db:"response_note"`
	RespondedAt *string `db:"responded_at"`
	CreatedAt   string  `db:"created_at"`
	UpdatedAt   string  `db:"updated_at"`
}

const invitationColumns = `id, booking_id, inviter_id, invitee_id, status, is_read, response_note, responded_at, created_at, updated_at`

func newInvitationRow(invitation persistence.Invitation) invitationRow {
	row := invitationRow{
		ID:        invitation.ID,
		BookingID: invitation.BookingID,
		InviterID: invitation.InviterID,
		InviteeID: invitation.InviteeID,
		Status:    invitation.Status,
		IsRead:    invitation.IsRead,
		Note:      invitation.Note,
		CreatedAt: formatTimestamp(invitation.CreatedAt),
		UpdatedAt: formatTimestamp(invitation.UpdatedAt),
	}
	if invitation.RespondedAt != nil {
		respondedAt := formatTimestamp(*invitation.RespondedAt)
		row.RespondedAt = &respondedAt
	}
	return row
}

func (row invitationRow) toModel() (persistence.Invitation, error) {
	invitation := persistence.Invitation{
		ID:        row.ID,
		BookingID: row.BookingID,
		InviterID: row.InviterID,
		InviteeID: row.InviteeID,
		Status:    row.Status,
		IsRead:    row.IsRead,
		Note:      row.Note,
	}
	if row.RespondedAt != nil {
		respondedAt, err := parseTimestamp(*row.RespondedAt)
		if err != nil {
			return persistence.Invitation{}, fmt.Errorf("failed to parse responded_at: %w", err)
		}
		invitation.RespondedAt = &respondedAt
	}
	var err error
	if invitation.CreatedAt, err = parseTimestamp(row.CreatedAt); err != nil {
		return persistence.Invitation{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if invitation.UpdatedAt, err = parseTimestamp(row.UpdatedAt); err != nil {
		return persistence.Invitation{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return invitation, nil
}

// GetInvitation retrieves an invitation by ID.
func (r *InvitationRepository) GetInvitation(ctx context.Context, id string) (persistence.Invitation, error) {
	if id == "" {
		return persistence.Invitation{}, persistence.ErrNotFound
	}

	var row invitationRow
	if err := r.pool.DB().GetContext(ctx, &row, `SELECT `+invitationColumns+` FROM booking_invitations WHERE id = ?`, id); err != nil {
		return persistence.Invitation{}, r.mapper.MapError(err)
	}
	return row.toModel()
}

// ListInvitations returns matching invitations, newest first.
func (r *InvitationRepository) ListInvitations(ctx context.Context, filter persistence.InvitationFilter) ([]persistence.Invitation, error) {
	where, args := buildInvitationConditions(filter)
	query := `SELECT ` + invitationColumns + ` FROM booking_invitations` + where +
		` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var rows []invitationRow
	if err := r.pool.DB().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, r.mapper.MapError(err)
	}

	invitations := make([]persistence.Invitation, 0, len(rows))
	for _, row := range rows {
		invitation, err := row.toModel()
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, invitation)
	}
	return invitations, nil
}

// CountInvitations counts invitations matching the filter. Limit is ignored.
func (r *InvitationRepository) CountInvitations(ctx context.Context, filter persistence.InvitationFilter) (int, error) {
	where, args := buildInvitationConditions(filter)

	var count int
	if err := r.pool.DB().GetContext(ctx, &count, `SELECT COUNT(*) FROM booking_invitations`+where, args...); err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

// SaveResponse records an accept or reject on a pending invitation. The
// update only applies while the stored row is still pending; otherwise
// ErrStale is returned. With removeParticipant the invitee is also removed
// from the booking's participants.
func (r *InvitationRepository) SaveResponse(ctx context.Context, invitation persistence.Invitation, removeParticipant bool) error {
	if invitation.ID == "" {
		return persistence.ErrNotFound
	}

	if invitation.UpdatedAt.IsZero() {
		invitation.UpdatedAt = time.Now().UTC()
	}
	row := newInvitationRow(invitation)

	return r.write(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.NamedExecContext(ctx, `
			UPDATE booking_invitations
			SET status = :status, is_read = 1, response_note = :response_note,
			    responded_at = :responded_at, updated_at = :updated_at
			WHERE id = :id AND status = 'pending'
		`, row)
		if err != nil {
			return err
		}

		if err := requireAffected(result, persistence.ErrStale); err != nil {
			if !errors.Is(err, persistence.ErrStale) {
				return err
			}
			var exists int
			if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM booking_invitations WHERE id = ?`, invitation.ID); err != nil {
				return err
			}
			if exists == 0 {
				return persistence.ErrNotFound
			}
			return persistence.ErrStale
		}

		if removeParticipant {
			_, err := tx.ExecContext(ctx,
				`DELETE FROM booking_participants WHERE booking_id = ? AND user_id = ?`,
				invitation.BookingID, invitation.InviteeID)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkRead flags a single invitation as read.
func (r *InvitationRepository) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.write(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE booking_invitations SET is_read = 1, updated_at = ? WHERE id = ?`,
			formatTimestamp(time.Now()), id)
		if err != nil {
			return err
		}
		return requireAffected(result, persistence.ErrNotFound)
	})
}

// MarkAllRead flags every unread invitation of the invitee as read and
// returns how many changed.
func (r *InvitationRepository) MarkAllRead(ctx context.Context, inviteeID string) (int, error) {
	var updated int64
	err := r.write(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE booking_invitations SET is_read = 1, updated_at = ? WHERE invitee_id = ? AND is_read = 0`,
			formatTimestamp(time.Now()), inviteeID)
		if err != nil {
			return err
		}
		updated, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(updated), nil
}

func buildInvitationConditions(filter persistence.InvitationFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.InviteeID != "" {
		conditions = append(conditions, "invitee_id = ?")
		args = append(args, filter.InviteeID)
	}
	if filter.BookingID != "" {
		conditions = append(conditions, "booking_id = ?")
		args = append(args, filter.BookingID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.IsRead != nil {
		conditions = append(conditions, "is_read = ?")
		args = append(args, *filter.IsRead)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
