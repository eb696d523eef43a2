package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"cleanup-quest-bot/internal/model"
)

const ticketColumns = `
	id, status, reported_by, accepted_by, validated_by, type, priority, estimated_size,
	description, latitude, longitude, before_photos, after_photos, cleaning_status,
	accept_points, cleaner_points, points_awarded, validation_message,
	created_at, accepted_at, completed_at, updated_at, version`

func scanTicket(row pgx.Row) (*model.Ticket, error) {
	var t model.Ticket
	err := row.Scan(
		&t.ID,
		&t.Status,
		&t.ReportedBy,
		&t.AcceptedBy,
		&t.ValidatedBy,
		&t.Type,
		&t.Priority,
		&t.EstimatedSize,
		&t.Description,
		&t.Latitude,
		&t.Longitude,
		&t.BeforePhotos,
		&t.AfterPhotos,
		&t.CleaningStatus,
		&t.AcceptPoints,
		&t.CleanerPoints,
		&t.PointsAwarded,
		&t.ValidationMessage,
		&t.CreatedAt,
		&t.AcceptedAt,
		&t.CompletedAt,
		&t.UpdatedAt,
		&t.Version,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func cleaningStatusArg(cs *model.CleaningStatus) *string {
	if cs == nil {
		return nil
	}
	s := string(*cs)
	return &s
}

func photosArg(photos []string) []string {
	if photos == nil {
		return []string{}
	}
	return photos
}

// TicketRepository handles ticket persistence.
type TicketRepository struct {
	db DBTX
}

// NewTicketRepository creates a new TicketRepository instance.
func NewTicketRepository(db DBTX) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create inserts a newly reported ticket. t.ID must already be set.
// t is refreshed with the stored row.
func (r *TicketRepository) Create(ctx context.Context, t *model.Ticket) error {
	query := `
		INSERT INTO tickets (
			id, status, reported_by, type, priority, estimated_size,
			description, latitude, longitude, before_photos, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING ` + ticketColumns

	created, err := scanTicket(r.db.QueryRow(ctx, query,
		t.ID, string(t.Status), t.ReportedBy,
		string(t.Type), string(t.Priority), string(t.EstimatedSize),
		t.Description, t.Latitude, t.Longitude, photosArg(t.BeforePhotos), t.CreatedAt,
	))
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	*t = *created
	return nil
}

// GetByID retrieves a ticket by ID.
// Returns ErrNotFound if the ticket does not exist.
func (r *TicketRepository) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	t, err := scanTicket(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return t, nil
}

// Update writes every mutable column of t if t.Version is still current,
// bumping the version. t is refreshed with the stored row.
// Returns ErrVersionConflict if the ticket changed since it was read.
func (r *TicketRepository) Update(ctx context.Context, t *model.Ticket) error {
	query := `
		UPDATE tickets
		SET status = $3, accepted_by = $4, validated_by = $5,
			after_photos = $6, cleaning_status = $7,
			accept_points = $8, cleaner_points = $9, points_awarded = $10, validation_message = $11,
			accepted_at = $12, completed_at = $13,
			updated_at = NOW(), version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING ` + ticketColumns

	updated, err := scanTicket(r.db.QueryRow(ctx, query,
		t.ID, t.Version,
		string(t.Status), t.AcceptedBy, t.ValidatedBy,
		photosArg(t.AfterPhotos), cleaningStatusArg(t.CleaningStatus),
		t.AcceptPoints, t.CleanerPoints, t.PointsAwarded, t.ValidationMessage,
		t.AcceptedAt, t.CompletedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVersionConflict
		}
		return fmt.Errorf("failed to update ticket: %w", err)
	}

	*t = *updated
	return nil
}

// ListByStatus retrieves tickets in a status, newest first.
func (r *TicketRepository) ListByStatus(ctx context.Context, status model.TicketStatus, limit int) ([]*model.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2`

	return r.list(ctx, query, string(status), limit)
}

// ListByCleaner retrieves the tickets a user currently holds.
func (r *TicketRepository) ListByCleaner(ctx context.Context, userID int64, limit int) ([]*model.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE accepted_by = $1 AND status IN ('accepted', 'in_progress', 'validating')
		ORDER BY accepted_at DESC
		LIMIT $2`

	return r.list(ctx, query, userID, limit)
}

func (r *TicketRepository) list(ctx context.Context, query string, args ...any) ([]*model.Ticket, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}

	return tickets, nil
}
