package repository

import (
	"context"
	"fmt"
	"time"

	"cleanup-quest-bot/internal/model"
)

// LedgerRepository handles the append-only points ledger.
type LedgerRepository struct {
	db DBTX
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Create appends a points entry. e.ID and e.CreatedAt are filled in.
func (r *LedgerRepository) Create(ctx context.Context, e *model.PointsEntry) error {
	const query = `
		INSERT INTO points_ledger (user_id, amount, kind, ticket_id, mission_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		e.UserID, e.Amount, e.Kind, e.TicketID, e.MissionID, e.Description,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}

	return nil
}

// GetByUserID retrieves a user's entries, newest first.
func (r *LedgerRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]*model.PointsEntry, error) {
	const query = `
		SELECT id, user_id, amount, kind, ticket_id, mission_id, description, created_at
		FROM points_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.PointsEntry
	for rows.Next() {
		var e model.PointsEntry
		err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Amount,
			&e.Kind,
			&e.TicketID,
			&e.MissionID,
			&e.Description,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}

// SumByTicket returns the net points a user holds from one ticket.
func (r *LedgerRepository) SumByTicket(ctx context.Context, userID int64, ticketID string) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0)
		FROM points_ledger
		WHERE user_id = $1 AND ticket_id = $2
	`

	var sum int64
	if err := r.db.QueryRow(ctx, query, userID, ticketID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return sum, nil
}

// GetPeriodLeaders ranks users by the net points they earned since a point in time.
// Users whose net is not positive are left out.
func (r *LedgerRepository) GetPeriodLeaders(ctx context.Context, since time.Time, limit int) ([]*model.LeaderRank, error) {
	const query = `
		SELECT l.user_id, p.username, SUM(l.amount) AS earned
		FROM points_ledger l
		JOIN profiles p ON l.user_id = p.user_id
		WHERE l.created_at >= $1
		GROUP BY l.user_id, p.username
		HAVING SUM(l.amount) > 0
		ORDER BY earned DESC, l.user_id
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get period leaders: %w", err)
	}
	defer rows.Close()

	var leaders []*model.LeaderRank
	for rows.Next() {
		var rank model.LeaderRank
		if err := rows.Scan(&rank.UserID, &rank.Username, &rank.Points); err != nil {
			return nil, fmt.Errorf("failed to scan leader: %w", err)
		}
		leaders = append(leaders, &rank)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaders: %w", err)
	}

	return leaders, nil
}
