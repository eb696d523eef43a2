package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"cleanup-quest-bot/internal/model"
)

const profileColumns = `
	user_id, username, points, level, streak, last_activity_date, badges,
	tickets_reported, tickets_accepted, tickets_cleaned, tickets_validated, missions_completed,
	likes_given, likes_received, comments_given, comments_received,
	created_at, updated_at, version`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var p model.Profile
	err := row.Scan(
		&p.UserID,
		&p.Username,
		&p.Points,
		&p.Level,
		&p.Streak,
		&p.LastActivityDate,
		&p.Badges,
		&p.Stats.TicketsReported,
		&p.Stats.TicketsAccepted,
		&p.Stats.TicketsCleaned,
		&p.Stats.TicketsValidated,
		&p.Stats.MissionsCompleted,
		&p.Stats.LikesGiven,
		&p.Stats.LikesReceived,
		&p.Stats.CommentsGiven,
		&p.Stats.CommentsReceived,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Version,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ProfileRepository handles profile persistence.
type ProfileRepository struct {
	db DBTX
}

// NewProfileRepository creates a new ProfileRepository instance.
func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create creates a new profile with zero points at level 1.
func (r *ProfileRepository) Create(ctx context.Context, userID int64, username string) (*model.Profile, error) {
	query := `
		INSERT INTO profiles (user_id, username, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING ` + profileColumns

	p, err := scanProfile(r.db.QueryRow(ctx, query, userID, username))
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return p, nil
}

// GetByID retrieves a profile by Telegram user ID.
// Returns ErrNotFound if the profile does not exist.
func (r *ProfileRepository) GetByID(ctx context.Context, userID int64) (*model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`

	p, err := scanProfile(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// GetOrCreate retrieves a profile, creating an empty one if it doesn't exist.
// Safe to call concurrently and inside a transaction.
func (r *ProfileRepository) GetOrCreate(ctx context.Context, userID int64, username string) (*model.Profile, bool, error) {
	query := `
		INSERT INTO profiles (user_id, username, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
		RETURNING ` + profileColumns

	p, err := scanProfile(r.db.QueryRow(ctx, query, userID, username))
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create profile: %w", err)
	}

	// Row already existed
	p, err = r.GetByID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return p, false, nil
}

// Update writes the gamification state of p if its version is still current.
// On success p is refreshed with the stored row (new version, updated_at).
// Returns ErrVersionConflict if another writer got there first.
func (r *ProfileRepository) Update(ctx context.Context, p *model.Profile) error {
	query := `
		UPDATE profiles
		SET points = $3, level = $4, streak = $5, last_activity_date = $6, badges = $7,
			tickets_reported = $8, tickets_accepted = $9, tickets_cleaned = $10,
			tickets_validated = $11, missions_completed = $12,
			likes_given = $13, likes_received = $14, comments_given = $15, comments_received = $16,
			updated_at = NOW(), version = version + 1
		WHERE user_id = $1 AND version = $2
		RETURNING ` + profileColumns

	badges := p.Badges
	if badges == nil {
		badges = []string{}
	}

	updated, err := scanProfile(r.db.QueryRow(ctx, query,
		p.UserID, p.Version,
		p.Points, p.Level, p.Streak, p.LastActivityDate, badges,
		p.Stats.TicketsReported, p.Stats.TicketsAccepted, p.Stats.TicketsCleaned,
		p.Stats.TicketsValidated, p.Stats.MissionsCompleted,
		p.Stats.LikesGiven, p.Stats.LikesReceived, p.Stats.CommentsGiven, p.Stats.CommentsReceived,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVersionConflict
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}

	*p = *updated
	return nil
}

// UpdateUsername updates a profile's display name.
// This is useful when a user changes their Telegram username.
func (r *ProfileRepository) UpdateUsername(ctx context.Context, userID int64, username string) error {
	const query = `
		UPDATE profiles
		SET username = $2, updated_at = NOW()
		WHERE user_id = $1
	`

	result, err := r.db.Exec(ctx, query, userID, username)
	if err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// GetTopUsers retrieves the top N profiles by points.
func (r *ProfileRepository) GetTopUsers(ctx context.Context, limit int) ([]*model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY points DESC, user_id LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}
	defer rows.Close()

	var profiles []*model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}

	return profiles, nil
}
