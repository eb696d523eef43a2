package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"cleanup-quest-bot/internal/model"
)

// ErrDuplicate is returned when a row with the same key already exists.
var ErrDuplicate = errors.New("record already exists")

const missionColumns = `id, title, description, type, goal, points, action, active, created_at`

const userMissionColumns = `user_id, mission_id, progress, completed, completed_at, created_at, updated_at, version`

func scanMission(row pgx.Row) (*model.Mission, error) {
	var m model.Mission
	err := row.Scan(
		&m.ID,
		&m.Title,
		&m.Description,
		&m.Type,
		&m.Goal,
		&m.Points,
		&m.Action,
		&m.Active,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanUserMission(row pgx.Row) (*model.UserMission, error) {
	var um model.UserMission
	err := row.Scan(
		&um.UserID,
		&um.MissionID,
		&um.Progress,
		&um.Completed,
		&um.CompletedAt,
		&um.CreatedAt,
		&um.UpdatedAt,
		&um.Version,
	)
	if err != nil {
		return nil, err
	}
	return &um, nil
}

func actionArg(a *model.ActionKind) *string {
	if a == nil {
		return nil
	}
	s := string(*a)
	return &s
}

// MissionRepository handles missions and per-user mission progress.
type MissionRepository struct {
	db DBTX
}

// NewMissionRepository creates a new MissionRepository instance.
func NewMissionRepository(db DBTX) *MissionRepository {
	return &MissionRepository{db: db}
}

// Create inserts a mission template.
// Returns ErrDuplicate if the mission ID is taken.
func (r *MissionRepository) Create(ctx context.Context, m *model.Mission) error {
	query := `
		INSERT INTO missions (id, title, description, type, goal, points, action, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO NOTHING
		RETURNING ` + missionColumns

	created, err := scanMission(r.db.QueryRow(ctx, query,
		m.ID, m.Title, m.Description, string(m.Type), m.Goal, m.Points, actionArg(m.Action), m.Active,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create mission: %w", err)
	}

	*m = *created
	return nil
}

// GetByID retrieves a mission by ID.
// Returns ErrNotFound if the mission does not exist.
func (r *MissionRepository) GetByID(ctx context.Context, id string) (*model.Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM missions WHERE id = $1`

	m, err := scanMission(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}
	return m, nil
}

// ListActive retrieves every active mission.
func (r *MissionRepository) ListActive(ctx context.Context) ([]*model.Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM missions WHERE active ORDER BY type, id`
	return r.list(ctx, query)
}

// ListActiveByAction retrieves the active missions advanced by a ticket action.
func (r *MissionRepository) ListActiveByAction(ctx context.Context, action model.ActionKind) ([]*model.Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM missions WHERE active AND action = $1 ORDER BY id`
	return r.list(ctx, query, string(action))
}

func (r *MissionRepository) list(ctx context.Context, query string, args ...any) ([]*model.Mission, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	defer rows.Close()

	var missions []*model.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mission: %w", err)
		}
		missions = append(missions, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating missions: %w", err)
	}

	return missions, nil
}

// GetUserMission retrieves a user's progress on a mission.
// Returns ErrNotFound if the user never progressed on it.
func (r *MissionRepository) GetUserMission(ctx context.Context, userID int64, missionID string) (*model.UserMission, error) {
	query := `SELECT ` + userMissionColumns + ` FROM user_missions WHERE user_id = $1 AND mission_id = $2`

	um, err := scanUserMission(r.db.QueryRow(ctx, query, userID, missionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user mission: %w", err)
	}
	return um, nil
}

// ListUserMissions retrieves every progress row of a user.
func (r *MissionRepository) ListUserMissions(ctx context.Context, userID int64) ([]*model.UserMission, error) {
	query := `SELECT ` + userMissionColumns + ` FROM user_missions WHERE user_id = $1`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user missions: %w", err)
	}
	defer rows.Close()

	var ums []*model.UserMission
	for rows.Next() {
		um, err := scanUserMission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user mission: %w", err)
		}
		ums = append(ums, um)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user missions: %w", err)
	}

	return ums, nil
}

// InsertUserMission stores the first progress row of a user on a mission.
// Returns ErrVersionConflict if a concurrent writer inserted it first.
func (r *MissionRepository) InsertUserMission(ctx context.Context, um *model.UserMission) error {
	query := `
		INSERT INTO user_missions (user_id, mission_id, progress, completed, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (user_id, mission_id) DO NOTHING
		RETURNING ` + userMissionColumns

	created, err := scanUserMission(r.db.QueryRow(ctx, query,
		um.UserID, um.MissionID, um.Progress, um.Completed, um.CompletedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVersionConflict
		}
		return fmt.Errorf("failed to insert user mission: %w", err)
	}

	*um = *created
	return nil
}

// UpdateUserMission writes progress if um.Version is still current.
// Returns ErrVersionConflict if the row changed since it was read.
func (r *MissionRepository) UpdateUserMission(ctx context.Context, um *model.UserMission) error {
	query := `
		UPDATE user_missions
		SET progress = $4, completed = $5, completed_at = $6,
			updated_at = NOW(), version = version + 1
		WHERE user_id = $1 AND mission_id = $2 AND version = $3
		RETURNING ` + userMissionColumns

	updated, err := scanUserMission(r.db.QueryRow(ctx, query,
		um.UserID, um.MissionID, um.Version, um.Progress, um.Completed, um.CompletedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVersionConflict
		}
		return fmt.Errorf("failed to update user mission: %w", err)
	}

	*um = *updated
	return nil
}
