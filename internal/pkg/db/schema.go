package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "profiles table",
		sql: `
		CREATE TABLE IF NOT EXISTS profiles (
			user_id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			points BIGINT NOT NULL DEFAULT 0,
			level INT NOT NULL DEFAULT 1,
			streak INT NOT NULL DEFAULT 0 CHECK (streak >= 0),
			last_activity_date DATE,
			badges TEXT[] NOT NULL DEFAULT '{}',
			tickets_reported INT NOT NULL DEFAULT 0,
			tickets_accepted INT NOT NULL DEFAULT 0,
			tickets_cleaned INT NOT NULL DEFAULT 0,
			tickets_validated INT NOT NULL DEFAULT 0,
			missions_completed INT NOT NULL DEFAULT 0,
			likes_given INT NOT NULL DEFAULT 0,
			likes_received INT NOT NULL DEFAULT 0,
			comments_given INT NOT NULL DEFAULT 0,
			comments_received INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			version BIGINT NOT NULL DEFAULT 1
		);
		CREATE INDEX IF NOT EXISTS idx_profiles_points ON profiles(points DESC);
		`,
	},
	{
		name: "tickets table",
		sql: `
		CREATE TABLE IF NOT EXISTS tickets (
			id UUID PRIMARY KEY,
			status VARCHAR(20) NOT NULL CHECK (status IN ('reported','accepted','in_progress','validating','completed','rejected')),
			reported_by BIGINT NOT NULL REFERENCES profiles(user_id),
			accepted_by BIGINT REFERENCES profiles(user_id),
			validated_by BIGINT REFERENCES profiles(user_id),
			type VARCHAR(20) NOT NULL,
			priority VARCHAR(10) NOT NULL,
			estimated_size VARCHAR(10) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			before_photos TEXT[] NOT NULL CHECK (cardinality(before_photos) >= 1),
			after_photos TEXT[] NOT NULL DEFAULT '{}',
			cleaning_status VARCHAR(10),
			accept_points BIGINT NOT NULL DEFAULT 0,
			cleaner_points BIGINT NOT NULL DEFAULT 0,
			points_awarded JSONB,
			validation_message TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			accepted_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			version BIGINT NOT NULL DEFAULT 1,
			CHECK (accepted_by IS NULL OR accepted_by <> reported_by),
			CHECK (validated_by IS NULL OR validated_by = reported_by)
		);
		CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_tickets_accepted_by ON tickets(accepted_by);
		`,
	},
	{
		name: "ticket_events table",
		sql: `
		CREATE TABLE IF NOT EXISTS ticket_events (
			id BIGSERIAL PRIMARY KEY,
			ticket_id UUID NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
			from_status VARCHAR(20) NOT NULL,
			to_status VARCHAR(20) NOT NULL,
			actor_id BIGINT NOT NULL,
			message TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_ticket_events_ticket ON ticket_events(ticket_id, id);
		`,
	},
	{
		name: "missions tables",
		sql: `
		CREATE TABLE IF NOT EXISTS missions (
			id VARCHAR(64) PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			type VARCHAR(10) NOT NULL CHECK (type IN ('daily','weekly','special')),
			goal INT NOT NULL CHECK (goal > 0),
			points BIGINT NOT NULL CHECK (points >= 0),
			action VARCHAR(20),
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_missions_action ON missions(action) WHERE active;

		CREATE TABLE IF NOT EXISTS user_missions (
			user_id BIGINT NOT NULL REFERENCES profiles(user_id) ON DELETE CASCADE,
			mission_id VARCHAR(64) NOT NULL REFERENCES missions(id) ON DELETE CASCADE,
			progress INT NOT NULL DEFAULT 0 CHECK (progress >= 0),
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			completed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			version BIGINT NOT NULL DEFAULT 1,
			PRIMARY KEY (user_id, mission_id)
		);
		`,
	},
	{
		name: "points_ledger table",
		sql: `
		CREATE TABLE IF NOT EXISTS points_ledger (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES profiles(user_id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			kind VARCHAR(30) NOT NULL,
			ticket_id UUID REFERENCES tickets(id) ON DELETE SET NULL,
			mission_id VARCHAR(64) REFERENCES missions(id) ON DELETE SET NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_points_ledger_user_time ON points_ledger(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_points_ledger_time ON points_ledger(created_at DESC);
		`,
	},
}

// Migrate creates every table the engine needs. Statements are idempotent.
func Migrate(ctx context.Context, db Execer) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Int("step", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
