package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"cleanup-quest-bot/internal/model"
)

// Postgres error codes that mean "try the whole transaction again".
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// Store runs units of work against PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store instance.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// InTx runs fn inside one transaction. The transaction commits only if fn
// returns nil. Serialization failures and deadlocks surface as
// ErrVersionConflict so callers can retry.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := pgTx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Warn().Err(rbErr).Msg("Failed to roll back transaction")
		}
	}()

	if err := fn(newTx(pgTx)); err != nil {
		return retryable(err)
	}

	if err := pgTx.Commit(ctx); err != nil {
		return retryable(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func retryable(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrVersionConflict, pgErr.Message)
		}
	}
	return err
}

// Tx exposes every repository bound to one open transaction.
type Tx struct {
	tickets  *TicketRepository
	profiles *ProfileRepository
	missions *MissionRepository
	ledger   *LedgerRepository
	events   *EventRepository
}

func newTx(db DBTX) *Tx {
	return &Tx{
		tickets:  NewTicketRepository(db),
		profiles: NewProfileRepository(db),
		missions: NewMissionRepository(db),
		ledger:   NewLedgerRepository(db),
		events:   NewEventRepository(db),
	}
}

func (tx *Tx) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	return tx.tickets.GetByID(ctx, id)
}

func (tx *Tx) InsertTicket(ctx context.Context, t *model.Ticket) error {
	return tx.tickets.Create(ctx, t)
}

func (tx *Tx) UpdateTicket(ctx context.Context, t *model.Ticket) error {
	return tx.tickets.Update(ctx, t)
}

func (tx *Tx) ListTicketsByStatus(ctx context.Context, status model.TicketStatus, limit int) ([]*model.Ticket, error) {
	return tx.tickets.ListByStatus(ctx, status, limit)
}

func (tx *Tx) ListTicketsByCleaner(ctx context.Context, userID int64, limit int) ([]*model.Ticket, error) {
	return tx.tickets.ListByCleaner(ctx, userID, limit)
}

func (tx *Tx) GetProfile(ctx context.Context, userID int64) (*model.Profile, error) {
	return tx.profiles.GetByID(ctx, userID)
}

func (tx *Tx) GetOrCreateProfile(ctx context.Context, userID int64, username string) (*model.Profile, bool, error) {
	return tx.profiles.GetOrCreate(ctx, userID, username)
}

func (tx *Tx) UpdateProfile(ctx context.Context, p *model.Profile) error {
	return tx.profiles.Update(ctx, p)
}

func (tx *Tx) UpdateUsername(ctx context.Context, userID int64, username string) error {
	return tx.profiles.UpdateUsername(ctx, userID, username)
}

func (tx *Tx) TopProfiles(ctx context.Context, limit int) ([]*model.Profile, error) {
	return tx.profiles.GetTopUsers(ctx, limit)
}

func (tx *Tx) GetMission(ctx context.Context, id string) (*model.Mission, error) {
	return tx.missions.GetByID(ctx, id)
}

func (tx *Tx) CreateMission(ctx context.Context, m *model.Mission) error {
	return tx.missions.Create(ctx, m)
}

func (tx *Tx) ListActiveMissions(ctx context.Context) ([]*model.Mission, error) {
	return tx.missions.ListActive(ctx)
}

func (tx *Tx) ListActiveMissionsByAction(ctx context.Context, action model.ActionKind) ([]*model.Mission, error) {
	return tx.missions.ListActiveByAction(ctx, action)
}

func (tx *Tx) GetUserMission(ctx context.Context, userID int64, missionID string) (*model.UserMission, error) {
	return tx.missions.GetUserMission(ctx, userID, missionID)
}

func (tx *Tx) ListUserMissions(ctx context.Context, userID int64) ([]*model.UserMission, error) {
	return tx.missions.ListUserMissions(ctx, userID)
}

func (tx *Tx) InsertUserMission(ctx context.Context, um *model.UserMission) error {
	return tx.missions.InsertUserMission(ctx, um)
}

func (tx *Tx) UpdateUserMission(ctx context.Context, um *model.UserMission) error {
	return tx.missions.UpdateUserMission(ctx, um)
}

func (tx *Tx) AppendLedger(ctx context.Context, e *model.PointsEntry) error {
	return tx.ledger.Create(ctx, e)
}

func (tx *Tx) LedgerByUser(ctx context.Context, userID int64, limit int) ([]*model.PointsEntry, error) {
	return tx.ledger.GetByUserID(ctx, userID, limit)
}

func (tx *Tx) PeriodLeaders(ctx context.Context, since time.Time, limit int) ([]*model.LeaderRank, error) {
	return tx.ledger.GetPeriodLeaders(ctx, since, limit)
}

func (tx *Tx) AppendEvent(ctx context.Context, e *model.TicketEvent) error {
	return tx.events.Append(ctx, e)
}

func (tx *Tx) ListEvents(ctx context.Context, ticketID string) ([]*model.TicketEvent, error) {
	return tx.events.ListByTicket(ctx, ticketID)
}
