package service

import (
	"context"
	"time"

	"cleanup-quest-bot/internal/model"
	"cleanup-quest-bot/internal/repository"
)

// Tx is the set of reads and conditional writes available inside one unit of work.
// Update methods compare-and-swap on the row version and fail with
// repository.ErrVersionConflict when the row moved underneath.
type Tx interface {
	GetTicket(ctx context.Context, id string) (*model.Ticket, error)
	InsertTicket(ctx context.Context, t *model.Ticket) error
	UpdateTicket(ctx context.Context, t *model.Ticket) error
	ListTicketsByStatus(ctx context.Context, status model.TicketStatus, limit int) ([]*model.Ticket, error)
	ListTicketsByCleaner(ctx context.Context, userID int64, limit int) ([]*model.Ticket, error)

	GetProfile(ctx context.Context, userID int64) (*model.Profile, error)
	GetOrCreateProfile(ctx context.Context, userID int64, username string) (*model.Profile, bool, error)
	UpdateProfile(ctx context.Context, p *model.Profile) error
	UpdateUsername(ctx context.Context, userID int64, username string) error
	TopProfiles(ctx context.Context, limit int) ([]*model.Profile, error)

	GetMission(ctx context.Context, id string) (*model.Mission, error)
	CreateMission(ctx context.Context, m *model.Mission) error
	ListActiveMissions(ctx context.Context) ([]*model.Mission, error)
	ListActiveMissionsByAction(ctx context.Context, action model.ActionKind) ([]*model.Mission, error)
	GetUserMission(ctx context.Context, userID int64, missionID string) (*model.UserMission, error)
	ListUserMissions(ctx context.Context, userID int64) ([]*model.UserMission, error)
	InsertUserMission(ctx context.Context, um *model.UserMission) error
	UpdateUserMission(ctx context.Context, um *model.UserMission) error

	AppendLedger(ctx context.Context, e *model.PointsEntry) error
	LedgerByUser(ctx context.Context, userID int64, limit int) ([]*model.PointsEntry, error)
	PeriodLeaders(ctx context.Context, since time.Time, limit int) ([]*model.LeaderRank, error)

	AppendEvent(ctx context.Context, e *model.TicketEvent) error
	ListEvents(ctx context.Context, ticketID string) ([]*model.TicketEvent, error)
}

// Store runs fn as one atomic unit of work.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// PhotoStore removes photo objects by key.
type PhotoStore interface {
	Delete(ctx context.Context, keys []string) error
}

type postgresStore struct {
	store *repository.Store
}

// NewPostgresStore adapts the pgx-backed repository store.
func NewPostgresStore(store *repository.Store) Store {
	return &postgresStore{store: store}
}

func (s *postgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.store.InTx(ctx, func(tx *repository.Tx) error {
		return fn(tx)
	})
}
