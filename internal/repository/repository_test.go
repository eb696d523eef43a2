// Package repository provides data access layer implementations.
// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"cleanup-quest-bot/internal/model"
	"cleanup-quest-bot/internal/pkg/db"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a migrated connection pool
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, db.Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

func newTestTicket(reporter int64) *model.Ticket {
	return &model.Ticket{
		ID:            uuid.NewString(),
		Status:        model.StatusReported,
		ReportedBy:    reporter,
		Type:          model.WastePlastic,
		Priority:      model.PriorityHigh,
		EstimatedSize: model.SizeLarge,
		Description:   "bags by the river",
		Latitude:      40.4168,
		Longitude:     -3.7038,
		BeforePhotos:  []string{"users/1/tickets/x/before/a.jpg"},
		CreatedAt:     time.Now().UTC(),
	}
}

// ============================================================================
// ProfileRepository Tests
// ============================================================================

func TestProfileRepository_GetOrCreate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProfileRepository(pool)
	ctx := context.Background()

	p, created, err := repo.GetOrCreate(ctx, 12345, "ana")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(0), p.Points)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, int64(1), p.Version)
	assert.Empty(t, p.Badges)

	p, created, err = repo.GetOrCreate(ctx, 12345, "ana")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(12345), p.UserID)

	_, err = repo.GetByID(ctx, 99999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfileRepository_UpdateVersionCheck(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProfileRepository(pool)
	ctx := context.Background()

	p, _, err := repo.GetOrCreate(ctx, 1, "ana")
	require.NoError(t, err)
	stale := *p

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	p.Points = 150
	p.Level = 3
	p.Streak = 2
	p.LastActivityDate = &day
	p.Badges = []string{"Constante"}
	p.Stats.TicketsReported = 3
	require.NoError(t, repo.Update(ctx, p))
	assert.Equal(t, int64(2), p.Version)

	stale.Points = 999
	assert.ErrorIs(t, repo.Update(ctx, &stale), ErrVersionConflict)

	got, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(150), got.Points)
	assert.Equal(t, []string{"Constante"}, got.Badges)
	assert.Equal(t, 3, got.Stats.TicketsReported)
	require.NotNil(t, got.LastActivityDate)
	assert.True(t, day.Equal(got.LastActivityDate.UTC()))
}

func TestProfileRepository_UpdateUsername(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProfileRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, 12345, "oldname")
	require.NoError(t, err)

	require.NoError(t, repo.UpdateUsername(ctx, 12345, "newname"))

	p, err := repo.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, "newname", p.Username)

	assert.ErrorIs(t, repo.UpdateUsername(ctx, 99999, "name"), ErrNotFound)
}

func TestProfileRepository_GetTopUsers(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProfileRepository(pool)
	ctx := context.Background()

	for id, points := range map[int64]int64{1: 300, 2: 100, 3: 500} {
		p, err := repo.Create(ctx, id, "user")
		require.NoError(t, err)
		p.Points = points
		require.NoError(t, repo.Update(ctx, p))
	}

	top, err := repo.GetTopUsers(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, int64(3), top[0].UserID)
	assert.Equal(t, int64(1), top[1].UserID)
	assert.Equal(t, int64(2), top[2].UserID)
}

// ============================================================================
// TicketRepository Tests
// ============================================================================

func TestTicketRepository_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	_, err := NewProfileRepository(pool).Create(ctx, 1, "reporter")
	require.NoError(t, err)

	repo := NewTicketRepository(pool)
	ticket := newTestTicket(1)
	require.NoError(t, repo.Create(ctx, ticket))
	assert.Equal(t, int64(1), ticket.Version)

	got, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReported, got.Status)
	assert.Equal(t, model.PriorityHigh, got.Priority)
	assert.Equal(t, ticket.BeforePhotos, got.BeforePhotos)
	assert.Empty(t, got.AfterPhotos)
	assert.Nil(t, got.AcceptedBy)
	assert.Nil(t, got.PointsAwarded)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTicketRepository_RejectsSelfAcceptAtSchemaLevel(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	_, err := NewProfileRepository(pool).Create(ctx, 1, "reporter")
	require.NoError(t, err)

	repo := NewTicketRepository(pool)
	ticket := newTestTicket(1)
	require.NoError(t, repo.Create(ctx, ticket))

	self := int64(1)
	ticket.Status = model.StatusAccepted
	ticket.AcceptedBy = &self
	assert.Error(t, repo.Update(ctx, ticket))
}

func TestTicketRepository_ConcurrentUpdateSingleWinner(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	profiles := NewProfileRepository(pool)
	for id := int64(1); id <= 6; id++ {
		_, err := profiles.Create(ctx, id, "user")
		require.NoError(t, err)
	}

	repo := NewTicketRepository(pool)
	ticket := newTestTicket(1)
	require.NoError(t, repo.Create(ctx, ticket))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for id := int64(2); id <= 6; id++ {
		wg.Add(1)
		go func(cleaner int64) {
			defer wg.Done()
			attempt := *ticket
			attempt.Status = model.StatusAccepted
			attempt.AcceptedBy = &cleaner
			attempt.AcceptPoints = 10
			err := repo.Update(ctx, &attempt)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrVersionConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 4, conflicts)

	got, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, got.Status)
	assert.Equal(t, int64(2), got.Version)
}

func TestTicketRepository_PointsAwardedRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	profiles := NewProfileRepository(pool)
	_, err := profiles.Create(ctx, 1, "reporter")
	require.NoError(t, err)
	_, err = profiles.Create(ctx, 2, "cleaner")
	require.NoError(t, err)

	repo := NewTicketRepository(pool)
	ticket := newTestTicket(1)
	require.NoError(t, repo.Create(ctx, ticket))

	cleaner, reporter := int64(2), int64(1)
	cs := model.CleaningComplete
	now := time.Now().UTC()
	ticket.Status = model.StatusCompleted
	ticket.AcceptedBy = &cleaner
	ticket.ValidatedBy = &reporter
	ticket.CleaningStatus = &cs
	ticket.AfterPhotos = []string{"after.jpg"}
	ticket.CleanerPoints = 600
	ticket.PointsAwarded = &model.PointsAwarded{Cleaner: 600, Reporter: 0, Validator: 25}
	ticket.CompletedAt = &now
	require.NoError(t, repo.Update(ctx, ticket))

	got, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PointsAwarded)
	assert.Equal(t, model.PointsAwarded{Cleaner: 600, Reporter: 0, Validator: 25}, *got.PointsAwarded)
	require.NotNil(t, got.CleaningStatus)
	assert.Equal(t, model.CleaningComplete, *got.CleaningStatus)

	completed, err := repo.ListByStatus(ctx, model.StatusCompleted, 10)
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}

// ============================================================================
// MissionRepository Tests
// ============================================================================

func TestMissionRepository_CreateAndProgress(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	_, err := NewProfileRepository(pool).Create(ctx, 1, "ana")
	require.NoError(t, err)

	repo := NewMissionRepository(pool)
	action := model.ActionClean
	m := &model.Mission{ID: "clean-3", Title: "Clean three", Type: model.MissionWeekly, Goal: 3, Points: 100, Action: &action, Active: true}
	require.NoError(t, repo.Create(ctx, m))
	assert.ErrorIs(t, repo.Create(ctx, &model.Mission{ID: "clean-3", Title: "dup", Type: model.MissionDaily, Goal: 1}), ErrDuplicate)

	byAction, err := repo.ListActiveByAction(ctx, model.ActionClean)
	require.NoError(t, err)
	require.Len(t, byAction, 1)
	require.NotNil(t, byAction[0].Action)
	assert.Equal(t, model.ActionClean, *byAction[0].Action)

	_, err = repo.GetUserMission(ctx, 1, "clean-3")
	assert.ErrorIs(t, err, ErrNotFound)

	um := &model.UserMission{UserID: 1, MissionID: "clean-3", Progress: 1}
	require.NoError(t, repo.InsertUserMission(ctx, um))
	assert.ErrorIs(t, repo.InsertUserMission(ctx, &model.UserMission{UserID: 1, MissionID: "clean-3"}), ErrVersionConflict)

	stale := *um
	um.Progress = 2
	require.NoError(t, repo.UpdateUserMission(ctx, um))
	assert.ErrorIs(t, repo.UpdateUserMission(ctx, &stale), ErrVersionConflict)

	got, err := repo.GetUserMission(ctx, 1, "clean-3")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Progress)
}

// ============================================================================
// LedgerRepository Tests
// ============================================================================

func TestLedgerRepository_PeriodLeaders(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	profiles := NewProfileRepository(pool)
	for id := int64(1); id <= 3; id++ {
		_, err := profiles.Create(ctx, id, "user")
		require.NoError(t, err)
	}

	tickets := NewTicketRepository(pool)
	ticket := newTestTicket(1)
	require.NoError(t, tickets.Create(ctx, ticket))

	ledger := NewLedgerRepository(pool)
	entries := []*model.PointsEntry{
		{UserID: 1, Amount: 50, Kind: model.EntryReport, TicketID: &ticket.ID},
		{UserID: 2, Amount: 10, Kind: model.EntryAccept, TicketID: &ticket.ID},
		{UserID: 2, Amount: 600, Kind: model.EntryClean, TicketID: &ticket.ID},
		{UserID: 2, Amount: -600, Kind: model.EntryCleanReversal, TicketID: &ticket.ID},
		{UserID: 3, Amount: 150, Kind: model.EntryStreakBonus},
	}
	for _, e := range entries {
		require.NoError(t, ledger.Create(ctx, e))
		assert.NotZero(t, e.ID)
	}

	leaders, err := ledger.GetPeriodLeaders(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, leaders, 3)
	assert.Equal(t, int64(3), leaders[0].UserID)
	assert.Equal(t, int64(150), leaders[0].Points)
	assert.Equal(t, int64(1), leaders[1].UserID)
	assert.Equal(t, int64(2), leaders[2].UserID)
	assert.Equal(t, int64(10), leaders[2].Points)

	net, err := ledger.SumByTicket(ctx, 2, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), net)

	history, err := ledger.GetByUserID(ctx, 2, 10)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

// ============================================================================
// Store Tests
// ============================================================================

func TestStore_InTxRollsBackOnError(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)
	boom := errors.New("boom")

	err := store.InTx(ctx, func(tx *Tx) error {
		if _, _, err := tx.GetOrCreateProfile(ctx, 7, "ghost"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = NewProfileRepository(pool).GetByID(ctx, 7)
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.InTx(ctx, func(tx *Tx) error {
		p, _, err := tx.GetOrCreateProfile(ctx, 7, "ghost")
		if err != nil {
			return err
		}
		ticket := newTestTicket(p.UserID)
		if err := tx.InsertTicket(ctx, ticket); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, &model.TicketEvent{
			TicketID:   ticket.ID,
			FromStatus: model.StatusReported,
			ToStatus:   model.StatusReported,
			ActorID:    p.UserID,
		})
	})
	require.NoError(t, err)

	open, err := NewTicketRepository(pool).ListByStatus(ctx, model.StatusReported, 10)
	require.NoError(t, err)
	require.Len(t, open, 1)

	events, err := NewEventRepository(pool).ListByTicket(ctx, open[0].ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSchemaHealth(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	h, err := db.CheckHealth(ctx, pool)
	require.NoError(t, err)
	assert.True(t, h.Ready())
	assert.GreaterOrEqual(t, h.TotalConns, int32(1))

	_, err = pool.Exec(ctx, `DROP TABLE points_ledger`)
	require.NoError(t, err)

	h, err = db.CheckHealth(ctx, pool)
	require.NoError(t, err)
	assert.False(t, h.Ready())
	assert.Equal(t, []string{"points_ledger"}, h.MissingTables)
}
