package service

import (
	"context"
	"time"

	"cleanup-quest-bot/internal/model"
)

// RankingService handles ranking and leaderboard operations.
type RankingService struct {
	store      Store
	loc        *time.Location
	maxRetries int
	now        func() time.Time
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(store Store, settings Settings) *RankingService {
	return &RankingService{
		store:      store,
		loc:        settings.location(),
		maxRetries: settings.MaxRetries,
		now:        time.Now,
	}
}

// GetTopUsers retrieves the top users by cumulative points.
func (s *RankingService) GetTopUsers(ctx context.Context, limit int) ([]*model.Profile, error) {
	var top []*model.Profile
	err := runTx(ctx, s.store, s.maxRetries, "top users", func(tx Tx) error {
		var err error
		top, err = tx.TopProfiles(ctx, limit)
		return err
	})
	return top, err
}

// GetWeeklyLeaders ranks users by the net points earned since the start of
// the current week (Monday 00:00 in the engine timezone).
func (s *RankingService) GetWeeklyLeaders(ctx context.Context, limit int) ([]*model.LeaderRank, error) {
	since := WeekStart(s.now(), s.loc)
	var leaders []*model.LeaderRank
	err := runTx(ctx, s.store, s.maxRetries, "weekly leaders", func(tx Tx) error {
		var err error
		leaders, err = tx.PeriodLeaders(ctx, since, limit)
		return err
	})
	return leaders, err
}

// WeekStart returns Monday 00:00 of the week containing t, in loc.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return day.AddDate(0, 0, -offset)
}
