package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"cleanup-quest-bot/internal/gamification"
	"cleanup-quest-bot/internal/model"
)

// ProfileService handles user profile operations.
type ProfileService struct {
	store      Store
	maxRetries int
}

// NewProfileService creates a new ProfileService instance.
func NewProfileService(store Store, settings Settings) *ProfileService {
	return &ProfileService{store: store, maxRetries: settings.MaxRetries}
}

// ProfileCard is a profile together with its progress toward the next level.
type ProfileCard struct {
	Profile     *model.Profile
	NextLevelAt int64
}

// EnsureProfile ensures a profile exists, creating one if necessary.
// Returns the profile and whether it was newly created.
func (s *ProfileService) EnsureProfile(ctx context.Context, userID int64, username string) (*model.Profile, bool, error) {
	var (
		p       *model.Profile
		created bool
	)
	err := runTx(ctx, s.store, s.maxRetries, "ensure profile", func(tx Tx) error {
		var err error
		p, created, err = tx.GetOrCreateProfile(ctx, userID, username)
		if err != nil {
			return err
		}

		// Update username if it changed
		if !created && username != "" && p.Username != username {
			if err := tx.UpdateUsername(ctx, userID, username); err != nil {
				return err
			}
			p.Username = username
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		log.Info().Int64("user_id", userID).Str("username", username).Msg("Profile created")
	}
	return p, created, nil
}

// GetProfile returns a profile card.
func (s *ProfileService) GetProfile(ctx context.Context, userID int64) (*ProfileCard, error) {
	var card *ProfileCard
	err := runTx(ctx, s.store, s.maxRetries, "get profile", func(tx Tx) error {
		p, err := tx.GetProfile(ctx, userID)
		if err != nil {
			return err
		}
		card = &ProfileCard{Profile: p, NextLevelAt: gamification.NextLevelAt(p.Points)}
		return nil
	})
	return card, err
}

// History returns a user's most recent points entries.
func (s *ProfileService) History(ctx context.Context, userID int64, limit int) ([]*model.PointsEntry, error) {
	var entries []*model.PointsEntry
	err := runTx(ctx, s.store, s.maxRetries, "points history", func(tx Tx) error {
		var err error
		entries, err = tx.LedgerByUser(ctx, userID, limit)
		return err
	})
	return entries, err
}

// StreakAlive reports whether the streak still counts on day now, i.e. the
// last activity was today or yesterday in loc.
func StreakAlive(p *model.Profile, now time.Time, loc *time.Location) bool {
	if p.LastActivityDate == nil || p.Streak == 0 {
		return false
	}
	today := gamification.Date(now, loc)
	return !p.LastActivityDate.Before(today.AddDate(0, 0, -1))
}
