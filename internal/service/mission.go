package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"cleanup-quest-bot/internal/model"
	"cleanup-quest-bot/internal/repository"
)

// MissionService tracks per-user mission progress.
type MissionService struct {
	store      Store
	loc        *time.Location
	maxRetries int
	now        func() time.Time
}

// NewMissionService creates a new MissionService instance.
func NewMissionService(store Store, settings Settings) *MissionService {
	return &MissionService{
		store:      store,
		loc:        settings.location(),
		maxRetries: settings.MaxRetries,
		now:        time.Now,
	}
}

// IncrementProgress adds amount to the caller's progress on a mission.
// A mission that is already completed is left untouched and its current
// state is returned together with ErrAlreadyCompleted.
func (s *MissionService) IncrementProgress(ctx context.Context, missionID string, callerID int64, amount int) (*model.UserMission, error) {
	if amount <= 0 {
		return nil, invalid("amount must be positive, got %d", amount)
	}

	var (
		result  *model.UserMission
		already bool
	)
	err := runTx(ctx, s.store, s.maxRetries, "increment mission progress", func(tx Tx) error {
		result, already = nil, false

		m, err := tx.GetMission(ctx, missionID)
		if err != nil {
			return storeErr(err, "mission "+missionID)
		}
		if !m.Active {
			return storeErr(repository.ErrNotFound, "mission "+missionID)
		}

		u := newUnit(tx, s.now(), s.loc)
		um, err := advanceMission(ctx, u, m, callerID, amount)
		if errors.Is(err, ErrAlreadyCompleted) {
			result, already = um, true
			return nil
		}
		if err != nil {
			return err
		}
		result = um
		return u.flush(ctx)
	})
	if err != nil {
		return nil, err
	}
	if already {
		return result, ErrAlreadyCompleted
	}
	return result, nil
}

// ListForUser returns every active mission with the user's progress on it.
func (s *MissionService) ListForUser(ctx context.Context, userID int64) ([]*model.MissionProgress, error) {
	var out []*model.MissionProgress
	err := runTx(ctx, s.store, s.maxRetries, "list missions", func(tx Tx) error {
		missions, err := tx.ListActiveMissions(ctx)
		if err != nil {
			return err
		}
		progress, err := tx.ListUserMissions(ctx, userID)
		if err != nil {
			return err
		}

		byMission := make(map[string]*model.UserMission, len(progress))
		for _, um := range progress {
			byMission[um.MissionID] = um
		}

		out = make([]*model.MissionProgress, 0, len(missions))
		for _, m := range missions {
			um, ok := byMission[m.ID]
			if !ok {
				um = &model.UserMission{UserID: userID, MissionID: m.ID}
			}
			out = append(out, &model.MissionProgress{Mission: m, Progress: um})
		}
		return nil
	})
	return out, err
}

// CreateMission validates and stores a mission template.
func (s *MissionService) CreateMission(ctx context.Context, m *model.Mission) error {
	m.ID = strings.TrimSpace(m.ID)
	m.Title = strings.TrimSpace(m.Title)
	switch {
	case m.ID == "":
		return invalid("mission id is required")
	case m.Title == "":
		return invalid("mission title is required")
	case m.Goal <= 0:
		return invalid("goal must be positive, got %d", m.Goal)
	case m.Points < 0:
		return invalid("points must not be negative, got %d", m.Points)
	}
	if _, err := model.ParseMissionType(string(m.Type)); err != nil {
		return invalid("%v", err)
	}
	if m.Action != nil {
		if _, err := model.ParseActionKind(string(*m.Action)); err != nil {
			return invalid("%v", err)
		}
	}
	m.Active = true

	err := runTx(ctx, s.store, s.maxRetries, "create mission", func(tx Tx) error {
		return tx.CreateMission(ctx, m)
	})
	if err != nil {
		return err
	}

	log.Info().Str("mission_id", m.ID).Str("type", string(m.Type)).Int("goal", m.Goal).Msg("Mission created")
	return nil
}

// advanceMission is the progress rule shared by explicit increments and
// ticket actions. Progress is capped at the goal; reaching it completes the
// mission once and pays its reward through the unit's points path.
func advanceMission(ctx context.Context, u *unit, m *model.Mission, userID int64, amount int) (*model.UserMission, error) {
	// The profile must exist before a user_missions row can reference it.
	p, err := u.profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	um, err := u.tx.GetUserMission(ctx, userID, m.ID)
	isNew := false
	switch {
	case errors.Is(err, repository.ErrNotFound):
		um = &model.UserMission{UserID: userID, MissionID: m.ID}
		isNew = true
	case err != nil:
		return nil, storeErr(err, "load mission progress")
	}

	if um.Completed {
		return um, ErrAlreadyCompleted
	}

	um.Progress += amount
	if um.Progress >= m.Goal {
		um.Progress = m.Goal
		um.Completed = true
		completedAt := u.now
		um.CompletedAt = &completedAt

		p.Stats.MissionsCompleted++
		missionID := m.ID
		if err := u.award(ctx, p, m.Points, model.EntryMission, nil, &missionID, m.Title); err != nil {
			return nil, err
		}
		log.Info().Int64("user_id", userID).Str("mission_id", m.ID).Int64("points", m.Points).Msg("Mission completed")
	}

	if isNew {
		err = u.tx.InsertUserMission(ctx, um)
	} else {
		err = u.tx.UpdateUserMission(ctx, um)
	}
	if err != nil {
		return nil, storeErr(err, "save mission progress")
	}
	return um, nil
}

// trackAction advances every active mission bound to action by one.
func trackAction(ctx context.Context, u *unit, userID int64, action model.ActionKind) error {
	missions, err := u.tx.ListActiveMissionsByAction(ctx, action)
	if err != nil {
		return storeErr(err, "list missions")
	}
	for _, m := range missions {
		if _, err := advanceMission(ctx, u, m, userID, 1); err != nil && !errors.Is(err, ErrAlreadyCompleted) {
			return err
		}
	}
	return nil
}
