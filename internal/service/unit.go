package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"cleanup-quest-bot/internal/gamification"
	"cleanup-quest-bot/internal/model"
)

// unit collects the profile changes of one operation so each touched
// profile is written back exactly once, at the end, with a version check.
type unit struct {
	tx    Tx
	now   time.Time
	today time.Time

	profiles map[int64]*model.Profile
	order    []int64
}

func newUnit(tx Tx, now time.Time, loc *time.Location) *unit {
	return &unit{
		tx:       tx,
		now:      now,
		today:    gamification.Date(now, loc),
		profiles: make(map[int64]*model.Profile),
	}
}

// profile loads (creating if needed) and caches the profile of userID.
func (u *unit) profile(ctx context.Context, userID int64) (*model.Profile, error) {
	if p, ok := u.profiles[userID]; ok {
		return p, nil
	}
	p, _, err := u.tx.GetOrCreateProfile(ctx, userID, "")
	if err != nil {
		return nil, storeErr(err, "load profile")
	}
	u.profiles[userID] = p
	u.order = append(u.order, userID)
	return p, nil
}

// award is the single points-delta path: it changes the total, recomputes
// the level and appends the ledger entry. Negative amounts are reversals.
func (u *unit) award(ctx context.Context, p *model.Profile, amount int64, kind string, ticketID, missionID *string, desc string) error {
	if amount == 0 {
		return nil
	}
	gamification.ApplyPoints(p, amount)

	entry := &model.PointsEntry{
		UserID:    p.UserID,
		Amount:    amount,
		Kind:      kind,
		TicketID:  ticketID,
		MissionID: missionID,
	}
	if desc != "" {
		entry.Description = &desc
	}
	if err := u.tx.AppendLedger(ctx, entry); err != nil {
		return storeErr(err, "append ledger")
	}
	return nil
}

// activity records a qualifying action for the streak tracker and pays
// any milestone bonus through the ledger.
func (u *unit) activity(ctx context.Context, p *model.Profile) error {
	res := gamification.RecordActivity(p, u.today)
	if res.Badge == "" {
		return nil
	}

	log.Info().
		Int64("user_id", p.UserID).
		Int("streak", res.Streak).
		Str("badge", res.Badge).
		Msg("Streak milestone reached")
	return u.award(ctx, p, res.BonusPoints, model.EntryStreakBonus, nil, nil, res.Badge)
}

// event appends the audit record of one applied transition.
func (u *unit) event(ctx context.Context, ticketID string, from, to model.TicketStatus, actor int64, message *string) error {
	e := &model.TicketEvent{
		TicketID:   ticketID,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actor,
		Message:    message,
	}
	if err := u.tx.AppendEvent(ctx, e); err != nil {
		return storeErr(err, "append event")
	}
	return nil
}

// flush writes every touched profile back.
func (u *unit) flush(ctx context.Context) error {
	for _, id := range u.order {
		if err := u.tx.UpdateProfile(ctx, u.profiles[id]); err != nil {
			return storeErr(err, "update profile")
		}
	}
	return nil
}
