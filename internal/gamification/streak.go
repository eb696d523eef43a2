package gamification

import (
	"time"

	"cleanup-quest-bot/internal/model"
)

// Milestone is a streak length that pays a one-time bonus and badge.
type Milestone struct {
	Days   int
	Points int64
	Badge  string
}

// Milestones lists every streak milestone in ascending order.
var Milestones = []Milestone{
	{Days: 3, Points: 50, Badge: "Constante"},
	{Days: 7, Points: 150, Badge: "Comprometido"},
	{Days: 14, Points: 300, Badge: "Dedicado"},
	{Days: 30, Points: 750, Badge: "Imparable"},
	{Days: 60, Points: 1500, Badge: "Guardián Verde"},
}

// StreakResult is the outcome of recording one qualifying activity.
type StreakResult struct {
	Streak       int
	LastActivity time.Time
	BonusPoints  int64
	Badge        string
	// Changed is false for same-day activity, where nothing is written.
	Changed bool
}

// Date truncates t to its calendar day in loc.
func Date(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts calendar days from a to b; both must come from Date.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// NextStreak computes the streak after an activity on day today.
// hasBadge reports whether the user already holds a milestone badge.
func NextStreak(lastActivity *time.Time, streak int, today time.Time, hasBadge func(string) bool) StreakResult {
	if lastActivity != nil {
		gap := daysBetween(*lastActivity, today)
		if gap <= 0 {
			return StreakResult{Streak: streak, LastActivity: *lastActivity}
		}
		if gap == 1 {
			res := StreakResult{Streak: streak + 1, LastActivity: today, Changed: true}
			for _, m := range Milestones {
				if m.Days == res.Streak && !hasBadge(m.Badge) {
					res.BonusPoints = m.Points
					res.Badge = m.Badge
				}
			}
			return res
		}
	}
	return StreakResult{Streak: 1, LastActivity: today, Changed: true}
}

// RecordActivity applies an activity on day today to the profile's streak,
// last activity date and badges. The milestone bonus in the result is not
// added to the profile; the caller pays it through its points path.
func RecordActivity(p *model.Profile, today time.Time) StreakResult {
	res := NextStreak(p.LastActivityDate, p.Streak, today, p.HasBadge)
	if !res.Changed {
		return res
	}
	p.Streak = res.Streak
	last := res.LastActivity
	p.LastActivityDate = &last
	if res.Badge != "" {
		p.Badges = append(p.Badges, res.Badge)
	}
	return res
}
