package gamification

import "cleanup-quest-bot/internal/model"

// levelThresholds[i] is the minimum points needed for level i+2.
var levelThresholds = []int64{50, 100, 300, 500, 1000, 1500, 2500, 4000}

// MaxLevel is the highest reachable level.
const MaxLevel = 9

// Level maps cumulative points to a level number (1..MaxLevel).
func Level(points int64) int {
	level := 1
	for _, threshold := range levelThresholds {
		if points < threshold {
			break
		}
		level++
	}
	return level
}

// NextLevelAt returns the points needed for the next level, or 0 at MaxLevel.
func NextLevelAt(points int64) int64 {
	for _, threshold := range levelThresholds {
		if points < threshold {
			return threshold
		}
	}
	return 0
}

// ApplyPoints adds delta to the profile and recomputes its level from the
// resulting total. It is the only place profile points change.
func ApplyPoints(p *model.Profile, delta int64) {
	p.Points += delta
	p.Level = Level(p.Points)
}
