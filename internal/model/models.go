// Package model defines the data models for the cleanup quest bot.
package model

import "time"

// Ticket represents a reported dirty point moving through the cleanup lifecycle.
type Ticket struct {
	ID                string          `db:"id"`
	Status            TicketStatus    `db:"status"`
	ReportedBy        int64           `db:"reported_by"`
	AcceptedBy        *int64          `db:"accepted_by"`
	ValidatedBy       *int64          `db:"validated_by"`
	Type              WasteType       `db:"type"`
	Priority          Priority        `db:"priority"`
	EstimatedSize     Size            `db:"estimated_size"`
	Description       string          `db:"description"`
	Latitude          float64         `db:"latitude"`
	Longitude         float64         `db:"longitude"`
	BeforePhotos      []string        `db:"before_photos"`
	AfterPhotos       []string        `db:"after_photos"`
	CleaningStatus    *CleaningStatus `db:"cleaning_status"`
	AcceptPoints      int64           `db:"accept_points"`
	CleanerPoints     int64           `db:"cleaner_points"`
	PointsAwarded     *PointsAwarded  `db:"points_awarded"`
	ValidationMessage *string         `db:"validation_message"`
	CreatedAt         time.Time       `db:"created_at"`
	AcceptedAt        *time.Time      `db:"accepted_at"`
	CompletedAt       *time.Time      `db:"completed_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
	Version           int64           `db:"version"`
}

// PointsAwarded is the breakdown recorded when a cleanup is approved.
type PointsAwarded struct {
	Cleaner   int64 `json:"cleaner"`
	Reporter  int64 `json:"reporter"`
	Validator int64 `json:"validator"`
}

// Profile holds the gamification state of a Telegram account.
type Profile struct {
	UserID           int64      `db:"user_id"`
	Username         string     `db:"username"`
	Points           int64      `db:"points"`
	Level            int        `db:"level"`
	Streak           int        `db:"streak"`
	LastActivityDate *time.Time `db:"last_activity_date"`
	Badges           []string   `db:"badges"`
	Stats            Stats
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
	Version          int64     `db:"version"`
}

// HasBadge reports whether the profile already holds the named badge.
func (p *Profile) HasBadge(name string) bool {
	for _, b := range p.Badges {
		if b == name {
			return true
		}
	}
	return false
}

// Stats are per-action counters of a profile.
type Stats struct {
	TicketsReported   int `db:"tickets_reported"`
	TicketsAccepted   int `db:"tickets_accepted"`
	TicketsCleaned    int `db:"tickets_cleaned"`
	TicketsValidated  int `db:"tickets_validated"`
	MissionsCompleted int `db:"missions_completed"`
	LikesGiven        int `db:"likes_given"`
	LikesReceived     int `db:"likes_received"`
	CommentsGiven     int `db:"comments_given"`
	CommentsReceived  int `db:"comments_received"`
}

// Mission is a goal template rewarding points once its goal is reached.
type Mission struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	Type        MissionType `db:"type"`
	Goal        int         `db:"goal"`
	Points      int64       `db:"points"`
	Action      *ActionKind `db:"action"`
	Active      bool        `db:"active"`
	CreatedAt   time.Time   `db:"created_at"`
}

// UserMission tracks one user's progress on one mission.
type UserMission struct {
	UserID      int64      `db:"user_id"`
	MissionID   string     `db:"mission_id"`
	Progress    int        `db:"progress"`
	Completed   bool       `db:"completed"`
	CompletedAt *time.Time `db:"completed_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	Version     int64      `db:"version"`
}

// MissionProgress pairs a mission with the caller's progress on it.
type MissionProgress struct {
	Mission  *Mission
	Progress *UserMission
}

// PointsEntry is one points delta in the ledger.
type PointsEntry struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Amount      int64     `db:"amount"`
	Kind        string    `db:"kind"`
	TicketID    *string   `db:"ticket_id"`
	MissionID   *string   `db:"mission_id"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// TicketEvent records one applied status transition.
type TicketEvent struct {
	ID         int64        `db:"id"`
	TicketID   string       `db:"ticket_id"`
	FromStatus TicketStatus `db:"from_status"`
	ToStatus   TicketStatus `db:"to_status"`
	ActorID    int64        `db:"actor_id"`
	Message    *string      `db:"message"`
	CreatedAt  time.Time    `db:"created_at"`
}

// LeaderRank is a user's points total over a period.
type LeaderRank struct {
	UserID   int64  `db:"user_id"`
	Username string `db:"username"`
	Points   int64  `db:"points"`
}

// Ledger entry kinds for categorizing points changes.
const (
	EntryReport         = "report"          // Ticket reported
	EntryAccept         = "accept"          // Ticket accepted
	EntryAcceptReversal = "accept_reversal" // Accept award taken back on abandon
	EntryClean          = "clean"           // Cleaning submitted
	EntryCleanReversal  = "clean_reversal"  // Cleaning award taken back on rejection
	EntryValidate       = "validate"        // Review performed by the reporter
	EntryStreakBonus    = "streak_bonus"    // Streak milestone reached
	EntryMission        = "mission"         // Mission completed
)
