package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"cleanup-quest-bot/internal/gamification"
	"cleanup-quest-bot/internal/lifecycle"
	"cleanup-quest-bot/internal/model"
)

// ReportInput describes a newly reported dirty point.
type ReportInput struct {
	// ID may be preset when photos were uploaded under the ticket's key.
	ID            string
	ReporterID    int64
	Type          model.WasteType
	Priority      model.Priority
	EstimatedSize model.Size
	Description   string
	Latitude      float64
	Longitude     float64
	BeforePhotos  []string
}

// CompleteInput is a cleaner's submission of a finished cleanup.
type CompleteInput struct {
	TicketID       string
	CallerID       int64
	AfterPhoto     string
	CleaningStatus model.CleaningStatus
}

// ValidateInput is the reporter's review of a submitted cleanup.
type ValidateInput struct {
	TicketID string
	CallerID int64
	Approved bool
	Message  string
}

// TicketService drives tickets through their lifecycle and applies the
// rewards each transition triggers. Every operation is one unit of work:
// the ticket, the affected profiles, mission progress, ledger and events
// commit together or not at all.
type TicketService struct {
	store        Store
	photos       PhotoStore
	rates        gamification.Rates
	loc          *time.Location
	maxRetries   int
	photoTimeout time.Duration
	now          func() time.Time
}

// NewTicketService creates a new TicketService instance.
// photos may be nil, in which case rejected after-photos are kept.
func NewTicketService(store Store, photos PhotoStore, settings Settings) *TicketService {
	return &TicketService{
		store:        store,
		photos:       photos,
		rates:        settings.Rates,
		loc:          settings.location(),
		maxRetries:   settings.MaxRetries,
		photoTimeout: settings.PhotoDeleteTimeout,
		now:          time.Now,
	}
}

// Report creates a ticket in status reported and rewards the reporter.
func (s *TicketService) Report(ctx context.Context, in ReportInput) (*model.Ticket, error) {
	if _, err := model.ParseWasteType(string(in.Type)); err != nil {
		return nil, invalid("%v", err)
	}
	if _, err := model.ParsePriority(string(in.Priority)); err != nil {
		return nil, invalid("%v", err)
	}
	if _, err := model.ParseSize(string(in.EstimatedSize)); err != nil {
		return nil, invalid("%v", err)
	}
	photos := make([]string, 0, len(in.BeforePhotos))
	for _, ph := range in.BeforePhotos {
		if ph = strings.TrimSpace(ph); ph != "" {
			photos = append(photos, ph)
		}
	}
	if len(photos) == 0 {
		return nil, invalid("at least one before photo is required")
	}
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, invalid("malformed ticket id %q", id)
	}

	var result *model.Ticket
	err := runTx(ctx, s.store, s.maxRetries, "report ticket", func(tx Tx) error {
		u := newUnit(tx, s.now(), s.loc)

		reporter, err := u.profile(ctx, in.ReporterID)
		if err != nil {
			return err
		}

		t := &model.Ticket{
			ID:            id,
			Status:        model.StatusReported,
			ReportedBy:    in.ReporterID,
			Type:          in.Type,
			Priority:      in.Priority,
			EstimatedSize: in.EstimatedSize,
			Description:   strings.TrimSpace(in.Description),
			Latitude:      in.Latitude,
			Longitude:     in.Longitude,
			BeforePhotos:  photos,
			CreatedAt:     u.now,
		}
		if err := tx.InsertTicket(ctx, t); err != nil {
			return storeErr(err, "insert ticket")
		}

		reporter.Stats.TicketsReported++
		if err := u.award(ctx, reporter, s.rates.ReportPoints(), model.EntryReport, &t.ID, nil, ""); err != nil {
			return err
		}
		if err := u.activity(ctx, reporter); err != nil {
			return err
		}
		if err := trackAction(ctx, u, in.ReporterID, model.ActionReport); err != nil {
			return err
		}
		if err := u.flush(ctx); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("ticket_id", result.ID).Int64("user_id", in.ReporterID).Msg("Ticket reported")
	return result, nil
}

// Accept assigns a reported ticket to the caller.
func (s *TicketService) Accept(ctx context.Context, ticketID string, callerID int64) (*model.Ticket, error) {
	var result *model.Ticket
	err := runTx(ctx, s.store, s.maxRetries, "accept ticket", func(tx Tx) error {
		t, err := loadTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if err := lifecycle.Check(t.Status, model.StatusAccepted); err != nil {
			return err
		}
		if callerID == t.ReportedBy {
			return forbidden("cannot accept own ticket")
		}

		u := newUnit(tx, s.now(), s.loc)
		// The cleaner's profile must exist before the ticket references it.
		p, err := u.profile(ctx, callerID)
		if err != nil {
			return err
		}

		from := t.Status
		cleaner := callerID
		acceptedAt := u.now
		t.Status = model.StatusAccepted
		t.AcceptedBy = &cleaner
		t.AcceptedAt = &acceptedAt
		t.AcceptPoints = s.rates.AcceptPoints()
		if err := tx.UpdateTicket(ctx, t); err != nil {
			return storeErr(err, "update ticket")
		}
		if err := u.event(ctx, t.ID, from, t.Status, callerID, nil); err != nil {
			return err
		}

		p.Stats.TicketsAccepted++
		if err := u.award(ctx, p, t.AcceptPoints, model.EntryAccept, &t.ID, nil, ""); err != nil {
			return err
		}
		if err := u.activity(ctx, p); err != nil {
			return err
		}
		if err := trackAction(ctx, u, callerID, model.ActionAccept); err != nil {
			return err
		}
		if err := u.flush(ctx); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("ticket_id", ticketID).Int64("user_id", callerID).Msg("Ticket accepted")
	return result, nil
}

// StartCleaning moves an accepted ticket to in_progress.
func (s *TicketService) StartCleaning(ctx context.Context, ticketID string, callerID int64) (*model.Ticket, error) {
	var result *model.Ticket
	err := runTx(ctx, s.store, s.maxRetries, "start cleaning", func(tx Tx) error {
		t, err := loadTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if err := lifecycle.Check(t.Status, model.StatusInProgress); err != nil {
			return err
		}
		if !isCleaner(t, callerID) {
			return forbidden("only the assigned cleaner can start cleaning")
		}

		u := newUnit(tx, s.now(), s.loc)
		from := t.Status
		t.Status = model.StatusInProgress
		if err := tx.UpdateTicket(ctx, t); err != nil {
			return storeErr(err, "update ticket")
		}
		if err := u.event(ctx, t.ID, from, t.Status, callerID, nil); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Abandon steps a ticket back: in_progress pauses to accepted, and an
// accepted ticket returns to the board with the accept award reversed.
func (s *TicketService) Abandon(ctx context.Context, ticketID string, callerID int64) (*model.Ticket, error) {
	var result *model.Ticket
	err := runTx(ctx, s.store, s.maxRetries, "abandon ticket", func(tx Tx) error {
		t, err := loadTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}

		var to model.TicketStatus
		switch t.Status {
		case model.StatusInProgress:
			to = model.StatusAccepted
		default:
			to = model.StatusReported
		}
		if err := lifecycle.Check(t.Status, to); err != nil {
			return err
		}
		if !isCleaner(t, callerID) {
			return forbidden("only the assigned cleaner can abandon")
		}

		u := newUnit(tx, s.now(), s.loc)
		from := t.Status
		t.Status = to
		var reversal int64
		if to == model.StatusReported {
			reversal = t.AcceptPoints
			t.AcceptedBy = nil
			t.AcceptedAt = nil
			t.AcceptPoints = 0
		}
		if err := tx.UpdateTicket(ctx, t); err != nil {
			return storeErr(err, "update ticket")
		}
		if err := u.event(ctx, t.ID, from, to, callerID, nil); err != nil {
			return err
		}

		if reversal != 0 {
			p, err := u.profile(ctx, callerID)
			if err != nil {
				return err
			}
			if err := u.award(ctx, p, -reversal, model.EntryAcceptReversal, &t.ID, nil, "abandoned"); err != nil {
				return err
			}
		}
		if err := u.flush(ctx); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("ticket_id", ticketID).Int64("user_id", callerID).Str("status", string(result.Status)).Msg("Ticket abandoned")
	return result, nil
}

// Complete records the cleaner's submission and grants the cleaning award
// up front; it is reversed if the reporter rejects the cleanup.
func (s *TicketService) Complete(ctx context.Context, in CompleteInput) (*model.Ticket, error) {
	if _, err := model.ParseCleaningStatus(string(in.CleaningStatus)); err != nil {
		return nil, invalid("%v", err)
	}
	afterPhoto := strings.TrimSpace(in.AfterPhoto)
	if afterPhoto == "" {
		return nil, invalid("an after photo is required")
	}

	var result *model.Ticket
	err := runTx(ctx, s.store, s.maxRetries, "complete ticket", func(tx Tx) error {
		t, err := loadTicket(ctx, tx, in.TicketID)
		if err != nil {
			return err
		}
		if !isCleaner(t, in.CallerID) {
			return forbidden("only the assigned cleaner can complete")
		}
		if in.CallerID == t.ReportedBy {
			return forbidden("cannot complete own ticket")
		}

		// accepted collapses through in_progress on the first cleaning action.
		var steps []model.TicketStatus
		switch t.Status {
		case model.StatusAccepted:
			steps = []model.TicketStatus{model.StatusInProgress, model.StatusValidating}
		case model.StatusInProgress:
			steps = []model.TicketStatus{model.StatusValidating}
		default:
			return lifecycle.Check(t.Status, model.StatusValidating)
		}
		if _, err := lifecycle.Path(t.Status, steps...); err != nil {
			return err
		}

		points, err := s.rates.CleaningPoints(t.Priority, t.EstimatedSize, in.CleaningStatus)
		if err != nil {
			return invalid("%v", err)
		}

		u := newUnit(tx, s.now(), s.loc)
		from := t.Status
		cs := in.CleaningStatus
		t.Status = model.StatusValidating
		t.AfterPhotos = []string{afterPhoto}
		t.CleaningStatus = &cs
		t.CleanerPoints = points
		if err := tx.UpdateTicket(ctx, t); err != nil {
			return storeErr(err, "update ticket")
		}
		for _, to := range steps {
			if err := u.event(ctx, t.ID, from, to, in.CallerID, nil); err != nil {
				return err
			}
			from = to
		}

		p, err := u.profile(ctx, in.CallerID)
		if err != nil {
			return err
		}
		p.Stats.TicketsCleaned++
		if err := u.award(ctx, p, points, model.EntryClean, &t.ID, nil, string(cs)); err != nil {
			return err
		}
		if err := u.activity(ctx, p); err != nil {
			return err
		}
		if err := trackAction(ctx, u, in.CallerID, model.ActionClean); err != nil {
			return err
		}
		if err := u.flush(ctx); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("ticket_id", in.TicketID).
		Int64("user_id", in.CallerID).
		Int64("points", result.CleanerPoints).
		Msg("Cleanup submitted")
	return result, nil
}

// Validate settles a submitted cleanup. Approval completes the ticket.
// Rejection reverses exactly what the cleaner was granted for this ticket,
// clears the assignment and reopens it; the after photos are then removed
// from the object store on a best-effort basis. The reporter earns the
// review bonus either way.
func (s *TicketService) Validate(ctx context.Context, in ValidateInput) (*model.Ticket, error) {
	var (
		result   *model.Ticket
		toDelete []string
	)
	err := runTx(ctx, s.store, s.maxRetries, "validate ticket", func(tx Tx) error {
		toDelete = nil

		t, err := loadTicket(ctx, tx, in.TicketID)
		if err != nil {
			return err
		}
		if in.CallerID != t.ReportedBy {
			return forbidden("only the reporter can validate")
		}

		steps := []model.TicketStatus{model.StatusCompleted}
		if !in.Approved {
			steps = []model.TicketStatus{model.StatusRejected, model.StatusReported}
		}
		if _, err := lifecycle.Path(t.Status, steps...); err != nil {
			return err
		}
		if t.AcceptedBy == nil {
			return invalid("ticket %s has no cleaner", t.ID)
		}

		u := newUnit(tx, s.now(), s.loc)
		from := t.Status
		cleanerID := *t.AcceptedBy
		validator := in.CallerID
		validatePoints := s.rates.ValidatePoints()
		var message *string
		if msg := strings.TrimSpace(in.Message); msg != "" {
			message = &msg
		}

		t.ValidatedBy = &validator
		t.ValidationMessage = message

		var acceptReversal, cleanReversal int64
		if in.Approved {
			t.Status = model.StatusCompleted
			if t.CompletedAt == nil {
				completedAt := u.now
				t.CompletedAt = &completedAt
			}
			t.PointsAwarded = &model.PointsAwarded{
				Cleaner:   t.CleanerPoints,
				Reporter:  0,
				Validator: validatePoints,
			}
		} else {
			acceptReversal, cleanReversal = t.AcceptPoints, t.CleanerPoints
			toDelete = t.AfterPhotos

			t.Status = model.StatusReported
			t.AcceptedBy = nil
			t.AcceptedAt = nil
			t.CleaningStatus = nil
			t.AfterPhotos = nil
			t.AcceptPoints = 0
			t.CleanerPoints = 0
		}
		if err := tx.UpdateTicket(ctx, t); err != nil {
			return storeErr(err, "update ticket")
		}
		for _, to := range steps {
			if err := u.event(ctx, t.ID, from, to, in.CallerID, message); err != nil {
				return err
			}
			from = to
		}

		reviewer, err := u.profile(ctx, in.CallerID)
		if err != nil {
			return err
		}
		reviewer.Stats.TicketsValidated++
		if err := u.award(ctx, reviewer, validatePoints, model.EntryValidate, &t.ID, nil, ""); err != nil {
			return err
		}
		if err := u.activity(ctx, reviewer); err != nil {
			return err
		}
		if err := trackAction(ctx, u, in.CallerID, model.ActionValidate); err != nil {
			return err
		}

		if !in.Approved {
			cleaner, err := u.profile(ctx, cleanerID)
			if err != nil {
				return err
			}
			if err := u.award(ctx, cleaner, -cleanReversal, model.EntryCleanReversal, &t.ID, nil, "rejected"); err != nil {
				return err
			}
			if err := u.award(ctx, cleaner, -acceptReversal, model.EntryAcceptReversal, &t.ID, nil, "rejected"); err != nil {
				return err
			}
		}

		if err := u.flush(ctx); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("ticket_id", in.TicketID).
		Int64("user_id", in.CallerID).
		Bool("approved", in.Approved).
		Msg("Cleanup validated")

	if len(toDelete) > 0 {
		s.deletePhotos(ctx, in.TicketID, toDelete)
	}
	return result, nil
}

// deletePhotos never fails the caller; the ticket is already reopened.
func (s *TicketService) deletePhotos(ctx context.Context, ticketID string, keys []string) {
	if s.photos == nil {
		return
	}
	timeout := s.photoTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := s.photos.Delete(ctx, keys); err != nil {
		log.Warn().Err(err).Str("ticket_id", ticketID).Strs("keys", keys).Msg("Failed to delete rejected photos")
	}
}

// Get returns a ticket by ID.
func (s *TicketService) Get(ctx context.Context, ticketID string) (*model.Ticket, error) {
	var result *model.Ticket
	err := runTx(ctx, s.store, s.maxRetries, "get ticket", func(tx Tx) error {
		t, err := loadTicket(ctx, tx, ticketID)
		result = t
		return err
	})
	return result, err
}

// History returns the transitions applied to a ticket, oldest first.
func (s *TicketService) History(ctx context.Context, ticketID string) ([]*model.TicketEvent, error) {
	var events []*model.TicketEvent
	err := runTx(ctx, s.store, s.maxRetries, "ticket history", func(tx Tx) error {
		if _, err := loadTicket(ctx, tx, ticketID); err != nil {
			return err
		}
		var err error
		events, err = tx.ListEvents(ctx, ticketID)
		return err
	})
	return events, err
}

// ListOpen returns tickets waiting for a cleaner, newest first.
func (s *TicketService) ListOpen(ctx context.Context, limit int) ([]*model.Ticket, error) {
	var tickets []*model.Ticket
	err := runTx(ctx, s.store, s.maxRetries, "list open tickets", func(tx Tx) error {
		var err error
		tickets, err = tx.ListTicketsByStatus(ctx, model.StatusReported, limit)
		return err
	})
	return tickets, err
}

// ListAssigned returns the tickets a cleaner currently holds.
func (s *TicketService) ListAssigned(ctx context.Context, userID int64, limit int) ([]*model.Ticket, error) {
	var tickets []*model.Ticket
	err := runTx(ctx, s.store, s.maxRetries, "list assigned tickets", func(tx Tx) error {
		var err error
		tickets, err = tx.ListTicketsByCleaner(ctx, userID, limit)
		return err
	})
	return tickets, err
}

func loadTicket(ctx context.Context, tx Tx, ticketID string) (*model.Ticket, error) {
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, invalid("malformed ticket id %q", ticketID)
	}
	t, err := tx.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, storeErr(err, "ticket "+ticketID)
	}
	return t, nil
}

func isCleaner(t *model.Ticket, userID int64) bool {
	return t.AcceptedBy != nil && *t.AcceptedBy == userID
}
