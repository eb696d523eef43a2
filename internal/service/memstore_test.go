package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"cleanup-quest-bot/internal/model"
	"cleanup-quest-bot/internal/repository"
)

// memStore is an in-memory Store with optimistic concurrency: a transaction
// buffers its writes and commits only if every row it wrote still has the
// version it was based on.
type memStore struct {
	mu sync.Mutex

	tickets      map[string]model.Ticket
	profiles     map[int64]model.Profile
	missions     map[string]model.Mission
	userMissions map[umKey]model.UserMission
	ledger       []model.PointsEntry
	events       []model.TicketEvent
	nextID       int64

	now func() time.Time
	// beforeCommit runs under the lock right before a commit is validated.
	beforeCommit func(s *memStore)
	commits      int
	conflicts    int
}

type umKey struct {
	userID    int64
	missionID string
}

func newMemStore() *memStore {
	return &memStore{
		tickets:      make(map[string]model.Ticket),
		profiles:     make(map[int64]model.Profile),
		missions:     make(map[string]model.Mission),
		userMissions: make(map[umKey]model.UserMission),
		now:          time.Now,
	}
}

func (s *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memTx{
		s:            s,
		tickets:      make(map[string]model.Ticket),
		profiles:     make(map[int64]model.Profile),
		missions:     make(map[string]model.Mission),
		userMissions: make(map[umKey]model.UserMission),
		ticketBase:   make(map[string]int64),
		profileBase:  make(map[int64]int64),
		umBase:       make(map[umKey]int64),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *memStore) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.beforeCommit != nil {
		hook := s.beforeCommit
		s.beforeCommit = nil
		hook(s)
	}

	for id, base := range tx.ticketBase {
		if s.tickets[id].Version != base {
			s.conflicts++
			return repository.ErrVersionConflict
		}
	}
	for id, base := range tx.profileBase {
		if s.profiles[id].Version != base {
			s.conflicts++
			return repository.ErrVersionConflict
		}
	}
	for k, base := range tx.umBase {
		if s.userMissions[k].Version != base {
			s.conflicts++
			return repository.ErrVersionConflict
		}
	}
	for id := range tx.missions {
		if _, ok := s.missions[id]; ok {
			return repository.ErrDuplicate
		}
	}

	for id, t := range tx.tickets {
		s.tickets[id] = t
	}
	for id, p := range tx.profiles {
		s.profiles[id] = p
	}
	for id, m := range tx.missions {
		s.missions[id] = m
	}
	for k, um := range tx.userMissions {
		s.userMissions[k] = um
	}
	for _, e := range tx.ledger {
		s.nextID++
		e.ID = s.nextID
		s.ledger = append(s.ledger, e)
	}
	for _, e := range tx.events {
		s.nextID++
		e.ID = s.nextID
		s.events = append(s.events, e)
	}
	s.commits++
	return nil
}

// Direct accessors used by assertions.

func (s *memStore) ticket(id string) model.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTicket(s.tickets[id])
}

func (s *memStore) profile(id int64) model.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneProfile(s.profiles[id])
}

func (s *memStore) putProfile(p model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Version == 0 {
		p.Version = 1
	}
	s.profiles[p.UserID] = cloneProfile(p)
}

func (s *memStore) putMission(m model.Mission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missions[m.ID] = m
}

func (s *memStore) ledgerFor(userID int64) []model.PointsEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PointsEntry
	for _, e := range s.ledger {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func (s *memStore) eventsFor(ticketID string) []model.TicketEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TicketEvent
	for _, e := range s.events {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out
}

func cloneTicket(t model.Ticket) model.Ticket {
	t.BeforePhotos = append([]string(nil), t.BeforePhotos...)
	t.AfterPhotos = append([]string(nil), t.AfterPhotos...)
	if t.AcceptedBy != nil {
		v := *t.AcceptedBy
		t.AcceptedBy = &v
	}
	if t.ValidatedBy != nil {
		v := *t.ValidatedBy
		t.ValidatedBy = &v
	}
	if t.CleaningStatus != nil {
		v := *t.CleaningStatus
		t.CleaningStatus = &v
	}
	if t.PointsAwarded != nil {
		v := *t.PointsAwarded
		t.PointsAwarded = &v
	}
	return t
}

func cloneProfile(p model.Profile) model.Profile {
	p.Badges = append([]string(nil), p.Badges...)
	if p.LastActivityDate != nil {
		v := *p.LastActivityDate
		p.LastActivityDate = &v
	}
	return p
}

// memTx buffers writes; reads see the transaction's own writes first.
type memTx struct {
	s *memStore

	tickets      map[string]model.Ticket
	profiles     map[int64]model.Profile
	missions     map[string]model.Mission
	userMissions map[umKey]model.UserMission
	ledger       []model.PointsEntry
	events       []model.TicketEvent

	// committed version each written row was based on (0 = must not exist)
	ticketBase  map[string]int64
	profileBase map[int64]int64
	umBase      map[umKey]int64
}

func (tx *memTx) viewTicket(id string) (model.Ticket, bool) {
	if t, ok := tx.tickets[id]; ok {
		return t, true
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	t, ok := tx.s.tickets[id]
	return t, ok
}

func (tx *memTx) viewProfile(id int64) (model.Profile, bool) {
	if p, ok := tx.profiles[id]; ok {
		return p, true
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	p, ok := tx.s.profiles[id]
	return p, ok
}

func (tx *memTx) viewUserMission(k umKey) (model.UserMission, bool) {
	if um, ok := tx.userMissions[k]; ok {
		return um, true
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	um, ok := tx.s.userMissions[k]
	return um, ok
}

func (tx *memTx) stamp() time.Time {
	return tx.s.now().UTC()
}

func (tx *memTx) GetTicket(_ context.Context, id string) (*model.Ticket, error) {
	t, ok := tx.viewTicket(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := cloneTicket(t)
	return &c, nil
}

func (tx *memTx) InsertTicket(_ context.Context, t *model.Ticket) error {
	if _, ok := tx.viewTicket(t.ID); ok {
		return errors.New("duplicate ticket id")
	}
	if _, ok := tx.viewProfile(t.ReportedBy); !ok {
		return errors.New("reporter profile missing")
	}
	row := cloneTicket(*t)
	row.Version = 1
	row.UpdatedAt = tx.stamp()
	tx.tickets[t.ID] = row
	tx.ticketBase[t.ID] = 0
	*t = cloneTicket(row)
	return nil
}

func (tx *memTx) UpdateTicket(_ context.Context, t *model.Ticket) error {
	cur, ok := tx.viewTicket(t.ID)
	if !ok || cur.Version != t.Version {
		return repository.ErrVersionConflict
	}
	if t.AcceptedBy != nil && *t.AcceptedBy == t.ReportedBy {
		return errors.New("check constraint: accepted_by <> reported_by")
	}
	if t.AcceptedBy != nil {
		if _, ok := tx.viewProfile(*t.AcceptedBy); !ok {
			return errors.New("foreign key: accepted_by")
		}
	}
	if _, based := tx.ticketBase[t.ID]; !based {
		tx.ticketBase[t.ID] = cur.Version
	}
	row := cloneTicket(*t)
	row.Version++
	row.UpdatedAt = tx.stamp()
	tx.tickets[t.ID] = row
	*t = cloneTicket(row)
	return nil
}

func (tx *memTx) allTickets() []model.Ticket {
	tx.s.mu.Lock()
	merged := make(map[string]model.Ticket, len(tx.s.tickets))
	for id, t := range tx.s.tickets {
		merged[id] = t
	}
	tx.s.mu.Unlock()
	for id, t := range tx.tickets {
		merged[id] = t
	}
	out := make([]model.Ticket, 0, len(merged))
	for _, t := range merged {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (tx *memTx) ListTicketsByStatus(_ context.Context, status model.TicketStatus, limit int) ([]*model.Ticket, error) {
	var out []*model.Ticket
	for _, t := range tx.allTickets() {
		if t.Status == status && len(out) < limit {
			c := cloneTicket(t)
			out = append(out, &c)
		}
	}
	return out, nil
}

func (tx *memTx) ListTicketsByCleaner(_ context.Context, userID int64, limit int) ([]*model.Ticket, error) {
	var out []*model.Ticket
	for _, t := range tx.allTickets() {
		held := t.Status == model.StatusAccepted || t.Status == model.StatusInProgress || t.Status == model.StatusValidating
		if held && t.AcceptedBy != nil && *t.AcceptedBy == userID && len(out) < limit {
			c := cloneTicket(t)
			out = append(out, &c)
		}
	}
	return out, nil
}

func (tx *memTx) GetProfile(_ context.Context, userID int64) (*model.Profile, error) {
	p, ok := tx.viewProfile(userID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := cloneProfile(p)
	return &c, nil
}

func (tx *memTx) GetOrCreateProfile(_ context.Context, userID int64, username string) (*model.Profile, bool, error) {
	if p, ok := tx.viewProfile(userID); ok {
		c := cloneProfile(p)
		return &c, false, nil
	}
	now := tx.stamp()
	p := model.Profile{UserID: userID, Username: username, Level: 1, CreatedAt: now, UpdatedAt: now, Version: 1}
	tx.profiles[userID] = p
	tx.profileBase[userID] = 0
	c := cloneProfile(p)
	return &c, true, nil
}

func (tx *memTx) UpdateProfile(_ context.Context, p *model.Profile) error {
	cur, ok := tx.viewProfile(p.UserID)
	if !ok || cur.Version != p.Version {
		return repository.ErrVersionConflict
	}
	if p.Streak < 0 {
		return errors.New("check constraint: streak >= 0")
	}
	if _, based := tx.profileBase[p.UserID]; !based {
		tx.profileBase[p.UserID] = cur.Version
	}
	row := cloneProfile(*p)
	row.Version++
	row.UpdatedAt = tx.stamp()
	tx.profiles[p.UserID] = row
	*p = cloneProfile(row)
	return nil
}

func (tx *memTx) UpdateUsername(_ context.Context, userID int64, username string) error {
	cur, ok := tx.viewProfile(userID)
	if !ok {
		return repository.ErrNotFound
	}
	if _, based := tx.profileBase[userID]; !based {
		tx.profileBase[userID] = cur.Version
	}
	row := cloneProfile(cur)
	row.Username = username
	tx.profiles[userID] = row
	return nil
}

func (tx *memTx) TopProfiles(_ context.Context, limit int) ([]*model.Profile, error) {
	tx.s.mu.Lock()
	all := make([]model.Profile, 0, len(tx.s.profiles))
	for _, p := range tx.s.profiles {
		all = append(all, cloneProfile(p))
	}
	tx.s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Points != all[j].Points {
			return all[i].Points > all[j].Points
		}
		return all[i].UserID < all[j].UserID
	})
	if limit < len(all) {
		all = all[:limit]
	}
	out := make([]*model.Profile, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, nil
}

func (tx *memTx) GetMission(_ context.Context, id string) (*model.Mission, error) {
	if m, ok := tx.missions[id]; ok {
		return &m, nil
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	m, ok := tx.s.missions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (tx *memTx) CreateMission(_ context.Context, m *model.Mission) error {
	if _, err := tx.GetMission(context.Background(), m.ID); err == nil {
		return repository.ErrDuplicate
	}
	m.CreatedAt = tx.stamp()
	tx.missions[m.ID] = *m
	return nil
}

func (tx *memTx) activeMissions(match func(model.Mission) bool) []*model.Mission {
	tx.s.mu.Lock()
	var out []*model.Mission
	for _, m := range tx.s.missions {
		if m.Active && match(m) {
			c := m
			out = append(out, &c)
		}
	}
	tx.s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (tx *memTx) ListActiveMissions(_ context.Context) ([]*model.Mission, error) {
	return tx.activeMissions(func(model.Mission) bool { return true }), nil
}

func (tx *memTx) ListActiveMissionsByAction(_ context.Context, action model.ActionKind) ([]*model.Mission, error) {
	return tx.activeMissions(func(m model.Mission) bool {
		return m.Action != nil && *m.Action == action
	}), nil
}

func (tx *memTx) GetUserMission(_ context.Context, userID int64, missionID string) (*model.UserMission, error) {
	um, ok := tx.viewUserMission(umKey{userID, missionID})
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &um, nil
}

func (tx *memTx) ListUserMissions(_ context.Context, userID int64) ([]*model.UserMission, error) {
	tx.s.mu.Lock()
	merged := make(map[umKey]model.UserMission)
	for k, um := range tx.s.userMissions {
		if k.userID == userID {
			merged[k] = um
		}
	}
	tx.s.mu.Unlock()
	for k, um := range tx.userMissions {
		if k.userID == userID {
			merged[k] = um
		}
	}
	var out []*model.UserMission
	for _, um := range merged {
		c := um
		out = append(out, &c)
	}
	return out, nil
}

func (tx *memTx) InsertUserMission(_ context.Context, um *model.UserMission) error {
	k := umKey{um.UserID, um.MissionID}
	if _, ok := tx.viewUserMission(k); ok {
		return repository.ErrVersionConflict
	}
	now := tx.stamp()
	row := *um
	row.Version = 1
	row.CreatedAt, row.UpdatedAt = now, now
	tx.userMissions[k] = row
	tx.umBase[k] = 0
	*um = row
	return nil
}

func (tx *memTx) UpdateUserMission(_ context.Context, um *model.UserMission) error {
	k := umKey{um.UserID, um.MissionID}
	cur, ok := tx.viewUserMission(k)
	if !ok || cur.Version != um.Version {
		return repository.ErrVersionConflict
	}
	if _, based := tx.umBase[k]; !based {
		tx.umBase[k] = cur.Version
	}
	row := *um
	row.Version++
	row.UpdatedAt = tx.stamp()
	tx.userMissions[k] = row
	*um = row
	return nil
}

func (tx *memTx) AppendLedger(_ context.Context, e *model.PointsEntry) error {
	e.CreatedAt = tx.stamp()
	tx.ledger = append(tx.ledger, *e)
	return nil
}

func (tx *memTx) LedgerByUser(_ context.Context, userID int64, limit int) ([]*model.PointsEntry, error) {
	entries := tx.s.ledgerFor(userID)
	var out []*model.PointsEntry
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := entries[i]
		out = append(out, &e)
	}
	return out, nil
}

func (tx *memTx) PeriodLeaders(_ context.Context, since time.Time, limit int) ([]*model.LeaderRank, error) {
	tx.s.mu.Lock()
	sums := make(map[int64]int64)
	for _, e := range tx.s.ledger {
		if !e.CreatedAt.Before(since) {
			sums[e.UserID] += e.Amount
		}
	}
	var out []*model.LeaderRank
	for id, sum := range sums {
		if sum > 0 {
			out = append(out, &model.LeaderRank{UserID: id, Username: tx.s.profiles[id].Username, Points: sum})
		}
	}
	tx.s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].UserID < out[j].UserID
	})
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (tx *memTx) AppendEvent(_ context.Context, e *model.TicketEvent) error {
	e.CreatedAt = tx.stamp()
	tx.events = append(tx.events, *e)
	return nil
}

func (tx *memTx) ListEvents(_ context.Context, ticketID string) ([]*model.TicketEvent, error) {
	var out []*model.TicketEvent
	for _, e := range tx.s.eventsFor(ticketID) {
		c := e
		out = append(out, &c)
	}
	return out, nil
}

// memPhotos records deletions and can be told to fail.
type memPhotos struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (p *memPhotos) Delete(_ context.Context, keys []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.deleted = append(p.deleted, keys...)
	return nil
}

func (p *memPhotos) deletedKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deleted...)
}
