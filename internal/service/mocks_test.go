package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/forgo/atelier/internal/database"
	"github.com/forgo/atelier/internal/model"
)

// memStore backs the workshop, participation and waitlist mocks so that
// seat counting behaves like the database guard.
type memStore struct {
	mu             sync.Mutex
	seq            int
	epoch          time.Time
	users          map[string]*model.User
	workshops      map[string]*model.Workshop
	participations map[string]*model.Participation
	entries        map[string]*model.WaitlistEntry

	createManyErr error
}

func newMemStore() *memStore {
	return &memStore{
		epoch:          time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		users:          make(map[string]*model.User),
		workshops:      make(map[string]*model.Workshop),
		participations: make(map[string]*model.Participation),
		entries:        make(map[string]*model.WaitlistEntry),
	}
}

func (s *memStore) nextID(table string) (string, time.Time) {
	s.seq++
	return fmt.Sprintf("%s:%d", table, s.seq), s.epoch.Add(time.Duration(s.seq) * time.Second)
}

func (s *memStore) addUser(email string, role model.UserRole) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, _ := s.nextID("user")
	u := &model.User{ID: id, Email: email, Role: role}
	s.users[id] = u
	return u
}

func (s *memStore) addWorkshop(w *model.Workshop) *model.Workshop {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, at := s.nextID("workshop")
	w.ID = id
	w.CreatedOn = at
	if len(w.OrganizerIDs) == 0 && w.CreatedBy != "" {
		w.OrganizerIDs = []string{w.CreatedBy}
	}
	s.workshops[id] = w
	return w
}

func (s *memStore) seatHolders(workshopID string) int {
	n := 0
	for _, p := range s.participations {
		if p.WorkshopID == workshopID && p.Role == model.ParticipationRoleParticipant && p.Status.IsActive() {
			n++
		}
	}
	return n
}

func (s *memStore) waitingCount(workshopID string) int {
	n := 0
	for _, e := range s.entries {
		if e.WorkshopID == workshopID && e.IsWaiting() {
			n++
		}
	}
	return n
}

func (s *memStore) guard(workshopID string, allowance int) error {
	w := s.workshops[workshopID]
	if w == nil {
		return database.ErrNotFound
	}
	if s.seatHolders(workshopID) >= w.Capacity+allowance {
		return fmt.Errorf("%w: workshop is full", database.ErrLimitExceeded)
	}
	return nil
}

func (s *memStore) workshopView(w *model.Workshop) *model.Workshop {
	c := *w
	c.OrganizerIDs = slices.Clone(w.OrganizerIDs)
	c.RegisteredCount = s.seatHolders(w.ID)
	c.WaitlistCount = s.waitingCount(w.ID)
	c.ComputeSeats()
	return &c
}

func (s *memStore) participationView(p *model.Participation) *model.Participation {
	c := *p
	if u := s.users[p.UserID]; u != nil {
		email := u.Email
		name := u.DisplayName()
		c.UserEmail = &email
		c.UserName = &name
	}
	if w := s.workshops[p.WorkshopID]; w != nil {
		title := w.Title
		starts := w.StartsAt
		c.WorkshopTitle = &title
		c.WorkshopStartsAt = &starts
	}
	return &c
}

func (s *memStore) entryView(e *model.WaitlistEntry) *model.WaitlistEntry {
	c := *e
	if e.IsWaiting() {
		for _, o := range s.entries {
			if o.WorkshopID == e.WorkshopID && o.IsWaiting() && !o.CreatedOn.After(e.CreatedOn) {
				c.Position++
			}
		}
	}
	if u := s.users[e.UserID]; u != nil {
		email := u.Email
		c.UserEmail = &email
	}
	return &c
}

func (s *memStore) findParticipation(workshopID, userID string) *model.Participation {
	for _, p := range s.participations {
		if p.WorkshopID == workshopID && p.UserID == userID {
			return p
		}
	}
	return nil
}

func (s *memStore) sortedWaiting(workshopID string) []*model.WaitlistEntry {
	var out []*model.WaitlistEntry
	for _, e := range s.entries {
		if (workshopID == "" || e.WorkshopID == workshopID) && e.IsWaiting() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedOn.Before(out[j].CreatedOn) })
	return out
}

// ===== Workshops =====

type memWorkshopRepo struct{ s *memStore }

func (r *memWorkshopRepo) Create(ctx context.Context, w *model.Workshop) error {
	r.s.addWorkshop(w)
	return nil
}

func (r *memWorkshopRepo) CreateMany(ctx context.Context, workshops []*model.Workshop) error {
	if r.s.createManyErr != nil {
		return r.s.createManyErr
	}
	for _, w := range workshops {
		r.s.addWorkshop(w)
	}
	return nil
}

func (r *memWorkshopRepo) GetByID(ctx context.Context, id string) (*model.Workshop, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w := r.s.workshops[id]
	if w == nil {
		return nil, nil
	}
	return r.s.workshopView(w), nil
}

func (r *memWorkshopRepo) GetDetail(ctx context.Context, id string) (*model.WorkshopDetail, error) {
	w, _ := r.GetByID(ctx, id)
	if w == nil {
		return nil, nil
	}
	return &model.WorkshopDetail{Workshop: *w, TypeName: "type"}, nil
}

func (r *memWorkshopRepo) List(ctx context.Context, filter model.WorkshopFilter) ([]*model.Workshop, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Workshop
	for _, w := range r.s.workshops {
		if len(filter.Statuses) > 0 && !filter.HasStatus(w.Status) {
			continue
		}
		out = append(out, r.s.workshopView(w))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (r *memWorkshopRepo) Update(ctx context.Context, id string, req *model.UpdateWorkshopRequest) (*model.Workshop, error) {
	r.s.mu.Lock()
	w := r.s.workshops[id]
	if w == nil {
		r.s.mu.Unlock()
		return nil, nil
	}
	if req.Title != nil {
		w.Title = *req.Title
	}
	if req.StartsAt != nil {
		w.StartsAt = *req.StartsAt
	}
	if req.EndsAt != nil {
		w.EndsAt = *req.EndsAt
	}
	if req.Capacity != nil {
		w.Capacity = *req.Capacity
	}
	if req.ClientID != nil {
		w.ClientID = req.ClientID
	}
	if req.ClearClient {
		w.ClientID = nil
	}
	r.s.mu.Unlock()
	return r.GetByID(ctx, id)
}

func (r *memWorkshopRepo) SetStatus(ctx context.Context, id string, status model.WorkshopStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if w := r.s.workshops[id]; w != nil {
		w.Status = status
	}
	return nil
}

func (r *memWorkshopRepo) Cancel(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if w := r.s.workshops[id]; w != nil {
		w.Status = model.WorkshopStatusCancelled
	}
	for _, p := range r.s.participations {
		if p.WorkshopID == id && p.Status == model.ParticipationStatusRegistered {
			p.Status = model.ParticipationStatusCancelled
		}
	}
	for _, e := range r.s.entries {
		if e.WorkshopID == id && e.IsWaiting() {
			e.Status = model.WaitlistStatusExpired
		}
	}
	return nil
}

func (r *memWorkshopRepo) AddOrganizer(ctx context.Context, id, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if w := r.s.workshops[id]; w != nil && !slices.Contains(w.OrganizerIDs, userID) {
		w.OrganizerIDs = append(w.OrganizerIDs, userID)
	}
	return nil
}

// ===== Participations =====

type memParticipationRepo struct{ s *memStore }

func (r *memParticipationRepo) RegisterSeat(ctx context.Context, p *model.Participation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.guard(p.WorkshopID, 0); err != nil {
		return err
	}
	if r.s.findParticipation(p.WorkshopID, p.UserID) != nil {
		return fmt.Errorf("%w: already registered", database.ErrDuplicate)
	}
	id, at := r.s.nextID("participation")
	p.ID = id
	p.Role = model.ParticipationRoleParticipant
	p.Status = model.ParticipationStatusRegistered
	p.RegisteredOn = at
	stored := *p
	r.s.participations[id] = &stored
	return nil
}

func (r *memParticipationRepo) ReactivateSeat(ctx context.Context, id, workshopID string) (*model.Participation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.guard(workshopID, 0); err != nil {
		return nil, err
	}
	p := r.s.participations[id]
	if p == nil {
		return nil, nil
	}
	p.Role = model.ParticipationRoleParticipant
	p.Status = model.ParticipationStatusRegistered
	p.FeedbackRating = nil
	p.FeedbackComment = nil
	return r.s.participationView(p), nil
}

func (r *memParticipationRepo) AddAnimator(ctx context.Context, workshopID, userID string) (*model.Participation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p := r.s.findParticipation(workshopID, userID)
	if p != nil && (p.Status == model.ParticipationStatusAttended || p.Status == model.ParticipationStatusNoShow) {
		return nil, fmt.Errorf("%w: attendance already recorded", database.ErrConflict)
	}
	if p == nil {
		id, at := r.s.nextID("participation")
		p = &model.Participation{ID: id, WorkshopID: workshopID, UserID: userID, RegisteredOn: at}
		r.s.participations[id] = p
	}
	p.Role = model.ParticipationRoleAnimator
	p.Status = model.ParticipationStatusRegistered
	for _, e := range r.s.entries {
		if e.WorkshopID == workshopID && e.UserID == userID && e.IsWaiting() {
			e.Status = model.WaitlistStatusRemoved
		}
	}
	return r.s.participationView(p), nil
}

func (r *memParticipationRepo) GetByID(ctx context.Context, id string) (*model.Participation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p := r.s.participations[id]; p != nil {
		return r.s.participationView(p), nil
	}
	return nil, nil
}

func (r *memParticipationRepo) GetByWorkshopAndUser(ctx context.Context, workshopID, userID string) (*model.Participation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p := r.s.findParticipation(workshopID, userID); p != nil {
		return r.s.participationView(p), nil
	}
	return nil, nil
}

func (r *memParticipationRepo) ListByWorkshop(ctx context.Context, workshopID string, statuses ...model.ParticipationStatus) ([]*model.Participation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Participation
	for _, p := range r.s.participations {
		if p.WorkshopID != workshopID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, p.Status) {
			continue
		}
		out = append(out, r.s.participationView(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredOn.Before(out[j].RegisteredOn) })
	return out, nil
}

func (r *memParticipationRepo) ListByUser(ctx context.Context, userID string, filter model.ParticipationFilter) ([]*model.Participation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Participation
	for _, p := range r.s.participations {
		if p.UserID != userID {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		out = append(out, r.s.participationView(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredOn.Before(out[j].RegisteredOn) })
	return out, nil
}

func (r *memParticipationRepo) SetStatus(ctx context.Context, id string, status model.ParticipationStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p := r.s.participations[id]; p != nil {
		p.Status = status
	}
	return nil
}

func (r *memParticipationRepo) MarkAttendance(ctx context.Context, id string, status model.ParticipationStatus, role *model.ParticipationRole) (*model.Participation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p := r.s.participations[id]
	if p == nil {
		return nil, nil
	}
	p.Status = status
	if role != nil {
		p.Role = *role
	}
	return r.s.participationView(p), nil
}

func (r *memParticipationRepo) SaveFeedback(ctx context.Context, id string, rating int, comment *string) (*model.Participation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p := r.s.participations[id]
	if p == nil || p.FeedbackRating != nil {
		return nil, nil
	}
	p.FeedbackRating = &rating
	p.FeedbackComment = comment
	return r.s.participationView(p), nil
}

// ===== Waitlist =====

type memWaitlistRepo struct{ s *memStore }

func (r *memWaitlistRepo) Create(ctx context.Context, entry *model.WaitlistEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, at := r.s.nextID("waitlist_entry")
	entry.ID = id
	entry.Status = model.WaitlistStatusWaiting
	entry.CreatedOn = at
	stored := *entry
	r.s.entries[id] = &stored
	return nil
}

func (r *memWaitlistRepo) GetByID(ctx context.Context, id string) (*model.WaitlistEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e := r.s.entries[id]; e != nil {
		return r.s.entryView(e), nil
	}
	return nil, nil
}

func (r *memWaitlistRepo) GetWaiting(ctx context.Context, workshopID, userID string) (*model.WaitlistEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.sortedWaiting(workshopID) {
		if e.UserID == userID {
			return r.s.entryView(e), nil
		}
	}
	return nil, nil
}

func (r *memWaitlistRepo) ListWaiting(ctx context.Context, workshopID string) ([]*model.WaitlistEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.WaitlistEntry
	for _, e := range r.s.sortedWaiting(workshopID) {
		out = append(out, r.s.entryView(e))
	}
	return out, nil
}

func (r *memWaitlistRepo) OldestWaiting(ctx context.Context, workshopID string) (*model.WaitlistEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if waiting := r.s.sortedWaiting(workshopID); len(waiting) > 0 {
		return r.s.entryView(waiting[0]), nil
	}
	return nil, nil
}

func (r *memWaitlistRepo) ListForUser(ctx context.Context, userID string) ([]*model.WaitlistEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.WaitlistEntry
	for _, e := range r.s.sortedWaiting("") {
		if e.UserID == userID {
			out = append(out, r.s.entryView(e))
		}
	}
	return out, nil
}

func (r *memWaitlistRepo) List(ctx context.Context, filter model.WaitlistFilter) ([]*model.WaitlistEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.WaitlistEntry
	for _, e := range r.s.sortedWaiting(filter.WorkshopID) {
		out = append(out, r.s.entryView(e))
	}
	return out, nil
}

func (r *memWaitlistRepo) SetStatus(ctx context.Context, id string, status model.WaitlistStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e := r.s.entries[id]; e != nil {
		e.Status = status
	}
	return nil
}

func (r *memWaitlistRepo) Promote(ctx context.Context, entry *model.WaitlistEntry, force bool) (*model.Participation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	allowance := 0
	if force {
		allowance = 1
	}
	if err := r.s.guard(entry.WorkshopID, allowance); err != nil {
		return nil, err
	}
	p := r.s.findParticipation(entry.WorkshopID, entry.UserID)
	if p != nil && p.Status != model.ParticipationStatusCancelled {
		return nil, fmt.Errorf("%w: user is already on the roster", database.ErrConflict)
	}
	if p == nil {
		id, at := r.s.nextID("participation")
		p = &model.Participation{ID: id, WorkshopID: entry.WorkshopID, UserID: entry.UserID, RegisteredOn: at}
		r.s.participations[id] = p
	}
	p.Role = model.ParticipationRoleParticipant
	p.Status = model.ParticipationStatusRegistered
	if e := r.s.entries[entry.ID]; e != nil {
		e.Status = model.WaitlistStatusPromoted
	}
	return r.s.participationView(p), nil
}

// ===== Users =====

type memUserRepo struct{ s *memStore }

func (r *memUserRepo) Create(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return fmt.Errorf("%w: email", database.ErrDuplicate)
		}
	}
	id, at := r.s.nextID("user")
	user.ID = id
	user.CreatedOn = at
	user.UpdatedOn = at
	r.s.users[id] = user
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u := r.s.users[id]; u != nil {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) List(ctx context.Context, filter model.UserFilter) ([]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.User
	for _, u := range r.s.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		c := *u
		out = append(out, &c)
	}
	return out, nil
}

func (r *memUserRepo) UpdatePassword(ctx context.Context, userID, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u := r.s.users[userID]; u != nil {
		u.Hash = &hash
	}
	return nil
}

func (r *memUserRepo) TouchLogin(ctx context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u := r.s.users[userID]; u != nil {
		now := time.Now()
		u.LoginOn = &now
	}
	return nil
}

func (r *memUserRepo) SetRole(ctx context.Context, userID string, role model.UserRole) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u := r.s.users[userID]; u != nil {
		u.Role = role
	}
	return nil
}

func (r *memUserRepo) SetClient(ctx context.Context, userID string, clientID *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u := r.s.users[userID]; u != nil {
		u.ClientID = clientID
	}
	return nil
}

func (r *memUserRepo) SetGrantedLevel(ctx context.Context, userID string, levelID *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u := r.s.users[userID]; u != nil {
		u.GrantedLevelID = levelID
	}
	return nil
}

func (r *memUserRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.users, id)
	return nil
}

// ===== Tokens =====

type mockTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*model.RefreshToken
}

func newMockTokenRepo() *mockTokenRepo {
	return &mockTokenRepo{tokens: make(map[string]*model.RefreshToken)}
}

func (m *mockTokenRepo) CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.TokenHash] = token
	return nil
}

func (m *mockTokenRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[hash]; ok {
		c := *t
		return &c, nil
	}
	return nil, nil
}

func (m *mockTokenRepo) ConsumeRefreshToken(ctx context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok || t.Revoked {
		return false, nil
	}
	now := time.Now()
	t.Revoked = true
	t.RevokedAt = &now
	return true, nil
}

func (m *mockTokenRepo) RevokeAllUserTokens(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (m *mockTokenRepo) DeleteExpiredTokens(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	now := time.Now()
	for hash, t := range m.tokens {
		if t.ExpiresAt.Before(now) {
			delete(m.tokens, hash)
			n++
		}
	}
	return n, nil
}

func (m *mockTokenRepo) activeFor(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tokens {
		if t.UserID == userID && !t.Revoked {
			n++
		}
	}
	return n
}

// ===== Catalog =====

type mockTypes struct {
	types    map[string]*model.WorkshopType
	families map[string]*model.WorkshopFamily
}

func newMockTypes() *mockTypes {
	return &mockTypes{
		types:    make(map[string]*model.WorkshopType),
		families: make(map[string]*model.WorkshopFamily),
	}
}

func (m *mockTypes) GetType(ctx context.Context, id string) (*model.WorkshopType, error) {
	if t, ok := m.types[id]; ok {
		c := *t
		return &c, nil
	}
	return nil, nil
}

func (m *mockTypes) GetFamily(ctx context.Context, id string) (*model.WorkshopFamily, error) {
	if f, ok := m.families[id]; ok {
		c := *f
		return &c, nil
	}
	return nil, nil
}

// ===== Email =====

type recordingSender struct {
	mu   sync.Mutex
	sent []*model.EmailMessage
	err  error
}

func (s *recordingSender) Send(ctx context.Context, msg *model.EmailMessage) (*model.EmailReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	if s.err != nil {
		return nil, s.err
	}
	return &model.EmailReceipt{MessageID: fmt.Sprintf("msg-%d", len(s.sent))}, nil
}

func (s *recordingSender) subjects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, m := range s.sent {
		out[i] = m.Subject
	}
	return out
}

// staticEligibility answers every check the same way
type staticEligibility struct {
	eligible bool
	calls    int
}

func (e *staticEligibility) CheckWorkshop(ctx context.Context, userID, workshopID string) (*model.Eligibility, error) {
	e.calls++
	return &model.Eligibility{Eligible: e.eligible}, nil
}
