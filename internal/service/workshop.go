package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/forgo/atelier/internal/database"
	"github.com/forgo/atelier/internal/model"
	"github.com/google/uuid"
	"github.com/xyedo/rrule"
)

// WorkshopRepository defines the interface for workshop storage
type WorkshopRepository interface {
	Create(ctx context.Context, w *model.Workshop) error
	CreateMany(ctx context.Context, workshops []*model.Workshop) error
	GetByID(ctx context.Context, id string) (*model.Workshop, error)
	GetDetail(ctx context.Context, id string) (*model.WorkshopDetail, error)
	List(ctx context.Context, filter model.WorkshopFilter) ([]*model.Workshop, error)
	Update(ctx context.Context, id string, req *model.UpdateWorkshopRequest) (*model.Workshop, error)
	SetStatus(ctx context.Context, id string, status model.WorkshopStatus) error
	Cancel(ctx context.Context, id string) error
	AddOrganizer(ctx context.Context, id, userID string) error
}

// WorkshopTypeLookup resolves workshop types
type WorkshopTypeLookup interface {
	GetType(ctx context.Context, id string) (*model.WorkshopType, error)
}

// ClientChecker verifies a client can take new workshops
type ClientChecker interface {
	RequireActive(ctx context.Context, id string) (*model.Client, error)
}

// Viewer is the caller of a workshop operation. A nil viewer is anonymous.
type Viewer struct {
	UserID string
	Role   model.UserRole
}

// IsStaff returns true for organizers and admins
func (v *Viewer) IsStaff() bool {
	return v != nil && v.Role.IsStaff()
}

// IsAdmin returns true for admins
func (v *Viewer) IsAdmin() bool {
	return v != nil && v.Role == model.UserRoleAdmin
}

// WorkshopService handles the workshop lifecycle
type WorkshopService struct {
	workshopRepo      WorkshopRepository
	participationRepo ParticipationRepository
	waitlistRepo      WaitlistRepository
	types             WorkshopTypeLookup
	clients           ClientChecker
	users             UserLookup
	seats             SeatFiller
	notifier          *Notifier
	logger            *slog.Logger
	now               func() time.Time
}

// WorkshopServiceConfig holds configuration for the workshop service
type WorkshopServiceConfig struct {
	WorkshopRepo      WorkshopRepository
	ParticipationRepo ParticipationRepository
	WaitlistRepo      WaitlistRepository
	Types             WorkshopTypeLookup
	Clients           ClientChecker
	Users             UserLookup
	Seats             SeatFiller
	Notifier          *Notifier
	Logger            *slog.Logger
	Now               func() time.Time
}

// NewWorkshopService creates a new workshop service
func NewWorkshopService(cfg WorkshopServiceConfig) *WorkshopService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &WorkshopService{
		workshopRepo:      cfg.WorkshopRepo,
		participationRepo: cfg.ParticipationRepo,
		waitlistRepo:      cfg.WaitlistRepo,
		types:             cfg.Types,
		clients:           cfg.Clients,
		users:             cfg.Users,
		seats:             cfg.Seats,
		notifier:          cfg.Notifier,
		logger:            logger,
		now:               now,
	}
}

// publicStatuses are visible to anonymous users and participants
var publicStatuses = []model.WorkshopStatus{model.WorkshopStatusPublished, model.WorkshopStatusCompleted}

// VisibleFilter narrows a filter to what the viewer may see. ok is false
// when nothing the viewer asked for is visible.
func VisibleFilter(v *Viewer, filter model.WorkshopFilter) (model.WorkshopFilter, bool) {
	if v.IsStaff() {
		return filter, true
	}
	if len(filter.Statuses) == 0 {
		filter.Statuses = append([]model.WorkshopStatus(nil), publicStatuses...)
		return filter, true
	}

	var visible []model.WorkshopStatus
	for _, st := range filter.Statuses {
		if st.IsPublic() {
			visible = append(visible, st)
		}
	}
	filter.Statuses = visible
	return filter, len(visible) > 0
}

// List returns the workshops matching the filter that the viewer may see
func (s *WorkshopService) List(ctx context.Context, v *Viewer, filter model.WorkshopFilter) ([]*model.Workshop, error) {
	filter, ok := VisibleFilter(v, filter)
	if !ok {
		return []*model.Workshop{}, nil
	}
	return s.workshopRepo.List(ctx, filter)
}

// Get returns a workshop with the viewer's own registration state
func (s *WorkshopService) Get(ctx context.Context, v *Viewer, id string) (*model.WorkshopDetail, error) {
	d, err := s.workshopRepo.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil || (!d.Status.IsPublic() && !v.IsStaff()) {
		return nil, ErrWorkshopNotFound
	}

	if v != nil {
		p, err := s.participationRepo.GetByWorkshopAndUser(ctx, d.ID, v.UserID)
		if err != nil {
			return nil, err
		}
		d.MyParticipation = p
		entry, err := s.waitlistRepo.GetWaiting(ctx, d.ID, v.UserID)
		if err != nil {
			return nil, err
		}
		d.MyWaitlistEntry = entry
	}
	return d, nil
}

// Create creates a draft workshop organized by the caller
func (s *WorkshopService) Create(ctx context.Context, v *Viewer, req *model.CreateWorkshopRequest) (*model.Workshop, error) {
	w, err := s.prepare(ctx, v, req)
	if err != nil {
		return nil, err
	}
	if err := s.workshopRepo.Create(ctx, w); err != nil {
		return nil, err
	}
	s.logger.Info("workshop created", "workshop_id", w.ID, "created_by", v.UserID)
	return w, nil
}

// CreateSeries creates one draft workshop per occurrence of the request's
// RRULE, all sharing a series id. Either all are created or none.
func (s *WorkshopService) CreateSeries(ctx context.Context, v *Viewer, req *model.CreateSeriesRequest) ([]*model.Workshop, error) {
	base, err := s.prepare(ctx, v, &req.CreateWorkshopRequest)
	if err != nil {
		return nil, err
	}

	starts, err := ExpandRecurrence(base.StartsAt, req.RRule, model.MaxSeriesOccurrences)
	if err != nil {
		return nil, err
	}

	seriesID := uuid.NewString()
	length := base.EndsAt.Sub(base.StartsAt)
	workshops := make([]*model.Workshop, 0, len(starts))
	for _, start := range starts {
		w := *base
		w.SeriesID = &seriesID
		w.StartsAt = start
		w.EndsAt = start.Add(length)
		workshops = append(workshops, &w)
	}

	if err := s.workshopRepo.CreateMany(ctx, workshops); err != nil {
		return nil, err
	}
	s.logger.Info("workshop series created", "series_id", seriesID, "occurrences", len(workshops))
	return workshops, nil
}

// ExpandRecurrence returns the start times produced by an RRULE anchored at
// first. The rule must yield between 1 and limit occurrences.
func ExpandRecurrence(first time.Time, rule string, limit int) ([]time.Time, error) {
	rule = strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:")
	if rule == "" {
		return nil, ErrInvalidRecurrence
	}

	set, err := rrule.StrToRRuleSet("DTSTART:" + first.UTC().Format("20060102T150405Z") + "\nRRULE:" + rule)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}

	var starts []time.Time
	next := set.Iterator()
	for {
		t, ok := next()
		if !ok {
			break
		}
		if len(starts) == limit {
			return nil, ErrTooManyOccurrences
		}
		starts = append(starts, t.UTC())
	}
	if len(starts) == 0 {
		return nil, ErrInvalidRecurrence
	}
	return starts, nil
}

// prepare validates a create request and fills in type defaults
func (s *WorkshopService) prepare(ctx context.Context, v *Viewer, req *model.CreateWorkshopRequest) (*model.Workshop, error) {
	wt, err := s.types.GetType(ctx, req.TypeID)
	if err != nil {
		return nil, err
	}
	if wt == nil {
		return nil, ErrTypeNotFound
	}
	if !wt.Active {
		return nil, ErrTypeInactive
	}
	if req.ClientID != nil && *req.ClientID != "" && s.clients != nil {
		if _, err := s.clients.RequireActive(ctx, *req.ClientID); err != nil {
			return nil, err
		}
	}

	if !req.StartsAt.After(s.now()) {
		return nil, ErrWorkshopInPast
	}
	endsAt := req.StartsAt.Add(wt.Duration())
	if req.EndsAt != nil {
		endsAt = *req.EndsAt
	}
	if !endsAt.After(req.StartsAt) {
		return nil, ErrInvalidTimeRange
	}

	capacity := wt.DefaultCapacity
	if req.Capacity != nil {
		capacity = *req.Capacity
	}

	return &model.Workshop{
		TypeID:      wt.ID,
		ClientID:    req.ClientID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Location:    req.Location,
		IsOnline:    req.IsOnline,
		MeetingURL:  req.MeetingURL,
		StartsAt:    req.StartsAt.UTC(),
		EndsAt:      endsAt.UTC(),
		Capacity:    capacity,
		Status:      model.WorkshopStatusDraft,
		CreatedBy:   v.UserID,
	}, nil
}

// Update changes an editable workshop. Raising the capacity hands the new
// seats to the waiting list.
func (s *WorkshopService) Update(ctx context.Context, v *Viewer, id string, req *model.UpdateWorkshopRequest) (*model.Workshop, error) {
	w, err := s.manageable(ctx, v, id)
	if err != nil {
		return nil, err
	}
	if w.Status.IsFinal() {
		return nil, ErrWorkshopReadOnly
	}

	start, end := w.StartsAt, w.EndsAt
	if req.StartsAt != nil {
		start = *req.StartsAt
	}
	if req.EndsAt != nil {
		end = *req.EndsAt
	}
	if !end.After(start) {
		return nil, ErrInvalidTimeRange
	}
	if req.Capacity != nil && *req.Capacity < w.RegisteredCount {
		return nil, ErrCapacityBelowRegistered
	}
	if req.ClientID != nil && s.clients != nil {
		if _, err := s.clients.RequireActive(ctx, *req.ClientID); err != nil {
			return nil, err
		}
	}

	updated, err := s.workshopRepo.Update(ctx, w.ID, req)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrWorkshopNotFound
	}

	if updated.Capacity > w.Capacity && updated.Status == model.WorkshopStatusPublished && s.seats != nil {
		n, err := s.seats.PromoteNext(ctx, updated.ID)
		if err != nil {
			s.logger.Error("failed to promote after capacity raise", "workshop_id", updated.ID, "error", err)
		}
		if n > 0 {
			if refreshed, err := s.workshopRepo.GetByID(ctx, updated.ID); err == nil && refreshed != nil {
				updated = refreshed
			}
		}
	}
	return updated, nil
}

// Transition moves a workshop to another status
func (s *WorkshopService) Transition(ctx context.Context, v *Viewer, id string, req *model.TransitionWorkshopRequest) (*model.Workshop, error) {
	w, err := s.manageable(ctx, v, id)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(w.Status, req.Status, w.RegisteredCount) {
		return nil, ErrInvalidTransition
	}

	now := s.now()
	switch req.Status {
	case model.WorkshopStatusPublished:
		if w.HasStarted(now) {
			return nil, ErrWorkshopInPast
		}
	case model.WorkshopStatusCompleted:
		if !w.HasStarted(now) {
			return nil, ErrWorkshopNotStarted
		}
	}

	if req.Status == model.WorkshopStatusCancelled {
		if err := s.cancel(ctx, w, req.Reason); err != nil {
			return nil, err
		}
	} else if err := s.workshopRepo.SetStatus(ctx, w.ID, req.Status); err != nil {
		return nil, err
	}

	s.logger.Info("workshop status changed",
		"workshop_id", w.ID,
		"from", w.Status,
		"to", req.Status,
		"by", v.UserID,
	)

	updated, err := s.workshopRepo.GetByID(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrWorkshopNotFound
	}
	return updated, nil
}

func (s *WorkshopService) cancel(ctx context.Context, w *model.Workshop, reason *string) error {
	affected, err := s.participationRepo.ListByWorkshop(ctx, w.ID, model.ParticipationStatusRegistered)
	if err != nil {
		return err
	}
	if err := s.workshopRepo.Cancel(ctx, w.ID); err != nil {
		return err
	}

	if s.notifier == nil {
		return nil
	}
	recipients := make([]Recipient, 0, len(affected))
	for _, p := range affected {
		if r, ok := RecipientFromParticipation(p); ok {
			recipients = append(recipients, r)
		}
	}
	why := ""
	if reason != nil {
		why = *reason
	}
	s.notifier.WorkshopCancelled(ctx, recipients, w, why)
	return nil
}

// Participants lists everyone on the roster of a workshop
func (s *WorkshopService) Participants(ctx context.Context, v *Viewer, id string) ([]*model.Participation, error) {
	w, err := s.manageable(ctx, v, id)
	if err != nil {
		return nil, err
	}
	return s.participationRepo.ListByWorkshop(ctx, w.ID)
}

// Waitlist lists the workshop's queue in order
func (s *WorkshopService) Waitlist(ctx context.Context, v *Viewer, id string) ([]*model.WaitlistEntry, error) {
	w, err := s.manageable(ctx, v, id)
	if err != nil {
		return nil, err
	}
	return s.waitlistRepo.ListWaiting(ctx, w.ID)
}

// MarkAttendance records whether a registered user showed up, once the
// workshop has started.
func (s *WorkshopService) MarkAttendance(ctx context.Context, v *Viewer, workshopID, participationID string, req *model.MarkAttendanceRequest) (*model.Participation, error) {
	w, err := s.manageable(ctx, v, workshopID)
	if err != nil {
		return nil, err
	}
	if w.Status == model.WorkshopStatusCancelled {
		return nil, ErrWorkshopReadOnly
	}
	if !w.HasStarted(s.now()) {
		return nil, ErrWorkshopNotStarted
	}

	p, err := s.participationRepo.GetByID(ctx, participationID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.WorkshopID != w.ID {
		return nil, ErrParticipationNotFound
	}
	if p.Status == model.ParticipationStatusCancelled {
		return nil, ErrAttendanceNotAllowed
	}

	updated, err := s.participationRepo.MarkAttendance(ctx, p.ID, req.Status, req.Role)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrParticipationNotFound
	}
	return updated, nil
}

// AddAnimator puts a user on the roster as an animator and takes them off
// the waiting list. Animators do not take a seat. Users whose attendance was
// already marked keep their row and yield ErrAttendanceRecorded.
func (s *WorkshopService) AddAnimator(ctx context.Context, v *Viewer, workshopID string, req *model.AddAnimatorRequest) (*model.Participation, error) {
	w, err := s.manageable(ctx, v, workshopID)
	if err != nil {
		return nil, err
	}
	if w.Status.IsFinal() {
		return nil, ErrWorkshopReadOnly
	}

	u, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}

	p, err := s.participationRepo.AddAnimator(ctx, w.ID, u.ID)
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil, ErrAttendanceRecorded
		}
		return nil, err
	}
	if p == nil {
		return nil, ErrParticipationNotFound
	}

	// A seat may have been freed if the user was registered as participant
	if s.seats != nil && w.Status == model.WorkshopStatusPublished {
		if _, err := s.seats.PromoteNext(ctx, w.ID); err != nil {
			s.logger.Error("failed to promote after animator change", "workshop_id", w.ID, "error", err)
		}
	}
	return p, nil
}

// AddOrganizer lets another staff member manage the workshop. Adding a
// user who already organizes it is a no-op.
func (s *WorkshopService) AddOrganizer(ctx context.Context, v *Viewer, workshopID string, req *model.AddOrganizerRequest) (*model.Workshop, error) {
	w, err := s.manageable(ctx, v, workshopID)
	if err != nil {
		return nil, err
	}
	if w.Status.IsFinal() {
		return nil, ErrWorkshopReadOnly
	}

	u, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	if !u.IsStaff() {
		return nil, ErrOrganizerNotStaff
	}
	if w.IsOrganizer(u.ID) {
		return w, nil
	}

	if err := s.workshopRepo.AddOrganizer(ctx, w.ID, u.ID); err != nil {
		return nil, err
	}
	s.logger.Info("organizer added", "workshop_id", w.ID, "user_id", u.ID, "by", v.UserID)
	return s.workshopRepo.GetByID(ctx, w.ID)
}

// Calendar returns a workshop visible to the viewer for calendar export
func (s *WorkshopService) Calendar(ctx context.Context, v *Viewer, id string) (*model.Workshop, error) {
	w, err := s.workshopRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil || (!w.Status.IsPublic() && w.Status != model.WorkshopStatusCancelled && !v.IsStaff()) {
		return nil, ErrWorkshopNotFound
	}
	return w, nil
}

// manageable loads a workshop the viewer may manage: admins manage every
// workshop, organizers only their own.
func (s *WorkshopService) manageable(ctx context.Context, v *Viewer, id string) (*model.Workshop, error) {
	if !v.IsStaff() {
		return nil, ErrForbidden
	}
	w, err := s.workshopRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWorkshopNotFound
	}
	if !v.IsAdmin() && !w.IsOrganizer(v.UserID) {
		return nil, ErrNotWorkshopOrganizer
	}
	return w, nil
}
