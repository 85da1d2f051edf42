package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/forgo/atelier/internal/database"
	"github.com/forgo/atelier/internal/metrics"
	"github.com/forgo/atelier/internal/model"
)

// ParticipationRepository defines the interface for participation storage
type ParticipationRepository interface {
	RegisterSeat(ctx context.Context, p *model.Participation) error
	ReactivateSeat(ctx context.Context, id, workshopID string) (*model.Participation, error)
	AddAnimator(ctx context.Context, workshopID, userID string) (*model.Participation, error)
	GetByID(ctx context.Context, id string) (*model.Participation, error)
	GetByWorkshopAndUser(ctx context.Context, workshopID, userID string) (*model.Participation, error)
	ListByWorkshop(ctx context.Context, workshopID string, statuses ...model.ParticipationStatus) ([]*model.Participation, error)
	ListByUser(ctx context.Context, userID string, filter model.ParticipationFilter) ([]*model.Participation, error)
	SetStatus(ctx context.Context, id string, status model.ParticipationStatus) error
	MarkAttendance(ctx context.Context, id string, status model.ParticipationStatus, role *model.ParticipationRole) (*model.Participation, error)
	SaveFeedback(ctx context.Context, id string, rating int, comment *string) (*model.Participation, error)
}

// EligibilityChecker decides whether a user may join a workshop
type EligibilityChecker interface {
	CheckWorkshop(ctx context.Context, userID, workshopID string) (*model.Eligibility, error)
}

// SeatFiller hands freed seats to the waiting list
type SeatFiller interface {
	PromoteNext(ctx context.Context, workshopID string) (int, error)
}

// UserLookup resolves users
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// ParticipationService handles registration, cancellation and feedback
type ParticipationService struct {
	participationRepo ParticipationRepository
	waitlistRepo      WaitlistRepository
	workshops         WorkshopLookup
	users             UserLookup
	eligibility       EligibilityChecker
	seats             SeatFiller
	notifier          *Notifier
	logger            *slog.Logger
	now               func() time.Time
}

// ParticipationServiceConfig holds configuration for the participation service
type ParticipationServiceConfig struct {
	ParticipationRepo ParticipationRepository
	WaitlistRepo      WaitlistRepository
	Workshops         WorkshopLookup
	Users             UserLookup
	Eligibility       EligibilityChecker
	Seats             SeatFiller
	Notifier          *Notifier
	Logger            *slog.Logger
	Now               func() time.Time
}

// NewParticipationService creates a new participation service
func NewParticipationService(cfg ParticipationServiceConfig) *ParticipationService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ParticipationService{
		participationRepo: cfg.ParticipationRepo,
		waitlistRepo:      cfg.WaitlistRepo,
		workshops:         cfg.Workshops,
		users:             cfg.Users,
		eligibility:       cfg.Eligibility,
		seats:             cfg.Seats,
		notifier:          cfg.Notifier,
		logger:            logger,
		now:               now,
	}
}

// Register books a seat for the user, or queues them when the workshop is full
func (s *ParticipationService) Register(ctx context.Context, userID, workshopID string) (*model.RegistrationResult, error) {
	result, err := s.register(ctx, userID, workshopID)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, err
	}
	metrics.RegistrationsTotal.WithLabelValues(string(result.Outcome)).Inc()
	return result, nil
}

func (s *ParticipationService) register(ctx context.Context, userID, workshopID string) (*model.RegistrationResult, error) {
	w, err := s.workshops.GetByID(ctx, workshopID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWorkshopNotFound
	}
	if w.Status != model.WorkshopStatusPublished {
		return nil, ErrWorkshopNotOpen
	}
	if w.HasStarted(s.now()) {
		return nil, ErrWorkshopStarted
	}

	existing, err := s.participationRepo.GetByWorkshopAndUser(ctx, w.ID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status.IsActive() {
		return nil, ErrAlreadyRegistered
	}

	if s.eligibility != nil {
		elig, err := s.eligibility.CheckWorkshop(ctx, userID, w.ID)
		if err != nil {
			return nil, err
		}
		if !elig.Eligible {
			return nil, ErrNotEligible
		}
	}

	waiting, err := s.waitlistRepo.GetWaiting(ctx, w.ID, userID)
	if err != nil {
		return nil, err
	}
	if waiting != nil {
		return nil, ErrAlreadyWaitlisted
	}

	p, err := s.takeSeat(ctx, existing, w.ID, userID)
	switch {
	case err == nil:
		s.logger.Info("participant registered", "workshop_id", w.ID, "user_id", userID)
		s.notifyRegistered(ctx, userID, w)
		return &model.RegistrationResult{Outcome: model.OutcomeRegistered, Participation: p}, nil
	case errors.Is(err, database.ErrLimitExceeded):
		// full, fall through to the waiting list
	case errors.Is(err, database.ErrDuplicate):
		return nil, ErrAlreadyRegistered
	default:
		return nil, err
	}

	entry := &model.WaitlistEntry{WorkshopID: w.ID, UserID: userID}
	if err := s.waitlistRepo.Create(ctx, entry); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrAlreadyWaitlisted
		}
		return nil, err
	}
	if withPos, err := s.waitlistRepo.GetByID(ctx, entry.ID); err == nil && withPos != nil {
		entry = withPos
	}

	s.logger.Info("participant waitlisted", "workshop_id", w.ID, "user_id", userID, "position", entry.Position)
	return &model.RegistrationResult{Outcome: model.OutcomeWaitlisted, WaitlistEntry: entry}, nil
}

// takeSeat reuses an inactive row of the user when there is one
func (s *ParticipationService) takeSeat(ctx context.Context, existing *model.Participation, workshopID, userID string) (*model.Participation, error) {
	if existing != nil {
		p, err := s.participationRepo.ReactivateSeat(ctx, existing.ID, workshopID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, ErrParticipationNotFound
		}
		return p, nil
	}

	p := &model.Participation{WorkshopID: workshopID, UserID: userID}
	if err := s.participationRepo.RegisterSeat(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Cancel withdraws the user from a workshop. An active registration is
// cancelled and its seat offered to the waiting list; otherwise a waiting
// entry is removed.
func (s *ParticipationService) Cancel(ctx context.Context, userID, workshopID string) error {
	w, err := s.workshops.GetByID(ctx, workshopID)
	if err != nil {
		return err
	}
	if w == nil {
		return ErrWorkshopNotFound
	}

	p, err := s.participationRepo.GetByWorkshopAndUser(ctx, w.ID, userID)
	if err != nil {
		return err
	}
	if p != nil && p.Status == model.ParticipationStatusRegistered {
		if w.HasStarted(s.now()) {
			return ErrWorkshopStarted
		}
		if err := s.participationRepo.SetStatus(ctx, p.ID, model.ParticipationStatusCancelled); err != nil {
			return err
		}
		s.logger.Info("registration cancelled", "workshop_id", w.ID, "user_id", userID)

		if p.Role == model.ParticipationRoleParticipant && s.seats != nil && w.Status == model.WorkshopStatusPublished {
			if _, err := s.seats.PromoteNext(ctx, w.ID); err != nil {
				s.logger.Error("failed to promote from waitlist", "workshop_id", w.ID, "error", err)
			}
		}
		return nil
	}

	entry, err := s.waitlistRepo.GetWaiting(ctx, w.ID, userID)
	if err != nil {
		return err
	}
	if entry != nil {
		return s.waitlistRepo.SetStatus(ctx, entry.ID, model.WaitlistStatusRemoved)
	}

	return ErrNotRegistered
}

// SubmitFeedback records the user's rating of a workshop they attended.
// Feedback can be given once.
func (s *ParticipationService) SubmitFeedback(ctx context.Context, userID, workshopID string, req *model.SubmitFeedbackRequest) (*model.Participation, error) {
	p, err := s.participationRepo.GetByWorkshopAndUser(ctx, workshopID, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotRegistered
	}
	if p.Status != model.ParticipationStatusAttended {
		return nil, ErrFeedbackNotAllowed
	}
	if p.HasFeedback() {
		return nil, ErrFeedbackAlreadyGiven
	}

	saved, err := s.participationRepo.SaveFeedback(ctx, p.ID, req.Rating, req.Comment)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		// lost a race with another submission
		return nil, ErrFeedbackAlreadyGiven
	}
	return saved, nil
}

// MyParticipations lists the caller's participations
func (s *ParticipationService) MyParticipations(ctx context.Context, userID string, filter model.ParticipationFilter) ([]*model.Participation, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.participationRepo.ListByUser(ctx, userID, filter)
}

// MyWaitlist lists the caller's waiting entries
func (s *ParticipationService) MyWaitlist(ctx context.Context, userID string) ([]*model.WaitlistEntry, error) {
	return s.waitlistRepo.ListForUser(ctx, userID)
}

// Mine returns the caller's participation and waiting entry for a workshop
func (s *ParticipationService) Mine(ctx context.Context, userID, workshopID string) (*model.Participation, *model.WaitlistEntry, error) {
	p, err := s.participationRepo.GetByWorkshopAndUser(ctx, workshopID, userID)
	if err != nil {
		return nil, nil, err
	}
	entry, err := s.waitlistRepo.GetWaiting(ctx, workshopID, userID)
	if err != nil {
		return nil, nil, err
	}
	return p, entry, nil
}

func (s *ParticipationService) notifyRegistered(ctx context.Context, userID string, w *model.Workshop) {
	if s.notifier == nil || s.users == nil {
		return
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil || u == nil {
		s.logger.Warn("confirmation email skipped", "user_id", userID, "error", err)
		return
	}
	s.notifier.RegistrationConfirmed(ctx, RecipientFromUser(u), w)
}

// CalendarWorkshops returns the workshops the user holds an active
// participation in, for the personal calendar feed
func (s *ParticipationService) CalendarWorkshops(ctx context.Context, userID string) ([]*model.Workshop, error) {
	ps, err := s.participationRepo.ListByUser(ctx, userID, model.ParticipationFilter{Limit: model.MaxPageLimit})
	if err != nil {
		return nil, err
	}

	workshops := make([]*model.Workshop, 0, len(ps))
	for _, p := range ps {
		if !p.Status.IsActive() {
			continue
		}
		w, err := s.workshops.GetByID(ctx, p.WorkshopID)
		if err != nil {
			return nil, err
		}
		if w != nil {
			workshops = append(workshops, w)
		}
	}
	return workshops, nil
}
