package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/forgo/atelier/internal/database"
	"github.com/forgo/atelier/internal/metrics"
	"github.com/forgo/atelier/internal/model"
)

// WaitlistRepository defines the interface for waitlist storage
type WaitlistRepository interface {
	Create(ctx context.Context, entry *model.WaitlistEntry) error
	GetByID(ctx context.Context, id string) (*model.WaitlistEntry, error)
	GetWaiting(ctx context.Context, workshopID, userID string) (*model.WaitlistEntry, error)
	ListWaiting(ctx context.Context, workshopID string) ([]*model.WaitlistEntry, error)
	OldestWaiting(ctx context.Context, workshopID string) (*model.WaitlistEntry, error)
	ListForUser(ctx context.Context, userID string) ([]*model.WaitlistEntry, error)
	List(ctx context.Context, filter model.WaitlistFilter) ([]*model.WaitlistEntry, error)
	SetStatus(ctx context.Context, id string, status model.WaitlistStatus) error
	Promote(ctx context.Context, entry *model.WaitlistEntry, force bool) (*model.Participation, error)
}

// WaitlistService handles the waiting list of full workshops
type WaitlistService struct {
	waitlistRepo WaitlistRepository
	workshops    WorkshopLookup
	notifier     *Notifier
	logger       *slog.Logger
}

// WaitlistServiceConfig holds configuration for the waitlist service
type WaitlistServiceConfig struct {
	WaitlistRepo WaitlistRepository
	Workshops    WorkshopLookup
	Notifier     *Notifier
	Logger       *slog.Logger
}

// NewWaitlistService creates a new waitlist service
func NewWaitlistService(cfg WaitlistServiceConfig) *WaitlistService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WaitlistService{
		waitlistRepo: cfg.WaitlistRepo,
		workshops:    cfg.Workshops,
		notifier:     cfg.Notifier,
		logger:       logger,
	}
}

// List returns waiting entries across workshops for the admin overview
func (s *WaitlistService) List(ctx context.Context, filter model.WaitlistFilter) ([]*model.WaitlistEntry, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.waitlistRepo.List(ctx, filter)
}

// ListForWorkshop returns a workshop's queue in order
func (s *WaitlistService) ListForWorkshop(ctx context.Context, workshopID string) ([]*model.WaitlistEntry, error) {
	return s.waitlistRepo.ListWaiting(ctx, workshopID)
}

// ListForUser returns the caller's waiting entries
func (s *WaitlistService) ListForUser(ctx context.Context, userID string) ([]*model.WaitlistEntry, error) {
	return s.waitlistRepo.ListForUser(ctx, userID)
}

// Promote moves one waiting entry into a seat. Without force a full
// workshop yields ErrWorkshopFull; with force one seat of overflow is allowed.
func (s *WaitlistService) Promote(ctx context.Context, entryID string, force bool) (*model.Participation, error) {
	entry, err := s.waitingEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	p, err := s.promote(ctx, entry, force)
	if err != nil {
		return nil, err
	}

	s.logger.Info("waitlist entry promoted",
		"entry_id", entry.ID,
		"workshop_id", entry.WorkshopID,
		"user_id", entry.UserID,
		"force", force,
	)
	return p, nil
}

// Remove takes a waiting entry off the queue
func (s *WaitlistService) Remove(ctx context.Context, entryID string) error {
	entry, err := s.waitingEntry(ctx, entryID)
	if err != nil {
		return err
	}
	return s.waitlistRepo.SetStatus(ctx, entry.ID, model.WaitlistStatusRemoved)
}

// PromoteNext fills free seats of a workshop from the head of its queue
// until the workshop is full or the queue is empty. Entries of users who are
// already on the roster are removed instead of promoted. Returns how many
// entries were promoted.
func (s *WaitlistService) PromoteNext(ctx context.Context, workshopID string) (int, error) {
	promoted := 0
	for {
		entry, err := s.waitlistRepo.OldestWaiting(ctx, workshopID)
		if err != nil {
			return promoted, err
		}
		if entry == nil {
			return promoted, nil
		}

		if _, err := s.promote(ctx, entry, false); err != nil {
			if errors.Is(err, ErrWorkshopFull) {
				return promoted, nil
			}
			if errors.Is(err, ErrAlreadyRegistered) {
				if err := s.waitlistRepo.SetStatus(ctx, entry.ID, model.WaitlistStatusRemoved); err != nil {
					return promoted, err
				}
				continue
			}
			return promoted, err
		}
		promoted++
	}
}

func (s *WaitlistService) waitingEntry(ctx context.Context, entryID string) (*model.WaitlistEntry, error) {
	entry, err := s.waitlistRepo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrWaitlistEntryNotFound
	}
	if !entry.IsWaiting() {
		return nil, ErrEntryNotWaiting
	}
	return entry, nil
}

func (s *WaitlistService) promote(ctx context.Context, entry *model.WaitlistEntry, force bool) (*model.Participation, error) {
	p, err := s.waitlistRepo.Promote(ctx, entry, force)
	if err != nil {
		if errors.Is(err, database.ErrLimitExceeded) {
			return nil, ErrWorkshopFull
		}
		if errors.Is(err, database.ErrConflict) {
			return nil, ErrAlreadyRegistered
		}
		return nil, err
	}
	if p == nil {
		return nil, ErrParticipationNotFound
	}

	metrics.WaitlistPromotionsTotal.Inc()
	s.notifyPromoted(ctx, p)
	return p, nil
}

func (s *WaitlistService) notifyPromoted(ctx context.Context, p *model.Participation) {
	to, ok := RecipientFromParticipation(p)
	if !ok || s.notifier == nil || s.workshops == nil {
		return
	}
	w, err := s.workshops.GetByID(ctx, p.WorkshopID)
	if err != nil || w == nil {
		s.logger.Warn("promotion email skipped", "workshop_id", p.WorkshopID, "error", err)
		return
	}
	s.notifier.PromotedFromWaitlist(ctx, to, w)
}
