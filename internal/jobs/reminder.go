package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/forgo/atelier/internal/model"
	"github.com/forgo/atelier/internal/service"
)

// ReminderSource finds workshops due a reminder and records delivery
type ReminderSource interface {
	ListNeedingReminder(ctx context.Context, now, until time.Time) ([]*model.Workshop, error)
	MarkReminderSent(ctx context.Context, id string) error
}

// ParticipantLister lists a workshop's participations by status
type ParticipantLister interface {
	ListByWorkshop(ctx context.Context, workshopID string, statuses ...model.ParticipationStatus) ([]*model.Participation, error)
}

// ReminderNotifier sends the reminder email
type ReminderNotifier interface {
	Reminder(ctx context.Context, to service.Recipient, w *model.Workshop)
}

// ReminderConfig holds the reminder processor dependencies
type ReminderConfig struct {
	Workshops    ReminderSource
	Participants ParticipantLister
	Notifier     ReminderNotifier
	Interval     time.Duration // default 15m
	LeadTime     time.Duration // default 24h
	Concurrency  int           // workshops handled in parallel, default 4
	Logger       *slog.Logger
	Now          func() time.Time
}

// ReminderProcessor emails registered participants shortly before their
// workshop starts. A workshop is reminded once.
type ReminderProcessor struct {
	*loop
	workshops    ReminderSource
	participants ParticipantLister
	notifier     ReminderNotifier
	leadTime     time.Duration
	concurrency  int
	now          func() time.Time
}

// NewReminderProcessor creates a new reminder processor
func NewReminderProcessor(cfg ReminderConfig) *ReminderProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.LeadTime <= 0 {
		cfg.LeadTime = 24 * time.Hour
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	p := &ReminderProcessor{
		workshops:    cfg.Workshops,
		participants: cfg.Participants,
		notifier:     cfg.Notifier,
		leadTime:     cfg.LeadTime,
		concurrency:  cfg.Concurrency,
		now:          cfg.Now,
	}
	p.loop = newLoop("reminders", cfg.Interval, 10*time.Second, cfg.Logger, p.process)
	return p
}

// RunOnce runs a single pass
func (p *ReminderProcessor) RunOnce(ctx context.Context) error {
	return p.runPass(ctx)
}

func (p *ReminderProcessor) process(ctx context.Context) error {
	now := p.now()
	due, err := p.workshops.ListNeedingReminder(ctx, now, now.Add(p.leadTime))
	if err != nil {
		return fmt.Errorf("list workshops due a reminder: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, w := range due {
		g.Go(func() error {
			return p.remind(gctx, w)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	p.logger.Info("reminders sent", "workshops", len(due))
	return nil
}

// remind notifies every registered participant, then marks the workshop.
// Delivery failures are logged by the notifier and do not block the mark.
func (p *ReminderProcessor) remind(ctx context.Context, w *model.Workshop) error {
	participants, err := p.participants.ListByWorkshop(ctx, w.ID, model.ParticipationStatusRegistered)
	if err != nil {
		return fmt.Errorf("list participants of %s: %w", w.ID, err)
	}

	for _, part := range participants {
		if part.Role == model.ParticipationRoleAnimator {
			continue
		}
		to, ok := service.RecipientFromParticipation(part)
		if !ok {
			continue
		}
		p.notifier.Reminder(ctx, to, w)
	}

	if err := p.workshops.MarkReminderSent(ctx, w.ID); err != nil {
		return fmt.Errorf("mark reminder sent for %s: %w", w.ID, err)
	}
	return nil
}
