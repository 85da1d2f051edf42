package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/forgo/atelier/internal/model"
)

// WorkshopCompleter moves published workshops past their end to completed
type WorkshopCompleter interface {
	CompleteEnded(ctx context.Context, now time.Time) ([]*model.Workshop, error)
}

// WaitlistExpirer expires waiting entries that can no longer get a seat
type WaitlistExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// TokenPurger deletes expired refresh tokens
type TokenPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// LifecycleConfig holds the lifecycle processor dependencies
type LifecycleConfig struct {
	Workshops WorkshopCompleter
	Waitlists WaitlistExpirer
	Tokens    TokenPurger
	Interval  time.Duration // default 5m
	Logger    *slog.Logger
	Now       func() time.Time
}

// WorkshopLifecycleProcessor keeps workshop and waiting list states in step
// with the clock
type WorkshopLifecycleProcessor struct {
	*loop
	workshops WorkshopCompleter
	waitlists WaitlistExpirer
	tokens    TokenPurger
	now       func() time.Time
}

// NewWorkshopLifecycleProcessor creates a new lifecycle processor
func NewWorkshopLifecycleProcessor(cfg LifecycleConfig) *WorkshopLifecycleProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	p := &WorkshopLifecycleProcessor{
		workshops: cfg.Workshops,
		waitlists: cfg.Waitlists,
		tokens:    cfg.Tokens,
		now:       cfg.Now,
	}
	p.loop = newLoop("workshop_lifecycle", cfg.Interval, 5*time.Second, cfg.Logger, p.process)
	return p
}

// RunOnce runs a single pass
func (p *WorkshopLifecycleProcessor) RunOnce(ctx context.Context) error {
	return p.runPass(ctx)
}

// process runs every step even when an earlier one fails
func (p *WorkshopLifecycleProcessor) process(ctx context.Context) error {
	now := p.now()
	var errs []error

	completed, err := p.workshops.CompleteEnded(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("complete ended workshops: %w", err))
	}

	expired, err := p.waitlists.ExpireStale(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("expire waiting entries: %w", err))
	}

	var purged int
	if p.tokens != nil {
		purged, err = p.tokens.PurgeExpired(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("purge refresh tokens: %w", err))
		}
	}

	if len(completed) > 0 || expired > 0 || purged > 0 {
		p.logger.Info("lifecycle pass",
			"completed", len(completed),
			"waitlist_expired", expired,
			"tokens_purged", purged,
		)
	}
	return errors.Join(errs...)
}
