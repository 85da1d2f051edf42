package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/forgo/atelier/internal/metrics"
)

// passTimeout bounds a single pass of any processor
const passTimeout = 5 * time.Minute

// loop is the ticker scaffolding shared by the processors
type loop struct {
	name         string
	interval     time.Duration
	initialDelay time.Duration
	pass         func(ctx context.Context) error
	logger       *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func newLoop(name string, interval, initialDelay time.Duration, logger *slog.Logger, pass func(ctx context.Context) error) *loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &loop{
		name:         name,
		interval:     interval,
		initialDelay: initialDelay,
		pass:         pass,
		logger:       logger.With("job", name),
	}
}

// Start begins the loop. Calling Start on a running loop is a no-op.
func (l *loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.stopCh = make(chan struct{})

	l.wg.Add(1)
	go l.run(l.stopCh)
	l.logger.Info("processor started", "interval", l.interval)
}

// Stop ends the loop and waits for an in-flight pass to finish
func (l *loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.stopCh)
	l.mu.Unlock()

	l.wg.Wait()
	l.logger.Info("processor stopped")
}

// Run starts the loop and blocks until ctx is done, then stops it
func (l *loop) Run(ctx context.Context) error {
	l.Start()
	<-ctx.Done()
	l.Stop()
	return nil
}

// IsRunning returns whether the loop is running
func (l *loop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *loop) run(stop <-chan struct{}) {
	defer l.wg.Done()

	select {
	case <-time.After(l.initialDelay):
		l.tick(stop)
	case <-stop:
		return
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.tick(stop)
		case <-stop:
			return
		}
	}
}

// tick runs one pass. The pass context is cancelled when the loop stops.
func (l *loop) tick(stop <-chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-stop:
			cancel()
		case <-done:
		}
	}()

	l.runPass(ctx)
}

func (l *loop) runPass(ctx context.Context) error {
	err := l.pass(ctx)
	metrics.ObserveJob(l.name, err)
	if err != nil {
		l.logger.Error("processor pass failed", "error", err)
	}
	return err
}
