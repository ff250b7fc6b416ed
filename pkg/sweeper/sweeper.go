// Package sweeper periodically reports tenants whose provisioning has been
// pending for longer than a threshold. It never changes their status.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/onboarding/pkg/eventbus"
	"github.com/dukex/onboarding/pkg/events"
	"github.com/dukex/onboarding/pkg/persistence"
	"github.com/robfig/cron/v3"
)

const (
	DefaultSchedule   = "@every 1m"
	DefaultStallAfter = 15 * time.Minute
)

var ErrAlreadyStarted = errors.New("sweeper already started")

// Lister finds tenants stuck in provisioning.
type Lister interface {
	Stalled(ctx context.Context, threshold time.Duration, now time.Time) ([]*persistence.TenantProgress, error)
}

type Sweeper struct {
	lister     Lister
	publisher  eventbus.EventPublisher
	schedule   string
	stallAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

type Option func(*Sweeper)

func WithSchedule(schedule string) Option {
	return func(s *Sweeper) {
		s.schedule = schedule
	}
}

func WithStallAfter(stallAfter time.Duration) Option {
	return func(s *Sweeper) {
		s.stallAfter = stallAfter
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

func New(lister Lister, publisher eventbus.EventPublisher, opts ...Option) (*Sweeper, error) {
	s := &Sweeper{
		lister:     lister,
		publisher:  publisher,
		schedule:   DefaultSchedule,
		stallAfter: DefaultStallAfter,
		logger:     slog.Default(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With("module", "sweeper", "schedule", s.schedule)

	if s.stallAfter <= 0 {
		return nil, fmt.Errorf("stall threshold must be positive, got %s", s.stallAfter)
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	return s, nil
}

// Start schedules Sweep until Stop is called. Runs that overlap a slow
// previous run are skipped.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return ErrAlreadyStarted
	}

	logger := cronLogger{s.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.SkipIfStillRunning(logger), cron.Recover(logger)),
	)

	_, err := c.AddFunc(s.schedule, func() {
		_, err := s.Sweep(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add sweep job: %w", err)
	}

	c.Start()
	s.cron = c

	s.logger.InfoContext(ctx, "sweeper started", "stall_after", s.stallAfter)

	return nil
}

// Stop waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		s.logger.InfoContext(ctx, "sweeper stopped")

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep publishes a stalled event for every tenant whose provisioning
// record is older than the threshold and returns how many were found.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	stalled, err := s.lister.Stalled(ctx, s.stallAfter, s.now())
	if err != nil {
		return 0, err
	}

	for _, record := range stalled {
		s.logger.WarnContext(ctx, "provisioning stalled",
			"tenant_id", record.TenantID,
			"since", record.Progress.UpdatedAt)

		if s.publisher == nil {
			continue
		}

		err := s.publisher.Publish(ctx, record.TenantID, events.ProvisioningStalled{
			BaseEvent: events.NewBaseEvent(events.ProvisioningStalledEvent, record.TenantID),
			Since:     record.Progress.UpdatedAt,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to publish event",
				"tenant_id", record.TenantID,
				"event_type", events.ProvisioningStalledEvent,
				"error", err)
		}
	}

	return len(stalled), nil
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
