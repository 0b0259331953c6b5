package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/bookshare-be/internal/models"
	"github.com/isdelr/bookshare-be/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler periodically reminds owners of requests still waiting on them.
type Scheduler struct {
	lendingSvc services.LendingServiceProvider
	eventSvc   services.EventServiceProvider
	schedule   cron.Schedule
	interval   time.Duration
	now        func() time.Time
	nextRun    time.Time
	done       chan struct{}
}

// NewScheduler creates a reminder scheduler firing on the given standard
// five-field cron expression.
func NewScheduler(expr string, lendingSvc services.LendingServiceProvider, eventSvc services.EventServiceProvider) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", expr, err)
	}
	s := &Scheduler{
		lendingSvc: lendingSvc,
		eventSvc:   eventSvc,
		schedule:   schedule,
		interval:   time.Minute,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	s.nextRun = schedule.Next(s.now())
	return s, nil
}

// Run starts the scheduler's ticking loop.
func (s *Scheduler) Run() {
	log.Info().Time("next_run", s.nextRun).Msg("Starting reminder scheduler")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			log.Info().Msg("Stopping reminder scheduler")
			return
		case <-ticker.C:
			s.tick(context.Background())
		}
	}
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	close(s.done)
}

// tick sends reminders when the next run time has passed.
func (s *Scheduler) tick(ctx context.Context) bool {
	now := s.now()
	if now.Before(s.nextRun) {
		return false
	}
	s.nextRun = s.schedule.Next(now)

	if err := s.SendReminders(ctx); err != nil {
		log.Error().Err(err).Msg("Reminder run failed")
	}
	return true
}

// SendReminders records one reminder event for every owner with pending requests.
func (s *Scheduler) SendReminders(ctx context.Context) error {
	pending, err := s.lendingSvc.PendingByOwner(ctx)
	if err != nil {
		return err
	}
	for _, p := range pending {
		msg := fmt.Sprintf("You have %d pending request(s) on %d book(s).", p.Requests, p.Books)
		if err := s.eventSvc.CreateEvent(ctx, models.EventRequestReminder, p.Owner, "", nil, msg); err != nil {
			log.Warn().Err(err).Str("owner", p.Owner).Msg("Failed to record reminder")
		}
	}
	log.Info().Int("owners", len(pending)).Msg("Sent pending request reminders")
	return nil
}
