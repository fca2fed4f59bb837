// -----------------------------------------------------------------------
// Scheduler Service - drives unattended crawl runs from a fixed interval,
// a cron expression or a daily time, in a configured timezone
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderwatch/internal/common"
	"github.com/ternarybob/tenderwatch/internal/interfaces"
)

// Service triggers crawl runs on a timer. A Service is built once from a
// config snapshot and never reconfigured: on a settings change the owner
// stops the old instance and starts a freshly constructed one.
type Service struct {
	controller interfaces.CrawlController
	config     common.SchedulerConfig
	logger     arbor.ILogger
	location   *time.Location
	cron       *cronSchedule

	mu      sync.Mutex
	stopCh  chan struct{}
	done    chan struct{}
	running bool
}

// NewService creates a scheduler. The timezone is resolved once here,
// falling back to local time when the zone name cannot be loaded; an
// invalid cron expression is logged and disables the cron trigger.
func NewService(controller interfaces.CrawlController, config common.SchedulerConfig, logger arbor.ILogger) *Service {
	location, err := time.LoadLocation(config.Timezone)
	if err != nil {
		logger.Warn().Str("timezone", config.Timezone).Msg("Failed to resolve timezone, using local time")
		location = time.Local
	}

	s := &Service{
		controller: controller,
		config:     config,
		logger:     logger,
		location:   location,
	}

	if expr := s.cronExpression(); expr != "" {
		cron, err := parseCron(expr)
		if err != nil {
			logger.Warn().Err(err).Str("cron", expr).Msg("Invalid cron expression, trigger disabled")
		} else {
			s.cron = cron
		}
	}

	return s
}

// cronExpression returns the configured cron expression, normalizing a
// "HH:MM" daily time into one when no explicit expression is set.
func (s *Service) cronExpression() string {
	if expr := strings.TrimSpace(s.config.Cron); expr != "" {
		return expr
	}
	if s.config.DailyTime != "" {
		parts := strings.SplitN(s.config.DailyTime, ":", 2)
		if len(parts) == 2 {
			hours, herr := strconv.Atoi(strings.TrimSpace(parts[0]))
			minutes, merr := strconv.Atoi(strings.TrimSpace(parts[1]))
			if herr == nil && merr == nil {
				return fmt.Sprintf("%d %d * * *", minutes, hours)
			}
		}
		s.logger.Warn().Str("daily_time", s.config.DailyTime).Msg("Invalid daily time, ignoring")
	}
	return ""
}

// Start launches the trigger loop. Disabled or already-running schedulers
// are left alone.
func (s *Service) Start() {
	if !s.config.Enabled {
		s.logger.Info().Msg("Scheduler disabled")
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	stopCh, done := s.stopCh, s.done
	s.mu.Unlock()

	s.logger.Info().Str("mode", s.describeMode()).Msg("Scheduler started")

	common.SafeGo(s.logger, "schedulerLoop", func() {
		defer close(done)
		s.loop(stopCh)
	})
}

// Stop terminates the trigger loop and waits briefly for it to exit. A
// stopped scheduler can be started again, but re-configuration requires a
// new instance.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.running = false
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.logger.Warn().Msg("Scheduler loop did not exit in time")
	}
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Service) loop(stopCh chan struct{}) {
	for {
		wait := s.NextDelay(time.Now().In(s.location))
		if wait <= 0 {
			wait = time.Second
		}

		timer := time.NewTimer(wait)
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}

		if s.controller.Start(context.Background()) {
			s.logger.Info().Msg("Scheduler triggered a crawl run")
		} else {
			s.logger.Info().Msg("Scheduler skip: crawl already running")
		}
	}
}

// NextDelay computes the wait until the next trigger from now, applying
// the priority order: fixed interval, then cron, then daily at 07:00.
func (s *Service) NextDelay(now time.Time) time.Duration {
	if s.config.IntervalMinutes > 0 {
		return time.Duration(s.config.IntervalMinutes) * time.Minute
	}

	if s.cron != nil {
		next, err := s.cron.Next(now)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Cron search failed, retrying in an hour")
			return time.Hour
		}
		return next.Sub(now)
	}

	// Fallback: daily at 07:00 local time.
	target := time.Date(now.Year(), now.Month(), now.Day(), 7, 0, 0, 0, now.Location())
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target.Sub(now)
}

func (s *Service) describeMode() string {
	switch {
	case s.config.IntervalMinutes > 0:
		return fmt.Sprintf("every %d minute(s)", s.config.IntervalMinutes)
	case s.cron != nil:
		return "cron " + s.cronExpression()
	default:
		return "daily at 07:00"
	}
}
