package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const providerTimeout = time.Minute

// ScheduleTime represents a specific time of day when the scheduler should run.
type ScheduleTime struct {
	Hour   int
	Minute int
}

// String returns the time in HH:MM format.
func (st ScheduleTime) String() string {
	return fmt.Sprintf("%02d:%02d", st.Hour, st.Minute)
}

// ParseScheduleTime parses a time string in HH:MM format.
func ParseScheduleTime(s string) (ScheduleTime, error) {
	var hour, minute int
	_, err := fmt.Sscanf(s, "%d:%d", &hour, &minute)
	if err != nil {
		return ScheduleTime{}, fmt.Errorf("invalid time format (expected HH:MM): %w", err)
	}

	if hour < 0 || hour > 23 {
		return ScheduleTime{}, fmt.Errorf("invalid hour: %d (must be 0-23)", hour)
	}
	if minute < 0 || minute > 59 {
		return ScheduleTime{}, fmt.Errorf("invalid minute: %d (must be 0-59)", minute)
	}

	return ScheduleTime{Hour: hour, Minute: minute}, nil
}

type Config struct {
	// Interval runs a round every Interval. When zero, ScheduleTimes is used.
	Interval      time.Duration
	ScheduleTimes []string
	Pool          PoolConfig
	RunOnStartup  bool
	JobProvider   JobProvider
}

// Scheduler periodically asks its JobProvider for jobs and feeds them to a worker pool.
type Scheduler struct {
	workerPool    *WorkerPool
	interval      time.Duration
	scheduleTimes []ScheduleTime
	runOnStartup  bool
	jobProvider   JobProvider
	log           zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun string
}

func New(cfg Config, log zerolog.Logger) (*Scheduler, error) {
	if cfg.JobProvider == nil {
		return nil, errors.New("a job provider is required")
	}

	scheduleTimes := make([]ScheduleTime, 0, len(cfg.ScheduleTimes))
	for _, timeStr := range cfg.ScheduleTimes {
		st, err := ParseScheduleTime(timeStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse schedule time %q: %w", timeStr, err)
		}
		scheduleTimes = append(scheduleTimes, st)
	}

	if cfg.Interval <= 0 && len(scheduleTimes) == 0 {
		return nil, errors.New("an interval or at least one schedule time is required")
	}

	log = log.With().Str("component", "scheduler").Logger()
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		workerPool:    NewWorkerPool(cfg.Pool, log),
		interval:      cfg.Interval,
		scheduleTimes: scheduleTimes,
		runOnStartup:  cfg.RunOnStartup,
		jobProvider:   cfg.JobProvider,
		log:           log,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start launches the worker pool and the scheduling loop.
func (s *Scheduler) Start() {
	s.workerPool.Start()

	if s.runOnStartup {
		s.TriggerNow()
	}

	s.wg.Add(1)
	go s.scheduleLoop()

	evt := s.log.Info()
	if s.interval > 0 {
		evt = evt.Dur("interval", s.interval)
	} else {
		evt = evt.Time("next_run", s.NextRun(time.Now()))
	}
	evt.Msg("scheduler started")
}

func (s *Scheduler) scheduleLoop() {
	defer s.wg.Done()

	tick := time.Minute
	if s.interval > 0 {
		tick = s.interval
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case now := <-ticker.C:
			if s.interval > 0 || s.shouldRun(now) {
				s.runJobs()
			}
		}
	}
}

// shouldRun reports whether now matches a schedule time not yet run this minute.
func (s *Scheduler) shouldRun(now time.Time) bool {
	key := now.Format("2006-01-02T15:04")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastRun == key {
		return false
	}

	for _, st := range s.scheduleTimes {
		if now.Hour() == st.Hour && now.Minute() == st.Minute {
			s.lastRun = key
			return true
		}
	}

	return false
}

// runJobs asks the provider for a round of jobs and submits them.
func (s *Scheduler) runJobs() {
	ctx, cancel := context.WithTimeout(s.ctx, providerTimeout)
	defer cancel()

	jobs, err := s.jobProvider(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to build jobs")
		return
	}

	if len(jobs) == 0 {
		s.log.Debug().Msg("no jobs to run")
		return
	}

	s.workerPool.SubmitBatch(jobs)
}

// TriggerNow runs a round immediately, outside the schedule.
func (s *Scheduler) TriggerNow() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJobs()
	}()
}

// Shutdown stops scheduling, then drains the worker pool.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.log.Warn().Msg("timeout waiting for scheduler loop to stop")
	}

	s.workerPool.ShutdownWithTimeout(timeout)
	s.log.Info().Msg("scheduler stopped")
}

// NextRun returns the next scheduled round after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	if s.interval > 0 {
		return now.Add(s.interval)
	}

	var next time.Time
	for _, st := range s.scheduleTimes {
		t := time.Date(now.Year(), now.Month(), now.Day(), st.Hour, st.Minute, 0, 0, now.Location())
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}
	return next
}

// ScheduleTimes returns the configured schedule times.
func (s *Scheduler) ScheduleTimes() []ScheduleTime {
	return s.scheduleTimes
}
