package event

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Scheduler is the periodic timer service. Each named timer emits a
// TypeFired event every period until cleared. Scheduling an existing name
// replaces it, so re-arming never duplicates a timer.
type Scheduler struct {
	clock  clockwork.Clock
	logger zerolog.Logger

	mu   sync.Mutex
	ctx  context.Context
	out  chan<- Event
	jobs map[string]*timerJob
}

type timerJob struct {
	name   string
	period time.Duration
	cancel context.CancelFunc
}

// NewScheduler creates a Scheduler. A nil clock uses the real clock.
func NewScheduler(clock clockwork.Clock, logger zerolog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		clock:  clock,
		logger: logger.With().Str("component", "scheduler").Logger(),
		jobs:   make(map[string]*timerJob),
	}
}

func (s *Scheduler) Name() string { return SourceTimer }

// Subscribe starts delivering firings to out. Timers scheduled before
// Subscribe start now.
func (s *Scheduler) Subscribe(ctx context.Context, out chan<- Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out != nil {
		return fmt.Errorf("scheduler already subscribed")
	}
	s.ctx = ctx
	s.out = out
	for _, j := range s.jobs {
		s.startLocked(j)
	}
	return nil
}

// Schedule arms the named timer, replacing any timer with the same name.
func (s *Scheduler) Schedule(name string, period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("timer %q: period must be positive, got %s", name, period)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[name]; ok && old.cancel != nil {
		old.cancel()
	}
	j := &timerJob{name: name, period: period}
	s.jobs[name] = j
	if s.out != nil {
		s.startLocked(j)
	}
	return nil
}

// Clear stops the named timer. It reports whether a timer was armed.
func (s *Scheduler) Clear(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return false
	}
	if j.cancel != nil {
		j.cancel()
	}
	delete(s.jobs, name)
	s.logger.Debug().Str("timer", name).Msg("timer cleared")
	return true
}

// Scheduled returns the names of armed timers.
func (s *Scheduler) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) startLocked(j *timerJob) {
	ctx, cancel := context.WithCancel(s.ctx)
	j.cancel = cancel
	// The ticker is created before the goroutine starts so callers can
	// advance a fake clock right after Schedule returns.
	ticker := s.clock.NewTicker(j.period)
	go s.run(ctx, j.name, ticker, s.out)
}

func (s *Scheduler) run(ctx context.Context, name string, ticker clockwork.Ticker, out chan<- Event) {
	defer ticker.Stop()

	s.logger.Info().Str("timer", name).Msg("timer armed")

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Str("timer", name).Msg("timer stopped")
			return
		case <-ticker.Chan():
			select {
			case out <- Fired(SourceTimer, name):
				s.logger.Debug().Str("timer", name).Msg("timer fired")
			case <-ctx.Done():
				return
			}
		}
	}
}
