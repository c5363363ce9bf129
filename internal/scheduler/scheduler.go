// Package scheduler runs the automatic calendar fetch loop. Two triggers
// share one loop: a fixed daily time, fired at most once per day, and a
// rolling interval since the last fetch. The daily trigger wins when both
// are configured.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"daydash/internal/domain"
	"daydash/internal/identity"
)

// DefaultPollInterval is how often the loop re-evaluates its triggers.
const DefaultPollInterval = 30 * time.Second

const (
	dateKeyLayout = "2006-01-02"
	timeKeyLayout = "15:04"
)

// Options wires the scheduler to its collaborators. The run-state markers
// are injected as get/set pairs so the host application owns where they
// live.
type Options struct {
	Resolve  identity.Resolver
	Settings func() domain.AppSettings

	// Fetch performs one fetch-and-publish for the given date key.
	Fetch func(ctx context.Context, dateKey string)

	// GetLastDailyFetchDate returns the date key of the last daily-trigger
	// fetch, or "" when none has run yet.
	GetLastDailyFetchDate func() string
	SetLastDailyFetchDate func(dateKey string)

	// GetLastFetchAt returns when any fetch last ran, or the zero time when
	// none has.
	GetLastFetchAt func() time.Time
	SetLastFetchAt func(at time.Time)

	Now          func() time.Time
	PollInterval time.Duration
}

// Scheduler owns the background loop. Start/Stop may be called repeatedly;
// Start restarts the loop from a fresh timer.
type Scheduler struct {
	opts     Options
	mu       sync.Mutex
	stop     chan struct{}
	inFlight atomic.Bool
}

// New builds a stopped scheduler.
func New(opts Options) *Scheduler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Scheduler{opts: opts}
}

// Start launches the loop. The triggers are evaluated immediately, then on
// every poll tick. A running loop is replaced.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.stop != nil {
		close(s.stop)
	}
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	go func() {
		s.RunOnce()
		ticker := time.NewTicker(s.opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.RunOnce()
			}
		}
	}()
}

// Stop halts the loop. Run-state markers are left untouched so a later
// Start resumes dedup where it left off.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

// ResetRunState clears both markers, used when the signed-in identity
// changes.
func (s *Scheduler) ResetRunState() {
	if s.opts.SetLastDailyFetchDate != nil {
		s.opts.SetLastDailyFetchDate("")
	}
	if s.opts.SetLastFetchAt != nil {
		s.opts.SetLastFetchAt(time.Time{})
	}
}

// RunOnce evaluates both triggers once. A tick that arrives while a fetch
// is still in flight is skipped rather than queued.
func (s *Scheduler) RunOnce() {
	if !s.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer s.inFlight.Store(false)

	if s.opts.Resolve == nil || s.opts.Resolve() == nil {
		return
	}

	settings := s.opts.Settings()
	hasDaily := settings.AutoFetchTime != nil
	hasInterval := settings.AutoFetchIntervalMinutes != nil
	if !hasDaily && !hasInterval {
		return
	}

	now := s.opts.Now()
	dateKey := now.Format(dateKeyLayout)

	due := false
	if hasDaily && now.Format(timeKeyLayout) == *settings.AutoFetchTime &&
		s.opts.GetLastDailyFetchDate() != dateKey {
		// Mark before fetching so a slow fetch cannot double-fire today.
		s.opts.SetLastDailyFetchDate(dateKey)
		due = true
	}

	if !due && hasInterval {
		last := s.opts.GetLastFetchAt()
		interval := time.Duration(*settings.AutoFetchIntervalMinutes) * time.Minute
		if last.IsZero() || now.Sub(last) >= interval {
			due = true
		}
	}
	if !due {
		return
	}

	s.opts.Fetch(context.Background(), dateKey)
	s.opts.SetLastFetchAt(now)
}
