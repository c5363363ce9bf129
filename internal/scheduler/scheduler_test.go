package scheduler_test

import (
	"context"
	"testing"
	"time"

	"daydash/internal/domain"
	"daydash/internal/scheduler"
)

type harness struct {
	now       time.Time
	user      *domain.UserProfile
	settings  domain.AppSettings
	fetches   []string
	lastDaily string
	lastFetch time.Time
	sched     *scheduler.Scheduler
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		now:  time.Date(2026, 2, 18, 9, 0, 0, 0, time.UTC),
		user: &domain.UserProfile{Email: "alex@example.com"},
	}
	h.sched = scheduler.New(scheduler.Options{
		Resolve:  func() *domain.UserProfile { return h.user },
		Settings: func() domain.AppSettings { return h.settings },
		Fetch: func(ctx context.Context, dateKey string) {
			h.fetches = append(h.fetches, dateKey)
		},
		GetLastDailyFetchDate: func() string { return h.lastDaily },
		SetLastDailyFetchDate: func(k string) { h.lastDaily = k },
		GetLastFetchAt:        func() time.Time { return h.lastFetch },
		SetLastFetchAt:        func(at time.Time) { h.lastFetch = at },
		Now:                   func() time.Time { return h.now },
	})
	return h
}

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

func TestIntervalFiresImmediatelyWhenNeverFetched(t *testing.T) {
	h := newHarness(t)
	h.settings = domain.AppSettings{AutoFetchIntervalMinutes: intPtr(15)}

	h.sched.RunOnce()
	if len(h.fetches) != 1 || h.fetches[0] != "2026-02-18" {
		t.Fatalf("fetches = %v", h.fetches)
	}
	if !h.lastFetch.Equal(h.now) {
		t.Fatalf("lastFetch = %v", h.lastFetch)
	}
}

func TestIntervalWaitsUntilDue(t *testing.T) {
	h := newHarness(t)
	h.settings = domain.AppSettings{AutoFetchIntervalMinutes: intPtr(15)}

	h.sched.RunOnce()
	h.advance(14 * time.Minute)
	h.sched.RunOnce()
	if len(h.fetches) != 1 {
		t.Fatalf("fetch fired early: %v", h.fetches)
	}

	h.advance(time.Minute)
	h.sched.RunOnce()
	if len(h.fetches) != 2 {
		t.Fatalf("fetch did not fire at the interval: %v", h.fetches)
	}
}

func TestDailyTriggerFiresOncePerDay(t *testing.T) {
	h := newHarness(t)
	h.settings = domain.AppSettings{AutoFetchTime: strPtr("09:00")}

	h.sched.RunOnce()
	if len(h.fetches) != 1 {
		t.Fatalf("fetches = %v", h.fetches)
	}
	if h.lastDaily != "2026-02-18" {
		t.Fatalf("lastDaily = %q", h.lastDaily)
	}

	// Still 09:00 on the same day.
	h.advance(30 * time.Second)
	h.sched.RunOnce()
	if len(h.fetches) != 1 {
		t.Fatalf("daily trigger double-fired: %v", h.fetches)
	}

	h.advance(24 * time.Hour)
	h.sched.RunOnce()
	if len(h.fetches) != 2 || h.fetches[1] != "2026-02-19" {
		t.Fatalf("fetches = %v", h.fetches)
	}
}

func TestDailyDoesNotFireOutsideItsMinute(t *testing.T) {
	h := newHarness(t)
	h.settings = domain.AppSettings{AutoFetchTime: strPtr("09:30")}

	h.sched.RunOnce()
	if len(h.fetches) != 0 {
		t.Fatalf("fetches = %v", h.fetches)
	}
}

func TestDailyFetchRestartsIntervalTimer(t *testing.T) {
	h := newHarness(t)
	h.settings = domain.AppSettings{
		AutoFetchTime:            strPtr("09:00"),
		AutoFetchIntervalMinutes: intPtr(30),
	}

	h.sched.RunOnce()
	if len(h.fetches) != 1 {
		t.Fatalf("fetches = %v", h.fetches)
	}

	// 29 minutes after the daily fetch the interval is not yet due.
	h.advance(29 * time.Minute)
	h.sched.RunOnce()
	if len(h.fetches) != 1 {
		t.Fatalf("interval ignored the daily fetch: %v", h.fetches)
	}

	h.advance(time.Minute)
	h.sched.RunOnce()
	if len(h.fetches) != 2 {
		t.Fatalf("fetches = %v", h.fetches)
	}
}

func TestNoIdentityMeansNoFetch(t *testing.T) {
	h := newHarness(t)
	h.user = nil
	h.settings = domain.AppSettings{AutoFetchIntervalMinutes: intPtr(5)}

	h.sched.RunOnce()
	if len(h.fetches) != 0 {
		t.Fatalf("fetches = %v", h.fetches)
	}
}

func TestNoTriggersConfiguredMeansNoFetch(t *testing.T) {
	h := newHarness(t)
	h.settings = domain.AppSettings{}

	h.sched.RunOnce()
	if len(h.fetches) != 0 {
		t.Fatalf("fetches = %v", h.fetches)
	}
}

func TestResetRunStateClearsMarkers(t *testing.T) {
	h := newHarness(t)
	h.settings = domain.AppSettings{
		AutoFetchTime:            strPtr("09:00"),
		AutoFetchIntervalMinutes: intPtr(30),
	}

	h.sched.RunOnce()
	h.sched.ResetRunState()
	if h.lastDaily != "" || !h.lastFetch.IsZero() {
		t.Fatalf("markers survived reset: %q %v", h.lastDaily, h.lastFetch)
	}

	// Same minute, same day: with markers cleared the daily trigger fires
	// again.
	h.sched.RunOnce()
	if len(h.fetches) != 2 {
		t.Fatalf("fetches = %v", h.fetches)
	}
}
