package jobs

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"timekeep/pkg/logx"
	"timekeep/pkg/timeslot"
)

type countRunner struct {
	calls atomic.Int64
	fail  bool
}

func (r *countRunner) Run(ctx context.Context, def JobSpec) error {
	r.calls.Add(1)
	if r.fail {
		return context.DeadlineExceeded
	}
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

// newTestService wires the service to a deterministic clock and a fake
// runner. Timers fire on clock.Advance; execution still flows through the
// real worker pool.
func newTestService(t *testing.T, cfg Config, run Runner) (*Service, *timeslot.Manual) {
	t.Helper()
	clock := timeslot.NewManual(time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC))
	s := New(cfg, logx.Nop(), nil)
	s.timers = timeslot.New(clock)
	s.now = clock.Now
	s.run = run
	return s, clock
}

func TestIntervalJobFires(t *testing.T) {
	t.Parallel()
	run := &countRunner{}
	s, clock := newTestService(t, Config{Workers: 1, HistorySize: 10}, run)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	s.Apply(s.cfg, []JobSpec{{Name: "tick", Schedule: "30s", Command: []string{"true"}}})

	clock.Advance(90 * time.Second)
	waitFor(t, func() bool { return run.calls.Load() == 3 })

	hist := s.History()
	if len(hist) != 3 {
		t.Fatalf("history = %d items, want 3", len(hist))
	}
	if hist[0].Kind != "interval" || hist[0].Name != "tick" {
		t.Fatalf("unexpected history item: %+v", hist[0])
	}
}

func TestCronJobRearmsAfterFire(t *testing.T) {
	t.Parallel()
	run := &countRunner{}
	s, clock := newTestService(t, Config{Workers: 1}, run)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	// Fires at the top of every minute; clock starts at 12:00:00 so the
	// first fire is 12:01:00.
	s.Apply(s.cfg, []JobSpec{{Name: "minutely", Schedule: "* * * * *", Command: []string{"true"}}})

	clock.Advance(time.Minute)
	waitFor(t, func() bool { return run.calls.Load() == 1 })

	// The one-shot cleared its slot before the callback and the callback
	// re-armed it for the next occurrence.
	snap := s.Snapshot()
	if len(snap) != 1 || !snap[0].Armed {
		t.Fatalf("job should be re-armed after fire: %+v", snap)
	}

	clock.Advance(2 * time.Minute)
	waitFor(t, func() bool { return run.calls.Load() == 3 })
}

func TestApplyReplacesJobs(t *testing.T) {
	t.Parallel()
	run := &countRunner{}
	s, clock := newTestService(t, Config{Workers: 1}, run)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	s.Apply(s.cfg, []JobSpec{{Name: "old", Schedule: "10s", Command: []string{"true"}}})
	if clock.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", clock.Pending())
	}

	s.Apply(s.cfg, []JobSpec{{Name: "new", Schedule: "20s", Command: []string{"true"}}})
	if clock.Pending() != 1 {
		t.Fatalf("pending after apply = %d, want 1 (old slot cancelled)", clock.Pending())
	}

	clock.Advance(20 * time.Second)
	waitFor(t, func() bool { return run.calls.Load() >= 1 })
	if got := s.History()[0].Name; got != "new" {
		t.Fatalf("ran %q, want new", got)
	}
}

func TestApplySkipsInvalidSchedule(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, Config{Workers: 1}, &countRunner{})
	s.Apply(s.cfg, []JobSpec{
		{Name: "bad", Schedule: "sometimes", Command: []string{"true"}},
		{Name: "good", Schedule: "5s", Command: []string{"true"}},
	})
	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].Name != "good" {
		t.Fatalf("snapshot = %+v, want only good", snap)
	}
}

func TestStopCancelsAllSlots(t *testing.T) {
	t.Parallel()
	run := &countRunner{}
	s, clock := newTestService(t, Config{Workers: 1}, run)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	s.Apply(s.cfg, []JobSpec{
		{Name: "a", Schedule: "10s", Command: []string{"true"}},
		{Name: "b", Schedule: "* * * * *", Command: []string{"true"}},
	})
	if clock.Pending() != 2 {
		t.Fatalf("pending = %d, want 2", clock.Pending())
	}

	s.Stop(context.Background())
	if clock.Pending() != 0 {
		t.Fatalf("pending after stop = %d, want 0", clock.Pending())
	}
	clock.Advance(time.Hour)
	if run.calls.Load() != 0 {
		t.Fatal("no job should run after stop")
	}
}

func TestHistoryRecordsFailure(t *testing.T) {
	t.Parallel()
	run := &countRunner{fail: true}
	s, clock := newTestService(t, Config{Workers: 1, HistorySize: 5}, run)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	s.Apply(s.cfg, []JobSpec{{Name: "flaky", Schedule: "1s", Command: []string{"true"}}})
	clock.Advance(time.Second)
	waitFor(t, func() bool { return len(s.History()) == 1 })

	if got := s.History()[0].Error; got == "" {
		t.Fatal("failed run should record its error")
	}
}

func TestHistoryRingBounded(t *testing.T) {
	t.Parallel()
	run := &countRunner{}
	s, clock := newTestService(t, Config{Workers: 1, HistorySize: 3}, run)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	s.Apply(s.cfg, []JobSpec{{Name: "tick", Schedule: "1s", Command: []string{"true"}}})
	clock.Advance(10 * time.Second)
	waitFor(t, func() bool { return run.calls.Load() == 10 })
	waitFor(t, func() bool { return len(s.History()) == 3 })
}

func TestExecRunner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	if err := (ExecRunner{}).Run(ctx, JobSpec{Command: []string{"/bin/sh", "-c", "exit 0"}}); err != nil {
		t.Fatalf("success command errored: %v", err)
	}

	err := (ExecRunner{}).Run(ctx, JobSpec{Command: []string{"/bin/sh", "-c", "echo boom >&2; exit 3"}})
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("error should carry stderr: %v", err)
	}

	if err := (ExecRunner{}).Run(ctx, JobSpec{}); err == nil {
		t.Fatal("empty command should error")
	}
}

func TestExecRunnerTimeout(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := (ExecRunner{}).Run(ctx, JobSpec{Command: []string{"/bin/sh", "-c", "sleep 5"}})
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}
