package watchdog

import (
	"context"
	"sync"
	"testing"
	"time"

	"timekeep/pkg/logx"
	"timekeep/pkg/timeslot"
)

type fakeNotifier struct {
	mu     sync.Mutex
	states []string
	period time.Duration
	socket bool
}

func (f *fakeNotifier) Notify(state string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.socket {
		return false, nil
	}
	f.states = append(f.states, state)
	return true, nil
}

func (f *fakeNotifier) WatchdogPeriod() (time.Duration, error) {
	return f.period, nil
}

func (f *fakeNotifier) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.states...)
}

func newTestService(socket bool, period time.Duration) (*Service, *fakeNotifier, *timeslot.Manual) {
	clock := timeslot.NewManual(time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC))
	fn := &fakeNotifier{socket: socket, period: period}
	s := New(Config{Enabled: true}, logx.Nop())
	s.sd = fn
	s.timers = timeslot.New(clock)
	return s, fn, clock
}

func TestReadyAndPings(t *testing.T) {
	t.Parallel()
	s, fn, clock := newTestService(true, 10*time.Second)
	s.Start(context.Background())

	clock.Advance(15 * time.Second) // pings at 5s, 10s, 15s (half period)
	s.Stop(context.Background())

	got := fn.sent()
	if len(got) != 5 {
		t.Fatalf("states = %v, want READY + 3 pings + STOPPING", got)
	}
	if got[0] != "READY=1" || got[len(got)-1] != "STOPPING=1" {
		t.Fatalf("unexpected state order: %v", got)
	}
	for _, st := range got[1 : len(got)-1] {
		if st != "WATCHDOG=1" {
			t.Fatalf("unexpected ping state: %v", got)
		}
	}
}

func TestStopCancelsPing(t *testing.T) {
	t.Parallel()
	s, fn, clock := newTestService(true, 10*time.Second)
	s.Start(context.Background())
	s.Stop(context.Background())

	before := len(fn.sent())
	clock.Advance(time.Minute)
	if len(fn.sent()) != before {
		t.Fatal("no pings should fire after stop")
	}
	if clock.Pending() != 0 {
		t.Fatalf("pending = %d, want 0", clock.Pending())
	}
}

func TestNoSocketStaysIdle(t *testing.T) {
	t.Parallel()
	s, _, clock := newTestService(false, 10*time.Second)
	s.Start(context.Background())
	if clock.Pending() != 0 {
		t.Fatal("no timer should be armed without a notify socket")
	}
}

func TestNoWatchdogDeclared(t *testing.T) {
	t.Parallel()
	s, fn, clock := newTestService(true, 0)
	s.Start(context.Background())
	if clock.Pending() != 0 {
		t.Fatal("no timer should be armed when the unit declares no watchdog")
	}
	if got := fn.sent(); len(got) != 1 || got[0] != "READY=1" {
		t.Fatalf("states = %v, want READY only", got)
	}
}

func TestDisabledDoesNothing(t *testing.T) {
	t.Parallel()
	fn := &fakeNotifier{socket: true, period: time.Second}
	s := New(Config{Enabled: false}, logx.Nop())
	s.sd = fn
	s.Start(context.Background())
	if len(fn.sent()) != 0 {
		t.Fatal("disabled service must not notify")
	}
}
