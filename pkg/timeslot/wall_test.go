package timeslot

import (
	"sync/atomic"
	"testing"
	"time"
)

// End-to-end against the real clock: one-shot fires once and clears its slot,
// a repeating timer ticks until cancelled, and nothing ticks after Cancel.
func TestWallEndToEnd(t *testing.T) {
	t.Parallel()
	m := New(Wall())

	var slot Slot
	var counter atomic.Int64

	if _, err := m.ArmOnce(func() { counter.Add(1) }, 50*time.Millisecond, &slot); err != nil {
		t.Fatalf("ArmOnce error: %v", err)
	}
	waitFor(t, time.Second, func() bool { return counter.Load() == 1 })
	waitFor(t, time.Second, func() bool { return !slot.Armed() })

	if _, err := m.ArmRepeating(func() { counter.Add(1) }, 20*time.Millisecond, &slot); err != nil {
		t.Fatalf("ArmRepeating error: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return counter.Load() >= 4 })
	if !slot.Armed() {
		t.Fatal("repeating timer should keep the slot armed")
	}

	if err := m.Cancel(&slot); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	after := counter.Load()
	time.Sleep(80 * time.Millisecond)
	// Cancellation cannot retract an in-progress tick, but nothing may start
	// after it.
	if got := counter.Load(); got > after+1 {
		t.Fatalf("counter advanced after cancel: %d -> %d", after, got)
	}
}

func TestWallCancelPreventsFire(t *testing.T) {
	t.Parallel()
	m := New(Wall())

	var slot Slot
	var fired atomic.Bool
	if _, err := m.ArmOnce(func() { fired.Store(true) }, 60*time.Millisecond, &slot); err != nil {
		t.Fatalf("ArmOnce error: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := m.Cancel(&slot); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	time.Sleep(120 * time.Millisecond)
	if fired.Load() {
		t.Fatal("cancelled one-shot fired")
	}
}

// A fire that starts while a cancellation is in progress parks on the slot
// lock; once the cancel completes the callback must not be delivered. Holding
// slot.mu past the deadline makes the interleaving deterministic: the
// AfterFunc goroutine has passed the clock's cancelled check and is waiting
// on the lock when the cancel steps run.
func TestWallCancelWinsOverInFlightFire(t *testing.T) {
	t.Parallel()
	m := New(Wall())

	var slot Slot
	var fired atomic.Bool
	h, err := m.ArmOnce(func() { fired.Store(true) }, 5*time.Millisecond, &slot)
	if err != nil {
		t.Fatalf("ArmOnce error: %v", err)
	}

	slot.mu.Lock()
	time.Sleep(60 * time.Millisecond)
	// Same steps as Manager.Cancel, run to completion while the fire waits.
	slot.h = nil
	if err := m.Clock().Cancel(h); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	slot.mu.Unlock()

	time.Sleep(60 * time.Millisecond)
	if fired.Load() {
		t.Fatal("callback of a fully cancelled one-shot was delivered")
	}
}

// The same interleaving followed by a re-arm: the parked fire finds the slot
// holding a newer occupant (or nothing) and must yield to it.
func TestWallRearmAfterParkedFire(t *testing.T) {
	t.Parallel()
	m := New(Wall())

	var slot Slot
	var old, replacement atomic.Int64
	h, err := m.ArmOnce(func() { old.Add(1) }, 5*time.Millisecond, &slot)
	if err != nil {
		t.Fatalf("ArmOnce error: %v", err)
	}

	slot.mu.Lock()
	time.Sleep(60 * time.Millisecond)
	slot.h = nil
	if err := m.Clock().Cancel(h); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	slot.mu.Unlock()

	if _, err := m.ArmOnce(func() { replacement.Add(1) }, 5*time.Millisecond, &slot); err != nil {
		t.Fatalf("re-arm error: %v", err)
	}
	waitFor(t, time.Second, func() bool { return replacement.Load() == 1 })
	if got := old.Load(); got != 0 {
		t.Fatalf("replaced callback ran %d times", got)
	}
}

func TestWallZeroDelay(t *testing.T) {
	t.Parallel()
	m := New(Wall())

	var slot Slot
	var fired atomic.Bool
	if _, err := m.ArmOnce(func() { fired.Store(true) }, 0, &slot); err != nil {
		t.Fatalf("ArmOnce error: %v", err)
	}
	waitFor(t, time.Second, func() bool { return fired.Load() && !slot.Armed() })
}

func TestWallForeignHandle(t *testing.T) {
	t.Parallel()
	clock := Wall()
	if err := clock.Cancel(42); err == nil {
		t.Fatal("cancelling a foreign handle should error")
	}
	if err := clock.Cancel(nil); err != nil {
		t.Fatalf("cancelling nil must be a no-op, got: %v", err)
	}
}

func TestWallRepeatingInvalidInterval(t *testing.T) {
	t.Parallel()
	clock := Wall()
	if _, err := clock.ScheduleRepeating(0, func() {}); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

// waitFor polls cond until it holds or the deadline passes. Wall-clock tests
// tolerate scheduler jitter this way instead of asserting exact timings.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
