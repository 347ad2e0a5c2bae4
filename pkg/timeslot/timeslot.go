package timeslot

import (
	"errors"
	"time"
)

// Manager arms and cancels timers against an injected Clock.
//
// Manager itself holds no state beyond the clock; all mutable state lives in
// the caller-owned slots.
type Manager struct {
	clock Clock
}

// New returns a Manager scheduling against clock. A nil clock defaults to
// Wall().
func New(clock Clock) *Manager {
	if clock == nil {
		clock = Wall()
	}
	return &Manager{clock: clock}
}

// Clock returns the clock this manager schedules against.
func (m *Manager) Clock() Clock { return m.clock }

// ArmOnce registers fn to fire once after delay.
//
// If slot is non-nil, any handle it currently holds is cancelled first and
// the new handle is stored in it. When the timer fires the slot is cleared
// before fn runs, so fn may re-arm the same slot without colliding with its
// own just-fired handle.
//
// A negative delay is treated as zero (fires on the next scheduling
// opportunity). The handle is returned even when a slot is used, so callers
// holding no slot can still cancel through the clock directly.
func (m *Manager) ArmOnce(fn func(), delay time.Duration, slot *Slot) (Handle, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	if delay < 0 {
		delay = 0
	}
	if slot == nil {
		h, err := m.clock.ScheduleOnce(delay, fn)
		if err != nil {
			return nil, &SchedulingError{Op: "once", Err: err}
		}
		return h, nil
	}

	// The slot lock is held across cancel-old + register + install, so the
	// wrapper below cannot observe a half-armed slot even when the clock
	// fires on another goroutine with a zero delay.
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.h != nil {
		_ = m.clock.Cancel(slot.h)
		slot.h = nil
	}
	var installed Handle
	h, err := m.clock.ScheduleOnce(delay, func() {
		slot.mu.Lock()
		if slot.h != installed {
			// The fire lost a race with Cancel or a re-arm: the slot no
			// longer holds this handle, so the callback must not run. A
			// wall-clock fire can park on slot.mu while the cancellation
			// completes, which the clock's own cancelled check predates.
			slot.mu.Unlock()
			return
		}
		// Clear before invoking so fn may re-arm the same slot without
		// colliding with its own just-fired handle.
		slot.h = nil
		slot.mu.Unlock()
		fn()
	})
	if err != nil {
		return nil, &SchedulingError{Op: "once", Err: err}
	}
	installed = h
	slot.h = h
	return h, nil
}

// ArmRepeating registers fn to fire every interval until cancelled.
//
// Same pre-arm cancellation discipline as ArmOnce. The slot is not cleared on
// ticks; a repeating timer stays armed until an explicit Cancel empties it.
// An interval <= 0 is a caller contract violation: ErrInvalidInterval is
// returned and the slot is left exactly as it was.
func (m *Manager) ArmRepeating(fn func(), interval time.Duration, slot *Slot) (Handle, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if slot == nil {
		h, err := m.clock.ScheduleRepeating(interval, fn)
		if err != nil {
			return nil, &SchedulingError{Op: "repeating", Err: err}
		}
		return h, nil
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.h != nil {
		_ = m.clock.Cancel(slot.h)
		slot.h = nil
	}
	h, err := m.clock.ScheduleRepeating(interval, fn)
	if err != nil {
		return nil, &SchedulingError{Op: "repeating", Err: err}
	}
	slot.h = h
	return h, nil
}

// Cancel empties slot, cancelling its handle if one is armed. Cancelling an
// empty (or nil) slot is a no-op; repeated calls are harmless. A non-nil
// error can only come from the clock itself and the slot is empty regardless.
func (m *Manager) Cancel(slot *Slot) error {
	if slot == nil {
		return nil
	}
	slot.mu.Lock()
	h := slot.h
	slot.h = nil
	slot.mu.Unlock()
	if h == nil {
		return nil
	}
	return m.clock.Cancel(h)
}

// CancelAll cancels every slot in order. A clock fault on one slot does not
// stop the sweep: faults are collected and returned joined after every slot
// in the sequence has been emptied.
func (m *Manager) CancelAll(slots ...*Slot) error {
	var errs []error
	for _, s := range slots {
		if err := m.Cancel(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
