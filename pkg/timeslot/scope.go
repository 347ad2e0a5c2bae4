package timeslot

import "sync"

// Scope groups slots under a common teardown. Callers that arm timers for the
// lifetime of some context (a session, a UI component, a job set) take a
// Scope and close it when that context ends; Close bulk-cancels everything
// armed through it, so no handle outlives its owner.
type Scope struct {
	m *Manager

	mu     sync.Mutex
	closed bool
	slots  []*Slot
}

// NewScope returns an empty scope bound to the manager.
func (m *Manager) NewScope() *Scope {
	return &Scope{m: m}
}

// Slot returns a fresh empty slot tracked by the scope. Slots requested after
// Close are returned usable but untracked; owners should not arm timers past
// their scope's teardown.
func (sc *Scope) Slot() *Slot {
	s := &Slot{}
	sc.mu.Lock()
	if !sc.closed {
		sc.slots = append(sc.slots, s)
	}
	sc.mu.Unlock()
	return s
}

// Len reports how many slots the scope tracks.
func (sc *Scope) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.slots)
}

// Close cancels every tracked slot and stops tracking. Repeated calls are
// no-ops. The returned error aggregates clock faults the same way CancelAll
// does; every tracked slot is empty on return regardless.
func (sc *Scope) Close() error {
	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		return nil
	}
	sc.closed = true
	slots := sc.slots
	sc.slots = nil
	sc.mu.Unlock()
	return sc.m.CancelAll(slots...)
}
