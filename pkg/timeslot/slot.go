package timeslot

import "sync"

// Slot is a caller-owned cell holding at most one live timer handle.
//
// The zero value is an empty slot, ready for use. A slot belongs to whichever
// logical context created it (a component, a session, a job); the manager
// never infers ownership, the owner passes the slot to every operation.
//
// Arm and cancel operations on one slot must come from a single owner. The
// internal mutex only protects the cell against the fire-goroutine auto-clear
// of one-shot timers; it does not make two owners racing full arm/cancel
// sequences meaningful.
type Slot struct {
	mu sync.Mutex
	h  Handle
}

// Armed reports whether the slot currently holds a handle.
func (s *Slot) Armed() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h != nil
}
