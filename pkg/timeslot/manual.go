package timeslot

import (
	"fmt"
	"sync"
	"time"
)

// Manual is a deterministic Clock for tests and simulations: nothing fires
// until Advance moves simulated time past a timer's deadline.
//
// Due timers fire in deadline order, registration order breaking ties, and
// callbacks run with no internal lock held, so a callback may freely arm or
// cancel (including its own slot).
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	pending []*manualTimer
}

type manualTimer struct {
	clock    *Manual
	seq      int
	when     time.Time
	interval time.Duration // 0 for one-shot
	fn       func()
}

// NewManual returns a manual clock whose simulated time starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current simulated time.
func (c *Manual) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Pending reports how many timers are registered and neither fired (one-shot)
// nor cancelled.
func (c *Manual) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Manual) ScheduleOnce(d time.Duration, fn func()) (Handle, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, seq: c.seq, when: c.now.Add(d), fn: fn}
	c.seq++
	c.pending = append(c.pending, t)
	return t, nil
}

func (c *Manual) ScheduleRepeating(interval time.Duration, fn func()) (Handle, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, seq: c.seq, when: c.now.Add(interval), interval: interval, fn: fn}
	c.seq++
	c.pending = append(c.pending, t)
	return t, nil
}

func (c *Manual) Cancel(h Handle) error {
	if h == nil {
		return nil
	}
	t, ok := h.(*manualTimer)
	if !ok || t.clock != c {
		return fmt.Errorf("timeslot: foreign handle %T", h)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(t)
	return nil
}

// Advance moves simulated time forward by d, firing every timer whose
// deadline falls inside the window. Repeating timers re-queue themselves and
// can fire several times within one Advance.
func (c *Manual) Advance(d time.Duration) {
	if d < 0 {
		return
	}
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		t := c.nextDueLocked(target)
		if t == nil {
			break
		}
		if t.when.After(c.now) {
			c.now = t.when
		}
		if t.interval > 0 {
			t.when = t.when.Add(t.interval)
		} else {
			c.removeLocked(t)
		}
		c.mu.Unlock()
		t.fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// nextDueLocked returns the earliest timer due at or before target, ties
// broken by registration order.
func (c *Manual) nextDueLocked(target time.Time) *manualTimer {
	var best *manualTimer
	for _, t := range c.pending {
		if t.when.After(target) {
			continue
		}
		if best == nil || t.when.Before(best.when) || (t.when.Equal(best.when) && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

func (c *Manual) removeLocked(t *manualTimer) {
	for i, p := range c.pending {
		if p == t {
			last := len(c.pending) - 1
			c.pending[i] = c.pending[last]
			c.pending[last] = nil
			c.pending = c.pending[:last]
			return
		}
	}
}
