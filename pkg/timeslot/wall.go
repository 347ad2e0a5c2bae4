package timeslot

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Wall returns the production Clock backed by the Go runtime timers.
//
// One-shots use time.AfterFunc; repeating timers run a time.Ticker drained by
// a dedicated goroutine that exits on cancellation. Callbacks therefore fire
// on clock-owned goroutines, never on the caller's.
func Wall() Clock { return wallClock{} }

type wallClock struct{}

type wallOnce struct {
	cancelled atomic.Bool
	timer     *time.Timer
}

type wallRepeat struct {
	cancelled atomic.Bool
	ticker    *time.Ticker
	stop      chan struct{}
	stopOnce  sync.Once
}

func (wallClock) ScheduleOnce(d time.Duration, fn func()) (Handle, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	if d < 0 {
		d = 0
	}
	h := &wallOnce{}
	h.timer = time.AfterFunc(d, func() {
		// AfterFunc may fire concurrently with Stop; a cancelled handle must
		// never deliver a late callback.
		if h.cancelled.Load() {
			return
		}
		fn()
	})
	return h, nil
}

func (wallClock) ScheduleRepeating(interval time.Duration, fn func()) (Handle, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	h := &wallRepeat{
		ticker: time.NewTicker(interval),
		stop:   make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-h.stop:
				return
			case <-h.ticker.C:
				if h.cancelled.Load() {
					return
				}
				fn()
			}
		}
	}()
	return h, nil
}

func (wallClock) Cancel(h Handle) error {
	switch t := h.(type) {
	case nil:
		return nil
	case *wallOnce:
		t.cancelled.Store(true)
		t.timer.Stop()
		return nil
	case *wallRepeat:
		t.cancelled.Store(true)
		t.stopOnce.Do(func() {
			t.ticker.Stop()
			close(t.stop)
		})
		return nil
	default:
		return fmt.Errorf("timeslot: foreign handle %T", h)
	}
}
