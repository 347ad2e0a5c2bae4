package timeslot

import "time"

// Handle identifies a callback registered with a Clock.
//
// Handles are opaque: the manager only stores them and hands them back to the
// clock for cancellation. Implementations must return comparable values,
// because slot bookkeeping relies on handle identity.
type Handle any

// Clock is the host timer capability the manager schedules against.
//
// Implementations must never invoke a callback synchronously from inside
// ScheduleOnce/ScheduleRepeating; the manager installs the returned handle
// into the slot right after registration and relies on that window being
// fire-free.
type Clock interface {
	// ScheduleOnce registers fn to run once after d.
	ScheduleOnce(d time.Duration, fn func()) (Handle, error)

	// ScheduleRepeating registers fn to run every interval until the handle
	// is cancelled.
	ScheduleRepeating(interval time.Duration, fn func()) (Handle, error)

	// Cancel unregisters a handle. Cancelling a handle that already fired
	// (one-shot) or was already cancelled is a no-op.
	Cancel(h Handle) error
}
