package timeslot

import "errors"

// Errors reported by the manager. All are synchronous to the arm/cancel call;
// there is no deferred error channel.
var (
	ErrInvalidInterval = errors.New("timeslot: repeating interval must be positive")
	ErrNilCallback     = errors.New("timeslot: callback required")
)

// SchedulingError reports that the underlying clock refused a registration
// (typically resource exhaustion in the host runtime). The slot targeted by
// the failed arm is left empty: its previous occupant was already cancelled,
// and a failed re-arm does not resurrect the old timer. Callers must treat a
// failed arm as "nothing scheduled".
type SchedulingError struct {
	Op  string // "once" or "repeating"
	Err error
}

func (e *SchedulingError) Error() string {
	return "timeslot: scheduling " + e.Op + " timer: " + e.Err.Error()
}

func (e *SchedulingError) Unwrap() error { return e.Err }
