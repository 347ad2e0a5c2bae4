// Package timeslot manages the lifecycle of deferred and repeating callbacks.
//
// Every scheduled unit of work is owned by a caller-supplied Slot: arming a
// timer into an occupied slot cancels the previous occupant first, a one-shot
// clears its slot before the callback runs, and Cancel/CancelAll give every
// timer an explicit teardown path. The package exists to prevent the classic
// event-driven leak: a deferred callback whose handle nobody kept, firing
// after its owner is gone.
//
// The clock is an injected capability (see Clock). Wall() is the production
// implementation backed by runtime timers; Manual is a simulated clock for
// deterministic tests.
//
// timeslot is not a scheduler: it has no job queue, no persistence and no
// precision guarantees beyond what the underlying clock offers. It manages
// handles and their cancellation, nothing else.
package timeslot
