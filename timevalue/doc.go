// Package timevalue provides the fixed-point time values used to stamp logged
// messages: Duration (a signed span of time) and Timestamp (an unsigned instant
// relative to an epoch).
//
// Both types store seconds and a non-negative nanosecond remainder in the
// range [0, 1e9). Constructors normalize their arguments by carrying excess
// nanoseconds into whole seconds, and fail with errors.ErrOverflow when the
// result falls outside the type's representable range. Every conversion
// (floats, time.Time, time.Duration) funnels through the same normalize path,
// so there is one source of truth for carry and overflow behavior.
//
// Values are immutable and may be shared freely across goroutines. Equality
// and ordering are defined on the canonical (sec, nsec) form.
package timevalue
