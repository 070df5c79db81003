package timevalue

import (
	"fmt"
	"math"
	"time"

	"github.com/c360/telelog/errors"
)

const nanosPerSec = 1_000_000_000

// Duration is a signed, fixed-length span of time.
//
// The duration is represented by a count of seconds (which may be negative)
// and a count of fractional seconds at nanosecond resolution, which is always
// in the positive direction. A duration of -0.5s is therefore
// Duration{sec: -1, nsec: 500_000_000}.
type Duration struct {
	sec  int32
	nsec uint32
}

// MaxDuration is the maximum representable duration.
var MaxDuration = Duration{sec: math.MaxInt32, nsec: nanosPerSec - 1}

// MinDuration is the minimum representable duration.
var MinDuration = Duration{sec: math.MinInt32, nsec: 0}

// NewDuration creates a new normalized duration.
//
// Excess nanoseconds are carried into whole seconds. Arguments outside the
// canonical storage ranges (sec in int32, nsec in uint32), or a carry that
// pushes seconds out of range, fail with errors.ErrOverflow.
//
// Note that a sec argument below the minimum is rejected before the carry is
// applied, even if carrying the nanoseconds would bring the result back into
// range. This matches the reference behavior and is intentional.
func NewDuration(sec, nsec int64) (Duration, error) {
	if sec < math.MinInt32 || sec > math.MaxInt32 {
		return Duration{}, errors.WrapInvalid(
			fmt.Errorf("sec %d: %w", sec, errors.ErrOverflow),
			"Duration", "NewDuration", "range check")
	}
	if nsec < 0 || nsec > math.MaxUint32 {
		return Duration{}, errors.WrapInvalid(
			fmt.Errorf("nsec %d: %w", nsec, errors.ErrOverflow),
			"Duration", "NewDuration", "range check")
	}

	sec += nsec / nanosPerSec
	nsec %= nanosPerSec
	if sec < math.MinInt32 || sec > math.MaxInt32 {
		return Duration{}, errors.WrapInvalid(
			fmt.Errorf("sec %d after carry: %w", sec, errors.ErrOverflow),
			"Duration", "NewDuration", "normalize")
	}

	return Duration{sec: int32(sec), nsec: uint32(nsec)}, nil
}

// MustDuration is like NewDuration but panics on overflow. Intended for
// constants and tests.
func MustDuration(sec, nsec int64) Duration {
	d, err := NewDuration(sec, nsec)
	if err != nil {
		panic(err)
	}
	return d
}

// DurationFromSecs creates a Duration from float64 seconds.
//
// The fractional part is rounded to the nearest nanosecond. Negative
// fractional values borrow one whole second so the nanosecond remainder stays
// non-negative: -0.123s becomes Duration{sec: -1, nsec: 877_000_000}.
// Values outside the representable range fail with errors.ErrOverflow.
func DurationFromSecs(secs float64) (Duration, error) {
	if secs < math.MinInt32 {
		return Duration{}, errors.WrapInvalid(
			fmt.Errorf("%g below minimum: %w", secs, errors.ErrOverflow),
			"Duration", "DurationFromSecs", "range check")
	}
	if secs >= math.MaxInt32+1 || math.IsNaN(secs) {
		return Duration{}, errors.WrapInvalid(
			fmt.Errorf("%g above maximum: %w", secs, errors.ErrOverflow),
			"Duration", "DurationFromSecs", "range check")
	}

	sec := int64(secs)
	nsec := int64(math.Round((secs - float64(sec)) * nanosPerSec))
	if nsec < 0 {
		sec--
		nsec += nanosPerSec
	}
	return NewDuration(sec, nsec)
}

// SaturatingDurationFromSecs is like DurationFromSecs but clamps to
// MinDuration or MaxDuration instead of failing.
func SaturatingDurationFromSecs(secs float64) Duration {
	d, err := DurationFromSecs(secs)
	if err != nil {
		if secs < 0 {
			return MinDuration
		}
		return MaxDuration
	}
	return d
}

// DurationFromTimeDelta converts a time.Duration to a Duration.
//
// The interval is split into whole seconds and a sub-second remainder, with a
// borrow on negative remainders, then normalized through the same path as
// NewDuration.
func DurationFromTimeDelta(d time.Duration) (Duration, error) {
	sec := int64(d / time.Second)
	rem := int64(d % time.Second)
	if rem < 0 {
		sec--
		rem += nanosPerSec
	}
	return NewDuration(sec, rem)
}

// Sec returns the number of whole seconds in the duration.
func (d Duration) Sec() int32 {
	return d.sec
}

// NSec returns the number of fractional seconds in the duration, as nanoseconds.
func (d Duration) NSec() uint32 {
	return d.nsec
}

// TotalNanos returns the duration as a total number of nanoseconds.
func (d Duration) TotalNanos() int64 {
	return int64(d.sec)*nanosPerSec + int64(d.nsec)
}

// Compare returns -1, 0, or 1 depending on whether d is less than, equal to,
// or greater than other.
func (d Duration) Compare(other Duration) int {
	switch {
	case d.sec != other.sec:
		if d.sec < other.sec {
			return -1
		}
		return 1
	case d.nsec != other.nsec:
		if d.nsec < other.nsec {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// String returns the duration formatted as seconds with nanosecond precision.
func (d Duration) String() string {
	return fmt.Sprintf("%d.%09ds", d.sec, d.nsec)
}
