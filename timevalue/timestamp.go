package timevalue

import (
	"fmt"
	"math"
	"time"

	"github.com/c360/telelog/errors"
)

// Timestamp is an instant in time, represented as an offset from a
// user-defined epoch. Conversions from calendar time presume the Unix epoch.
//
// Timestamps are non-negative: the representable range is
// [0, 2^32) seconds plus a nanosecond remainder in [0, 1e9).
type Timestamp struct {
	sec  uint32
	nsec uint32
}

// MaxTimestamp is the maximum representable timestamp.
var MaxTimestamp = Timestamp{sec: math.MaxUint32, nsec: nanosPerSec - 1}

// MinTimestamp is the minimum representable timestamp (the epoch itself).
var MinTimestamp = Timestamp{}

// NewTimestamp creates a new normalized timestamp.
//
// Excess nanoseconds are carried into whole seconds. Arguments outside the
// canonical storage ranges (sec and nsec in uint32), or a carry that pushes
// seconds past the maximum, fail with errors.ErrOverflow.
func NewTimestamp(sec, nsec int64) (Timestamp, error) {
	if sec < 0 || sec > math.MaxUint32 {
		return Timestamp{}, errors.WrapInvalid(
			fmt.Errorf("sec %d: %w", sec, errors.ErrOverflow),
			"Timestamp", "NewTimestamp", "range check")
	}
	if nsec < 0 || nsec > math.MaxUint32 {
		return Timestamp{}, errors.WrapInvalid(
			fmt.Errorf("nsec %d: %w", nsec, errors.ErrOverflow),
			"Timestamp", "NewTimestamp", "range check")
	}

	sec += nsec / nanosPerSec
	nsec %= nanosPerSec
	if sec > math.MaxUint32 {
		return Timestamp{}, errors.WrapInvalid(
			fmt.Errorf("sec %d after carry: %w", sec, errors.ErrOverflow),
			"Timestamp", "NewTimestamp", "normalize")
	}

	return Timestamp{sec: uint32(sec), nsec: uint32(nsec)}, nil
}

// MustTimestamp is like NewTimestamp but panics on overflow. Intended for
// constants and tests.
func MustTimestamp(sec, nsec int64) Timestamp {
	ts, err := NewTimestamp(sec, nsec)
	if err != nil {
		panic(err)
	}
	return ts
}

// TimestampFromEpochSecs creates a Timestamp from float64 seconds since the
// epoch. The fractional part is rounded to the nearest nanosecond. Negative
// values fail with errors.ErrOverflow since timestamps are non-negative.
func TimestampFromEpochSecs(secs float64) (Timestamp, error) {
	if secs < 0 || math.IsNaN(secs) {
		return Timestamp{}, errors.WrapInvalid(
			fmt.Errorf("%g below epoch: %w", secs, errors.ErrOverflow),
			"Timestamp", "TimestampFromEpochSecs", "range check")
	}
	if secs >= math.MaxUint32+1 {
		return Timestamp{}, errors.WrapInvalid(
			fmt.Errorf("%g above maximum: %w", secs, errors.ErrOverflow),
			"Timestamp", "TimestampFromEpochSecs", "range check")
	}

	sec := int64(secs)
	nsec := int64(math.Round((secs - float64(sec)) * nanosPerSec))
	return NewTimestamp(sec, nsec)
}

// SaturatingTimestampFromEpochSecs is like TimestampFromEpochSecs but clamps
// to MinTimestamp or MaxTimestamp instead of failing.
func SaturatingTimestampFromEpochSecs(secs float64) Timestamp {
	ts, err := TimestampFromEpochSecs(secs)
	if err != nil {
		if secs < 0 {
			return MinTimestamp
		}
		return MaxTimestamp
	}
	return ts
}

// TimestampFromTime converts a time.Time to a Timestamp relative to the Unix
// epoch. The instant is reduced to whole seconds plus a sub-second remainder
// first, then normalized through the same path as NewTimestamp.
func TimestampFromTime(t time.Time) (Timestamp, error) {
	return NewTimestamp(t.Unix(), int64(t.Nanosecond()))
}

// Now returns the current time as a Timestamp.
//
// Panics if the system clock is outside the representable range, which cannot
// happen before the year 2106.
func Now() Timestamp {
	ts, err := TimestampFromTime(time.Now())
	if err != nil {
		panic(err)
	}
	return ts
}

// Sec returns the number of whole seconds since the epoch.
func (t Timestamp) Sec() uint32 {
	return t.sec
}

// NSec returns the number of fractional seconds, as nanoseconds.
func (t Timestamp) NSec() uint32 {
	return t.nsec
}

// TotalNanos returns the timestamp as a total number of nanoseconds since the
// epoch.
func (t Timestamp) TotalNanos() uint64 {
	return uint64(t.sec)*nanosPerSec + uint64(t.nsec)
}

// Compare returns -1, 0, or 1 depending on whether t is before, equal to, or
// after other.
func (t Timestamp) Compare(other Timestamp) int {
	switch {
	case t.sec != other.sec:
		if t.sec < other.sec {
			return -1
		}
		return 1
	case t.nsec != other.nsec:
		if t.nsec < other.nsec {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// String returns the timestamp formatted as epoch seconds with nanosecond
// precision.
func (t Timestamp) String() string {
	return fmt.Sprintf("%d.%09d", t.sec, t.nsec)
}
