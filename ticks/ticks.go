// Package ticks implements the STTP tick time representation: a 64-bit
// count of 100-nanosecond intervals since 0001-01-01 00:00:00 UTC, with
// the top two bits reserved for leap-second metadata.
package ticks

import "time"

// Tick is a 100-nanosecond-resolution timestamp counted from 0001-01-01
// UTC, distinct from time.Time so leap-second bits are never silently
// lost in a conversion.
type Tick uint64

// PerSecond is the number of ticks in one second.
const PerSecond = 10_000_000

const (
	// LeapFlag marks a leap second.
	LeapFlag Tick = 1 << 63
	// LeapDirection marks the direction (positive/negative) of a leap second.
	LeapDirection Tick = 1 << 62
	// ValueMask isolates the 62 value bits from the leap-second bits.
	ValueMask Tick = ^(LeapFlag | LeapDirection)
)

// epoch is 0001-01-01 00:00:00 UTC expressed against the Go time package's
// own epoch, used for Tick<->time.Time conversion.
var epoch = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)

// Value returns the tick with its leap-second bits cleared.
func (t Tick) Value() Tick {
	return t & ValueMask
}

// IsLeapSecond reports whether the leap-second flag is set.
func (t Tick) IsLeapSecond() bool {
	return t&LeapFlag != 0
}

// LeapSecondIsNegative reports whether the leap second, if any, is a
// negative (skipped) leap second rather than a positive (inserted) one.
func (t Tick) LeapSecondIsNegative() bool {
	return t&LeapDirection != 0
}

// WithLeapSecond returns a copy of t with the leap-second bits set to
// reflect the given flag and direction, leaving the value bits untouched.
func (t Tick) WithLeapSecond(isLeap, negative bool) Tick {
	v := t.Value()
	if isLeap {
		v |= LeapFlag
		if negative {
			v |= LeapDirection
		}
	}
	return v
}

// ToTime converts the tick's value bits to a time.Time. Leap-second bits
// are not represented in the result; callers that need them should read
// IsLeapSecond/LeapSecondIsNegative separately.
//
// A plain epoch.Add(Duration) overflows time.Duration's int64-nanosecond
// range for any tick value beyond ~292 years past the epoch, which every
// real STTP timestamp is. Converting through whole seconds (time.Unix's
// own units) plus a 100ns remainder sidesteps that entirely.
func (t Tick) ToTime() time.Time {
	v := int64(t.Value())
	seconds := v / PerSecond
	remainder := v % PerSecond
	return time.Unix(epoch.Unix()+seconds, remainder*100).UTC()
}

// FromTime converts a time.Time to a Tick with no leap-second bits set.
// Times before the year 1 are not representable and are clamped to zero.
//
// tm.Sub(epoch) is avoided for the same reason as ToTime: time.Time.Sub
// clamps to the maximum representable Duration once the gap exceeds
// ~292 years, silently corrupting any modern timestamp. Unix() deals in
// whole seconds and never hits that ceiling.
func FromTime(tm time.Time) Tick {
	tm = tm.UTC()
	seconds := tm.Unix() - epoch.Unix()
	if seconds < 0 {
		return 0
	}
	ticks := seconds*PerSecond + int64(tm.Nanosecond())/100
	return Tick(ticks) & ValueMask
}

// Now returns the current time as a Tick.
func Now() Tick {
	return FromTime(time.Now())
}

// Add returns t advanced by d, preserving t's leap-second bits.
func (t Tick) Add(d time.Duration) Tick {
	leap := t &^ ValueMask
	v := (t.Value() + Tick(d/100)) & ValueMask
	return v | leap
}

// Sub returns the duration between two ticks' value bits (t - other).
func (t Tick) Sub(other Tick) time.Duration {
	return time.Duration(int64(t.Value())-int64(other.Value())) * 100
}
