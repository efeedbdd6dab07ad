// Package compact implements the compact per-measurement binary layout:
// a 1-byte flags header, 2-byte runtime index, 4- or 8-byte value, and
// either a 2-byte offset against a shared base timestamp or a full
// 8-byte tick.
package compact

import (
	"math"

	"github.com/c360/sttp/errors"
	"github.com/c360/sttp/measurement"
	"github.com/c360/sttp/signalindexcache"
	"github.com/c360/sttp/ticks"
	"github.com/c360/sttp/wire"
)

// fullTimestampSentinel is the all-ones 16-bit offset value meaning "the
// full 8-byte timestamp follows this field instead of an offset".
const fullTimestampSentinel = 0xFFFF

// maxOffsetTicks is the largest representable offset: any tick further
// than this from its base forces the full-timestamp encoding.
const maxOffsetTicks = 0xFFFE

// measurement flags byte bit layout.
const (
	flagTimeIndex      = 1 << 0 // which of the two base timestamps this record uses
	flagByteChannelLo  = 1 << 1
	flagByteChannelHi  = 1 << 2
	flagValueIsDouble  = 1 << 3 // value field is 8 bytes (float64) instead of 4 (float32)
	flagFullStateFlags = 1 << 4 // a 4-byte StateFlags field follows the timestamp
)

// BaseTimes holds the two shared base timestamps a batch's per-measurement
// offsets are relative to, plus the rollover point at which the publisher
// will issue a fresh UpdateBaseTimes.
type BaseTimes struct {
	Rollover ticks.Tick
	Base0    ticks.Tick
	Base1    ticks.Tick
}

// EncodeBaseTimes serializes a BaseTimes as
// [u64 baseTimeRollover][u64 baseTime0][u64 baseTime1].
func EncodeBaseTimes(bt BaseTimes) []byte {
	w := wire.NewWriter(24)
	w.WriteUint64(uint64(bt.Rollover))
	w.WriteUint64(uint64(bt.Base0))
	w.WriteUint64(uint64(bt.Base1))
	return w.Bytes()
}

// DecodeBaseTimes parses the wire format produced by EncodeBaseTimes.
func DecodeBaseTimes(buf []byte) (BaseTimes, error) {
	r := wire.NewReader(buf)
	rollover, err := r.Uint64()
	if err != nil {
		return BaseTimes{}, errors.Wrap(err, "compact", "DecodeBaseTimes", "read rollover")
	}
	b0, err := r.Uint64()
	if err != nil {
		return BaseTimes{}, errors.Wrap(err, "compact", "DecodeBaseTimes", "read base0")
	}
	b1, err := r.Uint64()
	if err != nil {
		return BaseTimes{}, errors.Wrap(err, "compact", "DecodeBaseTimes", "read base1")
	}
	return BaseTimes{Rollover: ticks.Tick(rollover), Base0: ticks.Tick(b0), Base1: ticks.Tick(b1)}, nil
}

// Resolution selects whether compact time offsets are counted in raw
// 100ns ticks or in whole milliseconds.
type Resolution int

const (
	// Ticks100ns counts offsets in raw 100-nanosecond STTP ticks.
	Ticks100ns Resolution = iota
	// Milliseconds counts offsets in whole milliseconds.
	Milliseconds
)

func (res Resolution) unitTicks() uint64 {
	if res == Milliseconds {
		return ticks.PerSecond / 1000
	}
	return 1
}

// EncodeMeasurement appends the compact record for m to w, given the
// runtime index assigned to its signal, the shared base times, and the
// negotiated time resolution. ByteChannel selects one of up to four
// logical sub-channels (used by some deployments to multiplex value
// streams); pass 0 if unused.
func EncodeMeasurement(w *wire.Writer, m measurement.Measurement, runtimeIndex uint32, bt BaseTimes, res Resolution, byteChannel int, useDouble bool) {
	timeIndex, offset, useFull := selectOffset(m.Timestamp, bt, res)

	flags := byte(0)
	if timeIndex == 1 {
		flags |= flagTimeIndex
	}
	flags |= byte(byteChannel&0x01) << 1
	flags |= byte((byteChannel>>1)&0x01) << 2
	if useDouble {
		flags |= flagValueIsDouble
	}
	if m.Flags != measurement.Normal {
		flags |= flagFullStateFlags
	}

	_ = w.WriteByte(flags)
	w.WriteUint16(uint16(runtimeIndex))

	if useDouble {
		w.WriteUint64(math.Float64bits(m.Value))
	} else {
		w.WriteUint32(math.Float32bits(float32(m.Value)))
	}

	if useFull {
		w.WriteUint16(fullTimestampSentinel)
		w.WriteUint64(uint64(m.Timestamp))
	} else {
		w.WriteUint16(uint16(offset))
	}

	if m.Flags != measurement.Normal {
		w.WriteUint32(uint32(m.Flags))
	}
}

// selectOffset uses Base0 when the tick falls inside Base0's window and
// Base1 only when it does not, forcing the full-timestamp path when the tick carries
// leap-second bits (they are orthogonal to the base-relative value bits
// and would otherwise be lost) or falls outside both bases' windows.
func selectOffset(t ticks.Tick, bt BaseTimes, res Resolution) (timeIndex int, offset uint32, useFull bool) {
	if t.IsLeapSecond() {
		return 0, 0, true
	}

	unit := res.unitTicks()
	try := func(base ticks.Tick) (uint32, bool) {
		if t.Value() < base.Value() {
			return 0, false
		}
		delta := uint64(t.Value()-base.Value()) / unit
		if delta > maxOffsetTicks {
			return 0, false
		}
		return uint32(delta), true
	}

	if off, ok := try(bt.Base0); ok {
		return 0, off, false
	}
	if off, ok := try(bt.Base1); ok {
		return 1, off, false
	}
	return 0, 0, true
}

// DecodeMeasurement reads one compact record from r, resolving its
// runtime index against cache to obtain the measurement's signal ID. It
// returns signalindexcache's "not found" behavior as ok=false rather
// than an error: a data packet referencing an index outside the active
// cache is expected during cache rotation and must be silently dropped,
// not treated as a protocol violation.
func DecodeMeasurement(r *wire.Reader, cache *signalindexcache.Cache, bt BaseTimes, res Resolution) (measurement.Measurement, bool, error) {
	flags, err := r.Byte()
	if err != nil {
		return measurement.Measurement{}, false, errors.Wrap(err, "compact", "DecodeMeasurement", "read flags")
	}
	runtimeIndex, err := r.Uint16()
	if err != nil {
		return measurement.Measurement{}, false, errors.Wrap(err, "compact", "DecodeMeasurement", "read runtimeIndex")
	}

	var value float64
	if flags&flagValueIsDouble != 0 {
		bits, err := r.Uint64()
		if err != nil {
			return measurement.Measurement{}, false, errors.Wrap(err, "compact", "DecodeMeasurement", "read value")
		}
		value = math.Float64frombits(bits)
	} else {
		bits, err := r.Uint32()
		if err != nil {
			return measurement.Measurement{}, false, errors.Wrap(err, "compact", "DecodeMeasurement", "read value")
		}
		value = float64(math.Float32frombits(bits))
	}

	offset, err := r.Uint16()
	if err != nil {
		return measurement.Measurement{}, false, errors.Wrap(err, "compact", "DecodeMeasurement", "read time offset")
	}

	var ts ticks.Tick
	if offset == fullTimestampSentinel {
		full, err := r.Uint64()
		if err != nil {
			return measurement.Measurement{}, false, errors.Wrap(err, "compact", "DecodeMeasurement", "read full timestamp")
		}
		ts = ticks.Tick(full)
	} else {
		base := bt.Base0
		if flags&flagTimeIndex != 0 {
			base = bt.Base1
		}
		ts = base.Value() + ticks.Tick(uint64(offset)*res.unitTicks())
	}

	stateFlags := measurement.Normal
	if flags&flagFullStateFlags != 0 {
		raw, err := r.Uint32()
		if err != nil {
			return measurement.Measurement{}, false, errors.Wrap(err, "compact", "DecodeMeasurement", "read state flags")
		}
		stateFlags = measurement.StateFlags(raw)
	}

	id, ok := cache.IDOf(uint32(runtimeIndex))
	if !ok {
		return measurement.Measurement{}, false, nil
	}

	return measurement.Measurement{
		SignalID:  id,
		Value:     value,
		Timestamp: ts,
		Flags:     stateFlags,
	}, true, nil
}
