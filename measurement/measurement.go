// Package measurement defines the STTP Measurement tuple: a single
// (signal, timestamp, value, quality-flags) sample, the unit both the
// compact and TSSC codecs operate over.
package measurement

import (
	"github.com/c360/sttp/ticks"
	"github.com/google/uuid"
)

// StateFlags is a 32-bit bitset describing measurement quality.
type StateFlags uint32

const (
	// Normal is the default, no-flags-set state.
	Normal StateFlags = 0

	// DataRangeFlag indicates the value is outside its configured range.
	DataRangeFlag StateFlags = 1 << 0
	// BadDataFlag indicates the underlying value is known bad.
	BadDataFlag StateFlags = 1 << 1
	// SuspectDataFlag indicates the value is suspect but not confirmed bad.
	SuspectDataFlag StateFlags = 1 << 2
	// OverRangeErrorFlag indicates a value over its expected range.
	OverRangeErrorFlag StateFlags = 1 << 3
	// UnderRangeErrorFlag indicates a value under its expected range.
	UnderRangeErrorFlag StateFlags = 1 << 4
	// CalculatedValueFlag indicates the value was derived, not measured directly.
	CalculatedValueFlag StateFlags = 1 << 5
	// CalculatedErrorFlag indicates a calculation producing this value failed.
	CalculatedErrorFlag StateFlags = 1 << 6
	// DiscardedValueFlag indicates the value was discarded by upstream processing.
	DiscardedValueFlag StateFlags = 1 << 7
	// BadTimeFlag indicates the timestamp is known bad.
	BadTimeFlag StateFlags = 1 << 8
	// SuspectTimeFlag indicates the timestamp is suspect but not confirmed bad.
	SuspectTimeFlag StateFlags = 1 << 9
	// LateTimeAlarmFlag indicates the measurement arrived later than expected.
	LateTimeAlarmFlag StateFlags = 1 << 10
	// FutureTimeAlarmFlag indicates a timestamp ahead of the current time.
	FutureTimeAlarmFlag StateFlags = 1 << 11
	// UpSampledFlag indicates the value was produced by up-sampling.
	UpSampledFlag StateFlags = 1 << 12
	// DownSampledFlag indicates the value was produced by down-sampling.
	DownSampledFlag StateFlags = 1 << 13
	// DiscardedTimeFlag indicates the timestamp was discarded by upstream processing.
	DiscardedTimeFlag StateFlags = 1 << 14
	// ReceivedAsBadTimeFlag preserves an upstream bad-time flag across reprocessing.
	ReceivedAsBadTimeFlag StateFlags = 1 << 15

	// SystemErrorFlag indicates an internal system fault affecting the value.
	SystemErrorFlag StateFlags = 1 << 16
	// SystemWarningFlag indicates an internal system condition worth surfacing.
	SystemWarningFlag StateFlags = 1 << 17
	// MeasurementErrorFlag is the catch-all "something is wrong" bit.
	MeasurementErrorFlag StateFlags = 1 << 31
)

// Has reports whether all bits in mask are set.
func (f StateFlags) Has(mask StateFlags) bool {
	return f&mask == mask
}

// Measurement is a single (signal, timestamp, value, quality) sample.
type Measurement struct {
	SignalID  uuid.UUID
	Value     float64
	Timestamp ticks.Tick
	Flags     StateFlags
}

// New constructs a Measurement with the given fields, defaulting Flags
// to Normal.
func New(id uuid.UUID, value float64, ts ticks.Tick) Measurement {
	return Measurement{SignalID: id, Value: value, Timestamp: ts, Flags: Normal}
}

// Batch is a slice of measurements, the unit the routing engine
// intersects against each subscriber's signal set.
type Batch []Measurement

// BySignalID partitions the batch into per-signal slices, preserving
// relative order within each signal.
func (b Batch) BySignalID() map[uuid.UUID][]Measurement {
	out := make(map[uuid.UUID][]Measurement)
	for _, m := range b {
		out[m.SignalID] = append(out[m.SignalID], m)
	}
	return out
}
