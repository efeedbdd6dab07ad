package tssc

import (
	"math"

	"github.com/c360/sttp/measurement"
	"github.com/c360/sttp/ticks"
)

const noDelta = int64(1) << 62

// pointState tracks the per-signal history a single runtime index's
// measurements are delta/XOR-encoded against: its last three values (so
// a repeated or oscillating value needs no payload at all), its last two
// timestamps, a small cache of recently seen timestamp deltas, and its
// last state flags.
type pointState struct {
	codes *codeTable

	prevValue1, prevValue2, prevValue3 uint64 // float64 bits

	prevTimestamp1, prevTimestamp2 ticks.Tick
	prevDelta                      [4]int64

	prevFlags measurement.StateFlags
}

func newPointState() *pointState {
	return &pointState{
		codes:      newCodeTable(),
		prevDelta:  [4]int64{noDelta, noDelta, noDelta, noDelta},
	}
}

// observeTimestamp updates the delta cache after ts has been resolved
// (whether by picking an existing delta code or by the XOR fallback),
// keeping the four most distinct recently seen deltas ordered smallest
// first. Both the encoder and decoder call this after settling on ts so
// their cache contents never diverge.
func (p *pointState) observeTimestamp(ts ticks.Tick) {
	delta := int64(ts) - int64(p.prevTimestamp1)
	if delta < 0 {
		delta = -delta
	}

	if delta < p.prevDelta[3] && delta != p.prevDelta[0] && delta != p.prevDelta[1] && delta != p.prevDelta[2] {
		switch {
		case delta < p.prevDelta[0]:
			p.prevDelta[3], p.prevDelta[2], p.prevDelta[1], p.prevDelta[0] = p.prevDelta[2], p.prevDelta[1], p.prevDelta[0], delta
		case delta < p.prevDelta[1]:
			p.prevDelta[3], p.prevDelta[2], p.prevDelta[1] = p.prevDelta[2], p.prevDelta[1], delta
		case delta < p.prevDelta[2]:
			p.prevDelta[3], p.prevDelta[2] = p.prevDelta[2], delta
		default:
			p.prevDelta[3] = delta
		}
	}

	p.prevTimestamp2 = p.prevTimestamp1
	p.prevTimestamp1 = ts
}

func (p *pointState) observeValue(bits uint64) {
	p.prevValue3 = p.prevValue2
	p.prevValue2 = p.prevValue1
	p.prevValue1 = bits
}

func (p *pointState) observeFlags(f measurement.StateFlags) {
	p.prevFlags = f
}

func valueBits(v float64) uint64 { return math.Float64bits(v) }
func valueFromBits(b uint64) float64 { return math.Float64frombits(b) }
