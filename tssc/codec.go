// Package tssc implements the Time Series Special Compression codec: a
// stateful, per-signal delta/XOR encoding of measurement batches into a
// dense bit stream, framed with a version byte and a sequence number
// that synchronizes an encoder/decoder pair across packet loss.
package tssc

import (
	"github.com/c360/sttp/errors"
	"github.com/c360/sttp/measurement"
	"github.com/c360/sttp/ticks"
)

// Version is the only wire format this package produces; Decode rejects
// any other version byte rather than guess at an incompatible layout.
const Version = 1

// Encoder accumulates measurements into a single TSSC-compressed
// payload. An Encoder is not safe for concurrent use; callers encode one
// packet's measurements sequentially, then call Bytes.
type Encoder struct {
	w              *bitWriter
	points         map[uint32]*pointState
	indexCodes     *codeTable
	lastIndex      uint32
	haveLastIndex  bool
	sequenceNumber uint16
}

// NewEncoder returns an Encoder starting at the given sequence number.
// The sequence number must match whatever the paired Decoder expects
// next; a mismatch is a protocol error the decoder reports rather than
// silently resyncing.
func NewEncoder(sequenceNumber uint16) *Encoder {
	return &Encoder{
		w:              newBitWriter(512),
		points:         make(map[uint32]*pointState),
		indexCodes:     newCodeTable(),
		sequenceNumber: sequenceNumber,
	}
}

// Reset clears all per-signal history, forcing every subsequent
// measurement to encode as a full cold value. Callers reset on cache
// rotation, since the history was built against indices that may no
// longer mean what they used to.
func (e *Encoder) Reset() {
	e.points = make(map[uint32]*pointState)
	e.indexCodes = newCodeTable()
	e.haveLastIndex = false
}

// AddMeasurement encodes one measurement's record into the in-progress
// payload.
func (e *Encoder) AddMeasurement(runtimeIndex uint32, m measurement.Measurement) {
	e.encodePointID(runtimeIndex)

	ps, ok := e.points[runtimeIndex]
	if !ok {
		ps = newPointState()
		e.points[runtimeIndex] = ps
	}

	e.encodeTimestamp(ps, m.Timestamp)
	e.encodeFlags(ps, m.Flags)
	e.encodeValue(ps, m.Value)
}

// Bytes finalizes the payload (flushing any partial final byte) and
// returns the full framed packet: [1 byte version][2 bytes
// sequenceNumber][payload].
func (e *Encoder) Bytes() []byte {
	e.indexCodes.writeCode(e.w, codeEndOfStream)
	payload := e.w.bytes()

	out := make([]byte, 0, 3+len(payload))
	out = append(out, Version)
	out = append(out, byte(e.sequenceNumber>>8), byte(e.sequenceNumber))
	out = append(out, payload...)

	e.sequenceNumber++
	e.w = newBitWriter(512)
	return out
}

// SequenceNumber returns the sequence number the next call to Bytes
// will stamp the frame with.
func (e *Encoder) SequenceNumber() uint16 { return e.sequenceNumber }

// SequenceNumber returns the sequence number the next call to Decode
// expects to see.
func (d *Decoder) SequenceNumber() uint16 { return d.sequenceNumber }

func (e *Encoder) encodePointID(idx uint32) {
	expected := uint32(0)
	if e.haveLastIndex {
		expected = e.lastIndex + 1
	}
	xor := uint64(idx ^ expected)
	c := widthFor(xor, pointIDXorCodes, pointIDXorWidths)
	e.indexCodes.writeCode(e.w, c)
	e.w.writeBits(xor, pointIDXorWidths[c])

	e.lastIndex = idx
	e.haveLastIndex = true
}

func (e *Encoder) encodeTimestamp(ps *pointState, ts ticks.Tick) {
	delta := int64(ts) - int64(ps.prevTimestamp1)
	abs := delta
	if abs < 0 {
		abs = -abs
	}

	var c code
	switch {
	case ts == ps.prevTimestamp2:
		c = codeTimestamp2
	case delta >= 0 && abs == ps.prevDelta[0]:
		c = codeTimeDelta1Forward
	case delta >= 0 && abs == ps.prevDelta[1]:
		c = codeTimeDelta2Forward
	case delta >= 0 && abs == ps.prevDelta[2]:
		c = codeTimeDelta3Forward
	case delta >= 0 && abs == ps.prevDelta[3]:
		c = codeTimeDelta4Forward
	case delta < 0 && abs == ps.prevDelta[0]:
		c = codeTimeDelta1Reverse
	case delta < 0 && abs == ps.prevDelta[1]:
		c = codeTimeDelta2Reverse
	case delta < 0 && abs == ps.prevDelta[2]:
		c = codeTimeDelta3Reverse
	case delta < 0 && abs == ps.prevDelta[3]:
		c = codeTimeDelta4Reverse
	default:
		c = codeTimeXor7Bit
	}

	ps.codes.writeCode(e.w, c)
	if c == codeTimeXor7Bit {
		e.w.writeVarUint(uint64(ts) ^ uint64(ps.prevTimestamp1))
	}
	ps.observeTimestamp(ts)
}

func (e *Encoder) encodeFlags(ps *pointState, f measurement.StateFlags) {
	if f == ps.prevFlags {
		ps.codes.writeCode(e.w, codeStateFlags2)
	} else {
		ps.codes.writeCode(e.w, codeStateFlags7Bit32)
		e.w.writeVarUint(uint64(f))
	}
	ps.observeFlags(f)
}

func (e *Encoder) encodeValue(ps *pointState, v float64) {
	bits := valueBits(v)

	var c code
	switch {
	case bits == 0:
		c = codeValueZero
	case bits == ps.prevValue1:
		c = codeValue1
	case bits == ps.prevValue2:
		c = codeValue2
	case bits == ps.prevValue3:
		c = codeValue3
	default:
		c = widthFor(bits^ps.prevValue1, valueXorCodes, valueXorWidths)
	}

	ps.codes.writeCode(e.w, c)
	if xorBits, ok := valueXorWidths[c]; ok {
		e.w.writeBits(bits^ps.prevValue1, xorBits)
	}
	ps.observeValue(bits)
}

// Decoder reverses the stream Encoder produces, reconstructing each
// measurement in the order it was added. A Decoder instance must be
// paired with exactly the Encoder history it is decoding: it carries
// the same per-signal state forward from payload to payload.
type Decoder struct {
	points         map[uint32]*pointState
	indexCodes     *codeTable
	lastIndex      uint32
	haveLastIndex  bool
	sequenceNumber uint16
}

// NewDecoder returns a Decoder expecting sequenceNumber as the next
// packet's sequence number.
func NewDecoder(sequenceNumber uint16) *Decoder {
	return &Decoder{
		points:         make(map[uint32]*pointState),
		indexCodes:     newCodeTable(),
		sequenceNumber: sequenceNumber,
	}
}

// Reset clears all per-signal history; call it in step with the paired
// Encoder's Reset.
func (d *Decoder) Reset() {
	d.points = make(map[uint32]*pointState)
	d.indexCodes = newCodeTable()
	d.haveLastIndex = false
}

// Record is one decoded measurement together with the runtime index it
// was encoded against.
type Record struct {
	RuntimeIndex uint32
	Measurement  measurement.Measurement
}

// Decode parses a full framed packet produced by Encoder.Bytes,
// returning every record in encoding order. It rejects any version
// other than Version and any sequence number other than the one the
// Decoder was constructed or last advanced to.
func (d *Decoder) Decode(buf []byte) ([]Record, error) {
	if len(buf) < 3 {
		return nil, errors.WrapInvalid(errShortPacket(len(buf)), "tssc", "Decode", "frame check")
	}
	if buf[0] != Version {
		return nil, errors.WrapInvalid(errUnknownVersion(buf[0]), "tssc", "Decode", "version check")
	}
	seq := uint16(buf[1])<<8 | uint16(buf[2])
	if seq != d.sequenceNumber {
		return nil, errors.WrapInvalid(errSequenceMismatch(d.sequenceNumber, seq), "tssc", "Decode", "sequence check")
	}

	r := newBitReader(buf[3:])
	var records []Record

	for {
		idx, ok, err := d.decodePointID(r)
		if err != nil {
			return nil, errors.Wrap(err, "tssc", "Decode", "decode point id")
		}
		if !ok {
			break
		}

		ps, exists := d.points[idx]
		if !exists {
			ps = newPointState()
			d.points[idx] = ps
		}

		ts, err := d.decodeTimestamp(r, ps)
		if err != nil {
			return nil, errors.Wrap(err, "tssc", "Decode", "decode timestamp")
		}
		flags, err := d.decodeFlags(r, ps)
		if err != nil {
			return nil, errors.Wrap(err, "tssc", "Decode", "decode flags")
		}
		value, err := d.decodeValue(r, ps)
		if err != nil {
			return nil, errors.Wrap(err, "tssc", "Decode", "decode value")
		}

		records = append(records, Record{
			RuntimeIndex: idx,
			Measurement: measurement.Measurement{
				Value:     value,
				Timestamp: ts,
				Flags:     flags,
			},
		})
	}

	d.sequenceNumber++
	return records, nil
}

func (d *Decoder) decodePointID(r *bitReader) (uint32, bool, error) {
	c, err := d.indexCodes.readCode(r)
	if err != nil {
		return 0, false, err
	}
	if c == codeEndOfStream {
		return 0, false, nil
	}

	bits, ok := pointIDXorWidths[c]
	if !ok {
		return 0, false, errInvalidPointIDCode(c)
	}
	xor, err := r.readBits(bits)
	if err != nil {
		return 0, false, err
	}

	expected := uint32(0)
	if d.haveLastIndex {
		expected = d.lastIndex + 1
	}
	idx := uint32(xor) ^ expected

	d.lastIndex = idx
	d.haveLastIndex = true
	return idx, true, nil
}

func (d *Decoder) decodeTimestamp(r *bitReader, ps *pointState) (ticks.Tick, error) {
	c, err := ps.codes.readCode(r)
	if err != nil {
		return 0, err
	}

	var ts ticks.Tick
	switch c {
	case codeTimestamp2:
		ts = ps.prevTimestamp2
	case codeTimeDelta1Forward:
		ts = ticks.Tick(int64(ps.prevTimestamp1) + ps.prevDelta[0])
	case codeTimeDelta2Forward:
		ts = ticks.Tick(int64(ps.prevTimestamp1) + ps.prevDelta[1])
	case codeTimeDelta3Forward:
		ts = ticks.Tick(int64(ps.prevTimestamp1) + ps.prevDelta[2])
	case codeTimeDelta4Forward:
		ts = ticks.Tick(int64(ps.prevTimestamp1) + ps.prevDelta[3])
	case codeTimeDelta1Reverse:
		ts = ticks.Tick(int64(ps.prevTimestamp1) - ps.prevDelta[0])
	case codeTimeDelta2Reverse:
		ts = ticks.Tick(int64(ps.prevTimestamp1) - ps.prevDelta[1])
	case codeTimeDelta3Reverse:
		ts = ticks.Tick(int64(ps.prevTimestamp1) - ps.prevDelta[2])
	case codeTimeDelta4Reverse:
		ts = ticks.Tick(int64(ps.prevTimestamp1) - ps.prevDelta[3])
	case codeTimeXor7Bit:
		xor, err := r.readVarUint()
		if err != nil {
			return 0, err
		}
		ts = ticks.Tick(xor ^ uint64(ps.prevTimestamp1))
	default:
		return 0, errInvalidTimeCode(c)
	}

	ps.observeTimestamp(ts)
	return ts, nil
}

func (d *Decoder) decodeFlags(r *bitReader, ps *pointState) (measurement.StateFlags, error) {
	c, err := ps.codes.readCode(r)
	if err != nil {
		return 0, err
	}

	var f measurement.StateFlags
	switch c {
	case codeStateFlags2:
		f = ps.prevFlags
	case codeStateFlags7Bit32:
		v, err := r.readVarUint()
		if err != nil {
			return 0, err
		}
		f = measurement.StateFlags(v)
	default:
		return 0, errInvalidFlagsCode(c)
	}

	ps.observeFlags(f)
	return f, nil
}

func (d *Decoder) decodeValue(r *bitReader, ps *pointState) (float64, error) {
	c, err := ps.codes.readCode(r)
	if err != nil {
		return 0, err
	}

	var bits uint64
	switch {
	case c == codeValueZero:
		bits = 0
	case c == codeValue1:
		bits = ps.prevValue1
	case c == codeValue2:
		bits = ps.prevValue2
	case c == codeValue3:
		bits = ps.prevValue3
	default:
		width, ok := valueXorWidths[c]
		if !ok {
			return 0, errInvalidValueCode(c)
		}
		xor, err := r.readBits(width)
		if err != nil {
			return 0, err
		}
		bits = xor ^ ps.prevValue1
	}

	ps.observeValue(bits)
	return valueFromBits(bits), nil
}
