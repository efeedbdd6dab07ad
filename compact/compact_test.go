package compact

import (
	"testing"

	"github.com/c360/sttp/measurement"
	"github.com/c360/sttp/signalindexcache"
	"github.com/c360/sttp/ticks"
	"github.com/c360/sttp/wire"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T, id uuid.UUID, index uint32) *signalindexcache.Cache {
	t.Helper()
	c, err := signalindexcache.New(1, []signalindexcache.Entry{{Index: index, SignalID: id}})
	require.NoError(t, err)
	return c
}

func TestRoundTripWithinBaseWindow(t *testing.T) {
	id := uuid.New()
	base := ticks.Now()
	bt := BaseTimes{Base0: base, Base1: base}
	m := measurement.New(id, 3.25, base.Add(0))
	m.Timestamp = base + 12345 // well within the 16-bit offset window

	w := wire.NewWriter(32)
	EncodeMeasurement(w, m, 0, bt, Ticks100ns, 0, true)

	r := wire.NewReader(w.Bytes())
	cache := newCache(t, id, 0)
	got, ok, err := DecodeMeasurement(r, cache, bt, Ticks100ns)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, m.SignalID, got.SignalID)
	assert.Equal(t, m.Value, got.Value)
	assert.Equal(t, m.Timestamp, got.Timestamp)
	assert.Equal(t, m.Flags, got.Flags)
}

func TestRoundTripOutsideBaseWindowUsesFullTick(t *testing.T) {
	id := uuid.New()
	base := ticks.Now()
	bt := BaseTimes{Base0: base, Base1: base}
	m := measurement.New(id, -8.5, base+ticks.Tick(1_000_000_000)) // far beyond any 16-bit offset

	w := wire.NewWriter(32)
	EncodeMeasurement(w, m, 1, bt, Ticks100ns, 0, true)

	r := wire.NewReader(w.Bytes())
	cache := newCache(t, id, 1)
	got, ok, err := DecodeMeasurement(r, cache, bt, Ticks100ns)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, m.Timestamp, got.Timestamp)
}

func TestRoundTripPreservesNonNormalFlags(t *testing.T) {
	id := uuid.New()
	base := ticks.Now()
	bt := BaseTimes{Base0: base, Base1: base}
	m := measurement.New(id, 1, base+100)
	m.Flags = measurement.BadDataFlag | measurement.SuspectTimeFlag

	w := wire.NewWriter(32)
	EncodeMeasurement(w, m, 5, bt, Ticks100ns, 0, false)

	r := wire.NewReader(w.Bytes())
	cache := newCache(t, id, 5)
	got, ok, err := DecodeMeasurement(r, cache, bt, Ticks100ns)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, m.Flags, got.Flags)
}

func TestRoundTripLeapSecondForcesFullTick(t *testing.T) {
	id := uuid.New()
	base := ticks.Now()
	bt := BaseTimes{Base0: base, Base1: base}
	leapTick := base.WithLeapSecond(true, false)
	m := measurement.New(id, 0, leapTick)

	w := wire.NewWriter(32)
	EncodeMeasurement(w, m, 2, bt, Ticks100ns, 0, true)

	r := wire.NewReader(w.Bytes())
	cache := newCache(t, id, 2)
	got, ok, err := DecodeMeasurement(r, cache, bt, Ticks100ns)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, leapTick, got.Timestamp)
	assert.True(t, got.Timestamp.IsLeapSecond())
}

func TestDecodeUnknownRuntimeIndexIsNotAnError(t *testing.T) {
	id := uuid.New()
	base := ticks.Now()
	bt := BaseTimes{Base0: base, Base1: base}
	m := measurement.New(id, 1, base+10)

	w := wire.NewWriter(32)
	EncodeMeasurement(w, m, 9, bt, Ticks100ns, 0, true)

	r := wire.NewReader(w.Bytes())
	cache := newCache(t, id, 0) // index 9 not present
	_, ok, err := DecodeMeasurement(r, cache, bt, Ticks100ns)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBaseTimesEncodeDecodeRoundTrip(t *testing.T) {
	bt := BaseTimes{Rollover: 1, Base0: 2, Base1: 3}
	decoded, err := DecodeBaseTimes(EncodeBaseTimes(bt))
	require.NoError(t, err)
	assert.Equal(t, bt, decoded)
}
