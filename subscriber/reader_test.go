package subscriber

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/c360/sttp/cipher"
	"github.com/c360/sttp/compact"
	"github.com/c360/sttp/measurement"
	"github.com/c360/sttp/protocol"
	"github.com/c360/sttp/signalindexcache"
	"github.com/c360/sttp/ticks"
	"github.com/c360/sttp/wire"
)

func TestHandleDataPacketDeliversMatchedMeasurements(t *testing.T) {
	e, _ := newTestEngine(t)

	signalID := uuid.New()
	cache, err := signalindexcache.New(1, []signalindexcache.Entry{{Index: 0, SignalID: signalID}})
	if err != nil {
		t.Fatalf("signalindexcache.New: %v", err)
	}
	e.cacheSlots.Set(0, cache)

	now := ticks.FromTime(time.Now())
	bt := compact.BaseTimes{Base0: now, Base1: now}
	e.baseTimes = bt

	body := wire.NewWriter(64)
	body.WriteUint16(1)
	compact.EncodeMeasurement(body, measurement.New(signalID, 42.5, now), 0, bt, compact.Ticks100ns, 0, false)

	if err := e.handleDataPacket(body.Bytes()); err != nil {
		t.Fatalf("handleDataPacket: %v", err)
	}

	select {
	case m := <-e.stream:
		if m.SignalID != signalID {
			t.Fatalf("expected signal %s, got %s", signalID, m.SignalID)
		}
		if m.Value != 42.5 {
			t.Fatalf("expected value 42.5, got %v", m.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("measurement never arrived on stream")
	}
}

func TestHandleDataPacketDropsUnresolvedIndex(t *testing.T) {
	e, client := newTestEngine(t)
	defer func() { _ = client.Close() }()

	cache, err := signalindexcache.New(1, nil)
	if err != nil {
		t.Fatalf("signalindexcache.New: %v", err)
	}
	e.cacheSlots.Set(0, cache)

	now := ticks.FromTime(time.Now())
	bt := compact.BaseTimes{Base0: now, Base1: now}
	e.baseTimes = bt

	body := wire.NewWriter(64)
	body.WriteUint16(1)
	compact.EncodeMeasurement(body, measurement.New(uuid.New(), 1.0, now), 7, bt, compact.Ticks100ns, 0, false)

	if err := e.handleDataPacket(body.Bytes()); err != nil {
		t.Fatalf("handleDataPacket: %v", err)
	}

	select {
	case m := <-e.stream:
		t.Fatalf("expected no measurement to be delivered, got %+v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleUpdateSignalIndexCacheRotatesInactiveSlot(t *testing.T) {
	e, client := newTestEngine(t)
	defer func() { _ = client.Close() }()

	initial, err := signalindexcache.New(1, []signalindexcache.Entry{{Index: 0, SignalID: uuid.New()}})
	if err != nil {
		t.Fatalf("signalindexcache.New: %v", err)
	}
	e.cacheSlots.Set(0, initial)
	e.activeSlot.Store(0)

	next := uuid.New()
	fresh, err := signalindexcache.New(2, []signalindexcache.Entry{{Index: 0, SignalID: next}})
	if err != nil {
		t.Fatalf("signalindexcache.New: %v", err)
	}

	if err := e.handleUpdateSignalIndexCache(fresh.Encode()); err != nil {
		t.Fatalf("handleUpdateSignalIndexCache: %v", err)
	}

	if e.activeSlot.Load() != 1 {
		t.Fatalf("expected rotation into slot 1, got %d", e.activeSlot.Load())
	}
	installed, ok := e.cacheSlots.Get(1)
	if !ok {
		t.Fatal("expected a cache installed in slot 1")
	}
	if id, ok := installed.IDOf(0); !ok || id != next {
		t.Fatalf("expected slot 1 to resolve index 0 to %s, got %s ok=%v", next, id, ok)
	}

	// the previous slot must still be intact: a data packet referencing
	// it during the rotation window must not be dropped.
	if _, ok := e.cacheSlots.Get(0); !ok {
		t.Fatal("expected slot 0 to remain installed")
	}
}

func TestHandleUpdateBaseTimesInstallsDecodedTimes(t *testing.T) {
	e, client := newTestEngine(t)
	defer func() { _ = client.Close() }()

	now := ticks.FromTime(time.Now())
	bt := compact.BaseTimes{Rollover: now.Add(time.Hour), Base0: now, Base1: now}

	if err := e.handleUpdateBaseTimes(compact.EncodeBaseTimes(bt)); err != nil {
		t.Fatalf("handleUpdateBaseTimes: %v", err)
	}

	e.baseTimesMu.Lock()
	got := e.baseTimes
	e.baseTimesMu.Unlock()
	if got != bt {
		t.Fatalf("expected base times %+v, got %+v", bt, got)
	}
}

func TestHandleUpdateCipherKeysInstallsPairAndAcks(t *testing.T) {
	e, client := newTestEngine(t)
	defer func() { _ = client.Close() }()

	pair, err := cipher.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	w := wire.NewWriter(1 + cipher.KeySize + cipher.IVSize)
	_ = w.WriteByte(1)
	_, _ = w.Write(pair.Key[:])
	_, _ = w.Write(pair.IV[:])

	done := make(chan error, 1)
	go func() { done <- e.handleUpdateCipherKeys(w.Bytes()) }()

	code, payload := readFrame(t, client)
	if code != byte(protocol.CommandConfirmNotification) {
		t.Fatalf("expected ConfirmNotification ack, got %v", code)
	}
	if len(payload) != 1 || payload[0] != 1 {
		t.Fatalf("expected ack payload [1], got %v", payload)
	}

	if err := <-done; err != nil {
		t.Fatalf("handleUpdateCipherKeys: %v", err)
	}
	if got := e.keys.Pair(1); got != pair {
		t.Fatalf("expected installed pair %+v, got %+v", pair, got)
	}
}
