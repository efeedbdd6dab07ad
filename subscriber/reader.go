package subscriber

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"time"

	"github.com/c360/sttp/cipher"
	"github.com/c360/sttp/compact"
	"github.com/c360/sttp/errors"
	"github.com/c360/sttp/measurement"
	"github.com/c360/sttp/protocol"
	"github.com/c360/sttp/signalindexcache"
	"github.com/c360/sttp/wire"
)

// contextBufferWriter is satisfied by pkg/buffer's circularBuffer but
// not exposed on the narrower buffer.Buffer interface NewCircularBuffer
// returns; a type assertion recovers the context-cancellable write the
// Block overflow policy needs.
type contextBufferWriter interface {
	WriteWithContext(ctx context.Context, item measurement.Measurement) error
}

func gunzipBytes(raw []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// readLoop consumes command-channel frames until the connection drops.
// It holds no lock across network I/O: every handler either answers a
// pending request or writes straight into the inbound measurement queue.
func (e *Engine) readLoop() {
	defer e.wg.Done()
	for {
		e.connMu.RLock()
		conn := e.conn
		e.connMu.RUnlock()
		if conn == nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(e.cfg.KeepaliveTimeout()))
		code, payload, err := protocol.ReadFrame(conn, e.cfg.MaxPacketSize)
		if err != nil {
			e.closeConnLocked("read: " + err.Error())
			return
		}
		if err := e.handleResponse(protocol.ResponseCode(code), payload); err != nil {
			e.callbacks.error(err)
			if errors.IsFatal(err) {
				e.closeConnLocked(err.Error())
				return
			}
		}
	}
}

func (e *Engine) handleResponse(code protocol.ResponseCode, payload []byte) error {
	switch code {
	case protocol.ResponseSucceeded, protocol.ResponseFailed:
		e.deliverPending(pendingResult{payload: payload, failed: code == protocol.ResponseFailed})
		return nil
	case protocol.ResponseDataPacket:
		return e.handleDataPacket(payload)
	case protocol.ResponseUpdateSignalIndexCache:
		return e.handleUpdateSignalIndexCache(payload)
	case protocol.ResponseUpdateBaseTimes:
		return e.handleUpdateBaseTimes(payload)
	case protocol.ResponseUpdateCipherKeys:
		return e.handleUpdateCipherKeys(payload)
	case protocol.ResponseNotify, protocol.ResponseConfigurationChanged, protocol.ResponseProcessingComplete, protocol.ResponseDataStartTime, protocol.ResponseBufferBlock:
		return nil
	default:
		return errors.WrapInvalid(errUnknownResponse(code), "subscriber", "handleResponse", "response lookup")
	}
}

func (e *Engine) deliverPending(res pendingResult) {
	e.pendingMu.Lock()
	ch := e.pending
	e.pending = nil
	e.pendingMu.Unlock()
	if ch != nil {
		ch <- res
	}
}

func (e *Engine) handleUpdateSignalIndexCache(payload []byte) error {
	raw := payload
	if e.modes.CompressSignalIndexCache() {
		if gunzipped, err := gunzipBytes(payload); err == nil {
			raw = gunzipped
		}
	}
	version := e.cacheVer.Add(1)
	cache, err := signalindexcache.Decode(version, raw)
	if err != nil {
		return errors.Wrap(err, "subscriber", "handleUpdateSignalIndexCache", "decode")
	}
	nextSlot := int(1 - e.activeSlot.Load())
	e.cacheSlots.Set(nextSlot, cache)
	e.activeSlot.Store(int32(nextSlot))

	// Runtime indices are renumbered by the new cache, so any decoder
	// history keyed by the old numbering no longer applies; restart
	// from the same empty state the publisher's encoder resets to.
	if e.tsscDecoder != nil {
		e.tsscDecoder.Reset()
	}
	return nil
}

func (e *Engine) handleUpdateBaseTimes(payload []byte) error {
	bt, err := compact.DecodeBaseTimes(payload)
	if err != nil {
		return errors.Wrap(err, "subscriber", "handleUpdateBaseTimes", "decode")
	}
	e.baseTimesMu.Lock()
	e.baseTimes = bt
	e.baseTimesMu.Unlock()
	return nil
}

func (e *Engine) handleUpdateCipherKeys(payload []byte) error {
	r := wire.NewReader(payload)
	selector, err := r.Byte()
	if err != nil {
		return errors.Wrap(err, "subscriber", "handleUpdateCipherKeys", "read selector")
	}
	keyBytes, err := r.Bytes(cipher.KeySize)
	if err != nil {
		return errors.Wrap(err, "subscriber", "handleUpdateCipherKeys", "read key")
	}
	ivBytes, err := r.Bytes(cipher.IVSize)
	if err != nil {
		return errors.Wrap(err, "subscriber", "handleUpdateCipherKeys", "read iv")
	}

	var pair cipher.KeyPair
	copy(pair.Key[:], keyBytes)
	copy(pair.IV[:], ivBytes)
	e.keys.InstallPair(int(selector), pair)

	return e.sendFrame(protocol.CommandConfirmNotification, []byte{selector})
}

// handleDataPacket decodes every record in a DataPacket using whichever
// codec operational modes negotiated, resolving runtime indices against
// the signal-index cache slot most recently installed. A record that
// cannot be resolved (cache rotation race) is dropped, not an error.
func (e *Engine) handleDataPacket(payload []byte) error {
	cache, ok := e.cacheSlots.Get(int(e.activeSlot.Load()))
	if !ok {
		return nil // no cache installed yet; drop until Subscribe completes
	}

	res := compact.Ticks100ns
	if e.cfg.UseMillisecondResolution {
		res = compact.Milliseconds
	}

	e.baseTimesMu.Lock()
	bt := e.baseTimes
	e.baseTimesMu.Unlock()

	var records []measurement.Measurement
	if e.modes.CompressPayloadData() {
		decoded, err := e.tsscDecoder.Decode(payload)
		if err != nil {
			return errors.Wrap(err, "subscriber", "handleDataPacket", "tssc decode")
		}
		for _, rec := range decoded {
			records = append(records, rec.Measurement)
		}
	} else {
		r := wire.NewReader(payload)
		count, err := r.Uint16()
		if err != nil {
			return errors.Wrap(err, "subscriber", "handleDataPacket", "read count")
		}
		for i := uint16(0); i < count; i++ {
			m, matched, err := compact.DecodeMeasurement(r, cache, bt, res)
			if err != nil {
				return errors.Wrap(err, "subscriber", "handleDataPacket", "decode measurement")
			}
			if matched {
				records = append(records, m)
			}
		}
	}

	for _, m := range records {
		writer, _ := e.inbound.(contextBufferWriter)
		var err error
		if writer != nil {
			err = writer.WriteWithContext(context.Background(), m)
		} else {
			err = e.inbound.Write(m)
		}
		if err != nil {
			return errors.WrapTransient(err, "subscriber", "handleDataPacket", "enqueue")
		}
		e.notifyPump()
	}

	e.totalMeasurements.Add(int64(len(records)))
	e.totalBytes.Add(int64(len(payload)))
	if e.metrics != nil {
		e.metrics.RecordMeasurementsReceived(e.cfg.ConnectionString, len(records))
		e.metrics.RecordBytesReceived(e.cfg.ConnectionString, "tcp", len(payload))
	}
	return nil
}

func errUnknownResponse(c protocol.ResponseCode) error { return unknownResponseError{c} }

type unknownResponseError struct{ code protocol.ResponseCode }

func (e unknownResponseError) Error() string { return "subscriber: unknown response " + e.code.String() }
