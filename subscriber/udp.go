package subscriber

import (
	"context"
	"net"

	"github.com/c360/sttp/cipher"
	"github.com/c360/sttp/compact"
	"github.com/c360/sttp/errors"
	"github.com/c360/sttp/wire"
)

// maxUDPDatagram is large enough for any single compact-encoded
// measurement plus its selector/counter header and GCM tag; UDP
// datagrams never carry a batch, unlike the TCP data channel.
const maxUDPDatagram = 2048

func newUDPReceiver(iface string) (*net.UDPConn, uint16, error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(iface, "0"))
	if err != nil {
		return nil, 0, errors.WrapFatal(err, "subscriber", "newUDPReceiver", "resolve")
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, 0, errors.WrapFatal(err, "subscriber", "newUDPReceiver", "listen")
	}
	return conn, uint16(conn.LocalAddr().(*net.UDPAddr).Port), nil
}

// udpReadLoop decodes one measurement per datagram. Loss is expected
// and not recovered: a dropped or unauthenticated datagram is silently
// discarded rather than triggering a retransmit request (spec.md §4.5).
func (e *Engine) udpReadLoop() {
	defer e.wg.Done()
	buf := make([]byte, maxUDPDatagram)
	for {
		n, _, err := e.udp.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if n < 1+8 {
			continue
		}
		selector := int(buf[0])
		counter := wire.Uint64(buf[1:9])
		ciphertext := append([]byte(nil), buf[9:n]...)

		plaintext, err := cipher.Open(e.keys.Pair(selector), counter, ciphertext)
		if err != nil {
			e.callbacks.error(errors.WrapInvalid(err, "subscriber", "udpReadLoop", "authenticate"))
			continue
		}

		if err := e.decodeUDPMeasurement(plaintext); err != nil {
			e.callbacks.error(err)
		}
	}
}

func (e *Engine) decodeUDPMeasurement(plaintext []byte) error {
	cache, ok := e.cacheSlots.Get(int(e.activeSlot.Load()))
	if !ok {
		return nil
	}

	res := compact.Ticks100ns
	if e.cfg.UseMillisecondResolution {
		res = compact.Milliseconds
	}

	e.baseTimesMu.Lock()
	bt := e.baseTimes
	e.baseTimesMu.Unlock()

	r := wire.NewReader(plaintext)
	m, matched, err := compact.DecodeMeasurement(r, cache, bt, res)
	if err != nil {
		return errors.Wrap(err, "subscriber", "decodeUDPMeasurement", "decode")
	}
	if !matched {
		return nil
	}

	writer, _ := e.inbound.(contextBufferWriter)
	if writer != nil {
		err = writer.WriteWithContext(context.Background(), m)
	} else {
		err = e.inbound.Write(m)
	}
	if err != nil {
		return errors.WrapTransient(err, "subscriber", "decodeUDPMeasurement", "enqueue")
	}
	e.notifyPump()

	e.totalMeasurements.Add(1)
	if e.metrics != nil {
		e.metrics.RecordMeasurementsReceived(e.cfg.ConnectionString, 1)
		e.metrics.RecordBytesReceived(e.cfg.ConnectionString, "udp", len(plaintext))
	}
	return nil
}
