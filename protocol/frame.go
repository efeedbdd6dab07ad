package protocol

import (
	"io"

	"github.com/c360/sttp/errors"
	"github.com/c360/sttp/wire"
)

// DefaultMaxPacketSize is the largest frame (length prefix plus code
// plus payload) either side accepts before treating the connection as
// protocol-violating.
const DefaultMaxPacketSize = 1572864 // 1.5 MiB

// WriteFrame writes one [4-byte length][1-byte code][payload] frame to w.
// length covers the code byte and the payload, not itself.
func WriteFrame(w io.Writer, code byte, payload []byte) error {
	out := wire.NewWriter(5 + len(payload))
	out.WriteUint32(uint32(1 + len(payload)))
	_ = out.WriteByte(code)
	_, _ = out.Write(payload)
	if _, err := w.Write(out.Bytes()); err != nil {
		return errors.WrapTransient(err, "protocol", "WriteFrame", "write")
	}
	return nil
}

// ReadFrame reads one frame from r, enforcing maxPacketSize against the
// declared length before reading the payload. A declared length
// exceeding maxPacketSize is a fatal protocol violation: callers should
// close the connection rather than attempt recovery.
func ReadFrame(r io.Reader, maxPacketSize uint32) (code byte, payload []byte, err error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, errors.WrapTransient(err, "protocol", "ReadFrame", "read length")
	}
	length := wire.Uint32(lenBuf[:])
	if length == 0 {
		return 0, nil, errors.WrapInvalid(errEmptyFrame(), "protocol", "ReadFrame", "length check")
	}
	if length > maxPacketSize {
		return 0, nil, errors.WrapFatal(errOversizeFrame(length, maxPacketSize), "protocol", "ReadFrame", "length check")
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, errors.WrapTransient(err, "protocol", "ReadFrame", "read body")
	}
	return body[0], body[1:], nil
}
