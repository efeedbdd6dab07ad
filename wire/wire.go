// Package wire implements the big-endian primitive and length-prefixed
// string codecs shared by every STTP frame: the command protocol, the
// compact measurement codec, and the signal-index cache serialization.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/c360/sttp/errors"
)

// PutUint16 writes v to dst[0:2] in big-endian order.
func PutUint16(dst []byte, v uint16) { binary.BigEndian.PutUint16(dst, v) }

// PutUint32 writes v to dst[0:4] in big-endian order.
func PutUint32(dst []byte, v uint32) { binary.BigEndian.PutUint32(dst, v) }

// PutUint64 writes v to dst[0:8] in big-endian order.
func PutUint64(dst []byte, v uint64) { binary.BigEndian.PutUint64(dst, v) }

// Uint16 reads a big-endian uint16 from src[0:2].
func Uint16(src []byte) uint16 { return binary.BigEndian.Uint16(src) }

// Uint32 reads a big-endian uint32 from src[0:4].
func Uint32(src []byte) uint32 { return binary.BigEndian.Uint32(src) }

// Uint64 reads a big-endian uint64 from src[0:8].
func Uint64(src []byte) uint64 { return binary.BigEndian.Uint64(src) }

// Reader provides bounds-checked sequential reads over a byte slice,
// returning a ClassifiedError (ErrorFatal) on underrun instead of
// panicking, since an underrun on the wire always indicates a malformed
// or truncated frame.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential reads starting at offset 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Len returns the number of unread bytes remaining.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

// Pos returns the current read offset.
func (r *Reader) Pos() int { return r.pos }

// Bytes returns the next n bytes without copying, advancing the cursor.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if r.Len() < n {
		return nil, errors.WrapFatal(
			errUnderrun(n, r.Len()), "wire", "Bytes", "read")
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Byte reads a single byte.
func (r *Reader) Byte() (byte, error) {
	b, err := r.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 reads a big-endian uint16.
func (r *Reader) Uint16() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return Uint16(b), nil
}

// Uint32 reads a big-endian uint32.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return Uint32(b), nil
}

// Uint64 reads a big-endian uint64.
func (r *Reader) Uint64() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return Uint64(b), nil
}

// Writer accumulates bytes for a frame being built.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with an initial capacity hint.
func NewWriter(capHint int) *Writer {
	return &Writer{buf: make([]byte, 0, capHint)}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// WriteByte appends a single byte.
func (w *Writer) WriteByte(b byte) error {
	w.buf = append(w.buf, b)
	return nil
}

// Write appends raw bytes.
func (w *Writer) Write(b []byte) (int, error) {
	w.buf = append(w.buf, b...)
	return len(b), nil
}

// WriteUint16 appends a big-endian uint16.
func (w *Writer) WriteUint16(v uint16) {
	var b [2]byte
	PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteUint32 appends a big-endian uint32.
func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteUint64 appends a big-endian uint64.
func (w *Writer) WriteUint64(v uint64) {
	var b [8]byte
	PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func errUnderrun(want, have int) error {
	return fmt.Errorf("buffer underrun: need %d bytes, have %d", want, have)
}
