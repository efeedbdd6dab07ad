package wire

import (
	"github.com/c360/sttp/errors"
	"github.com/c360/sttp/guid"
	"github.com/google/uuid"
)

// WriteGUID appends g in STTP's documented wire byte order.
func (w *Writer) WriteGUID(g uuid.UUID) {
	var buf [guid.Size]byte
	guid.Encode(g, buf[:])
	w.buf = append(w.buf, buf[:]...)
}

// GUID reads a wire-order-encoded GUID.
func (r *Reader) GUID() (uuid.UUID, error) {
	b, err := r.Bytes(guid.Size)
	if err != nil {
		return uuid.UUID{}, errors.Wrap(err, "wire", "GUID", "read")
	}
	return guid.Decode(b), nil
}
