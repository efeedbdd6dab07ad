// Package guid wraps google/uuid.UUID to provide the 128-bit signal
// identifiers used throughout STTP, with encode/decode functions for the
// protocol's documented wire byte order.
package guid

import (
	"github.com/google/uuid"
)

// Size is the wire-encoded size of a GUID in bytes.
const Size = 16

// New generates a new random (version 4) GUID.
func New() uuid.UUID {
	return uuid.New()
}

// Encode writes g to dst (which must be at least Size bytes) in STTP's
// documented Microsoft RPC byte order: the first three fields (4+2+2
// bytes) are little-endian, the remaining 8 bytes are big-endian/network
// order, exactly as the bytes appear in a standard RFC 4122 UUID.
func Encode(g uuid.UUID, dst []byte) {
	b := g // [16]byte, RFC 4122 big-endian field layout
	dst[0] = b[3]
	dst[1] = b[2]
	dst[2] = b[1]
	dst[3] = b[0]
	dst[4] = b[5]
	dst[5] = b[4]
	dst[6] = b[7]
	dst[7] = b[6]
	copy(dst[8:16], b[8:16])
}

// Decode reads a GUID from src (which must be at least Size bytes),
// reversing the byte-order transform applied by Encode.
func Decode(src []byte) uuid.UUID {
	var b uuid.UUID
	b[0] = src[3]
	b[1] = src[2]
	b[2] = src[1]
	b[3] = src[0]
	b[4] = src[5]
	b[5] = src[4]
	b[6] = src[7]
	b[7] = src[6]
	copy(b[8:16], src[8:16])
	return b
}

// Bytes returns the wire-order encoding of g as a new slice.
func Bytes(g uuid.UUID) []byte {
	buf := make([]byte, Size)
	Encode(g, buf)
	return buf
}
