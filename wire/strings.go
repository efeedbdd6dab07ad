package wire

import (
	"fmt"
	"unicode/utf16"

	"github.com/c360/sttp/errors"
)

// StringEncoding selects the wire encoding used for length-prefixed
// strings, negotiated once per connection via DefineOperationalModes.
type StringEncoding int

const (
	// UTF8 encodes strings as UTF-8 bytes.
	UTF8 StringEncoding = iota
	// UTF16LE encodes strings as UTF-16 code units in little-endian order.
	UTF16LE
)

// String returns a human-readable name for the encoding.
func (e StringEncoding) String() string {
	switch e {
	case UTF8:
		return "utf-8"
	case UTF16LE:
		return "utf-16le"
	default:
		return "unknown"
	}
}

// WriteString appends s to w as a u32 byte-length prefix followed by the
// string encoded per enc.
func (w *Writer) WriteString(s string, enc StringEncoding) {
	encoded := EncodeString(s, enc)
	w.WriteUint32(uint32(len(encoded)))
	w.buf = append(w.buf, encoded...)
}

// String reads a u32-length-prefixed string encoded per enc.
func (r *Reader) String(enc StringEncoding) (string, error) {
	n, err := r.Uint32()
	if err != nil {
		return "", errors.Wrap(err, "wire", "String", "read length prefix")
	}
	b, err := r.Bytes(int(n))
	if err != nil {
		return "", errors.Wrap(err, "wire", "String", "read payload")
	}
	return DecodeString(b, enc)
}

// EncodeString renders s into the wire bytes for the given encoding.
func EncodeString(s string, enc StringEncoding) []byte {
	if enc == UTF8 {
		return []byte(s)
	}
	units := utf16.Encode([]rune(s))
	buf := make([]byte, len(units)*2)
	for i, u := range units {
		buf[i*2] = byte(u)
		buf[i*2+1] = byte(u >> 8)
	}
	return buf
}

// DecodeString parses wire bytes for the given encoding back into a string.
func DecodeString(b []byte, enc StringEncoding) (string, error) {
	if enc == UTF8 {
		return string(b), nil
	}
	if len(b)%2 != 0 {
		return "", errors.WrapInvalid(
			errOddUTF16Length(len(b)), "wire", "DecodeString", "utf-16 length check")
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[i*2]) | uint16(b[i*2+1])<<8
	}
	return string(utf16.Decode(units)), nil
}

func errOddUTF16Length(n int) error {
	return fmt.Errorf("odd byte length %d for utf-16le string", n)
}
