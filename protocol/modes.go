package protocol

import "github.com/c360/sttp/wire"

// OperationalModes is the 32-bit mask a subscriber sends exactly once
// via DefineOperationalModes. It is immutable for the remaining life of
// the connection: nothing else in this package ever mutates one after
// construction.
type OperationalModes uint32

const (
	versionMask = 0xFF // low 8 bits carry the protocol version

	modeUseUTF16LE                = 1 << 8
	modeCompressMetadata          = 1 << 9
	modeCompressSignalIndexCache  = 1 << 10
	modeCompressPayloadData       = 1 << 11 // enables TSSC on the data channel
	modeUseCommonSerialization    = 1 << 12
	modeReceiveExternalMetadata   = 1 << 13
)

// CurrentVersion is the protocol version this package implements.
const CurrentVersion = 1

// NewOperationalModes builds a mask for CurrentVersion with the given
// feature flags set.
func NewOperationalModes(useUTF16LE, compressMetadata, compressSignalIndexCache, compressPayloadData, useCommonSerialization, receiveExternalMetadata bool) OperationalModes {
	m := OperationalModes(CurrentVersion)
	setBit := func(cond bool, bit uint32) {
		if cond {
			m |= OperationalModes(bit)
		}
	}
	setBit(useUTF16LE, modeUseUTF16LE)
	setBit(compressMetadata, modeCompressMetadata)
	setBit(compressSignalIndexCache, modeCompressSignalIndexCache)
	setBit(compressPayloadData, modeCompressPayloadData)
	setBit(useCommonSerialization, modeUseCommonSerialization)
	setBit(receiveExternalMetadata, modeReceiveExternalMetadata)
	return m
}

// Version returns the low 8 bits of the mask.
func (m OperationalModes) Version() byte { return byte(m & versionMask) }

// StringEncoding returns the negotiated string encoding for this connection.
func (m OperationalModes) StringEncoding() wire.StringEncoding {
	if m&modeUseUTF16LE != 0 {
		return wire.UTF16LE
	}
	return wire.UTF8
}

// CompressMetadata reports whether metadata exchanges are compressed.
func (m OperationalModes) CompressMetadata() bool { return m&modeCompressMetadata != 0 }

// CompressSignalIndexCache reports whether signal-index cache payloads are compressed.
func (m OperationalModes) CompressSignalIndexCache() bool {
	return m&modeCompressSignalIndexCache != 0
}

// CompressPayloadData reports whether measurement payloads use TSSC
// instead of the plain compact codec.
func (m OperationalModes) CompressPayloadData() bool { return m&modeCompressPayloadData != 0 }

// UseCommonSerialization reports whether metadata uses the common
// (cross-implementation) serialization format rather a host-specific one.
func (m OperationalModes) UseCommonSerialization() bool { return m&modeUseCommonSerialization != 0 }

// ReceiveExternalMetadata reports whether the subscriber wants metadata
// about signals originating from sources other than its own connection.
func (m OperationalModes) ReceiveExternalMetadata() bool { return m&modeReceiveExternalMetadata != 0 }

// Encode serializes the mask as a big-endian uint32, the payload of a
// DefineOperationalModes command.
func (m OperationalModes) Encode() []byte {
	w := wire.NewWriter(4)
	w.WriteUint32(uint32(m))
	return w.Bytes()
}

// DecodeOperationalModes parses the payload of a DefineOperationalModes command.
func DecodeOperationalModes(payload []byte) (OperationalModes, error) {
	r := wire.NewReader(payload)
	v, err := r.Uint32()
	if err != nil {
		return 0, err
	}
	return OperationalModes(v), nil
}
