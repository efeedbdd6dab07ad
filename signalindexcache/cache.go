// Package signalindexcache implements the bidirectional mapping between a
// compact per-connection runtime index and a 128-bit signal identifier
// that both the compact measurement codec and TSSC key their per-signal
// state on.
package signalindexcache

import (
	"fmt"

	"github.com/c360/sttp/errors"
	"github.com/c360/sttp/wire"
	"github.com/google/uuid"
)

// Entry describes one mapping in a cache, optionally carrying the
// originating source name and numeric ID used by measurement naming
// conventions upstream of this transport.
type Entry struct {
	Index      uint32
	SignalID   uuid.UUID
	SourceName string
	SourceID   uint64
}

// Cache is a versioned bijection between runtime indices and signal IDs
// for a single connection. A Cache is immutable once built: a new
// subscription or metadata refresh builds and installs a fresh Cache
// rather than mutating an existing one, so in-flight readers never
// observe a half-built cache.
type Cache struct {
	version    uint64
	byIndex    map[uint32]Entry
	bySignalID map[uuid.UUID]uint32
}

// New builds a Cache from entries, assigning version as its monotonic
// CacheIndex. Index values must be unique; a duplicate index is a
// programmer error in the caller (the publisher assigns indices
// contiguously from 0, so this should never occur in practice) and
// returns an ErrorInvalid.
func New(version uint64, entries []Entry) (*Cache, error) {
	c := &Cache{
		version:    version,
		byIndex:    make(map[uint32]Entry, len(entries)),
		bySignalID: make(map[uuid.UUID]uint32, len(entries)),
	}
	for _, e := range entries {
		if _, exists := c.byIndex[e.Index]; exists {
			return nil, errors.WrapInvalid(
				errDuplicateIndex(e.Index), "signalindexcache", "New", "bijection check")
		}
		c.byIndex[e.Index] = e
		c.bySignalID[e.SignalID] = e.Index
	}
	return c, nil
}

// Version returns the cache's monotonically increasing CacheIndex.
func (c *Cache) Version() uint64 { return c.version }

// Len returns the number of entries in the cache.
func (c *Cache) Len() int { return len(c.byIndex) }

// IDOf returns the signal ID for a runtime index. A data packet
// referencing an index not present in the active cache is not an error:
// the peer may be mid-rotation between two caches, so callers should drop
// the measurement rather than treat this as a protocol violation.
func (c *Cache) IDOf(index uint32) (uuid.UUID, bool) {
	e, ok := c.byIndex[index]
	return e.SignalID, ok
}

// IndexOf returns the runtime index for a signal ID.
func (c *Cache) IndexOf(id uuid.UUID) (uint32, bool) {
	idx, ok := c.bySignalID[id]
	return idx, ok
}

// Entry returns the full entry for a runtime index.
func (c *Cache) Entry(index uint32) (Entry, bool) {
	e, ok := c.byIndex[index]
	return e, ok
}

// Entries returns all entries; order is unspecified.
func (c *Cache) Entries() []Entry {
	out := make([]Entry, 0, len(c.byIndex))
	for _, e := range c.byIndex {
		out = append(out, e)
	}
	return out
}

// Encode serializes the cache as:
// [u32 binaryLength][u32 referenceCount][per entry: u32 sourceIndex,
// u16 runtimeIndex, 16-byte signalID, u32 sourceLen, bytes source, u64 id].
//
// binaryLength covers everything after the length field itself.
// sourceIndex duplicates the runtime index as a stable sort key some
// STTP implementations use to recover original assignment order; this
// port always sets it equal to the runtime index.
func (c *Cache) Encode() []byte {
	body := wire.NewWriter(64 * len(c.byIndex))
	body.WriteUint32(uint32(len(c.byIndex)))
	for _, e := range c.Entries() {
		body.WriteUint32(e.Index) // sourceIndex
		body.WriteUint16(uint16(e.Index))
		body.WriteGUID(e.SignalID)
		body.WriteString(e.SourceName, wire.UTF8)
		body.WriteUint64(e.SourceID)
	}

	out := wire.NewWriter(4 + body.Len())
	out.WriteUint32(uint32(body.Len()))
	_, _ = out.Write(body.Bytes())
	return out.Bytes()
}

// Decode parses the wire format produced by Encode into a new Cache with
// the given version (the version itself is not carried on the wire; it
// is assigned by whichever side tracks cache rotation).
func Decode(version uint64, buf []byte) (*Cache, error) {
	r := wire.NewReader(buf)

	length, err := r.Uint32()
	if err != nil {
		return nil, errors.Wrap(err, "signalindexcache", "Decode", "read binaryLength")
	}
	if int(length) > r.Len() {
		return nil, errors.WrapInvalid(
			errTruncated(int(length), r.Len()), "signalindexcache", "Decode", "length check")
	}

	count, err := r.Uint32()
	if err != nil {
		return nil, errors.Wrap(err, "signalindexcache", "Decode", "read referenceCount")
	}

	entries := make([]Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		if _, err := r.Uint32(); err != nil { // sourceIndex, unused on decode
			return nil, errors.Wrap(err, "signalindexcache", "Decode", "read sourceIndex")
		}
		runtimeIndex, err := r.Uint16()
		if err != nil {
			return nil, errors.Wrap(err, "signalindexcache", "Decode", "read runtimeIndex")
		}
		signalID, err := r.GUID()
		if err != nil {
			return nil, errors.Wrap(err, "signalindexcache", "Decode", "read signalID")
		}
		source, err := r.String(wire.UTF8)
		if err != nil {
			return nil, errors.Wrap(err, "signalindexcache", "Decode", "read source")
		}
		id, err := r.Uint64()
		if err != nil {
			return nil, errors.Wrap(err, "signalindexcache", "Decode", "read id")
		}
		entries = append(entries, Entry{
			Index:      uint32(runtimeIndex),
			SignalID:   signalID,
			SourceName: source,
			SourceID:   id,
		})
	}

	return New(version, entries)
}

func errDuplicateIndex(idx uint32) error {
	return fmt.Errorf("duplicate runtime index %d", idx)
}

func errTruncated(want, have int) error {
	return fmt.Errorf("truncated cache payload: binaryLength %d exceeds remaining %d bytes", want, have)
}
