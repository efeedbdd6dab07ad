package dataset

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/c360/sttp/errors"
	"github.com/c360/sttp/pkg/cache"
)

// CompressedCache memoizes the gzip-compressed wire encoding of a
// Snapshot, keyed by generation plus whatever mode-dependent encoding
// variant a caller cares about (e.g. string encoding). Repeated
// MetadataRefresh or Subscribe responses to subscribers sharing
// operational modes reuse the same compressed blob rather than
// re-encoding and re-compressing an unchanged snapshot (spec.md §4.9).
//
// A CompressedCache is safe for concurrent use; it never mutates the
// Snapshot it was built from.
type CompressedCache struct {
	backing cache.Cache[[]byte]
}

// NewCompressedCache wraps an LRU cache with the given entry limit.
func NewCompressedCache(maxEntries int) (*CompressedCache, error) {
	backing, err := cache.NewLRU[[]byte](maxEntries)
	if err != nil {
		return nil, errors.Wrap(err, "dataset", "NewCompressedCache", "build LRU")
	}
	return &CompressedCache{backing: backing}, nil
}

// Get returns the gzip-compressed encoding of snap for the given
// variant, computing and caching it on first request for that
// (generation, variant) pair.
func (c *CompressedCache) Get(snap *Snapshot, variant string) ([]byte, error) {
	key := fmt.Sprintf("%d:%s", snap.Generation, variant)
	if blob, ok := c.backing.Get(key); ok {
		return blob, nil
	}

	raw := snap.Encode()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return nil, errors.WrapFatal(err, "dataset", "CompressedCache.Get", "gzip write")
	}
	if err := gz.Close(); err != nil {
		return nil, errors.WrapFatal(err, "dataset", "CompressedCache.Get", "gzip close")
	}

	blob := buf.Bytes()
	if _, err := c.backing.Set(key, blob); err != nil {
		return nil, errors.Wrap(err, "dataset", "CompressedCache.Get", "cache set")
	}
	return blob, nil
}

// Decompress reverses Get's gzip compression.
func Decompress(blob []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, errors.WrapInvalid(err, "dataset", "Decompress", "gzip reader")
	}
	defer gz.Close()
	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, errors.WrapInvalid(err, "dataset", "Decompress", "gzip read")
	}
	return raw, nil
}
