package publisher

import (
	"bytes"
	"compress/gzip"
	"context"
	"net"
	"time"

	"github.com/c360/sttp/dataset"
	"github.com/c360/sttp/errors"
	"github.com/c360/sttp/protocol"
	"github.com/c360/sttp/signalindexcache"
	"github.com/c360/sttp/wire"
)

func gzipBytes(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PredicateResolver turns a Subscribe command's table/column/expression
// triple into a dataset.Predicate. Evaluating the filter-expression
// language itself is out of scope for this module (spec.md §1); the
// default resolver treats every expression as select-all, and an
// embedding application that needs real filtering supplies its own
// resolver on Engine construction.
type PredicateResolver func(tableName, idColumn, expression string) (dataset.Predicate, error)

func selectAllResolver(string, string, string) (dataset.Predicate, error) {
	return func(dataset.Row) bool { return true }, nil
}

// dispatch routes one decoded command frame to its handler. The
// returned error, if any, is reported via Callbacks.OnError; only a
// fatal error (an unknown command or a protocol-state violation,
// ErrorFatal) closes the connection.
func (c *connection) dispatch(ctx context.Context, code protocol.CommandCode, payload []byte) error {
	switch code {
	case protocol.CommandDefineOperationalModes:
		return c.handleDefineOperationalModes(payload)
	case protocol.CommandMetadataRefresh:
		return c.handleMetadataRefresh()
	case protocol.CommandSubscribe:
		return c.handleSubscribe(payload)
	case protocol.CommandUnsubscribe:
		return c.handleUnsubscribe()
	case protocol.CommandRotateCipherKeys:
		return c.handleRotateCipherKeys()
	case protocol.CommandConfirmNotification:
		return c.handleConfirmCipherKeys(payload)
	case protocol.CommandConfirmBufferBlock:
		return nil // acknowledgment only; nothing to act on
	case protocol.CommandUpdateProcessingInterval:
		return nil // T_publish is engine-configured, not per-subscriber in this module
	case protocol.CommandConnect:
		return c.handleConnect(payload)
	default:
		return errors.WrapFatal(errUnknownCommand(code), "publisher", "connection.dispatch", "command lookup")
	}
}

func (c *connection) handleConnect(payload []byte) error {
	c.engine.callbacks.connect(c.id, c.remoteAddr)
	c.engine.bridge.Connected(context.Background(), "publisher", c.id)

	if len(payload) == 0 {
		return nil
	}
	r := wire.NewReader(payload)
	port, err := r.Uint16()
	if err != nil {
		return nil // optional field; Connect with no UDP request is valid
	}
	host, _, splitErr := net.SplitHostPort(c.remoteAddr)
	if splitErr != nil {
		host = c.remoteAddr
	}
	c.udpAddr = &net.UDPAddr{IP: net.ParseIP(host), Port: int(port)}
	return nil
}

func (c *connection) handleDefineOperationalModes(payload []byte) error {
	if err := c.handshake.OnDefineOperationalModes(); err != nil {
		return err
	}
	modes, err := protocol.DecodeOperationalModes(payload)
	if err != nil {
		return errors.WrapInvalid(err, "publisher", "connection.handleDefineOperationalModes", "decode")
	}
	c.modes = modes
	return nil
}

func (c *connection) handleMetadataRefresh() error {
	if err := c.handshake.OnMetadataRefresh(); err != nil {
		return err
	}
	snap := c.engine.datasetManager.Current()
	return c.sendMetadata(snap)
}

func (c *connection) sendMetadata(snap *dataset.Snapshot) error {
	variant := c.modes.StringEncoding().String()
	if c.modes.CompressMetadata() {
		blob, err := c.engine.compressedCache.Get(snap, variant)
		if err != nil {
			return errors.Wrap(err, "publisher", "connection.sendMetadata", "compress")
		}
		c.sendResponse(protocol.ResponseSucceeded, blob)
		return nil
	}
	c.sendResponse(protocol.ResponseSucceeded, snap.Encode())
	return nil
}

// handleSubscribe resolves the filter carried by payload against the
// dataset.Snapshot current at the moment of resolution (not whatever is
// current when the response is written), builds and installs a fresh
// signal-index cache, and responds with UpdateSignalIndexCache followed
// by Succeeded.
func (c *connection) handleSubscribe(payload []byte) error {
	if err := c.handshake.OnSubscribe(); err != nil {
		return err
	}

	tableName, idColumn, expression, err := decodeSubscribeRequest(payload)
	if err != nil {
		return errors.WrapInvalid(err, "publisher", "connection.handleSubscribe", "decode")
	}

	snap := c.engine.datasetManager.Current()
	resolve := c.engine.predicateResolver
	if resolve == nil {
		resolve = selectAllResolver
	}
	pred, err := resolve(tableName, idColumn, expression)
	if err != nil {
		c.sendResponse(protocol.ResponseFailed, []byte(err.Error()))
		return errors.WrapInvalid(err, "publisher", "connection.handleSubscribe", "resolve predicate")
	}

	ids, err := snap.Resolve(tableName, idColumn, pred)
	if err != nil {
		c.sendResponse(protocol.ResponseFailed, []byte(err.Error()))
		return errors.WrapInvalid(err, "publisher", "connection.handleSubscribe", "resolve signal set")
	}

	cache, err := c.setSubscription(ids)
	if err != nil {
		return err
	}

	c.sendCacheUpdate(cache)
	c.sendResponse(protocol.ResponseSucceeded, nil)

	c.engine.callbacks.subscribe(c.id, len(ids))
	c.engine.bridge.Subscribed(context.Background(), "publisher", c.id, len(ids))
	return nil
}

func (c *connection) sendCacheUpdate(cache *signalindexcache.Cache) {
	payload := cache.Encode()
	if c.modes.CompressSignalIndexCache() {
		compressed, err := gzipBytes(payload)
		if err == nil {
			c.sendResponse(protocol.ResponseUpdateSignalIndexCache, compressed)
			return
		}
		c.engine.callbacks.error(c.id, errors.Wrap(err, "publisher", "connection.sendCacheUpdate", "gzip"))
	}
	c.sendResponse(protocol.ResponseUpdateSignalIndexCache, payload)
}

func (c *connection) handleUnsubscribe() error {
	if err := c.handshake.OnUnsubscribe(); err != nil {
		return err
	}
	c.mu.Lock()
	c.signalSet = nil
	c.mu.Unlock()
	return nil
}

func (c *connection) handleRotateCipherKeys() error {
	pair, selector, err := c.rotator.Start(time.Now())
	if err != nil {
		return err
	}
	w := wire.NewWriter(1 + 2*(16+32))
	_ = w.WriteByte(byte(selector))
	_, _ = w.Write(pair.Key[:])
	_, _ = w.Write(pair.IV[:])
	c.sendResponse(protocol.ResponseUpdateCipherKeys, w.Bytes())
	return nil
}

// handleConfirmCipherKeys completes a two-phase RotateCipherKeys exchange:
// the subscriber's ConfirmNotification carries back the selector it has
// switched to using, letting the rotator retire the previous pair.
func (c *connection) handleConfirmCipherKeys(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	return c.rotator.Confirm(int(payload[0]))
}

func decodeSubscribeRequest(payload []byte) (tableName, idColumn, expression string, err error) {
	r := wire.NewReader(payload)
	if tableName, err = r.String(wire.UTF8); err != nil {
		return "", "", "", err
	}
	if idColumn, err = r.String(wire.UTF8); err != nil {
		return "", "", "", err
	}
	if expression, err = r.String(wire.UTF8); err != nil {
		return "", "", "", err
	}
	return tableName, idColumn, expression, nil
}

func errUnknownCommand(c protocol.CommandCode) error {
	return unknownCommandError{c}
}

type unknownCommandError struct{ code protocol.CommandCode }

func (e unknownCommandError) Error() string { return "publisher: unknown command " + e.code.String() }
