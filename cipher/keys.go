// Package cipher implements the UDP data channel's symmetric encryption:
// AES-256-GCM over two live key/IV pairs selected by a 1-bit flag in
// each datagram, and the two-phase rotation protocol
// (RotateCipherKeys → UpdateCipherKeys → ack) that replaces the
// inactive pair without ever invalidating a key mid-flight.
package cipher

import (
	"crypto/rand"
	"sync"

	"github.com/c360/sttp/errors"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// IVSize is the GCM nonce base length in bytes.
const IVSize = 12

// KeyPair is one AES-256-GCM key and its base IV.
type KeyPair struct {
	Key [KeySize]byte
	IV  [IVSize]byte
}

// GenerateKeyPair returns a fresh random KeyPair.
func GenerateKeyPair() (KeyPair, error) {
	var kp KeyPair
	if _, err := rand.Read(kp.Key[:]); err != nil {
		return KeyPair{}, errors.WrapFatal(err, "cipher", "GenerateKeyPair", "read key")
	}
	if _, err := rand.Read(kp.IV[:]); err != nil {
		return KeyPair{}, errors.WrapFatal(err, "cipher", "GenerateKeyPair", "read iv")
	}
	return kp, nil
}

// Keys holds the two live key/IV pairs a connection's data channel
// selects between, plus which one is currently active for encryption.
// Both pairs remain valid for decryption at all times: a subscriber must
// accept datagrams encrypted under either selector until a rotation it
// has acknowledged actually flips the active one.
type Keys struct {
	mu     sync.RWMutex
	pairs  [2]KeyPair
	active int
}

// NewKeys generates two fresh pairs and activates slot 0.
func NewKeys() (*Keys, error) {
	k := &Keys{}
	for i := range k.pairs {
		pair, err := GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		k.pairs[i] = pair
	}
	return k, nil
}

// Active returns the active selector and its key pair.
func (k *Keys) Active() (int, KeyPair) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.active, k.pairs[k.active]
}

// Pair returns the key pair installed in the given selector (0 or 1),
// regardless of which one is currently active.
func (k *Keys) Pair(selector int) KeyPair {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.pairs[selector%2]
}

// InstallPair overwrites the pair held at selector with one received
// over the wire (an UpdateCipherKeys payload), for the receiving side of
// a rotation that does not generate its own keys.
func (k *Keys) InstallPair(selector int, pair KeyPair) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pairs[selector%2] = pair
}

// beginRotation installs a fresh pair into the inactive slot and
// returns it along with its selector. The active selector does not
// change until confirmRotation is called.
func (k *Keys) beginRotation() (KeyPair, int, error) {
	pair, err := GenerateKeyPair()
	if err != nil {
		return KeyPair{}, 0, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	inactive := 1 - k.active
	k.pairs[inactive] = pair
	return pair, inactive, nil
}

// confirmRotation flips the active selector to selector, which must be
// the slot a prior beginRotation installed a fresh pair into.
func (k *Keys) confirmRotation(selector int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.active = selector % 2
}
