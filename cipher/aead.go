package cipher

import (
	"crypto/aes"
	cryptocipher "crypto/cipher"
	"encoding/binary"

	"github.com/c360/sttp/errors"
)

// nonce derives a per-packet GCM nonce from a key pair's base IV and a
// monotonic per-connection packet counter, so the same key/IV pair can
// seal many packets without ever reusing a nonce: GCM requires that, not
// a fresh IV for every datagram.
func nonce(iv [IVSize]byte, counter uint64) [IVSize]byte {
	n := iv
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], counter)
	for i := 0; i < 8; i++ {
		n[IVSize-8+i] ^= ctr[i]
	}
	return n
}

// Seal encrypts and authenticates plaintext under pair, returning the
// ciphertext with its GCM authentication tag appended. counter must be
// unique per (pair, connection) and is typically the data channel's
// outbound packet sequence number.
func Seal(pair KeyPair, counter uint64, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(pair.Key)
	if err != nil {
		return nil, err
	}
	n := nonce(pair.IV, counter)
	return aead.Seal(nil, n[:], plaintext, nil), nil
}

// Open reverses Seal. A failed authentication check (tampering, wrong
// key, or a stale pair from before a rotation) returns an error rather
// than any partial plaintext.
func Open(pair KeyPair, counter uint64, ciphertext []byte) ([]byte, error) {
	aead, err := newGCM(pair.Key)
	if err != nil {
		return nil, err
	}
	n := nonce(pair.IV, counter)
	plaintext, err := aead.Open(nil, n[:], ciphertext, nil)
	if err != nil {
		return nil, errors.WrapInvalid(err, "cipher", "Open", "authenticate")
	}
	return plaintext, nil
}

func newGCM(key [KeySize]byte) (cryptocipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.WrapFatal(err, "cipher", "newGCM", "new aes cipher")
	}
	aead, err := cryptocipher.NewGCM(block)
	if err != nil {
		return nil, errors.WrapFatal(err, "cipher", "newGCM", "new gcm")
	}
	return aead, nil
}
