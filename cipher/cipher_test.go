package cipher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	pair, err := GenerateKeyPair()
	require.NoError(t, err)

	ct, err := Seal(pair, 42, []byte("measurement batch"))
	require.NoError(t, err)

	pt, err := Open(pair, 42, ct)
	require.NoError(t, err)
	assert.Equal(t, "measurement batch", string(pt))
}

func TestOpenRejectsWrongCounter(t *testing.T) {
	pair, err := GenerateKeyPair()
	require.NoError(t, err)

	ct, err := Seal(pair, 1, []byte("payload"))
	require.NoError(t, err)

	_, err = Open(pair, 2, ct)
	assert.Error(t, err)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	pair, err := GenerateKeyPair()
	require.NoError(t, err)

	ct, err := Seal(pair, 1, []byte("payload"))
	require.NoError(t, err)
	ct[0] ^= 0xFF

	_, err = Open(pair, 1, ct)
	assert.Error(t, err)
}

func TestRotationFullCycle(t *testing.T) {
	keys, err := NewKeys()
	require.NoError(t, err)
	r := NewRotator(keys, DefaultRotationTimeout)

	activeBefore, pairBefore := keys.Active()

	now := time.Now()
	newPair, selector, err := r.Start(now)
	require.NoError(t, err)
	assert.NotEqual(t, activeBefore, selector)
	assert.NotEqual(t, pairBefore.Key, newPair.Key)

	require.NoError(t, r.Confirm(selector))

	activeAfter, pairAfter := keys.Active()
	assert.Equal(t, selector, activeAfter)
	assert.Equal(t, newPair.Key, pairAfter.Key)
}

func TestRotationRejectsSecondStartWhilePending(t *testing.T) {
	keys, err := NewKeys()
	require.NoError(t, err)
	r := NewRotator(keys, DefaultRotationTimeout)

	_, _, err = r.Start(time.Now())
	require.NoError(t, err)

	_, _, err = r.Start(time.Now())
	assert.Error(t, err)
}

func TestRotationTimeout(t *testing.T) {
	keys, err := NewKeys()
	require.NoError(t, err)
	r := NewRotator(keys, time.Second)

	start := time.Now()
	_, _, err = r.Start(start)
	require.NoError(t, err)

	assert.False(t, r.CheckTimeout(start.Add(500*time.Millisecond)))
	assert.True(t, r.CheckTimeout(start.Add(2*time.Second)))
}

func TestConfirmRejectsWrongSelector(t *testing.T) {
	keys, err := NewKeys()
	require.NoError(t, err)
	r := NewRotator(keys, DefaultRotationTimeout)

	_, selector, err := r.Start(time.Now())
	require.NoError(t, err)

	assert.Error(t, r.Confirm(1-selector))
}
