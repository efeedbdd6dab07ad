package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, byte(CommandSubscribe), []byte("FILTER ActiveMeasurements WHERE True")))

	code, payload, err := ReadFrame(&buf, DefaultMaxPacketSize)
	require.NoError(t, err)
	assert.Equal(t, byte(CommandSubscribe), code)
	assert.Equal(t, "FILTER ActiveMeasurements WHERE True", string(payload))
}

func TestReadFrameRejectsOversizeLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, byte(CommandConnect), make([]byte, 100)))

	_, _, err := ReadFrame(&buf, 10)
	assert.Error(t, err)
}

func TestOperationalModesRoundTrip(t *testing.T) {
	m := NewOperationalModes(true, false, true, true, false, true)
	decoded, err := DecodeOperationalModes(m.Encode())
	require.NoError(t, err)

	assert.Equal(t, byte(CurrentVersion), decoded.Version())
	assert.Equal(t, m.StringEncoding(), decoded.StringEncoding())
	assert.True(t, decoded.CompressSignalIndexCache())
	assert.True(t, decoded.CompressPayloadData())
	assert.False(t, decoded.CompressMetadata())
	assert.True(t, decoded.ReceiveExternalMetadata())
}

func TestHandshakeHappyPath(t *testing.T) {
	h := NewHandshake()
	require.NoError(t, h.OnDefineOperationalModes())
	assert.Equal(t, StateModed, h.State())

	require.NoError(t, h.OnSubscribe())
	assert.Equal(t, StateSubscribed, h.State())

	require.NoError(t, h.OnUnsubscribe())
	assert.Equal(t, StateUnsubscribed, h.State())

	require.NoError(t, h.OnSubscribe())
	assert.Equal(t, StateSubscribed, h.State())

	h.Close()
	assert.Equal(t, StateClosed, h.State())
}

func TestHandshakeRejectsOutOfOrderCommands(t *testing.T) {
	h := NewHandshake()
	assert.Error(t, h.OnSubscribe()) // can't subscribe before modes are defined

	require.NoError(t, h.OnDefineOperationalModes())
	assert.Error(t, h.OnDefineOperationalModes()) // can't redefine modes

	assert.Error(t, h.OnUnsubscribe()) // can't unsubscribe before subscribing
}

func TestCommandAndResponseCodeStrings(t *testing.T) {
	assert.Equal(t, "Subscribe", CommandSubscribe.String())
	assert.True(t, CommandCode(0xD5).Known())
	assert.False(t, CommandCode(0x50).Known())

	assert.Equal(t, "DataPacket", ResponseDataPacket.String())
	assert.True(t, ResponseCode(0xE5).Known())
	assert.False(t, ResponseCode(0x50).Known())
}
