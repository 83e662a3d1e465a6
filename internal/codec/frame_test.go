package codec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunomcebola/argos/internal/codec"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	env := codec.Envelope{
		NodeID:    "node-1",
		CameraSN:  "SN001",
		Timestamp: time.Unix(1_700_000_000, 123000).UTC(),
		Slots: map[string][]byte{
			"color": []byte{1, 2, 3},
			"depth": []byte{4, 5, 6, 7},
		},
		Resolutions: map[string][2]uint16{
			"color": {1920, 1080},
			"depth": {640, 480},
		},
	}

	data, err := codec.Encode(env)
	require.NoError(t, err)

	got, err := codec.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, env.NodeID, got.NodeID)
	assert.Equal(t, env.CameraSN, got.CameraSN)
	assert.True(t, env.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, env.Slots, got.Slots)
	assert.Equal(t, env.Resolutions, got.Resolutions)
}

func TestEncode_EmptySlots(t *testing.T) {
	env := codec.Envelope{NodeID: "n", CameraSN: "c", Timestamp: time.Now()}
	data, err := codec.Encode(env)
	require.NoError(t, err)

	got, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Empty(t, got.Slots)
}

func TestDecode_RejectsBadMagic(t *testing.T) {
	_, err := codec.Decode([]byte{0, 0, 0, 0})
	assert.Error(t, err)
}

func TestDecode_RejectsTruncated(t *testing.T) {
	env := codec.Envelope{NodeID: "n", CameraSN: "c", Timestamp: time.Now(), Slots: map[string][]byte{"color": {1, 2, 3}}}
	data, err := codec.Encode(env)
	require.NoError(t, err)

	_, err = codec.Decode(data[:len(data)-2])
	assert.Error(t, err)
}

func TestEventName(t *testing.T) {
	assert.Equal(t, "node-1_SN001", codec.EventName("node-1", "SN001"))
}
