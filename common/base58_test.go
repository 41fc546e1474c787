package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayloadEncodings(t *testing.T) {
	raw := []byte{0x01, 0x02, 0xfe, 0x00, 0x7f}

	for _, enc := range []string{"", EncodingBase64, EncodingBase58, "BASE58"} {
		encoded, err := EncodePayload(raw, enc)
		require.NoError(t, err, enc)

		decoded, err := DecodePayload(encoded, enc)
		require.NoError(t, err, enc)
		assert.Equal(t, raw, decoded, enc)
	}
}

func TestDecodePayloadRejectsBadInput(t *testing.T) {
	_, err := DecodePayload("", EncodingBase64)
	assert.Error(t, err)

	_, err = DecodePayload("0OIl", EncodingBase58)
	assert.Error(t, err)

	_, err = DecodePayload("AAAA", "hex")
	assert.Error(t, err)
}

func TestIsValidBase58(t *testing.T) {
	assert.True(t, IsValidBase58(EncodeBytesToBase58([]byte("sequencer"))))
	assert.False(t, IsValidBase58("0OIl"))
}
