package streaming

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_EncodeDecodeRoundTrip(t *testing.T) {
	m := &Message{Offset: 42, Timestamp: 1234567, Payload: []byte("hello world")}
	m.ID[0] = 0xAB

	buf := m.Encode(nil)
	assert.Equal(t, m.SizeBytes(), len(buf))

	got, err := DecodeMessage(bytes.NewReader(buf))
	require.NoError(t, err)
	assert.Equal(t, m.Offset, got.Offset)
	assert.Equal(t, m.Timestamp, got.Timestamp)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, m.Payload, got.Payload)
	assert.Equal(t, m.Checksum, got.Checksum)
}

func TestMessage_DecodeDetectsChecksumMismatch(t *testing.T) {
	m := &Message{Payload: []byte("corrupt me")}
	buf := m.Encode(nil)
	buf[len(buf)-1] ^= 0xFF // flip a payload byte after the checksum was computed

	_, err := DecodeMessage(bytes.NewReader(buf))
	var cksumErr *ChecksumError
	require.ErrorAs(t, err, &cksumErr)
}

func TestMessage_DecodeTruncatedRecord(t *testing.T) {
	m := &Message{Payload: []byte("truncated")}
	buf := m.Encode(nil)

	_, err := DecodeMessage(bytes.NewReader(buf[:len(buf)-2]))
	assert.Error(t, err)
}

func TestValidatePayload(t *testing.T) {
	t.Run("empty payload rejected", func(t *testing.T) {
		assert.ErrorIs(t, ValidatePayload(nil), ErrEmptyMessagePayload)
	})

	t.Run("oversized payload rejected", func(t *testing.T) {
		big := make([]byte, MaxMessagePayloadSize+1)
		assert.ErrorIs(t, ValidatePayload(big), ErrTooBigMessagePayload)
	})

	t.Run("ordinary payload accepted", func(t *testing.T) {
		assert.NoError(t, ValidatePayload([]byte("ok")))
	})
}
