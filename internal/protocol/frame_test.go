package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := append([]byte{byte(CmdPoll)}, EncodePoll(PollCommand{StreamID: 1})...)

	require.NoError(t, WriteFrame(&buf, payload))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, make([]byte, 0)))
	// Overwrite the length prefix with something beyond MaxFrameSize.
	oversized := buf.Bytes()
	oversized[0], oversized[1], oversized[2], oversized[3] = 0xff, 0xff, 0xff, 0x7f

	_, err := ReadFrame(bytes.NewReader(oversized))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadCommand(t *testing.T) {
	t.Run("extracts the code and remainder", func(t *testing.T) {
		frame := append([]byte{byte(CmdPing)}, []byte("rest")...)
		code, rest, err := ReadCommand(frame)
		require.NoError(t, err)
		assert.Equal(t, CmdPing, code)
		assert.Equal(t, []byte("rest"), rest)
	})

	t.Run("empty frame is invalid", func(t *testing.T) {
		_, _, err := ReadCommand(nil)
		assert.ErrorIs(t, err, ErrInvalidCommand)
	})
}
