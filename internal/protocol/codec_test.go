package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollRoundTrip(t *testing.T) {
	t.Run("binary encode/decode round-trips", func(t *testing.T) {
		cmd := PollCommand{
			StreamID: 1, TopicID: 2, PartitionID: 3,
			Kind: PollWireTimestamp, Value: 123456789, Count: 10,
			ConsumerKind: ConsumerWireGroup, ConsumerID: 7, AutoCommit: true,
		}
		encoded := EncodePoll(cmd)
		decoded, err := DecodePoll(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.Equal(t, &cmd, decoded)
	})
}

func TestPollResponseRoundTrip(t *testing.T) {
	t.Run("ok status with messages", func(t *testing.T) {
		msgs := []OutboundMessage{
			{Offset: 0, Timestamp: 100, Checksum: 42, Payload: []byte("a")},
			{Offset: 1, Timestamp: 110, Checksum: 43, Payload: []byte("bb")},
		}
		encoded := EncodePollResponse(StatusOK, msgs)
		status, decoded, err := DecodePollResponse(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.Equal(t, uint8(StatusOK), status)
		assert.Equal(t, msgs, decoded)
	})

	t.Run("error status carries no payload", func(t *testing.T) {
		encoded := EncodePollResponse(40, nil)
		assert.Equal(t, []byte{40}, encoded)
		status, msgs, err := DecodePollResponse(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.Equal(t, uint8(40), status)
		assert.Nil(t, msgs)
	})

	t.Run("no messages is a 5-byte zero-count response", func(t *testing.T) {
		encoded := EncodePollResponse(StatusOK, nil)
		assert.Len(t, encoded, 5)
		status, msgs, err := DecodePollResponse(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.Equal(t, uint8(StatusOK), status)
		assert.Empty(t, msgs)
	})
}

func TestSendRoundTrip(t *testing.T) {
	t.Run("binary encode/decode round-trips", func(t *testing.T) {
		cmd := SendCommand{
			StreamID: 5, TopicID: 9, KeyKind: KeyWireEntityID, KeyValue: 3,
			Messages: []InboundMessage{
				{ID: [16]byte{1, 2, 3}, Payload: []byte("hello")},
				{ID: [16]byte{4, 5, 6}, Payload: []byte("world")},
			},
		}
		encoded := EncodeSend(cmd)
		decoded, err := DecodeSend(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.Equal(t, &cmd, decoded)
	})
}

func TestSendResponseRoundTrip(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		encoded := EncodeSendResponse(StatusOK, 2, 17)
		status, pid, offset, err := DecodeSendResponse(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.Equal(t, uint8(StatusOK), status)
		assert.Equal(t, uint32(2), pid)
		assert.Equal(t, uint64(17), offset)
	})

	t.Run("error", func(t *testing.T) {
		encoded := EncodeSendResponse(32, 0, 0)
		status, _, _, err := DecodeSendResponse(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.Equal(t, uint8(32), status)
	})
}

func TestCreateStreamRoundTrip(t *testing.T) {
	cmd := CreateStreamCommand{StreamID: 1, Name: "orders"}
	encoded := EncodeCreateStream(cmd)
	decoded, err := DecodeCreateStream(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, &cmd, decoded)
}

func TestCreateTopicRoundTrip(t *testing.T) {
	cmd := CreateTopicCommand{StreamID: 1, TopicID: 2, PartitionsCount: 4, Name: "events"}
	encoded := EncodeCreateTopic(cmd)
	decoded, err := DecodeCreateTopic(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, &cmd, decoded)
}

func TestGroupMemberRoundTrip(t *testing.T) {
	cmd := GroupMemberCommand{StreamID: 1, TopicID: 2, GroupID: 3, ClientID: 4}
	encoded := EncodeGroupMemberCommand(cmd)
	decoded, err := DecodeGroupMemberCommand(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, &cmd, decoded)
}

func TestOffsetCommandRoundTrip(t *testing.T) {
	cmd := OffsetCommand{StreamID: 1, TopicID: 2, PartitionID: 3, ConsumerKind: ConsumerWireConsumer, ConsumerID: 9, Offset: 555}
	encoded := EncodeOffsetCommand(cmd)
	decoded, err := DecodeOffsetCommand(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, &cmd, decoded)
}

func TestGetOffsetResponseRoundTrip(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		encoded := EncodeGetOffsetResponse(StatusOK, true, 99)
		status, found, offset, err := DecodeGetOffsetResponse(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.Equal(t, uint8(StatusOK), status)
		assert.True(t, found)
		assert.Equal(t, uint64(99), offset)
	})

	t.Run("not found", func(t *testing.T) {
		encoded := EncodeGetOffsetResponse(StatusOK, false, 0)
		_, found, _, err := DecodeGetOffsetResponse(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestCommandCodeNames(t *testing.T) {
	t.Run("known codes round-trip through name", func(t *testing.T) {
		for code := range commandNames {
			name := code.String()
			got, ok := ParseCommandName(name)
			assert.True(t, ok)
			assert.Equal(t, code, got)
		}
	})

	t.Run("unknown code renders a hex fallback", func(t *testing.T) {
		assert.Contains(t, CommandCode(0x99).String(), "0x99")
	})
}
