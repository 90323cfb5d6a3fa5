package broker

import (
	"bytes"
	"testing"

	"github.com/FairForge/tidelog/internal/protocol"
	"github.com/FairForge/tidelog/internal/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	system, err := streaming.NewSystem(t.TempDir(), nil, streaming.Config{
		MaxSegmentSize:         1 << 20,
		IndexIntervalBytes:     64,
		MessagesRequiredToSave: 1,
		DefaultPartitionsCount: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { system.Close() })
	return New(system, nil, nil)
}

func frameOf(code protocol.CommandCode, payload []byte) []byte {
	return append([]byte{byte(code)}, payload...)
}

func TestDispatch_Ping(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(1, frameOf(protocol.CmdPing, nil))
	assert.Equal(t, []byte{protocol.StatusOK}, resp)
}

func TestDispatch_UnknownCommand(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(1, []byte{0x99})
	require.Len(t, resp, 1)
	assert.NotEqual(t, byte(protocol.StatusOK), resp[0])
}

func TestDispatch_CreateStreamThenGetStream(t *testing.T) {
	d := newTestDispatcher(t)

	createPayload := protocol.EncodeCreateStream(protocol.CreateStreamCommand{StreamID: 1, Name: "orders"})
	resp := d.Dispatch(1, frameOf(protocol.CmdCreateStream, createPayload))
	require.Equal(t, []byte{protocol.StatusOK}, resp)

	getPayload := protocol.EncodeStreamCommand(protocol.StreamCommand{StreamID: 1})
	resp = d.Dispatch(1, frameOf(protocol.CmdGetStream, getPayload))
	require.Equal(t, byte(protocol.StatusOK), resp[0])
}

func TestDispatch_SendThenPollRoundTrips(t *testing.T) {
	d := newTestDispatcher(t)

	require.Equal(t, []byte{protocol.StatusOK}, d.Dispatch(1, frameOf(protocol.CmdCreateStream,
		protocol.EncodeCreateStream(protocol.CreateStreamCommand{StreamID: 1, Name: "orders"}))))
	require.Equal(t, []byte{protocol.StatusOK}, d.Dispatch(1, frameOf(protocol.CmdCreateTopic,
		protocol.EncodeCreateTopic(protocol.CreateTopicCommand{StreamID: 1, TopicID: 1, Name: "events", PartitionsCount: 1}))))

	sendPayload := protocol.EncodeSend(protocol.SendCommand{
		StreamID: 1,
		TopicID:  1,
		KeyKind:  protocol.KeyWirePartitionID,
		KeyValue: 1,
		Messages: []protocol.InboundMessage{{Payload: []byte("hello")}},
	})
	resp := d.Dispatch(1, frameOf(protocol.CmdSend, sendPayload))
	status, partitionID, firstOffset, err := protocol.DecodeSendResponse(bytes.NewReader(resp))
	require.NoError(t, err)
	assert.Equal(t, uint8(protocol.StatusOK), status)
	assert.Equal(t, uint32(1), partitionID)
	assert.Equal(t, uint64(0), firstOffset)

	pollPayload := protocol.EncodePoll(protocol.PollCommand{
		StreamID:    1,
		TopicID:     1,
		PartitionID: 1,
		Kind:        protocol.PollWireFirst,
		Count:       10,
	})
	resp = d.Dispatch(1, frameOf(protocol.CmdPoll, pollPayload))
	pstatus, msgs, err := protocol.DecodePollResponse(bytes.NewReader(resp))
	require.NoError(t, err)
	assert.Equal(t, uint8(protocol.StatusOK), pstatus)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte("hello"), msgs[0].Payload)
}

func TestDispatch_ConnectAndDisconnect(t *testing.T) {
	d := newTestDispatcher(t)
	c := d.Connect("127.0.0.1:9000")
	require.NotZero(t, c.ID)

	resp := d.Dispatch(c.ID, frameOf(protocol.CmdGetMe, nil))
	assert.Equal(t, byte(protocol.StatusOK), resp[0])

	d.Disconnect(c.ID)
}
