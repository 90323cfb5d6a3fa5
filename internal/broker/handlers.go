package broker

import (
	"io"
	"time"

	"github.com/FairForge/tidelog/internal/protocol"
	"github.com/FairForge/tidelog/internal/streaming"
	"go.uber.org/zap"
)

// names resolves a (streamID, topicID) pair to their human names for
// metrics labels, falling back to empty strings when either side of the
// lookup fails (e.g. a poll racing a concurrent delete) rather than
// failing the whole operation just to label a counter.
func (d *Dispatcher) names(streamID, topicID uint32) (stream, topic string) {
	st, err := d.system.GetStream(streamID)
	if err != nil {
		return "", ""
	}
	tp, err := st.GetTopic(topicID)
	if err != nil {
		return st.Name, ""
	}
	return st.Name, tp.Name
}

func (d *Dispatcher) handlePoll(clientID uint32, r io.Reader) []byte {
	cmd, err := protocol.DecodePoll(r)
	if err != nil {
		return protocol.EncodeStatus(protocol.StatusFor(err))
	}

	consumerKind := consumerKindOf(cmd.ConsumerKind)
	req := streaming.PollRequest{
		Kind:       pollKindOf(cmd.Kind),
		Value:      cmd.Value,
		Count:      cmd.Count,
		AutoCommit: cmd.AutoCommit,
	}
	groupID := cmd.ConsumerID
	if consumerKind == streaming.ConsumerKindConsumer {
		groupID = 0
	}

	start := time.Now()
	msgs, err := d.system.Poll(cmd.StreamID, cmd.TopicID, consumerKind, clientID, groupID, cmd.PartitionID, req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		d.logger.Debug("poll failed", zap.Uint32("stream_id", cmd.StreamID), zap.Uint32("topic_id", cmd.TopicID), zap.Error(err))
		return protocol.EncodePollResponse(protocol.StatusFor(err), nil)
	}

	streamName, topicName := d.names(cmd.StreamID, cmd.TopicID)
	d.metrics.ObservePoll(streamName, topicName, elapsed)

	out := make([]protocol.OutboundMessage, len(msgs))
	for i, m := range msgs {
		out[i] = protocol.OutboundMessage{
			Offset:    m.Offset,
			ID:        m.ID,
			Timestamp: m.Timestamp,
			Checksum:  m.Checksum,
			Payload:   m.Payload,
		}
	}
	return protocol.EncodePollResponse(protocol.StatusOK, out)
}

func (d *Dispatcher) handleSend(r io.Reader) []byte {
	cmd, err := protocol.DecodeSend(r)
	if err != nil {
		return protocol.EncodeStatus(protocol.StatusFor(err))
	}

	msgs := make([]*streaming.Message, len(cmd.Messages))
	totalBytes := 0
	for i, m := range cmd.Messages {
		msgs[i] = &streaming.Message{ID: streaming.MessageID(m.ID), Payload: m.Payload}
		totalBytes += len(m.Payload)
	}

	start := time.Now()
	partitionID, firstOffset, err := d.system.Send(cmd.StreamID, cmd.TopicID, keyKindOf(cmd.KeyKind), cmd.KeyValue, msgs)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		d.logger.Debug("send failed", zap.Uint32("stream_id", cmd.StreamID), zap.Uint32("topic_id", cmd.TopicID), zap.Error(err))
		return protocol.EncodeSendResponse(protocol.StatusFor(err), 0, 0)
	}

	streamName, topicName := d.names(cmd.StreamID, cmd.TopicID)
	d.metrics.ObserveAppend(streamName, topicName, len(msgs), totalBytes, elapsed)

	return protocol.EncodeSendResponse(protocol.StatusOK, partitionID, firstOffset)
}

func (d *Dispatcher) handleGetStream(r io.Reader) []byte {
	cmd, err := protocol.DecodeStreamCommand(r)
	if err != nil {
		return protocol.EncodeStatus(protocol.StatusFor(err))
	}
	st, err := d.system.GetStream(cmd.StreamID)
	if err != nil {
		return protocol.EncodeStatus(protocol.StatusFor(err))
	}
	resp := protocol.EncodeStatus(protocol.StatusOK)
	resp = append(resp, protocol.EncodeCreateStream(protocol.CreateStreamCommand{StreamID: st.ID, Name: st.Name})...)
	return resp
}

func (d *Dispatcher) handleGetStreams() []byte {
	streams := d.system.GetStreams()
	resp := protocol.EncodeStatus(protocol.StatusOK)
	resp = protocol.AppendUint32(resp, uint32(len(streams)))
	for _, st := range streams {
		resp = append(resp, protocol.EncodeCreateStream(protocol.CreateStreamCommand{StreamID: st.ID, Name: st.Name})...)
	}
	return resp
}

func (d *Dispatcher) handleGetTopic(r io.Reader) []byte {
	cmd, err := protocol.DecodeTopicCommand(r)
	if err != nil {
		return protocol.EncodeStatus(protocol.StatusFor(err))
	}
	tp, err := d.system.GetTopic(cmd.StreamID, cmd.TopicID)
	if err != nil {
		return protocol.EncodeStatus(protocol.StatusFor(err))
	}
	resp := protocol.EncodeStatus(protocol.StatusOK)
	resp = append(resp, protocol.EncodeCreateTopic(protocol.CreateTopicCommand{
		StreamID: cmd.StreamID, TopicID: tp.ID, Name: tp.Name, PartitionsCount: tp.PartitionsCount,
	})...)
	return resp
}

func (d *Dispatcher) handleGetTopics(r io.Reader) []byte {
	cmd, err := protocol.DecodeStreamCommand(r)
	if err != nil {
		return protocol.EncodeStatus(protocol.StatusFor(err))
	}
	topics, err := d.system.GetTopics(cmd.StreamID)
	if err != nil {
		return protocol.EncodeStatus(protocol.StatusFor(err))
	}
	resp := protocol.EncodeStatus(protocol.StatusOK)
	resp = protocol.AppendUint32(resp, uint32(len(topics)))
	for _, tp := range topics {
		resp = append(resp, protocol.EncodeCreateTopic(protocol.CreateTopicCommand{
			StreamID: cmd.StreamID, TopicID: tp.ID, Name: tp.Name, PartitionsCount: tp.PartitionsCount,
		})...)
	}
	return resp
}

func (d *Dispatcher) handleGetOffset(r io.Reader) []byte {
	cmd, err := protocol.DecodeOffsetCommand(r)
	if err != nil {
		return protocol.EncodeStatus(protocol.StatusFor(err))
	}
	offset, found, err := d.system.GetOffset(cmd.StreamID, cmd.TopicID, cmd.PartitionID, consumerKindOf(cmd.ConsumerKind), cmd.ConsumerID)
	if err != nil {
		return protocol.EncodeGetOffsetResponse(protocol.StatusFor(err), false, 0)
	}
	return protocol.EncodeGetOffsetResponse(protocol.StatusOK, found, offset)
}

func (d *Dispatcher) handleGetGroup(r io.Reader) []byte {
	cmd, err := protocol.DecodeGroupCommand(r)
	if err != nil {
		return protocol.EncodeStatus(protocol.StatusFor(err))
	}
	g, err := d.system.GetGroup(cmd.StreamID, cmd.TopicID, cmd.GroupID)
	if err != nil {
		return protocol.EncodeStatus(protocol.StatusFor(err))
	}
	assignments := g.Assignments()
	resp := protocol.EncodeStatus(protocol.StatusOK)
	resp = protocol.AppendUint32(resp, uint32(len(assignments)))
	for clientID, partitions := range assignments {
		resp = protocol.AppendUint32(resp, clientID)
		resp = protocol.AppendUint32(resp, uint32(len(partitions)))
		for _, pid := range partitions {
			resp = protocol.AppendUint32(resp, pid)
		}
	}
	return resp
}

func (d *Dispatcher) handleGetClient(clientID uint32) []byte {
	c, err := d.system.GetMe(clientID)
	if err != nil {
		return protocol.EncodeStatus(protocol.StatusFor(err))
	}
	resp := protocol.EncodeStatus(protocol.StatusOK)
	resp = protocol.AppendUint32(resp, c.ID)
	return protocol.AppendString(resp, c.Address)
}

func (d *Dispatcher) handleGetClients() []byte {
	clients := d.system.GetClients()
	resp := protocol.EncodeStatus(protocol.StatusOK)
	resp = protocol.AppendUint32(resp, uint32(len(clients)))
	for _, c := range clients {
		resp = protocol.AppendUint32(resp, c.ID)
		resp = protocol.AppendString(resp, c.Address)
	}
	return resp
}
