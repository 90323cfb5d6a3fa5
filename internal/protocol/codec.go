package protocol

import (
	"encoding/binary"
	"io"
)

// StatusOK is the one-byte "no error" response code; any other byte is a
// taxonomy error code (see streaming.Code).
const StatusOK = 0

func putUint32(dst []byte, v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return append(dst, buf...)
}

func putUint64(dst []byte, v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return append(dst, buf...)
}

func putString(dst []byte, s string) []byte {
	dst = putUint32(dst, uint32(len(s)))
	return append(dst, s...)
}

// AppendUint32 appends v's little-endian encoding to dst, exported for
// callers outside the package (the broker dispatcher) composing
// multi-record responses (GET_STREAMS, GET_CLIENTS, ...) that this package
// has no single Encode* function for.
func AppendUint32(dst []byte, v uint32) []byte { return putUint32(dst, v) }

// AppendString appends s's length-prefixed encoding to dst.
func AppendString(dst []byte, s string) []byte { return putString(dst, s) }

func readUint8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readBytes(r io.Reader, n uint32) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	b, err := readBytes(r, n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readID(r io.Reader) ([16]byte, error) {
	var id [16]byte
	_, err := io.ReadFull(r, id[:])
	return id, err
}

// EncodePoll renders a PollCommand to the wire layout: stream_id | topic_id
// | partition_id | kind | value | count | consumer_kind | consumer_id |
// auto_commit.
func EncodePoll(cmd PollCommand) []byte {
	buf := make([]byte, 0, 4+4+4+1+8+4+1+4+1)
	buf = putUint32(buf, cmd.StreamID)
	buf = putUint32(buf, cmd.TopicID)
	buf = putUint32(buf, cmd.PartitionID)
	buf = append(buf, byte(cmd.Kind))
	buf = putUint64(buf, cmd.Value)
	buf = putUint32(buf, cmd.Count)
	buf = append(buf, byte(cmd.ConsumerKind))
	buf = putUint32(buf, cmd.ConsumerID)
	if cmd.AutoCommit {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// DecodePoll parses a POLL request payload.
func DecodePoll(r io.Reader) (*PollCommand, error) {
	cmd := &PollCommand{}
	var err error
	if cmd.StreamID, err = readUint32(r); err != nil {
		return nil, err
	}
	if cmd.TopicID, err = readUint32(r); err != nil {
		return nil, err
	}
	if cmd.PartitionID, err = readUint32(r); err != nil {
		return nil, err
	}
	kind, err := readUint8(r)
	if err != nil {
		return nil, err
	}
	cmd.Kind = PollKindWire(kind)
	if cmd.Value, err = readUint64(r); err != nil {
		return nil, err
	}
	if cmd.Count, err = readUint32(r); err != nil {
		return nil, err
	}
	ck, err := readUint8(r)
	if err != nil {
		return nil, err
	}
	cmd.ConsumerKind = ConsumerKindWire(ck)
	if cmd.ConsumerID, err = readUint32(r); err != nil {
		return nil, err
	}
	autoCommit, err := readUint8(r)
	if err != nil {
		return nil, err
	}
	cmd.AutoCommit = autoCommit != 0
	return cmd, nil
}

// EncodePollResponse renders status followed by messages_count and, for
// each message, offset | timestamp | id | checksum | length | payload. A
// non-OK status is encoded alone with no trailing payload.
func EncodePollResponse(status uint8, messages []OutboundMessage) []byte {
	if status != StatusOK {
		return []byte{status}
	}
	buf := make([]byte, 0, 1+4)
	buf = append(buf, status)
	buf = putUint32(buf, uint32(len(messages)))
	for _, m := range messages {
		buf = putUint64(buf, m.Offset)
		buf = putUint64(buf, m.Timestamp)
		buf = append(buf, m.ID[:]...)
		buf = putUint32(buf, m.Checksum)
		buf = putUint32(buf, uint32(len(m.Payload)))
		buf = append(buf, m.Payload...)
	}
	return buf
}

// DecodePollResponse parses a POLL response. A response of length 1 (just
// the status byte) means "no messages" and returns a nil slice.
func DecodePollResponse(r io.Reader) (status uint8, messages []OutboundMessage, err error) {
	status, err = readUint8(r)
	if err != nil {
		return 0, nil, err
	}
	if status != StatusOK {
		return status, nil, nil
	}
	count, err := readUint32(r)
	if err == io.EOF {
		return status, nil, nil
	}
	if err != nil {
		return status, nil, err
	}
	messages = make([]OutboundMessage, 0, count)
	for i := uint32(0); i < count; i++ {
		var m OutboundMessage
		if m.Offset, err = readUint64(r); err != nil {
			return status, nil, err
		}
		if m.Timestamp, err = readUint64(r); err != nil {
			return status, nil, err
		}
		if m.ID, err = readID(r); err != nil {
			return status, nil, err
		}
		if m.Checksum, err = readUint32(r); err != nil {
			return status, nil, err
		}
		length, err := readUint32(r)
		if err != nil {
			return status, nil, err
		}
		if m.Payload, err = readBytes(r, length); err != nil {
			return status, nil, err
		}
		messages = append(messages, m)
	}
	return status, messages, nil
}

// EncodeSend renders a SendCommand: stream_id | topic_id | key_kind |
// key_value | messages_count | messages*, each message id | length | payload.
func EncodeSend(cmd SendCommand) []byte {
	buf := make([]byte, 0, 4+4+1+4+4)
	buf = putUint32(buf, cmd.StreamID)
	buf = putUint32(buf, cmd.TopicID)
	buf = append(buf, byte(cmd.KeyKind))
	buf = putUint32(buf, cmd.KeyValue)
	buf = putUint32(buf, uint32(len(cmd.Messages)))
	for _, m := range cmd.Messages {
		buf = append(buf, m.ID[:]...)
		buf = putUint32(buf, uint32(len(m.Payload)))
		buf = append(buf, m.Payload...)
	}
	return buf
}

// DecodeSend parses a SEND request payload.
func DecodeSend(r io.Reader) (*SendCommand, error) {
	cmd := &SendCommand{}
	var err error
	if cmd.StreamID, err = readUint32(r); err != nil {
		return nil, err
	}
	if cmd.TopicID, err = readUint32(r); err != nil {
		return nil, err
	}
	kk, err := readUint8(r)
	if err != nil {
		return nil, err
	}
	cmd.KeyKind = KeyKindWire(kk)
	if cmd.KeyValue, err = readUint32(r); err != nil {
		return nil, err
	}
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	cmd.Messages = make([]InboundMessage, 0, count)
	for i := uint32(0); i < count; i++ {
		var m InboundMessage
		if m.ID, err = readID(r); err != nil {
			return nil, err
		}
		length, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		if m.Payload, err = readBytes(r, length); err != nil {
			return nil, err
		}
		cmd.Messages = append(cmd.Messages, m)
	}
	return cmd, nil
}

// EncodeSendResponse renders a SEND response: status | partition_id |
// first_offset, the latter two omitted when status is non-OK.
func EncodeSendResponse(status uint8, partitionID uint32, firstOffset uint64) []byte {
	if status != StatusOK {
		return []byte{status}
	}
	buf := make([]byte, 0, 1+4+8)
	buf = append(buf, status)
	buf = putUint32(buf, partitionID)
	buf = putUint64(buf, firstOffset)
	return buf
}

// DecodeSendResponse parses a SEND response.
func DecodeSendResponse(r io.Reader) (status uint8, partitionID uint32, firstOffset uint64, err error) {
	status, err = readUint8(r)
	if err != nil || status != StatusOK {
		return status, 0, 0, err
	}
	if partitionID, err = readUint32(r); err != nil {
		return status, 0, 0, err
	}
	firstOffset, err = readUint64(r)
	return status, partitionID, firstOffset, err
}

// EncodeStreamCommand renders stream_id.
func EncodeStreamCommand(cmd StreamCommand) []byte {
	return putUint32(nil, cmd.StreamID)
}

// DecodeStreamCommand parses stream_id.
func DecodeStreamCommand(r io.Reader) (*StreamCommand, error) {
	id, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	return &StreamCommand{StreamID: id}, nil
}

// EncodeCreateStream renders stream_id | name_length | name.
func EncodeCreateStream(cmd CreateStreamCommand) []byte {
	buf := putUint32(nil, cmd.StreamID)
	return putString(buf, cmd.Name)
}

// DecodeCreateStream parses a CREATE_STREAM payload.
func DecodeCreateStream(r io.Reader) (*CreateStreamCommand, error) {
	id, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	return &CreateStreamCommand{StreamID: id, Name: name}, nil
}

// EncodeTopicCommand renders stream_id | topic_id.
func EncodeTopicCommand(cmd TopicCommand) []byte {
	buf := putUint32(nil, cmd.StreamID)
	return putUint32(buf, cmd.TopicID)
}

// DecodeTopicCommand parses stream_id | topic_id.
func DecodeTopicCommand(r io.Reader) (*TopicCommand, error) {
	sid, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	tid, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	return &TopicCommand{StreamID: sid, TopicID: tid}, nil
}

// EncodeCreateTopic renders stream_id | topic_id | partitions_count |
// name_length | name, matching the on-disk topic info layout's field order.
func EncodeCreateTopic(cmd CreateTopicCommand) []byte {
	buf := putUint32(nil, cmd.StreamID)
	buf = putUint32(buf, cmd.TopicID)
	buf = putUint32(buf, cmd.PartitionsCount)
	return putString(buf, cmd.Name)
}

// DecodeCreateTopic parses a CREATE_TOPIC payload.
func DecodeCreateTopic(r io.Reader) (*CreateTopicCommand, error) {
	sid, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	tid, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	pc, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	return &CreateTopicCommand{StreamID: sid, TopicID: tid, PartitionsCount: pc, Name: name}, nil
}

// EncodeGroupCommand renders stream_id | topic_id | group_id.
func EncodeGroupCommand(cmd GroupCommand) []byte {
	buf := putUint32(nil, cmd.StreamID)
	buf = putUint32(buf, cmd.TopicID)
	return putUint32(buf, cmd.GroupID)
}

// DecodeGroupCommand parses stream_id | topic_id | group_id.
func DecodeGroupCommand(r io.Reader) (*GroupCommand, error) {
	sid, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	tid, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	gid, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	return &GroupCommand{StreamID: sid, TopicID: tid, GroupID: gid}, nil
}

// EncodeGroupMemberCommand renders stream_id | topic_id | group_id |
// client_id.
func EncodeGroupMemberCommand(cmd GroupMemberCommand) []byte {
	buf := putUint32(nil, cmd.StreamID)
	buf = putUint32(buf, cmd.TopicID)
	buf = putUint32(buf, cmd.GroupID)
	return putUint32(buf, cmd.ClientID)
}

// DecodeGroupMemberCommand parses a JOIN_GROUP/LEAVE_GROUP payload.
func DecodeGroupMemberCommand(r io.Reader) (*GroupMemberCommand, error) {
	sid, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	tid, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	gid, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	cid, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	return &GroupMemberCommand{StreamID: sid, TopicID: tid, GroupID: gid, ClientID: cid}, nil
}

// EncodeOffsetCommand renders stream_id | topic_id | partition_id |
// consumer_kind | consumer_id | offset. offset is included unconditionally
// so STORE_OFFSET and GET_OFFSET share one codec; GET_OFFSET callers pass 0.
func EncodeOffsetCommand(cmd OffsetCommand) []byte {
	buf := putUint32(nil, cmd.StreamID)
	buf = putUint32(buf, cmd.TopicID)
	buf = putUint32(buf, cmd.PartitionID)
	buf = append(buf, byte(cmd.ConsumerKind))
	buf = putUint32(buf, cmd.ConsumerID)
	return putUint64(buf, cmd.Offset)
}

// DecodeOffsetCommand parses a STORE_OFFSET/GET_OFFSET payload.
func DecodeOffsetCommand(r io.Reader) (*OffsetCommand, error) {
	cmd := &OffsetCommand{}
	var err error
	if cmd.StreamID, err = readUint32(r); err != nil {
		return nil, err
	}
	if cmd.TopicID, err = readUint32(r); err != nil {
		return nil, err
	}
	if cmd.PartitionID, err = readUint32(r); err != nil {
		return nil, err
	}
	ck, err := readUint8(r)
	if err != nil {
		return nil, err
	}
	cmd.ConsumerKind = ConsumerKindWire(ck)
	if cmd.ConsumerID, err = readUint32(r); err != nil {
		return nil, err
	}
	if cmd.Offset, err = readUint64(r); err != nil {
		return nil, err
	}
	return cmd, nil
}

// EncodeGetOffsetResponse renders status | found | offset.
func EncodeGetOffsetResponse(status uint8, found bool, offset uint64) []byte {
	if status != StatusOK {
		return []byte{status}
	}
	buf := make([]byte, 0, 1+1+8)
	buf = append(buf, status)
	if found {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return putUint64(buf, offset)
}

// DecodeGetOffsetResponse parses a GET_OFFSET response.
func DecodeGetOffsetResponse(r io.Reader) (status uint8, found bool, offset uint64, err error) {
	status, err = readUint8(r)
	if err != nil || status != StatusOK {
		return status, false, 0, err
	}
	f, err := readUint8(r)
	if err != nil {
		return status, false, 0, err
	}
	offset, err = readUint64(r)
	return status, f != 0, offset, err
}

// EncodeClientCommand renders client_id.
func EncodeClientCommand(cmd ClientCommand) []byte {
	return putUint32(nil, cmd.ClientID)
}

// DecodeClientCommand parses client_id.
func DecodeClientCommand(r io.Reader) (*ClientCommand, error) {
	id, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	return &ClientCommand{ClientID: id}, nil
}

// EncodeStatus renders a bare one-byte status response, used by every
// command whose success carries no further payload (PING, DELETE_*,
// JOIN_GROUP, LEAVE_GROUP, KILL, STORE_OFFSET).
func EncodeStatus(status uint8) []byte {
	return []byte{status}
}
