package protocol

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// Text-form commands are pipe-delimited ASCII, fields in the same order as
// their binary payload, enums rendered by lowercase name rather than raw
// byte, mirroring original_source/sdk/src/offsets/get_offset.rs and
// store_offset.rs's FromStr/Display pair: field count is checked exactly
// before any field is parsed, and any mismatch is InvalidFormat rather
// than a partial parse.

func joinFields(fields ...string) string {
	return strings.Join(fields, "|")
}

func splitFields(s string, want int) ([]string, error) {
	parts := strings.Split(s, "|")
	if len(parts) != want {
		return nil, ErrInvalidFormat
	}
	return parts, nil
}

func parseUint32Field(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, ErrCannotParseInt
	}
	return uint32(v), nil
}

func parseUint64Field(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, ErrCannotParseInt
	}
	return v, nil
}

func parseBoolField(s string) (bool, error) {
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, ErrInvalidFormat
	}
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// FormatPoll renders a PollCommand in text form:
// stream_id|topic_id|partition_id|kind|value|count|consumer_kind|consumer_id|auto_commit
func FormatPoll(cmd PollCommand) string {
	return joinFields(
		strconv.FormatUint(uint64(cmd.StreamID), 10),
		strconv.FormatUint(uint64(cmd.TopicID), 10),
		strconv.FormatUint(uint64(cmd.PartitionID), 10),
		cmd.Kind.String(),
		strconv.FormatUint(cmd.Value, 10),
		strconv.FormatUint(uint64(cmd.Count), 10),
		cmd.ConsumerKind.String(),
		strconv.FormatUint(uint64(cmd.ConsumerID), 10),
		formatBool(cmd.AutoCommit),
	)
}

// ParsePoll parses a text-form POLL command.
func ParsePoll(s string) (*PollCommand, error) {
	parts, err := splitFields(s, 9)
	if err != nil {
		return nil, err
	}
	cmd := &PollCommand{}
	if cmd.StreamID, err = parseUint32Field(parts[0]); err != nil {
		return nil, err
	}
	if cmd.TopicID, err = parseUint32Field(parts[1]); err != nil {
		return nil, err
	}
	if cmd.PartitionID, err = parseUint32Field(parts[2]); err != nil {
		return nil, err
	}
	kind, ok := ParsePollKindName(parts[3])
	if !ok {
		return nil, ErrInvalidFormat
	}
	cmd.Kind = kind
	if cmd.Value, err = parseUint64Field(parts[4]); err != nil {
		return nil, err
	}
	count, err := parseUint32Field(parts[5])
	if err != nil {
		return nil, err
	}
	cmd.Count = count
	ck, ok := ParseConsumerKindName(parts[6])
	if !ok {
		return nil, ErrInvalidFormat
	}
	cmd.ConsumerKind = ck
	if cmd.ConsumerID, err = parseUint32Field(parts[7]); err != nil {
		return nil, err
	}
	if cmd.AutoCommit, err = parseBoolField(parts[8]); err != nil {
		return nil, err
	}
	return cmd, nil
}

// FormatSend renders a SendCommand in text form. Message ids and payloads
// are hex-encoded so arbitrary binary content survives ASCII framing:
// stream_id|topic_id|key_kind|key_value|id:payload_hex,id:payload_hex,...
func FormatSend(cmd SendCommand) string {
	msgParts := make([]string, len(cmd.Messages))
	for i, m := range cmd.Messages {
		msgParts[i] = hex.EncodeToString(m.ID[:]) + ":" + hex.EncodeToString(m.Payload)
	}
	return joinFields(
		strconv.FormatUint(uint64(cmd.StreamID), 10),
		strconv.FormatUint(uint64(cmd.TopicID), 10),
		cmd.KeyKind.String(),
		strconv.FormatUint(uint64(cmd.KeyValue), 10),
		strings.Join(msgParts, ","),
	)
}

// ParseSend parses a text-form SEND command.
func ParseSend(s string) (*SendCommand, error) {
	parts, err := splitFields(s, 5)
	if err != nil {
		return nil, err
	}
	cmd := &SendCommand{}
	if cmd.StreamID, err = parseUint32Field(parts[0]); err != nil {
		return nil, err
	}
	if cmd.TopicID, err = parseUint32Field(parts[1]); err != nil {
		return nil, err
	}
	kk, ok := ParseKeyKindName(parts[2])
	if !ok {
		return nil, ErrInvalidFormat
	}
	cmd.KeyKind = kk
	if cmd.KeyValue, err = parseUint32Field(parts[3]); err != nil {
		return nil, err
	}
	if parts[4] == "" {
		return cmd, nil
	}
	for _, raw := range strings.Split(parts[4], ",") {
		idHex, payloadHex, found := strings.Cut(raw, ":")
		if !found {
			return nil, ErrInvalidFormat
		}
		idBytes, err := hex.DecodeString(idHex)
		if err != nil || len(idBytes) != 16 {
			return nil, ErrCannotParseSlice
		}
		payload, err := hex.DecodeString(payloadHex)
		if err != nil {
			return nil, ErrCannotParseSlice
		}
		var m InboundMessage
		copy(m.ID[:], idBytes)
		m.Payload = payload
		cmd.Messages = append(cmd.Messages, m)
	}
	return cmd, nil
}

// FormatStreamCommand renders stream_id.
func FormatStreamCommand(cmd StreamCommand) string {
	return strconv.FormatUint(uint64(cmd.StreamID), 10)
}

// ParseStreamCommand parses stream_id.
func ParseStreamCommand(s string) (*StreamCommand, error) {
	parts, err := splitFields(s, 1)
	if err != nil {
		return nil, err
	}
	id, err := parseUint32Field(parts[0])
	if err != nil {
		return nil, err
	}
	return &StreamCommand{StreamID: id}, nil
}

// FormatCreateStream renders stream_id|name.
func FormatCreateStream(cmd CreateStreamCommand) string {
	return joinFields(strconv.FormatUint(uint64(cmd.StreamID), 10), cmd.Name)
}

// ParseCreateStream parses a text-form CREATE_STREAM command.
func ParseCreateStream(s string) (*CreateStreamCommand, error) {
	parts, err := splitFields(s, 2)
	if err != nil {
		return nil, err
	}
	id, err := parseUint32Field(parts[0])
	if err != nil {
		return nil, err
	}
	return &CreateStreamCommand{StreamID: id, Name: parts[1]}, nil
}

// FormatTopicCommand renders stream_id|topic_id.
func FormatTopicCommand(cmd TopicCommand) string {
	return joinFields(
		strconv.FormatUint(uint64(cmd.StreamID), 10),
		strconv.FormatUint(uint64(cmd.TopicID), 10),
	)
}

// ParseTopicCommand parses stream_id|topic_id.
func ParseTopicCommand(s string) (*TopicCommand, error) {
	parts, err := splitFields(s, 2)
	if err != nil {
		return nil, err
	}
	sid, err := parseUint32Field(parts[0])
	if err != nil {
		return nil, err
	}
	tid, err := parseUint32Field(parts[1])
	if err != nil {
		return nil, err
	}
	return &TopicCommand{StreamID: sid, TopicID: tid}, nil
}

// FormatCreateTopic renders stream_id|topic_id|partitions_count|name.
func FormatCreateTopic(cmd CreateTopicCommand) string {
	return joinFields(
		strconv.FormatUint(uint64(cmd.StreamID), 10),
		strconv.FormatUint(uint64(cmd.TopicID), 10),
		strconv.FormatUint(uint64(cmd.PartitionsCount), 10),
		cmd.Name,
	)
}

// ParseCreateTopic parses a text-form CREATE_TOPIC command.
func ParseCreateTopic(s string) (*CreateTopicCommand, error) {
	parts, err := splitFields(s, 4)
	if err != nil {
		return nil, err
	}
	sid, err := parseUint32Field(parts[0])
	if err != nil {
		return nil, err
	}
	tid, err := parseUint32Field(parts[1])
	if err != nil {
		return nil, err
	}
	pc, err := parseUint32Field(parts[2])
	if err != nil {
		return nil, err
	}
	return &CreateTopicCommand{StreamID: sid, TopicID: tid, PartitionsCount: pc, Name: parts[3]}, nil
}

// FormatGroupCommand renders stream_id|topic_id|group_id.
func FormatGroupCommand(cmd GroupCommand) string {
	return joinFields(
		strconv.FormatUint(uint64(cmd.StreamID), 10),
		strconv.FormatUint(uint64(cmd.TopicID), 10),
		strconv.FormatUint(uint64(cmd.GroupID), 10),
	)
}

// ParseGroupCommand parses stream_id|topic_id|group_id.
func ParseGroupCommand(s string) (*GroupCommand, error) {
	parts, err := splitFields(s, 3)
	if err != nil {
		return nil, err
	}
	sid, err := parseUint32Field(parts[0])
	if err != nil {
		return nil, err
	}
	tid, err := parseUint32Field(parts[1])
	if err != nil {
		return nil, err
	}
	gid, err := parseUint32Field(parts[2])
	if err != nil {
		return nil, err
	}
	return &GroupCommand{StreamID: sid, TopicID: tid, GroupID: gid}, nil
}

// FormatGroupMemberCommand renders stream_id|topic_id|group_id|client_id.
func FormatGroupMemberCommand(cmd GroupMemberCommand) string {
	return joinFields(
		strconv.FormatUint(uint64(cmd.StreamID), 10),
		strconv.FormatUint(uint64(cmd.TopicID), 10),
		strconv.FormatUint(uint64(cmd.GroupID), 10),
		strconv.FormatUint(uint64(cmd.ClientID), 10),
	)
}

// ParseGroupMemberCommand parses a text-form JOIN_GROUP/LEAVE_GROUP command.
func ParseGroupMemberCommand(s string) (*GroupMemberCommand, error) {
	parts, err := splitFields(s, 4)
	if err != nil {
		return nil, err
	}
	sid, err := parseUint32Field(parts[0])
	if err != nil {
		return nil, err
	}
	tid, err := parseUint32Field(parts[1])
	if err != nil {
		return nil, err
	}
	gid, err := parseUint32Field(parts[2])
	if err != nil {
		return nil, err
	}
	cid, err := parseUint32Field(parts[3])
	if err != nil {
		return nil, err
	}
	return &GroupMemberCommand{StreamID: sid, TopicID: tid, GroupID: gid, ClientID: cid}, nil
}

// FormatOffsetCommand renders stream_id|topic_id|partition_id|consumer_kind|consumer_id|offset,
// matching original_source/sdk/src/offsets/store_offset.rs's field order.
func FormatOffsetCommand(cmd OffsetCommand) string {
	return joinFields(
		strconv.FormatUint(uint64(cmd.StreamID), 10),
		strconv.FormatUint(uint64(cmd.TopicID), 10),
		strconv.FormatUint(uint64(cmd.PartitionID), 10),
		cmd.ConsumerKind.String(),
		strconv.FormatUint(uint64(cmd.ConsumerID), 10),
		strconv.FormatUint(cmd.Offset, 10),
	)
}

// ParseOffsetCommand parses a text-form STORE_OFFSET/GET_OFFSET command.
func ParseOffsetCommand(s string) (*OffsetCommand, error) {
	parts, err := splitFields(s, 6)
	if err != nil {
		return nil, err
	}
	cmd := &OffsetCommand{}
	if cmd.StreamID, err = parseUint32Field(parts[0]); err != nil {
		return nil, err
	}
	if cmd.TopicID, err = parseUint32Field(parts[1]); err != nil {
		return nil, err
	}
	if cmd.PartitionID, err = parseUint32Field(parts[2]); err != nil {
		return nil, err
	}
	ck, ok := ParseConsumerKindName(parts[3])
	if !ok {
		return nil, ErrInvalidFormat
	}
	cmd.ConsumerKind = ck
	if cmd.ConsumerID, err = parseUint32Field(parts[4]); err != nil {
		return nil, err
	}
	if cmd.Offset, err = parseUint64Field(parts[5]); err != nil {
		return nil, err
	}
	return cmd, nil
}

// FormatClientCommand renders client_id.
func FormatClientCommand(cmd ClientCommand) string {
	return strconv.FormatUint(uint64(cmd.ClientID), 10)
}

// ParseClientCommand parses client_id.
func ParseClientCommand(s string) (*ClientCommand, error) {
	parts, err := splitFields(s, 1)
	if err != nil {
		return nil, err
	}
	id, err := parseUint32Field(parts[0])
	if err != nil {
		return nil, err
	}
	return &ClientCommand{ClientID: id}, nil
}
