// Package protocol implements the broker's wire format: the binary
// command/response framing described in the on-disk/wire layout, a
// pipe-delimited text equivalent for admin/CLI use, and length-prefixed
// stream framing for reliable-transport listeners.
package protocol

import "fmt"

// CommandCode is the sealed one-byte command tag that opens every request
// frame. Unknown bytes are rejected as InvalidCommand, never silently
// ignored.
type CommandCode uint8

const (
	CmdPing CommandCode = 0x01
	CmdPoll CommandCode = 0x02
	CmdSend CommandCode = 0x03

	CmdCreateStream CommandCode = 0x10
	CmdDeleteStream CommandCode = 0x11
	CmdGetStream    CommandCode = 0x12
	CmdGetStreams   CommandCode = 0x13

	CmdCreateTopic CommandCode = 0x20
	CmdDeleteTopic CommandCode = 0x21
	CmdGetTopic    CommandCode = 0x22
	CmdGetTopics   CommandCode = 0x23

	CmdStoreOffset CommandCode = 0x30
	CmdGetOffset   CommandCode = 0x31

	CmdCreateGroup CommandCode = 0x40
	CmdDeleteGroup CommandCode = 0x41
	CmdGetGroup    CommandCode = 0x42
	CmdJoinGroup   CommandCode = 0x43
	CmdLeaveGroup  CommandCode = 0x44

	CmdGetMe      CommandCode = 0x50
	CmdGetClient  CommandCode = 0x51
	CmdGetClients CommandCode = 0x52

	CmdKill CommandCode = 0xFF
)

var commandNames = map[CommandCode]string{
	CmdPing:         "ping",
	CmdPoll:         "poll",
	CmdSend:         "send",
	CmdCreateStream: "create_stream",
	CmdDeleteStream: "delete_stream",
	CmdGetStream:    "get_stream",
	CmdGetStreams:   "get_streams",
	CmdCreateTopic:  "create_topic",
	CmdDeleteTopic:  "delete_topic",
	CmdGetTopic:     "get_topic",
	CmdGetTopics:    "get_topics",
	CmdStoreOffset:  "store_offset",
	CmdGetOffset:    "get_offset",
	CmdCreateGroup:  "create_group",
	CmdDeleteGroup:  "delete_group",
	CmdGetGroup:     "get_group",
	CmdJoinGroup:    "join_group",
	CmdLeaveGroup:   "leave_group",
	CmdGetMe:        "get_me",
	CmdGetClient:    "get_client",
	CmdGetClients:   "get_clients",
	CmdKill:         "kill",
}

var namesToCommand = func() map[string]CommandCode {
	m := make(map[string]CommandCode, len(commandNames))
	for code, name := range commandNames {
		m[name] = code
	}
	return m
}()

// String renders the command's lowercase text-form name, or a hex fallback
// for a code the taxonomy doesn't name.
func (c CommandCode) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02x)", uint8(c))
}

// ParseCommandName resolves a text-form command name back to its code.
func ParseCommandName(name string) (CommandCode, bool) {
	c, ok := namesToCommand[name]
	return c, ok
}

// PollKindWire is the wire-level encoding of a poll's starting position,
// matching streaming.PollKind's byte values exactly.
type PollKindWire uint8

const (
	PollWireFirst     PollKindWire = 0
	PollWireLast      PollKindWire = 1
	PollWireNext      PollKindWire = 2
	PollWireOffset    PollKindWire = 3
	PollWireTimestamp PollKindWire = 4
)

var pollKindNames = map[PollKindWire]string{
	PollWireFirst:     "first",
	PollWireLast:      "last",
	PollWireNext:      "next",
	PollWireOffset:    "offset",
	PollWireTimestamp: "timestamp",
}

func (k PollKindWire) String() string {
	if name, ok := pollKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// ParsePollKindName resolves a text-form poll kind name to its wire byte.
func ParsePollKindName(name string) (PollKindWire, bool) {
	for k, n := range pollKindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// ConsumerKindWire is the wire-level encoding of whether a poll/offset
// operation is performed by a bare consumer or on behalf of a group member.
type ConsumerKindWire uint8

const (
	ConsumerWireConsumer ConsumerKindWire = 0
	ConsumerWireGroup    ConsumerKindWire = 1
)

func (k ConsumerKindWire) String() string {
	if k == ConsumerWireGroup {
		return "group"
	}
	return "consumer"
}

// ParseConsumerKindName resolves a text-form consumer kind name.
func ParseConsumerKindName(name string) (ConsumerKindWire, bool) {
	switch name {
	case "consumer":
		return ConsumerWireConsumer, true
	case "group":
		return ConsumerWireGroup, true
	default:
		return 0, false
	}
}

// KeyKindWire is the wire-level encoding of how Send picks a partition.
type KeyKindWire uint8

const (
	KeyWireNone        KeyKindWire = 0
	KeyWirePartitionID KeyKindWire = 1
	KeyWireEntityID    KeyKindWire = 2
)

func (k KeyKindWire) String() string {
	switch k {
	case KeyWirePartitionID:
		return "partition_id"
	case KeyWireEntityID:
		return "entity_id"
	default:
		return "none"
	}
}

// ParseKeyKindName resolves a text-form key kind name.
func ParseKeyKindName(name string) (KeyKindWire, bool) {
	switch name {
	case "none":
		return KeyWireNone, true
	case "partition_id":
		return KeyWirePartitionID, true
	case "entity_id":
		return KeyWireEntityID, true
	default:
		return 0, false
	}
}

// OutboundMessage is the codec's wire-agnostic view of one message, shared
// by the binary and text encoders so both speak the same field order:
// id | length | payload for SEND, offset | timestamp | id | checksum |
// length | payload for POLL responses.
type OutboundMessage struct {
	Offset    uint64
	ID        [16]byte
	Timestamp uint64
	Checksum  uint32
	Payload   []byte
}

// InboundMessage is what a SEND payload carries per message before the
// engine assigns an offset and timestamp.
type InboundMessage struct {
	ID      [16]byte
	Payload []byte
}

// PollCommand is the decoded payload of a POLL request, field order and
// types exactly matching the wire layout: stream_id | topic_id |
// partition_id | kind | value | count | consumer_kind | consumer_id |
// auto_commit.
type PollCommand struct {
	StreamID     uint32
	TopicID      uint32
	PartitionID  uint32
	Kind         PollKindWire
	Value        uint64
	Count        uint32
	ConsumerKind ConsumerKindWire
	ConsumerID   uint32
	AutoCommit   bool
}

// SendCommand is the decoded payload of a SEND request: stream_id |
// topic_id | key_kind | key_value | messages_count | messages*.
type SendCommand struct {
	StreamID uint32
	TopicID  uint32
	KeyKind  KeyKindWire
	KeyValue uint32
	Messages []InboundMessage
}

// StreamCommand addresses an operation to exactly one stream.
type StreamCommand struct {
	StreamID uint32
}

// CreateStreamCommand creates a stream with an explicit id and name.
type CreateStreamCommand struct {
	StreamID uint32
	Name     string
}

// TopicCommand addresses an operation to exactly one topic.
type TopicCommand struct {
	StreamID uint32
	TopicID  uint32
}

// CreateTopicCommand creates a topic with an explicit id, name and
// partition count (0 meaning "use the engine default").
type CreateTopicCommand struct {
	StreamID        uint32
	TopicID         uint32
	Name            string
	PartitionsCount uint32
}

// GroupCommand addresses an operation to exactly one consumer group.
type GroupCommand struct {
	StreamID uint32
	TopicID  uint32
	GroupID  uint32
}

// GroupMemberCommand is a join/leave request naming the client involved.
type GroupMemberCommand struct {
	StreamID uint32
	TopicID  uint32
	GroupID  uint32
	ClientID uint32
}

// OffsetCommand addresses a store/get offset request.
type OffsetCommand struct {
	StreamID     uint32
	TopicID      uint32
	PartitionID  uint32
	ConsumerKind ConsumerKindWire
	ConsumerID   uint32
	Offset       uint64 // used only by StoreOffset
}

// ClientCommand addresses a get_client / kill request.
type ClientCommand struct {
	ClientID uint32
}
