package streaming

import "fmt"

// Code is the stable wire status byte for a taxonomy error. 0 means ok.
type Code uint8

const (
	CodeOK Code = 0

	// Framing / parse.
	CodeInvalidCommand   Code = 10
	CodeInvalidFormat    Code = 11
	CodeCannotParseInt   Code = 12
	CodeCannotParseUTF8  Code = 13
	CodeCannotParseSlice Code = 14

	// Identity / validation.
	CodeInvalidStreamId          Code = 20
	CodeInvalidStreamName        Code = 21
	CodeInvalidTopicId           Code = 22
	CodeInvalidTopicName         Code = 23
	CodeInvalidTopicPartitions   Code = 24
	CodeInvalidConsumerGroupId   Code = 25
	CodeInvalidClientId          Code = 26
	CodeInvalidMessagesCount     Code = 27
	CodeInvalidMessagePayloadLen Code = 28
	CodeInvalidOffset            Code = 29
	CodeEmptyMessagePayload      Code = 30
	CodeTooBigMessagePayload     Code = 31
	CodeTooManyMessages          Code = 32

	// Existence.
	CodeStreamNotFound              Code = 40
	CodeStreamAlreadyExists         Code = 41
	CodeTopicNotFound               Code = 42
	CodeTopicAlreadyExists          Code = 43
	CodePartitionNotFound           Code = 44
	CodeSegmentNotFound             Code = 45
	CodeConsumerGroupNotFound       Code = 46
	CodeConsumerGroupAlreadyExists  Code = 47
	CodeConsumerGroupMemberNotFound Code = 48
	CodeClientNotFound              Code = 49
	CodeLogFileNotFound             Code = 50

	// State.
	CodeSegmentClosed      Code = 60
	CodeInvalidSegmentSize Code = 61
	CodeNotConnected       Code = 62

	// Integrity.
	CodeInvalidMessageChecksum Code = 70
	CodeCannotReadMessage      Code = 71

	// Durable I/O.
	CodeCannotCreate Code = 80
	CodeCannotOpen   Code = 81
	CodeCannotRead   Code = 82
	CodeCannotUpdate Code = 83
	CodeCannotDelete Code = 84
	CodeCannotSave   Code = 85

	// Anything the taxonomy above doesn't name (wrapped os/io faults etc).
	CodeInternalError Code = 255
)

// TaxonomyError is implemented by every error kind in the engine's error
// taxonomy; it carries a stable wire code and short tag alongside the
// contextual identifiers the original variant names (stream id, topic id,
// partition id, ...).
type TaxonomyError interface {
	error
	Code() Code
	Tag() string
}

type simpleError struct {
	code Code
	tag  string
	msg  string
}

func (e *simpleError) Error() string { return e.msg }
func (e *simpleError) Code() Code    { return e.code }
func (e *simpleError) Tag() string   { return e.tag }

func newSimple(code Code, tag, msg string) *simpleError {
	return &simpleError{code: code, tag: tag, msg: msg}
}

var (
	ErrInvalidCommand         = newSimple(CodeInvalidCommand, "invalid_command", "invalid command")
	ErrInvalidFormat          = newSimple(CodeInvalidFormat, "invalid_format", "invalid text command format")
	ErrCannotParseInt         = newSimple(CodeCannotParseInt, "cannot_parse_int", "cannot parse integer field")
	ErrCannotParseUTF8        = newSimple(CodeCannotParseUTF8, "cannot_parse_utf8", "cannot parse utf8 field")
	ErrCannotParseSlice       = newSimple(CodeCannotParseSlice, "cannot_parse_slice", "cannot parse byte slice")
	ErrInvalidStreamId        = newSimple(CodeInvalidStreamId, "invalid_stream_id", "invalid stream id")
	ErrInvalidStreamName      = newSimple(CodeInvalidStreamName, "invalid_stream_name", "invalid stream name")
	ErrInvalidTopicId         = newSimple(CodeInvalidTopicId, "invalid_topic_id", "invalid topic id")
	ErrInvalidTopicName       = newSimple(CodeInvalidTopicName, "invalid_topic_name", "invalid topic name")
	ErrInvalidTopicPartitions = newSimple(CodeInvalidTopicPartitions, "invalid_topic_partitions", "invalid partitions count")
	ErrInvalidConsumerGroupId = newSimple(CodeInvalidConsumerGroupId, "invalid_consumer_group_id", "invalid consumer group id")
	ErrInvalidClientId        = newSimple(CodeInvalidClientId, "invalid_client_id", "invalid client id")
	ErrInvalidMessagesCount   = newSimple(CodeInvalidMessagesCount, "invalid_messages_count", "invalid messages count")
	ErrInvalidOffset          = newSimple(CodeInvalidOffset, "invalid_offset", "invalid offset")
	ErrEmptyMessagePayload    = newSimple(CodeEmptyMessagePayload, "empty_message_payload", "message payload is empty")
	ErrTooBigMessagePayload   = newSimple(CodeTooBigMessagePayload, "too_big_message_payload", "message payload exceeds maximum size")
	ErrTooManyMessages        = newSimple(CodeTooManyMessages, "too_many_messages", "batch exceeds maximum message count")
	ErrSegmentClosed          = newSimple(CodeSegmentClosed, "segment_closed", "segment is closed")
	ErrInvalidSegmentSize     = newSimple(CodeInvalidSegmentSize, "invalid_segment_size", "invalid segment size")
	ErrNotConnected           = newSimple(CodeNotConnected, "not_connected", "client is not connected")
	ErrLogFileNotFound        = newSimple(CodeLogFileNotFound, "log_file_not_found", "log file not found")
	ErrSegmentNotFound        = newSimple(CodeSegmentNotFound, "segment_not_found", "segment not found")
)

// StreamNotFoundError identifies a stream lookup miss.
type StreamNotFoundError struct{ StreamID uint32 }

func (e *StreamNotFoundError) Error() string {
	return fmt.Sprintf("stream %d not found", e.StreamID)
}
func (e *StreamNotFoundError) Code() Code { return CodeStreamNotFound }
func (e *StreamNotFoundError) Tag() string { return "stream_not_found" }

// StreamAlreadyExistsError identifies a duplicate stream name or id.
type StreamAlreadyExistsError struct{ StreamID uint32 }

func (e *StreamAlreadyExistsError) Error() string {
	return fmt.Sprintf("stream %d already exists", e.StreamID)
}
func (e *StreamAlreadyExistsError) Code() Code { return CodeStreamAlreadyExists }
func (e *StreamAlreadyExistsError) Tag() string { return "stream_already_exists" }

// TopicNotFoundError identifies a topic lookup miss within a stream.
type TopicNotFoundError struct {
	StreamID uint32
	TopicID  uint32
}

func (e *TopicNotFoundError) Error() string {
	return fmt.Sprintf("topic %d not found in stream %d", e.TopicID, e.StreamID)
}
func (e *TopicNotFoundError) Code() Code { return CodeTopicNotFound }
func (e *TopicNotFoundError) Tag() string { return "topic_not_found" }

// TopicAlreadyExistsError identifies a duplicate topic name or id.
type TopicAlreadyExistsError struct {
	StreamID uint32
	TopicID  uint32
}

func (e *TopicAlreadyExistsError) Error() string {
	return fmt.Sprintf("topic %d already exists in stream %d", e.TopicID, e.StreamID)
}
func (e *TopicAlreadyExistsError) Code() Code { return CodeTopicAlreadyExists }
func (e *TopicAlreadyExistsError) Tag() string { return "topic_already_exists" }

// PartitionNotFoundError identifies a partition lookup miss within a topic.
type PartitionNotFoundError struct {
	StreamID    uint32
	TopicID     uint32
	PartitionID uint32
}

func (e *PartitionNotFoundError) Error() string {
	return fmt.Sprintf("partition %d not found in topic %d/%d", e.PartitionID, e.StreamID, e.TopicID)
}
func (e *PartitionNotFoundError) Code() Code { return CodePartitionNotFound }
func (e *PartitionNotFoundError) Tag() string { return "partition_not_found" }

// ConsumerGroupNotFoundError identifies a consumer group lookup miss.
type ConsumerGroupNotFoundError struct {
	StreamID uint32
	TopicID  uint32
	GroupID  uint32
}

func (e *ConsumerGroupNotFoundError) Error() string {
	return fmt.Sprintf("consumer group %d not found in topic %d/%d", e.GroupID, e.StreamID, e.TopicID)
}
func (e *ConsumerGroupNotFoundError) Code() Code { return CodeConsumerGroupNotFound }
func (e *ConsumerGroupNotFoundError) Tag() string { return "consumer_group_not_found" }

// ConsumerGroupAlreadyExistsError identifies a duplicate group id.
type ConsumerGroupAlreadyExistsError struct {
	StreamID uint32
	TopicID  uint32
	GroupID  uint32
}

func (e *ConsumerGroupAlreadyExistsError) Error() string {
	return fmt.Sprintf("consumer group %d already exists in topic %d/%d", e.GroupID, e.StreamID, e.TopicID)
}
func (e *ConsumerGroupAlreadyExistsError) Code() Code { return CodeConsumerGroupAlreadyExists }
func (e *ConsumerGroupAlreadyExistsError) Tag() string { return "consumer_group_already_exists" }

// ConsumerGroupMemberNotFoundError identifies a missing member in a group.
type ConsumerGroupMemberNotFoundError struct {
	GroupID  uint32
	ClientID uint32
}

func (e *ConsumerGroupMemberNotFoundError) Error() string {
	return fmt.Sprintf("client %d is not a member of consumer group %d", e.ClientID, e.GroupID)
}
func (e *ConsumerGroupMemberNotFoundError) Code() Code { return CodeConsumerGroupMemberNotFound }
func (e *ConsumerGroupMemberNotFoundError) Tag() string { return "consumer_group_member_not_found" }

// ClientNotFoundError identifies a missing client registry entry.
type ClientNotFoundError struct{ ClientID uint32 }

func (e *ClientNotFoundError) Error() string {
	return fmt.Sprintf("client %d not found", e.ClientID)
}
func (e *ClientNotFoundError) Code() Code { return CodeClientNotFound }
func (e *ClientNotFoundError) Tag() string { return "client_not_found" }

// ChecksumError reports a CRC32 mismatch found while reading or recovering a
// segment, carrying enough context to locate the offending message.
type ChecksumError struct {
	Offset   uint64
	Computed uint32
	Expected uint32
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch at offset %d: computed %08x, expected %08x", e.Offset, e.Computed, e.Expected)
}
func (e *ChecksumError) Code() Code { return CodeInvalidMessageChecksum }
func (e *ChecksumError) Tag() string { return "invalid_message_checksum" }

// ioError wraps a durable I/O failure against a specific on-disk entity,
// mirroring the CannotCreate/Open/Read/Update/Delete/Save family.
type ioError struct {
	code   Code
	tag    string
	entity string
	path   string
	err    error
}

func (e *ioError) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", e.tag, e.entity, e.path, e.err)
}
func (e *ioError) Code() Code  { return e.code }
func (e *ioError) Tag() string { return e.tag }
func (e *ioError) Unwrap() error { return e.err }

func wrapCreate(entity, path string, err error) error {
	return &ioError{code: CodeCannotCreate, tag: "cannot_create", entity: entity, path: path, err: err}
}
func wrapOpen(entity, path string, err error) error {
	return &ioError{code: CodeCannotOpen, tag: "cannot_open", entity: entity, path: path, err: err}
}
func wrapRead(entity, path string, err error) error {
	return &ioError{code: CodeCannotRead, tag: "cannot_read", entity: entity, path: path, err: err}
}
func wrapUpdate(entity, path string, err error) error {
	return &ioError{code: CodeCannotUpdate, tag: "cannot_update", entity: entity, path: path, err: err}
}
func wrapDelete(entity, path string, err error) error {
	return &ioError{code: CodeCannotDelete, tag: "cannot_delete", entity: entity, path: path, err: err}
}
func wrapSave(entity, path string, err error) error {
	return &ioError{code: CodeCannotSave, tag: "cannot_save", entity: entity, path: path, err: err}
}

// CodeOf maps any error returned by the engine to its wire status code,
// falling back to CodeInternalError for errors the taxonomy never named
// ahead of time (wrapped os/io faults surfacing from an unexpected fault).
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var te TaxonomyError
	if asTaxonomy(err, &te) {
		return te.Code()
	}
	return CodeInternalError
}

func asTaxonomy(err error, target *TaxonomyError) bool {
	for err != nil {
		if te, ok := err.(TaxonomyError); ok {
			*target = te
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
