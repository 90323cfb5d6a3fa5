package streaming

import (
	"encoding/binary"
	"hash/crc32"
	"io"
)

// MaxMessagePayloadSize is the largest payload a single message may carry.
const MaxMessagePayloadSize = 1_000_000

// MaxBatchSize is the largest number of messages a single append batch may
// carry.
const MaxBatchSize = 1000

// MessageID is the client-supplied (or zero) 128-bit message identifier.
type MessageID [16]byte

// Message is a single immutable log record. Offset and Timestamp are
// assigned by the partition at append time; Checksum is the CRC32 of
// Payload, computed on encode and verified on decode.
type Message struct {
	Offset    uint64
	ID        MessageID
	Timestamp uint64 // milliseconds since epoch
	Checksum  uint32
	Payload   []byte
}

// headerSize is the fixed portion of a message's on-disk/wire encoding:
// offset(8) + id(16) + timestamp(8) + checksum(4) + length(4).
const headerSize = 8 + 16 + 8 + 4 + 4

// SizeBytes returns the total encoded size of the message, mirroring the
// original SDK's get_size_bytes accounting.
func (m *Message) SizeBytes() int {
	return headerSize + len(m.Payload)
}

// Encode appends the message's little-endian wire/disk encoding to dst and
// returns the extended slice. It computes and sets m.Checksum from
// m.Payload before writing.
func (m *Message) Encode(dst []byte) []byte {
	m.Checksum = crc32.ChecksumIEEE(m.Payload)
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(buf[0:8], m.Offset)
	copy(buf[8:24], m.ID[:])
	binary.LittleEndian.PutUint64(buf[24:32], m.Timestamp)
	binary.LittleEndian.PutUint32(buf[32:36], m.Checksum)
	binary.LittleEndian.PutUint32(buf[36:40], uint32(len(m.Payload)))
	dst = append(dst, buf...)
	dst = append(dst, m.Payload...)
	return dst
}

// DecodeMessage reads one message from r in the little-endian on-disk/wire
// layout and verifies its checksum. io.EOF is returned only if zero bytes
// could be read before the header; a partial header or payload yields
// io.ErrUnexpectedEOF so callers can distinguish "nothing left" from
// "truncated record" during recovery.
func DecodeMessage(r io.Reader) (*Message, error) {
	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(hdr[36:40])
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
	m := &Message{
		Offset:    binary.LittleEndian.Uint64(hdr[0:8]),
		Timestamp: binary.LittleEndian.Uint64(hdr[24:32]),
		Checksum:  binary.LittleEndian.Uint32(hdr[32:36]),
		Payload:   payload,
	}
	copy(m.ID[:], hdr[8:24])

	computed := crc32.ChecksumIEEE(payload)
	if computed != m.Checksum {
		return m, &ChecksumError{Offset: m.Offset, Computed: computed, Expected: m.Checksum}
	}
	return m, nil
}

// ValidatePayload enforces the length bounds an append batch must satisfy
// before any bytes are written.
func ValidatePayload(payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyMessagePayload
	}
	if len(payload) > MaxMessagePayloadSize {
		return ErrTooBigMessagePayload
	}
	return nil
}
