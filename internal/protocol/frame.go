package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

// MaxFrameSize bounds a single length-prefixed frame so a corrupt or
// malicious length field can't force an unbounded allocation.
const MaxFrameSize = 16 << 20 // 16MiB

// ErrFrameTooLarge is returned by ReadFrame when a frame's declared length
// exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum size")

// WriteFrame writes a length-prefixed frame to w: a 4-byte little-endian
// length followed by payload. Used by the reliable-stream (TCP) listener;
// the datagram (UDP) path sends payload directly with no length prefix
// since the transport already frames messages.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, n)
	if n == 0 {
		return payload, nil
	}
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// ReadCommand reads a single command-code byte from a framed payload,
// returning it alongside the remaining bytes for the per-command decoder.
func ReadCommand(frame []byte) (CommandCode, []byte, error) {
	if len(frame) == 0 {
		return 0, nil, ErrInvalidCommand
	}
	return CommandCode(frame[0]), frame[1:], nil
}
