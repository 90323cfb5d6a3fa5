package protocol

import (
	"errors"
	"io"

	"github.com/FairForge/tidelog/internal/streaming"
)

// These are re-exported rather than duplicated so the codec and the engine
// it drives share exactly one taxonomy; protocol is purely a framing layer
// over streaming's errors.
var (
	ErrInvalidFormat    = streaming.ErrInvalidFormat
	ErrCannotParseInt   = streaming.ErrCannotParseInt
	ErrCannotParseSlice = streaming.ErrCannotParseSlice
	ErrInvalidCommand   = streaming.ErrInvalidCommand
)

// StatusFor maps any error the engine or a payload decoder returns to its
// wire status byte via streaming.CodeOf, which uses the first taxonomy
// error in the error's wrap chain. A payload that ends early (io.EOF or
// io.ErrUnexpectedEOF outside any taxonomy error) maps to InvalidFormat;
// any other error outside the taxonomy maps to CodeInternalError.
func StatusFor(err error) uint8 {
	code := streaming.CodeOf(err)
	if code == streaming.CodeInternalError && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
		return uint8(streaming.CodeInvalidFormat)
	}
	return uint8(code)
}
