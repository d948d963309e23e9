package network

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"
)

// FrameSize is the fixed length of every frame on the wire
const FrameSize = 64

var (
	ErrOversize        = errors.New("message does not fit in a frame")
	ErrInvalidEncoding = errors.New("frame is not valid UTF-8")
)

// EncodeFrame pads text with NUL bytes to FrameSize. At least one NUL is
// always left so the receiver can find the end of the text.
func EncodeFrame(text string) ([]byte, error) {
	if len(text) >= FrameSize {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrOversize, len(text), FrameSize-1)
	}

	frame := make([]byte, FrameSize)
	copy(frame, text)
	return frame, nil
}

// DecodeFrame returns the text before the first NUL byte
func DecodeFrame(frame []byte) (string, error) {
	if i := bytes.IndexByte(frame, 0); i >= 0 {
		frame = frame[:i]
	}
	if !utf8.Valid(frame) {
		return "", ErrInvalidEncoding
	}
	return string(frame), nil
}
