// Package ipc reads the worker event stream and decodes it into typed
// run events.
//
// Two framings are supported. JSON lines carry one JSON object per line.
// Msgpack framing carries a 4-byte big-endian length prefix followed by a
// msgpack-encoded map. Both yield the same generic message map, which
// Decode turns into a types.RunEvent.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
	// MaxLineSize bounds a single JSON line.
	MaxLineSize = 4 * 1024 * 1024
)

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding the size limit.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a payload that is not a valid message.
	FrameErrorDecode
)

// FrameError represents a frame decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the stream cannot continue after this error.
// Partial and oversized frames are fatal; a payload that fails to decode
// is skipped.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads a single frame from the stream and returns its payload.
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	_, err = io.ReadFull(d.reader, payload)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}

// ReadMessage reads one frame and decodes it as a msgpack map.
func (d *FrameDecoder) ReadMessage() (map[string]any, error) {
	payload, err := d.ReadFrame()
	if err != nil {
		return nil, err
	}
	var msg map[string]any
	if err := msgpack.Unmarshal(payload, &msg); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode msgpack message",
			Err:  err,
		}
	}
	if msg == nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "message is not a map"}
	}
	return msg, nil
}

// FrameEncoder writes length-prefixed msgpack frames.
type FrameEncoder struct {
	writer io.Writer
}

// NewFrameEncoder creates a new frame encoder.
func NewFrameEncoder(w io.Writer) *FrameEncoder {
	return &FrameEncoder{writer: w}
}

// WriteMessage encodes v as msgpack and writes it as one frame.
func (e *FrameEncoder) WriteMessage(v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	_, err = e.writer.Write(buf)
	return err
}
