package ipc

import (
	"fmt"
	"io"
	"strings"
)

// Framing selects how worker messages are delimited on stdout.
type Framing string

// Supported framings.
const (
	FramingJSONLines Framing = "jsonl"
	FramingMsgpack   Framing = "msgpack"
)

// ParseFraming maps a config value to a Framing. Empty selects JSON lines.
func ParseFraming(s string) (Framing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jsonl", "json", "ndjson":
		return FramingJSONLines, nil
	case "msgpack":
		return FramingMsgpack, nil
	default:
		return "", fmt.Errorf("unknown framing %q (expected jsonl or msgpack)", s)
	}
}

// MessageReader yields undecoded worker messages in arrival order.
type MessageReader interface {
	// ReadMessage returns the next message, io.EOF at end of stream, or a
	// *FrameError.
	ReadMessage() (map[string]any, error)
}

// NewMessageReader returns the reader for the given framing.
func NewMessageReader(f Framing, r io.Reader) MessageReader {
	if f == FramingMsgpack {
		return NewFrameDecoder(r)
	}
	return NewLineDecoder(r)
}
