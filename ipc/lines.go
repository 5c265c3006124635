package ipc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// LineDecoder decodes newline-delimited JSON objects from a stream.
// Blank lines are skipped.
type LineDecoder struct {
	scanner *bufio.Scanner
}

// NewLineDecoder creates a new JSON lines decoder.
func NewLineDecoder(r io.Reader) *LineDecoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	return &LineDecoder{scanner: s}
}

// ReadMessage reads the next JSON object.
//
// Errors:
//   - io.EOF: stream ended cleanly
//   - *FrameError with Kind=FrameErrorDecode: line is not a JSON object (skip)
//   - *FrameError with Kind=FrameErrorTooLarge: line exceeds MaxLineSize (fatal)
//   - *FrameError with Kind=FrameErrorPartial: underlying read failed (fatal)
func (d *LineDecoder) ReadMessage() (map[string]any, error) {
	for d.scanner.Scan() {
		line := bytes.TrimSpace(d.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var msg map[string]any
		if err := dec.Decode(&msg); err != nil {
			return nil, &FrameError{
				Kind: FrameErrorDecode,
				Msg:  fmt.Sprintf("invalid JSON line %q", truncate(line, 80)),
				Err:  err,
			}
		}
		if msg == nil {
			return nil, &FrameError{Kind: FrameErrorDecode, Msg: "JSON line is not an object"}
		}
		return msg, nil
	}

	err := d.scanner.Err()
	switch {
	case err == nil:
		return nil, io.EOF
	case errors.Is(err, bufio.ErrTooLong):
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("line exceeds maximum %d bytes", MaxLineSize),
			Err:  err,
		}
	default:
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read line", Err: err}
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
