package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	_headerContentLength = "Content-Length"
	_headerTerminator    = "\r\n\r\n"

	// Frames larger than this are treated as malformed headers rather than
	// buffered indefinitely.
	_maxFrameSize = 64 << 20
)

// FramingError reports a malformed header or payload. The decoder discards
// the offending frame and resynchronizes on the next valid header.
type FramingError struct {
	Reason    string
	Discarded int
}

// Error is an implementation of the error interface.
func (e *FramingError) Error() string {
	return fmt.Sprintf("framing: %s (%d bytes discarded)", e.Reason, e.Discarded)
}

// Encode serializes a message with its Content-Length header.
func Encode(m *Message) ([]byte, error) {
	if m.JSONRPC == "" {
		m.JSONRPC = "2.0"
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s: %d%s", _headerContentLength, len(payload), _headerTerminator)
	buf.Write(payload)
	return buf.Bytes(), nil
}

// ErrorHandler receives local framing errors. It must not block.
type ErrorHandler func(error)

// Decoder reassembles messages from an incoming byte stream. It retains
// partial-frame state between calls to Feed, so frames may be split across
// reads or batched within one read.
type Decoder struct {
	buf     []byte
	onError ErrorHandler
}

// DecoderOption customizes a Decoder.
type DecoderOption func(*Decoder)

// WithErrorHandler sets the handler invoked for each recovered framing error.
func WithErrorHandler(h ErrorHandler) DecoderOption {
	return func(d *Decoder) {
		d.onError = h
	}
}

// NewDecoder creates a decoder with empty reassembly state.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{
		onError: func(error) {},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed appends bytes to the reassembly buffer and returns every complete
// message now available, in stream order. A zero-length feed is a no-op.
// Malformed frames are reported to the error handler and skipped; a single
// corrupt message never stalls the stream.
func (d *Decoder) Feed(p []byte) []Message {
	if len(p) == 0 {
		return nil
	}
	d.buf = append(d.buf, p...)

	var out []Message
	for {
		m, ok := d.next()
		if !ok {
			break
		}
		if m != nil {
			out = append(out, *m)
		}
	}
	return out
}

// Buffered returns the number of bytes awaiting a complete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// next extracts one frame from the buffer. It returns (nil, true) when a
// malformed frame was skipped and decoding should continue, and (nil, false)
// when no complete frame remains.
func (d *Decoder) next() (*Message, bool) {
	end := bytes.Index(d.buf, []byte(_headerTerminator))
	if end < 0 {
		// Without a header terminator there is nothing to parse yet, unless
		// the buffer has grown past any plausible header block.
		if len(d.buf) > _maxFrameSize {
			d.resync("header terminator not found", len(d.buf))
			return nil, true
		}
		return nil, false
	}

	length, err := parseHeaders(d.buf[:end])
	if err != nil {
		d.resync(err.Error(), end+len(_headerTerminator))
		return nil, true
	}
	if length < 0 || length > _maxFrameSize {
		d.resync(fmt.Sprintf("implausible content length %d", length), end+len(_headerTerminator))
		return nil, true
	}

	frameEnd := end + len(_headerTerminator) + length
	if len(d.buf) < frameEnd {
		return nil, false
	}

	payload := d.buf[end+len(_headerTerminator) : frameEnd]
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		d.onError(&FramingError{Reason: fmt.Sprintf("invalid payload: %v", err), Discarded: frameEnd})
		d.buf = d.buf[frameEnd:]
		return nil, true
	}

	d.buf = d.buf[frameEnd:]
	return &m, true
}

// resync reports a framing error, then discards bytes up to the next
// Content-Length token so the decoder can recover on the following frame.
func (d *Decoder) resync(reason string, atLeast int) {
	next := bytes.Index(d.buf[1:], []byte(_headerContentLength))
	discard := len(d.buf)
	if next >= 0 {
		discard = next + 1
	}
	if discard < atLeast && atLeast <= len(d.buf) {
		// Never re-parse inside the frame already judged malformed.
		if after := bytes.Index(d.buf[atLeast:], []byte(_headerContentLength)); after >= 0 {
			discard = atLeast + after
		} else {
			discard = len(d.buf)
		}
	}
	d.onError(&FramingError{Reason: reason, Discarded: discard})
	d.buf = d.buf[discard:]
}

// parseHeaders extracts the Content-Length value from a CRLF-separated header block.
func parseHeaders(block []byte) (int, error) {
	lines := strings.Split(string(block), "\r\n")
	length := -1
	for _, line := range lines {
		if line == "" {
			continue
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			return 0, fmt.Errorf("malformed header line %q", line)
		}
		if strings.EqualFold(strings.TrimSpace(name), _headerContentLength) {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return 0, fmt.Errorf("malformed content length %q", strings.TrimSpace(value))
			}
			length = n
		}
	}
	if length < 0 {
		return 0, fmt.Errorf("missing %s header", _headerContentLength)
	}
	return length, nil
}
