package framing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"sync"

	"github.com/wagiedev/langserver-sdk-go/internal/errors"
)

// headerDelimiter separates the frame header from the JSON body.
const headerDelimiter = "\r\n\r\n"

// contentLengthPattern matches the Content-Length header case-insensitively.
var contentLengthPattern = regexp.MustCompile(`(?i)content-length:\s*(\d+)`)

// Encode serializes a message into a single wire frame.
//
// The Content-Length value is the byte length of the UTF-8 encoded JSON
// body, not its character count.
func Encode(msg any) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	frame := make([]byte, 0, len(body)+32)
	frame = fmt.Appendf(frame, "Content-Length: %d%s", len(body), headerDelimiter)
	frame = append(frame, body...)

	return frame, nil
}

// Writer encodes messages and writes them to a single output stream.
//
// Writes are serialized by a mutex so concurrent callers never interleave a
// partial header or body on the wire.
type Writer struct {
	log *slog.Logger
	mu  sync.Mutex
	w   io.Writer
}

// NewWriter creates a Writer for the given output stream.
func NewWriter(log *slog.Logger, w io.Writer) *Writer {
	return &Writer{
		log: log.With("component", "framing_writer"),
		w:   w,
	}
}

// WriteMessage encodes msg and writes the complete frame.
func (w *Writer) WriteMessage(msg any) error {
	frame, err := Encode(msg)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	w.log.Debug("Frame written", "frame_len", len(frame))

	return nil
}

// Handler receives each successfully decoded message, synchronously and in
// arrival order.
type Handler func(msg map[string]any)

// Decoder turns an incoming byte stream back into messages.
//
// Feed bytes in whatever chunks the stream delivers them; the decoder keeps
// a growing buffer and emits a message to its handler for every complete
// frame. Malformed headers and unparseable bodies are discarded without
// affecting subsequent frames, since the byte boundary of each frame is
// known from Content-Length.
type Decoder struct {
	log     *slog.Logger
	handler Handler
	buf     []byte
}

// NewDecoder creates a Decoder that delivers messages to handler.
func NewDecoder(log *slog.Logger, handler Handler) *Decoder {
	return &Decoder{
		log:     log.With("component", "framing_decoder"),
		handler: handler,
	}
}

// Feed appends data to the buffer and drains every complete frame from it.
func (d *Decoder) Feed(data []byte) {
	d.buf = append(d.buf, data...)

	for {
		delim := bytes.Index(d.buf, []byte(headerDelimiter))
		if delim < 0 {
			// Header incomplete, wait for more bytes.
			return
		}

		header := d.buf[:delim]
		bodyStart := delim + len(headerDelimiter)

		match := contentLengthPattern.FindSubmatch(header)
		if match == nil {
			// Garbage before the delimiter. Skip past it so a broken header
			// can never stall the stream.
			d.log.Warn("Discarding malformed frame header", "header", string(header))
			d.buf = d.buf[bodyStart:]

			continue
		}

		length, err := strconv.Atoi(string(match[1]))
		if err != nil {
			d.log.Warn("Discarding frame with unparseable length", "header", string(header))
			d.buf = d.buf[bodyStart:]

			continue
		}

		if len(d.buf) < bodyStart+length {
			// Body incomplete, wait for more bytes.
			return
		}

		body := d.buf[bodyStart : bodyStart+length]

		var msg map[string]any

		if err := json.Unmarshal(body, &msg); err != nil {
			// Drop just this frame; framing stays intact because the
			// boundary came from Content-Length.
			decodeErr := &errors.FrameDecodeError{RawData: string(body), Err: err}
			d.log.Warn("Discarding undecodable frame", "error", decodeErr)
		} else {
			d.handler(msg)
		}

		d.buf = d.buf[bodyStart+length:]
	}
}
