// Package codec frames wire messages over a byte stream.
//
// The codec is the only place that buffers peer-controlled lengths, so it is
// where the per-message memory ceiling is enforced.
package codec

import (
	"bufio"
	"io"

	"golang.org/x/xerrors"

	"powquote/wire"
)

// readChunk bounds a single read from the underlying stream.
const readChunk = 256

// ErrMemoryLimit is returned by Read when a header declares a payload larger
// than the configured limit. No payload byte is read; the stream is left
// mid-frame and must be closed.
var ErrMemoryLimit = xerrors.New("codec: reader memory limit exceeded")

// Codec reads and writes framed messages. It is not safe for concurrent use.
type Codec struct {
	r     io.Reader
	w     *bufio.Writer
	buf   []byte
	limit int
}

// New wraps rw. limit is the largest payload Read will buffer.
func New(rw io.ReadWriter, limit int) *Codec {
	return &Codec{
		r:     rw,
		w:     bufio.NewWriter(rw),
		limit: limit,
	}
}

// Write sends the header and payload of m and flushes the stream. It returns
// the number of bytes written.
func (c *Codec) Write(m wire.Message) (int, error) {
	h, payload, err := wire.Encode(m)
	if err != nil {
		return 0, err
	}
	header := h.Bytes()
	written, err := c.w.Write(header[:])
	if err != nil {
		return written, xerrors.Errorf("codec: write header: %w", err)
	}
	n, err := c.w.Write(payload)
	written += n
	if err != nil {
		return written, xerrors.Errorf("codec: write payload: %w", err)
	}
	if err := c.w.Flush(); err != nil {
		return written, xerrors.Errorf("codec: flush: %w", err)
	}
	return written, nil
}

// Read blocks for the next message. Errors are one of ErrMemoryLimit,
// wire.ErrDecode or a wrapped transport error; io.EOF is returned unwrapped
// when the peer closes cleanly between frames.
func (c *Codec) Read() (wire.Message, error) {
	var raw [wire.HeaderSize]byte
	if _, err := io.ReadFull(c.r, raw[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, xerrors.Errorf("codec: read header: %w", err)
	}
	h, err := wire.ParseHeader(raw[:])
	if err != nil {
		return nil, err
	}
	if !h.Kind.Valid() {
		return nil, xerrors.Errorf("codec: tag %d: %w", uint8(h.Kind), wire.ErrUnknownKind)
	}

	if int64(h.Length) > int64(c.limit) {
		return nil, xerrors.Errorf("codec: %s payload of %d bytes, limit %d: %w", h.Kind, h.Length, c.limit, ErrMemoryLimit)
	}

	c.buf = c.buf[:0]
	remaining := int64(h.Length)
	for remaining > 0 {
		step := int64(readChunk)
		if remaining < step {
			step = remaining
		}
		start := len(c.buf)
		c.buf = append(c.buf, make([]byte, step)...)
		if _, err := io.ReadFull(c.r, c.buf[start:]); err != nil {
			return nil, xerrors.Errorf("codec: read payload: %w", err)
		}
		remaining -= step
	}

	return wire.Decode(h.Kind, c.buf)
}
