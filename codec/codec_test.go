package codec

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"powquote/wire"
)

func TestWriteReadRoundTrip(t *testing.T) {
	var stream bytes.Buffer
	c := New(&stream, 1024)

	n := uint64(11)
	msgs := []wire.Message{
		&wire.Request{Number: &n},
		&wire.Challenge{Session: 0, String: []byte("abcdefgh"), Target: uint128.Max},
		&wire.Solution{Session: 0, Nonce: uint128.From64(99)},
		&wire.Response{Session: 0, Result: wire.Ok("quote")},
		&wire.Request{},
	}
	for _, m := range msgs {
		_, payload, err := wire.Encode(m)
		require.NoError(t, err)
		written, err := c.Write(m)
		require.NoError(t, err)
		require.Equal(t, wire.HeaderSize+len(payload), written)
	}
	for _, want := range msgs {
		got, err := c.Read()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := c.Read()
	require.Equal(t, io.EOF, err)
}

func TestReadLargePayloadInChunks(t *testing.T) {
	var stream bytes.Buffer
	c := New(&stream, 4096)
	text := string(bytes.Repeat([]byte("x"), 1000))

	_, err := c.Write(&wire.Response{Session: 9, Result: wire.Ok(text)})
	require.NoError(t, err)

	got, err := c.Read()
	require.NoError(t, err)
	require.Equal(t, text, got.(*wire.Response).Result.Text)
}

func TestReadMemoryLimit(t *testing.T) {
	h := wire.Header{Length: 1000, Kind: wire.KindResponse}
	raw := h.Bytes()
	stream := bytes.NewBuffer(raw[:])
	stream.Write(make([]byte, 1000))

	c := New(stream, 16)
	_, err := c.Read()
	require.ErrorIs(t, err, ErrMemoryLimit)
	require.False(t, errors.Is(err, wire.ErrDecode))
	// The payload is rejected from the header alone.
	require.Equal(t, 1000, stream.Len())
}

func TestReadMemoryLimitAboveChunk(t *testing.T) {
	h := wire.Header{Length: 600, Kind: wire.KindResponse}
	raw := h.Bytes()
	stream := bytes.NewBuffer(raw[:])
	stream.Write(make([]byte, 600))

	_, err := New(stream, 512).Read()
	require.ErrorIs(t, err, ErrMemoryLimit)
	require.Equal(t, 600, stream.Len())
}

func TestReadLimitBoundary(t *testing.T) {
	var stream bytes.Buffer
	_, payload, err := wire.Encode(&wire.Challenge{Session: 1, String: []byte{1, 2}, Target: uint128.Max})
	require.NoError(t, err)

	w := New(&stream, len(payload))
	_, err = w.Write(&wire.Challenge{Session: 1, String: []byte{1, 2}, Target: uint128.Max})
	require.NoError(t, err)
	_, err = w.Read()
	require.NoError(t, err)

	_, err = w.Write(&wire.Challenge{Session: 1, String: []byte{1, 2, 3}, Target: uint128.Max})
	require.NoError(t, err)
	_, err = w.Read()
	require.ErrorIs(t, err, ErrMemoryLimit)
}

func TestReadMalformedPayload(t *testing.T) {
	h := wire.Header{Length: 2, Kind: wire.KindRequest}
	raw := h.Bytes()
	stream := bytes.NewBuffer(append(raw[:], 5, 5))

	_, err := New(stream, 64).Read()
	require.ErrorIs(t, err, wire.ErrDecode)
}

func TestReadUnknownKind(t *testing.T) {
	h := wire.Header{Length: 0, Kind: wire.Kind(200)}
	raw := h.Bytes()

	_, err := New(bytes.NewBuffer(raw[:]), 64).Read()
	require.ErrorIs(t, err, wire.ErrUnknownKind)
}

func TestReadTruncated(t *testing.T) {
	h := wire.Header{Length: 20, Kind: wire.KindSolution}
	raw := h.Bytes()
	stream := bytes.NewBuffer(append(raw[:], 1, 2, 3))

	_, err := New(stream, 64).Read()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.False(t, errors.Is(err, ErrMemoryLimit))

	_, err = New(bytes.NewBuffer([]byte{1, 2}), 64).Read()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

type failingWriter struct{ io.Reader }

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriteTransportError(t *testing.T) {
	c := New(failingWriter{bytes.NewReader(nil)}, 64)
	_, err := c.Write(&wire.Request{})
	require.Error(t, err)
}
