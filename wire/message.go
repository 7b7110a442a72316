// Package wire defines the four protocol messages and their byte-exact
// encoding.
//
// Every frame is a 5-byte Header (payload length as little-endian uint32,
// then the kind tag) followed by exactly Length payload bytes. Payload fields
// use little-endian fixed-width integers, a 1-byte presence flag for optional
// values, uint64 length prefixes for byte strings and a 1-byte Ok/Err tag for
// results.
package wire

import (
	"encoding/binary"
	"fmt"

	"lukechampine.com/uint128"
)

// HeaderSize is the encoded size of a Header: Length(4) + Kind(1).
const HeaderSize = 5

// Kind identifies which message follows a header.
type Kind uint8

const (
	KindRequest Kind = iota
	KindChallenge
	KindSolution
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "REQUEST"
	case KindChallenge:
		return "CHALLENGE"
	case KindSolution:
		return "SOLUTION"
	case KindResponse:
		return "RESPONSE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the four known kinds.
func (k Kind) Valid() bool {
	return k <= KindResponse
}

// Header precedes every payload on the wire.
type Header struct {
	Length uint32
	Kind   Kind
}

// Bytes returns the wire form of h.
func (h Header) Bytes() [HeaderSize]byte {
	var b [HeaderSize]byte
	binary.LittleEndian.PutUint32(b[:4], h.Length)
	b[4] = byte(h.Kind)
	return b
}

// ParseHeader decodes the first HeaderSize bytes of b. The kind is not
// checked here; Decode rejects unknown kinds.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, decodeErrorf("header: need %d bytes, have %d", HeaderSize, len(b))
	}
	return Header{
		Length: binary.LittleEndian.Uint32(b[:4]),
		Kind:   Kind(b[4]),
	}, nil
}

// Message is implemented by the four payload types only.
type Message interface {
	Kind() Kind
	appendPayload(b []byte) []byte
	decodePayload(d *decoder) error
}

// Request asks the server for a quote, optionally by index.
type Request struct {
	// Number selects a quote modulo the collection size; nil means random.
	Number *uint64
}

// Challenge is the puzzle issued for a Request.
type Challenge struct {
	// Session correlates the eventual Solution with this challenge.
	Session uint32
	String  []byte
	Target  uint128.Uint128
}

// Solution is the client's claimed answer for a session.
type Solution struct {
	Session uint32
	Nonce   uint128.Uint128
}

// Response carries the server's verdict for a session.
type Response struct {
	Session uint32
	Result  Result
}

// Result is either an Ok quote or an Err description.
type Result struct {
	Err  bool
	Text string
}

// Ok builds a successful Result.
func Ok(text string) Result { return Result{Text: text} }

// Err builds a failed Result.
func Err(text string) Result { return Result{Err: true, Text: text} }

func (r Result) String() string {
	if r.Err {
		return "Err(" + r.Text + ")"
	}
	return "Ok(" + r.Text + ")"
}

func (*Request) Kind() Kind   { return KindRequest }
func (*Challenge) Kind() Kind { return KindChallenge }
func (*Solution) Kind() Kind  { return KindSolution }
func (*Response) Kind() Kind  { return KindResponse }

// NewRequest builds a Request for quote n, or a random quote when n < 0.
func NewRequest(n int64) *Request {
	if n < 0 {
		return &Request{}
	}
	v := uint64(n)
	return &Request{Number: &v}
}
