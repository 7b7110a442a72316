package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"golang.org/x/xerrors"
	"lukechampine.com/uint128"
)

var (
	// ErrDecode marks payload bytes that do not form the declared message.
	ErrDecode = xerrors.New("wire: malformed payload")
	// ErrUnknownKind marks a header with a kind tag outside 0..3.
	ErrUnknownKind = xerrors.Errorf("unknown message kind: %w", ErrDecode)
)

func decodeErrorf(format string, args ...interface{}) error {
	return xerrors.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrDecode)
}

// Encode returns the header and payload bytes of m.
func Encode(m Message) (Header, []byte, error) {
	payload := m.appendPayload(nil)
	if uint64(len(payload)) > math.MaxUint32 {
		return Header{}, nil, xerrors.Errorf("wire: %s payload of %d bytes exceeds header range", m.Kind(), len(payload))
	}
	return Header{Length: uint32(len(payload)), Kind: m.Kind()}, payload, nil
}

// Decode parses payload as a message of the given kind. The payload must be
// consumed exactly.
func Decode(kind Kind, payload []byte) (Message, error) {
	var m Message
	switch kind {
	case KindRequest:
		m = &Request{}
	case KindChallenge:
		m = &Challenge{}
	case KindSolution:
		m = &Solution{}
	case KindResponse:
		m = &Response{}
	default:
		return nil, xerrors.Errorf("tag %d: %w", uint8(kind), ErrUnknownKind)
	}
	d := &decoder{buf: payload}
	if err := m.decodePayload(d); err != nil {
		return nil, xerrors.Errorf("decode %s: %w", kind, err)
	}
	if rest := len(d.buf) - d.off; rest != 0 {
		return nil, decodeErrorf("decode %s: %d trailing bytes", kind, rest)
	}
	return m, nil
}

func (r *Request) appendPayload(b []byte) []byte {
	if r.Number == nil {
		return append(b, 0)
	}
	b = append(b, 1)
	return binary.LittleEndian.AppendUint64(b, *r.Number)
}

func (r *Request) decodePayload(d *decoder) error {
	present, err := d.flag("number")
	if err != nil || !present {
		return err
	}
	n, err := d.uint64()
	if err != nil {
		return err
	}
	r.Number = &n
	return nil
}

func (c *Challenge) appendPayload(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, c.Session)
	b = appendBytes(b, c.String)
	return appendUint128(b, c.Target)
}

func (c *Challenge) decodePayload(d *decoder) (err error) {
	if c.Session, err = d.uint32(); err != nil {
		return err
	}
	if c.String, err = d.bytes(); err != nil {
		return err
	}
	c.Target, err = d.uint128()
	return err
}

func (s *Solution) appendPayload(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, s.Session)
	return appendUint128(b, s.Nonce)
}

func (s *Solution) decodePayload(d *decoder) (err error) {
	if s.Session, err = d.uint32(); err != nil {
		return err
	}
	s.Nonce, err = d.uint128()
	return err
}

func (r *Response) appendPayload(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, r.Session)
	if r.Result.Err {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	return appendBytes(b, []byte(r.Result.Text))
}

func (r *Response) decodePayload(d *decoder) (err error) {
	if r.Session, err = d.uint32(); err != nil {
		return err
	}
	if r.Result.Err, err = d.flag("result"); err != nil {
		return err
	}
	r.Result.Text, err = d.string()
	return err
}

func appendBytes(b, v []byte) []byte {
	b = binary.LittleEndian.AppendUint64(b, uint64(len(v)))
	return append(b, v...)
}

func appendUint128(b []byte, v uint128.Uint128) []byte {
	b = binary.LittleEndian.AppendUint64(b, v.Lo)
	return binary.LittleEndian.AppendUint64(b, v.Hi)
}

// decoder reads fields off a payload, failing on truncation.
type decoder struct {
	buf []byte
	off int
}

func (d *decoder) take(n int, field string) ([]byte, error) {
	if n < 0 || len(d.buf)-d.off < n {
		return nil, decodeErrorf("%s: need %d bytes, have %d", field, n, len(d.buf)-d.off)
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

// flag reads a 0/1 byte; any other value is malformed.
func (d *decoder) flag(field string) (bool, error) {
	b, err := d.take(1, field)
	if err != nil {
		return false, err
	}
	switch b[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, decodeErrorf("%s: invalid tag %d", field, b[0])
}

func (d *decoder) uint32() (uint32, error) {
	b, err := d.take(4, "u32")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *decoder) uint64() (uint64, error) {
	b, err := d.take(8, "u64")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *decoder) uint128() (uint128.Uint128, error) {
	b, err := d.take(16, "u128")
	if err != nil {
		return uint128.Zero, err
	}
	return uint128.FromBytes(b), nil
}

func (d *decoder) bytes() ([]byte, error) {
	n, err := d.uint64()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(d.buf)-d.off) {
		return nil, decodeErrorf("bytes: length prefix %d exceeds remaining %d", n, len(d.buf)-d.off)
	}
	b, err := d.take(int(n), "bytes")
	if err != nil {
		return nil, err
	}
	return append([]byte{}, b...), nil
}

func (d *decoder) string() (string, error) {
	b, err := d.bytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", decodeErrorf("string: invalid utf-8")
	}
	return string(b), nil
}
