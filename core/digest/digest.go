// Package digest implements the 128-bit work function used by the puzzle.
//
// The construction is the MD5 compression function. It is used only because
// producing a digest is cheap while searching for a small one is not; it is
// not a security primitive.
package digest

import (
	"encoding/binary"
	"math/bits"

	"lukechampine.com/uint128"
)

const (
	chunkSize = 64
	// lengthOffset is where the bit length starts inside the last chunk.
	lengthOffset = 56
)

// shifts holds the left-rotate amount of each of the 64 rounds.
var shifts = [chunkSize]int{
	7, 12, 17, 22, 7, 12, 17, 22, 7, 12, 17, 22, 7, 12, 17, 22,
	5, 9, 14, 20, 5, 9, 14, 20, 5, 9, 14, 20, 5, 9, 14, 20,
	4, 11, 16, 23, 4, 11, 16, 23, 4, 11, 16, 23, 4, 11, 16, 23,
	6, 10, 15, 21, 6, 10, 15, 21, 6, 10, 15, 21, 6, 10, 15, 21,
}

// constants holds the additive constant of each round.
var constants = [chunkSize]uint32{
	0xd76aa478, 0xe8c7b756, 0x242070db, 0xc1bdceee, 0xf57c0faf, 0x4787c62a, 0xa8304613, 0xfd469501,
	0x698098d8, 0x8b44f7af, 0xffff5bb1, 0x895cd7be, 0x6b901122, 0xfd987193, 0xa679438e, 0x49b40821,
	0xf61e2562, 0xc040b340, 0x265e5a51, 0xe9b6c7aa, 0xd62f105d, 0x02441453, 0xd8a1e681, 0xe7d3fbc8,
	0x21e1cde6, 0xc33707d6, 0xf4d50d87, 0x455a14ed, 0xa9e3e905, 0xfcefa3f8, 0x676f02d9, 0x8d2a4c8a,
	0xfffa3942, 0x8771f681, 0x6d9d6122, 0xfde5380c, 0xa4beea44, 0x4bdecfa9, 0xf6bb4b60, 0xbebfbc70,
	0x289b7ec6, 0xeaa127fa, 0xd4ef3085, 0x04881d05, 0xd9d4d039, 0xe6db99e5, 0x1fa27cf8, 0xc4ac5665,
	0xf4292244, 0x432aff97, 0xab9423a7, 0xfc93a039, 0x655b59c3, 0x8f0ccc92, 0xffeff47d, 0x85845dd1,
	0x6fa87e4f, 0xfe2ce6e0, 0xa3014314, 0x4e0811a1, 0xf7537e82, 0xbd3af235, 0x2ad7d2bb, 0xeb86d391,
}

type state struct {
	a, b, c, d uint32
}

func newState() state {
	return state{a: 0x67452301, b: 0xefcdab89, c: 0x98badcfe, d: 0x10325476}
}

// Sum returns the 128-bit digest of data. data is never modified.
//
// The four accumulators are packed as a0 | b0<<32 | c0<<64 | d0<<96, which is
// the 16 output bytes read as a little-endian integer.
func Sum(data []byte) uint128.Uint128 {
	s := newState()

	full := len(data) - len(data)%chunkSize
	for off := 0; off < full; off += chunkSize {
		s.block(data[off : off+chunkSize])
	}

	// The tail is at most 63 bytes, so padding spans one or two chunks.
	var buf [2 * chunkSize]byte
	tail := appendPadding(buf[:0], data[full:], len(data))
	for off := 0; off < len(tail); off += chunkSize {
		s.block(tail[off : off+chunkSize])
	}

	return uint128.Uint128{
		Lo: uint64(s.a) | uint64(s.b)<<32,
		Hi: uint64(s.c) | uint64(s.d)<<32,
	}
}

// Pad returns a copy of data with the 0x80 marker, zero fill and trailing
// little-endian bit length appended. Sum hashes the same bytes, padding only
// the final partial chunk.
func Pad(data []byte) []byte {
	return appendPadding(make([]byte, 0, len(data)+2*chunkSize), data, len(data))
}

// appendPadding appends src and the padding for a message of total bytes to
// dst. len(dst)+len(src) must be congruent to total modulo the chunk size.
func appendPadding(dst, src []byte, total int) []byte {
	dst = append(dst, src...)
	dst = append(dst, 0x80)
	for len(dst)%chunkSize != lengthOffset {
		dst = append(dst, 0)
	}
	return binary.LittleEndian.AppendUint64(dst, uint64(total)<<3)
}

// block runs the 64 rounds over one chunk and folds the result into s.
func (s *state) block(chunk []byte) {
	var m [16]uint32
	for i := range m {
		m[i] = binary.LittleEndian.Uint32(chunk[4*i:])
	}

	a, b, c, d := s.a, s.b, s.c, s.d
	for i := 0; i < chunkSize; i++ {
		var f uint32
		var g int
		switch i / 16 {
		case 0:
			f = (b & c) | (^b & d)
			g = i
		case 1:
			f = (d & b) | (^d & c)
			g = (5*i + 1) % 16
		case 2:
			f = b ^ c ^ d
			g = (3*i + 5) % 16
		default:
			f = c ^ (b | ^d)
			g = (7 * i) % 16
		}
		f += a + constants[i] + m[g]
		a, d, c = d, c, b
		b += bits.RotateLeft32(f, shifts[i])
	}

	s.a += a
	s.b += b
	s.c += c
	s.d += d
}
