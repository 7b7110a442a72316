// Package pow implements challenge generation and verification for the
// quote puzzle.
package pow

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"time"

	"golang.org/x/crypto/sha3"
	"golang.org/x/xerrors"
	"lukechampine.com/uint128"

	"powquote/core/digest"
)

// NonceSize is the number of bytes a nonce occupies when appended to a
// challenge.
const NonceSize = 16

// Config controls the shape of freshly generated challenges.
type Config struct {
	// Length is the number of random bytes in the challenge string.
	Length int
	// ZeroBits is the number of leading zero bits the digest must have.
	ZeroBits uint8
}

// PoW is one outstanding puzzle instance.
type PoW struct {
	challenge []byte
	target    uint128.Uint128
	created   time.Time
}

// TargetFor returns the largest acceptable digest for the given difficulty.
// Every extra zero bit halves the target; at 128 bits and above it is zero.
func TargetFor(zeroBits uint8) uint128.Uint128 {
	return uint128.Max.Rsh(uint(zeroBits))
}

// New draws a challenge from crypto/rand.
func New(cfg Config) (*PoW, error) {
	return NewWithReader(cfg, rand.Reader)
}

// NewWithReader draws the challenge bytes from r.
func NewWithReader(cfg Config, r io.Reader) (*PoW, error) {
	if cfg.Length < 0 {
		return nil, xerrors.Errorf("pow: negative challenge length %d", cfg.Length)
	}
	challenge := make([]byte, cfg.Length, cfg.Length+NonceSize)
	if _, err := io.ReadFull(r, challenge); err != nil {
		return nil, xerrors.Errorf("pow: read challenge entropy: %w", err)
	}
	return &PoW{
		challenge: challenge,
		target:    TargetFor(cfg.ZeroBits),
		created:   time.Now(),
	}, nil
}

// Challenge returns a copy of the challenge string.
func (p *PoW) Challenge() []byte {
	return append([]byte(nil), p.challenge...)
}

func (p *PoW) Target() uint128.Uint128 {
	return p.target
}

// Elapsed is the time since the challenge was generated.
func (p *PoW) Elapsed() time.Duration {
	return time.Since(p.created)
}

// Verify reports whether nonce solves this challenge. It can be called any
// number of times; the stored challenge is left untouched.
func (p *PoW) Verify(nonce uint128.Uint128) bool {
	return Check(p.challenge, p.target, nonce)
}

// Check reports whether digest(challenge || le(nonce)) <= target.
func Check(challenge []byte, target, nonce uint128.Uint128) bool {
	buf := make([]byte, len(challenge), len(challenge)+NonceSize)
	copy(buf, challenge)
	return digest.Sum(AppendNonce(buf, nonce)).Cmp(target) <= 0
}

// AppendNonce appends the little-endian bytes of nonce to buf.
func AppendNonce(buf []byte, nonce uint128.Uint128) []byte {
	var b [NonceSize]byte
	nonce.PutBytes(b[:])
	return append(buf, b[:]...)
}

// Fingerprint is a short identifier of a challenge string for log lines.
// Both peers compute the same value.
func Fingerprint(challenge []byte) string {
	sum := sha3.Sum256(challenge)
	return hex.EncodeToString(sum[:6])
}
