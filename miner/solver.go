// Package miner searches for nonces that solve a proof-of-work challenge.
package miner

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
	"lukechampine.com/uint128"

	"powquote/core/digest"
	"powquote/core/pow"
)

// ErrExhausted means every worker walked its whole share of the nonce space
// without finding a solution.
var ErrExhausted = xerrors.New("miner: nonce space exhausted")

// errFound stops the remaining workers once one of them succeeds.
var errFound = xerrors.New("miner: solution found")

// checkEvery is how many nonces a worker tries between context checks.
const checkEvery = 1 << 10

// Stats describes one search.
type Stats struct {
	Attempts uint64
	Duration time.Duration
}

// Rate is the number of nonces tried per second.
func (s Stats) Rate() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Attempts) / s.Duration.Seconds()
}

// Solve returns a nonce n with digest(challenge || le(n)) <= target, using
// workers goroutines.
func Solve(ctx context.Context, challenge []byte, target uint128.Uint128, workers int) (uint128.Uint128, error) {
	n, _, err := SolveWithStats(ctx, challenge, target, workers)
	return n, err
}

// SolveWithStats is Solve plus the number of nonces tried. Worker c of T
// tries c, c+T, c+2T and so on. The first worker to succeed cancels the
// others, and SolveWithStats returns only after all of them have stopped.
func SolveWithStats(ctx context.Context, challenge []byte, target uint128.Uint128, workers int) (uint128.Uint128, Stats, error) {
	if workers <= 0 {
		workers = 1
	}
	start := time.Now()

	var (
		attempts atomic.Uint64
		result   uint128.Uint128
		winner   atomic.Bool
	)
	g, gctx := errgroup.WithContext(ctx)
	for c := 0; c < workers; c++ {
		first := uint128.From64(uint64(c))
		g.Go(func() error {
			nonce, tries, ok := search(gctx, challenge, target, first, uint64(workers))
			attempts.Add(tries)
			if !ok {
				return nil
			}
			if winner.CompareAndSwap(false, true) {
				result = nonce
			}
			return errFound
		})
	}
	err := g.Wait()

	stats := Stats{Attempts: attempts.Load(), Duration: time.Since(start)}
	switch {
	case err == errFound:
		return result, stats, nil
	case ctx.Err() != nil:
		return uint128.Zero, stats, ctx.Err()
	default:
		return uint128.Zero, stats, ErrExhausted
	}
}

// search walks first, first+step, ... until it finds a solution, the context
// is cancelled, or the nonce would wrap past 2^128-1.
func search(ctx context.Context, challenge []byte, target, first uint128.Uint128, step uint64) (uint128.Uint128, uint64, bool) {
	buf := make([]byte, len(challenge), len(challenge)+pow.NonceSize)
	copy(buf, challenge)

	nonce := first
	var tries uint64
	for {
		if tries%checkEvery == 0 && ctx.Err() != nil {
			return uint128.Zero, tries, false
		}
		tries++
		if digest.Sum(pow.AppendNonce(buf[:len(challenge)], nonce)).Cmp(target) <= 0 {
			return nonce, tries, true
		}
		next := nonce.AddWrap64(step)
		if next.Cmp(nonce) <= 0 {
			return uint128.Zero, tries, false
		}
		nonce = next
	}
}
