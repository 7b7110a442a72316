package miner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"powquote/core/pow"
)

func TestSolveTrivialTarget(t *testing.T) {
	nonce, stats, err := SolveWithStats(context.Background(), []byte("anything"), uint128.Max, 4)
	require.NoError(t, err)
	// Every worker's first nonce succeeds, so the result is one of 0..3.
	require.True(t, nonce.Cmp64(4) < 0)
	require.NotZero(t, stats.Attempts)
}

func TestSolveFindsValidNonce(t *testing.T) {
	challenge := []byte("0123456789abcdef")
	for _, bits := range []uint8{1, 8, 12} {
		target := pow.TargetFor(bits)
		for _, workers := range []int{1, 3, 8} {
			nonce, err := Solve(context.Background(), challenge, target, workers)
			require.NoError(t, err, "bits=%d workers=%d", bits, workers)
			require.True(t, pow.Check(challenge, target, nonce), "bits=%d workers=%d", bits, workers)
		}
	}
}

func TestSolveLeavesChallengeUntouched(t *testing.T) {
	challenge := []byte("challenge")
	orig := append([]byte(nil), challenge...)
	_, err := Solve(context.Background(), challenge, pow.TargetFor(6), 2)
	require.NoError(t, err)
	require.Equal(t, orig, challenge)
}

func TestSolveCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Solve(ctx, []byte("never"), uint128.Zero, 4)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestSolveDefaultsToOneWorker(t *testing.T) {
	nonce, err := Solve(context.Background(), nil, uint128.Max, 0)
	require.NoError(t, err)
	require.True(t, nonce.IsZero())
}

func TestSearchStopsAtTopOfRange(t *testing.T) {
	first := uint128.Max.Sub64(5)
	_, tries, ok := search(context.Background(), []byte("x"), uint128.Zero, first, 2)
	require.False(t, ok)
	// max-5, max-3, max-1
	require.Equal(t, uint64(3), tries)
}

func TestStatsRate(t *testing.T) {
	require.Zero(t, Stats{Attempts: 10}.Rate())
	require.Equal(t, 100.0, Stats{Attempts: 200, Duration: 2 * time.Second}.Rate())
}

func BenchmarkSolve16(b *testing.B) {
	challenge := []byte("benchmark-challenge")
	target := pow.TargetFor(16)
	for i := 0; i < b.N; i++ {
		if _, err := Solve(context.Background(), challenge, target, 4); err != nil {
			b.Fatal(err)
		}
	}
}
