package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"powquote/core/config"
	"powquote/dataset"
)

func TestLoadConfigFlagsWin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wowd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen = "0.0.0.0:9000"
zero-bits = 12
length = 32
session-ttl = "30s"
`), 0o644))

	configPath = path
	flagCfg = config.DefaultServer()
	defer func() {
		configPath = ""
		flagCfg = config.DefaultServer()
	}()

	// A private flag set keeps rootCmd's flags unchanged for other tests.
	flags := pflag.NewFlagSet("wowd", pflag.ContinueOnError)
	flags.Uint8Var(&flagCfg.ZeroBits, "zero-bits", flagCfg.ZeroBits, "")
	flags.IntVar(&flagCfg.Length, "length", flagCfg.Length, "")
	require.NoError(t, flags.Parse([]string{"--zero-bits", "3"}))

	cfg, err := loadConfig(flags)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.Listen)
	require.Equal(t, uint8(3), cfg.ZeroBits)
	require.Equal(t, 30*time.Second, cfg.SessionTTL.Duration)
	require.Equal(t, config.DefaultMemLimit, cfg.MemLimit)
	// Flags left at their defaults do not override the file.
	require.Equal(t, 32, cfg.Length)
	require.False(t, rootCmd.Flags().Lookup("zero-bits").Changed)
}

func TestDigestCommand(t *testing.T) {
	var out bytes.Buffer
	digestCmd.SetOut(&out)
	require.NoError(t, digestCmd.RunE(digestCmd, []string{"abc"}))
	// md5("abc") = 900150983cd24fb0d6963f7d28e17f72, printed as a
	// little-endian integer.
	require.Equal(t, "727fe1287d3f96d6b04fd23c98500190  \"abc\"\n", out.String())
}

func TestOpenQuotes(t *testing.T) {
	quotes, closeFn, err := openQuotes("")
	require.NoError(t, err)
	require.Equal(t, dataset.Builtin().Len(), quotes.Len())
	require.NoError(t, closeFn())

	_, _, err = openQuotes(t.TempDir())
	require.ErrorIs(t, err, dataset.ErrEmpty)
}

func TestServeFailsBeforeListening(t *testing.T) {
	t.Setenv("GLOG", "no")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := config.DefaultServer()
	cfg.Listen = addr
	cfg.P2PListen = "not-a-multiaddr"
	require.Error(t, serve(context.Background(), cfg))

	// The TCP listener was never started, so the port is still free.
	ln, err = net.Listen("tcp", addr)
	require.NoError(t, err)
	ln.Close()
}
