// Package config holds the startup configuration of both peers.
//
// Values start from the defaults below, are overridden by an optional TOML
// file and finally by command-line flags.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/xerrors"
)

// Defaults shared by the server and the client.
const (
	DefaultListen       = "127.0.0.1:7878"
	DefaultZeroBits     = 20
	DefaultLength       = 16
	DefaultMemLimit     = 4096
	DefaultSessionLimit = 64
	DefaultSessionTTL   = 5 * time.Minute
	DefaultThreads      = 4
)

// Duration lets TOML files spell durations as strings ("30s", "5m").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Server configures the quote daemon.
type Server struct {
	// Listen is the TCP address for incoming connections.
	Listen string `toml:"listen"`
	// ZeroBits is the number of leading zero bits required of a solution.
	ZeroBits uint8 `toml:"zero-bits"`
	// Length is the challenge string length in bytes.
	Length int `toml:"length"`
	// MemLimit caps the payload bytes buffered for a single message.
	MemLimit int `toml:"memlimit"`
	// SessionLimit bounds the outstanding challenges kept per connection.
	SessionLimit int `toml:"session-limit"`
	// SessionTTL expires challenges that were never answered.
	SessionTTL Duration `toml:"session-ttl"`
	// IdleTimeout bounds each read; zero leaves idle connections open.
	IdleTimeout Duration `toml:"idle-timeout"`
	// MetricsListen enables the Prometheus endpoint when non-empty.
	MetricsListen string `toml:"metrics-listen"`
	// P2PListen enables the libp2p transport when non-empty (a multiaddr).
	P2PListen string `toml:"p2p-listen"`
	// QuotesDir selects a badger quote store; empty uses the built-in list.
	QuotesDir string `toml:"quotes-dir"`
	// LogLevel is a zerolog level name.
	LogLevel string `toml:"log-level"`
}

// Client configures the quote client.
type Client struct {
	// Server is the TCP address of the daemon.
	Server string `toml:"server"`
	// Peer is a full libp2p multiaddr (with /p2p/<id>); it wins over Server.
	Peer string `toml:"peer"`
	// Threads is the number of solver goroutines.
	Threads int `toml:"threads"`
	// MemLimit caps the payload bytes buffered for a single message.
	MemLimit int `toml:"memlimit"`
	// Quote requests a specific quote index; negative means random.
	Quote int64 `toml:"quote"`
	// Count is the number of quotes fetched over one connection.
	Count int `toml:"count"`
	// LogLevel is a zerolog level name.
	LogLevel string `toml:"log-level"`
}

// DefaultServer returns the server configuration used when nothing is set.
func DefaultServer() Server {
	return Server{
		Listen:       DefaultListen,
		ZeroBits:     DefaultZeroBits,
		Length:       DefaultLength,
		MemLimit:     DefaultMemLimit,
		SessionLimit: DefaultSessionLimit,
		SessionTTL:   Duration{DefaultSessionTTL},
		LogLevel:     "info",
	}
}

// DefaultClient returns the client configuration used when nothing is set.
func DefaultClient() Client {
	return Client{
		Server:   DefaultListen,
		Threads:  DefaultThreads,
		MemLimit: DefaultMemLimit,
		Quote:    -1,
		Count:    1,
		LogLevel: "info",
	}
}

// LoadServer applies the TOML file at path on top of the defaults. An empty
// path returns the defaults.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()
	if err := load(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadClient applies the TOML file at path on top of the defaults.
func LoadClient(path string) (Client, error) {
	cfg := DefaultClient()
	if err := load(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func load(path string, v interface{}) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return xerrors.Errorf("cannot read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, v); err != nil {
		return xerrors.Errorf("parse error in %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (s Server) Validate() error {
	switch {
	case s.Listen == "" && s.P2PListen == "":
		return xerrors.New("config: no listen address")
	case s.Length < 0:
		return xerrors.Errorf("config: negative challenge length %d", s.Length)
	case s.MemLimit <= 0:
		return xerrors.Errorf("config: memlimit must be positive, got %d", s.MemLimit)
	case s.SessionLimit <= 0:
		return xerrors.Errorf("config: session-limit must be positive, got %d", s.SessionLimit)
	}
	return nil
}

// Validate rejects settings the client cannot run with.
func (c Client) Validate() error {
	switch {
	case c.Server == "" && c.Peer == "":
		return xerrors.New("config: no server address")
	case c.Threads <= 0:
		return xerrors.Errorf("config: threads must be positive, got %d", c.Threads)
	case c.MemLimit <= 0:
		return xerrors.Errorf("config: memlimit must be positive, got %d", c.MemLimit)
	case c.Count <= 0:
		return xerrors.Errorf("config: count must be positive, got %d", c.Count)
	}
	return nil
}
