// Package client fetches quotes from a quote server, solving the server's
// proof-of-work challenge on the way.
package client

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/rs/zerolog"
	"golang.org/x/xerrors"

	"powquote/codec"
	"powquote/core/config"
	"powquote/core/logging"
	"powquote/core/pow"
	"powquote/miner"
	"powquote/wire"
)

// ErrUnexpectedMessage is returned when the server answers out of turn.
var ErrUnexpectedMessage = xerrors.New("client: unexpected message")

// ResponseError is an Err result sent by the server.
type ResponseError struct {
	Session uint32
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("server rejected session %d: %s", e.Session, e.Message)
}

// Client runs request/solution rounds over one connection. It is not safe
// for concurrent use.
type Client struct {
	rw      io.ReadWriteCloser
	codec   *codec.Codec
	threads int
	log     zerolog.Logger
}

// Option customises a Client.
type Option func(*Client)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// Dial connects to cfg.Server over TCP.
func Dial(ctx context.Context, cfg config.Client, opts ...Option) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.Server)
	if err != nil {
		return nil, xerrors.Errorf("client: dial %s: %w", cfg.Server, err)
	}
	return NewFromStream(conn, cfg, opts...), nil
}

// NewFromStream wraps an established connection, such as a libp2p stream.
func NewFromStream(rw io.ReadWriteCloser, cfg config.Client, opts ...Option) *Client {
	c := &Client{
		rw:      rw,
		codec:   codec.New(rw, cfg.MemLimit),
		threads: cfg.Threads,
		log:     logging.New(cfg.LogLevel, "client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch requests quote number (nil for a random one), solves the challenge
// and returns the quote. A rejection by the server is a *ResponseError. If
// ctx ends while waiting on the server the connection is closed.
func (c *Client) Fetch(ctx context.Context, number *uint64) (string, error) {
	stop := context.AfterFunc(ctx, func() { c.rw.Close() })
	defer stop()

	quote, err := c.fetch(ctx, number)
	if err != nil && ctx.Err() != nil {
		return "", ctx.Err()
	}
	return quote, err
}

func (c *Client) fetch(ctx context.Context, number *uint64) (string, error) {
	if _, err := c.codec.Write(&wire.Request{Number: number}); err != nil {
		return "", err
	}
	msg, err := c.codec.Read()
	if err != nil {
		return "", xerrors.Errorf("client: waiting for challenge: %w", err)
	}
	ch, ok := msg.(*wire.Challenge)
	if !ok {
		return "", xerrors.Errorf("got %s instead of a challenge: %w", msg.Kind(), ErrUnexpectedMessage)
	}

	log := c.log.With().Uint32("session", ch.Session).Str("challenge", pow.Fingerprint(ch.String)).Logger()
	log.Debug().Int("zero_bits", ch.Target.LeadingZeros()).Msg("solving")

	nonce, stats, err := miner.SolveWithStats(ctx, ch.String, ch.Target, c.threads)
	if err != nil {
		return "", err
	}
	log.Debug().
		Str("nonce", nonce.String()).
		Uint64("attempts", stats.Attempts).
		Dur("took", stats.Duration).
		Str("rate", fmt.Sprintf("%.1f kH/s", stats.Rate()/1e3)).
		Msg("solved")

	if _, err := c.codec.Write(&wire.Solution{Session: ch.Session, Nonce: nonce}); err != nil {
		return "", err
	}
	msg, err = c.codec.Read()
	if err != nil {
		return "", xerrors.Errorf("client: waiting for response: %w", err)
	}
	resp, ok := msg.(*wire.Response)
	if !ok {
		return "", xerrors.Errorf("got %s instead of a response: %w", msg.Kind(), ErrUnexpectedMessage)
	}
	if resp.Session != ch.Session {
		return "", xerrors.Errorf("response for session %d, expected %d: %w", resp.Session, ch.Session, ErrUnexpectedMessage)
	}
	if resp.Result.Err {
		return "", &ResponseError{Session: resp.Session, Message: resp.Result.Text}
	}
	return resp.Result.Text, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.rw.Close()
}
