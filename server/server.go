// Package server hands out quotes to clients that solve a proof-of-work
// challenge first.
//
// Each connection runs its own request/solution loop with a private session
// store; nothing but the quote collection and the metrics is shared between
// connections.
package server

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	mrand "math/rand/v2"
	"net"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"

	"powquote/codec"
	"powquote/core/config"
	"powquote/core/logging"
	"powquote/dataset"
	"powquote/metrics"
	"powquote/wire"
)

var (
	// ErrUnexpectedMessage ends a connection that sent a Challenge or a
	// Response.
	ErrUnexpectedMessage = xerrors.New("server: unexpected message kind")
	// ErrUnknownSession ends a connection that answered a session the server
	// does not hold.
	ErrUnknownSession = xerrors.New("server: session not found")
)

// Reply texts sent in Err results.
const (
	msgSessionNotFound  = "session not found"
	msgInvalidSolution  = "provided solution is invalid"
	msgQuoteUnavailable = "quote unavailable"
)

// Rand picks quote indices for requests that do not name one.
type Rand interface {
	Uint64() uint64
}

type randFunc func() uint64

func (f randFunc) Uint64() uint64 { return f() }

// Server serves quotes behind proof-of-work challenges.
type Server struct {
	cfg     config.Server
	quotes  dataset.Collection
	rand    Rand
	entropy io.Reader
	log     zerolog.Logger
	metrics *metrics.Collectors

	wg sync.WaitGroup
}

// Option customises a Server.
type Option func(*Server)

// WithRand replaces the source of random quote indices.
func WithRand(r Rand) Option {
	return func(s *Server) { s.rand = r }
}

// WithEntropy replaces the source of challenge bytes.
func WithEntropy(r io.Reader) Option {
	return func(s *Server) { s.entropy = r }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithMetrics records connection and solution events in c.
func WithMetrics(c *metrics.Collectors) Option {
	return func(s *Server) { s.metrics = c }
}

// New validates cfg and returns a server over quotes.
func New(cfg config.Server, quotes dataset.Collection, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if quotes == nil || quotes.Len() == 0 {
		return nil, xerrors.Errorf("server: %w", dataset.ErrEmpty)
	}
	s := &Server{
		cfg:     cfg,
		quotes:  quotes,
		rand:    randFunc(mrand.Uint64),
		entropy: rand.Reader,
		log:     logging.New(cfg.LogLevel, "server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ListenAndServe listens on the configured TCP address and serves until ctx
// is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Listen)
	if err != nil {
		return xerrors.Errorf("server: listen %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is done or Accept fails. It
// closes ln and waits for the connection goroutines before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).
		Uint8("zero_bits", s.cfg.ZeroBits).
		Int("length", s.cfg.Length).
		Int("quotes", s.quotes.Len()).
		Msg("listening")

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer s.wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return xerrors.Errorf("server: accept: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(ctx, conn, conn.RemoteAddr().String())
		}()
	}
}

// ServeConn runs the session loop on rw until the peer leaves, misbehaves or
// ctx is done, then closes rw. A clean close by the peer returns nil.
func (s *Server) ServeConn(ctx context.Context, rw io.ReadWriteCloser, remote string) error {
	log := s.log.With().Str("conn", xid.New().String()).Str("remote", remote).Logger()
	done := s.metrics.ConnOpened()
	defer done()

	stop := context.AfterFunc(ctx, func() { rw.Close() })
	defer stop()
	defer rw.Close()

	store, err := newSessionStore(s.cfg.SessionLimit, s.cfg.SessionTTL.Duration)
	if err != nil {
		return xerrors.Errorf("server: session store: %w", err)
	}
	c := &conn{
		srv:      s,
		rw:       rw,
		codec:    codec.New(rw, s.cfg.MemLimit),
		sessions: store,
		log:      log,
	}

	log.Debug().Msg("connected")
	err = c.run()
	switch {
	case err == nil || errors.Is(err, io.EOF):
		log.Debug().Msg("disconnected")
		return nil
	case ctx.Err() != nil:
		log.Debug().Msg("shutting down")
		return nil
	}

	class := classify(err)
	s.metrics.ConnError(class)
	log.Warn().Err(err).Str("class", class).Msg("connection closed")
	return err
}

func classify(err error) string {
	switch {
	case errors.Is(err, codec.ErrMemoryLimit):
		return metrics.ClassMemLimit
	case errors.Is(err, wire.ErrDecode):
		return metrics.ClassDecode
	case errors.Is(err, ErrUnexpectedMessage), errors.Is(err, ErrUnknownSession):
		return metrics.ClassProtocol
	default:
		return metrics.ClassTransport
	}
}

// deadliner is implemented by net.Conn and libp2p streams.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}
