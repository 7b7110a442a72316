package server

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/xerrors"

	"powquote/codec"
	"powquote/core/pow"
	"powquote/dataset"
	"powquote/metrics"
	"powquote/wire"
)

// conn is the state of one client connection: waiting for a message,
// answering it, and waiting again.
type conn struct {
	srv      *Server
	rw       io.ReadWriter
	codec    *codec.Codec
	sessions *sessionStore
	next     uint32
	log      zerolog.Logger
}

func (c *conn) run() error {
	for {
		if err := c.armDeadline(); err != nil {
			return err
		}
		msg, err := c.codec.Read()
		if err != nil {
			return err
		}
		switch m := msg.(type) {
		case *wire.Request:
			err = c.handleRequest(m)
		case *wire.Solution:
			err = c.handleSolution(m)
		default:
			err = xerrors.Errorf("%s: %w", msg.Kind(), ErrUnexpectedMessage)
		}
		if err != nil {
			return err
		}
	}
}

func (c *conn) armDeadline() error {
	timeout := c.srv.cfg.IdleTimeout.Duration
	if timeout <= 0 {
		return nil
	}
	d, ok := c.rw.(deadliner)
	if !ok {
		return nil
	}
	return d.SetReadDeadline(time.Now().Add(timeout))
}

func (c *conn) handleRequest(req *wire.Request) error {
	p, err := pow.NewWithReader(pow.Config{
		Length:   c.srv.cfg.Length,
		ZeroBits: c.srv.cfg.ZeroBits,
	}, c.srv.entropy)
	if err != nil {
		return err
	}

	id := c.next
	c.sessions.add(id, &session{pow: p, number: req.Number})
	c.next++

	ev := c.log.Debug().Uint32("session", id).Str("challenge", pow.Fingerprint(p.Challenge()))
	if req.Number != nil {
		ev = ev.Uint64("number", *req.Number)
	}
	ev.Msg("challenge issued")
	c.srv.metrics.Challenge()

	_, err = c.codec.Write(&wire.Challenge{
		Session: id,
		String:  p.Challenge(),
		Target:  p.Target(),
	})
	return err
}

func (c *conn) handleSolution(sol *wire.Solution) error {
	sess, ok := c.sessions.get(sol.Session)
	if !ok {
		c.log.Info().Uint32("session", sol.Session).Msg("solution for unknown session")
		c.srv.metrics.Solution(metrics.ResultUnknownSession, 0)
		if err := c.reply(sol.Session, wire.Err(msgSessionNotFound)); err != nil {
			return err
		}
		return xerrors.Errorf("session %d: %w", sol.Session, ErrUnknownSession)
	}

	elapsed := sess.pow.Elapsed()
	if !sess.pow.Verify(sol.Nonce) {
		c.log.Info().Uint32("session", sol.Session).Str("nonce", sol.Nonce.String()).Msg("invalid solution")
		c.srv.metrics.Solution(metrics.ResultInvalid, elapsed)
		return c.reply(sol.Session, wire.Err(msgInvalidSolution))
	}

	c.sessions.remove(sol.Session)
	c.srv.metrics.Solution(metrics.ResultValid, elapsed)

	index := c.srv.rand.Uint64()
	if sess.number != nil {
		index = *sess.number
	}
	quote, err := dataset.Pick(c.srv.quotes, index)
	if err != nil {
		c.log.Error().Err(err).Uint64("index", index).Msg("cannot load quote")
		return c.reply(sol.Session, wire.Err(msgQuoteUnavailable))
	}

	c.log.Debug().Uint32("session", sol.Session).
		Dur("elapsed", elapsed).
		Uint64("index", index).
		Msg("solution accepted")
	return c.reply(sol.Session, wire.Ok(quote))
}

func (c *conn) reply(id uint32, result wire.Result) error {
	_, err := c.codec.Write(&wire.Response{Session: id, Result: result})
	return err
}
