// Package p2p carries the quote protocol over libp2p streams.
package p2p

import (
	"context"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"

	"powquote/server"
)

// ProtocolID names the quote protocol on libp2p streams.
const ProtocolID = protocol.ID("/powquote/1.0.0")

// Host is a libp2p node that can serve or dial the quote protocol.
type Host struct {
	host.Host
	log zerolog.Logger

	wg sync.WaitGroup
}

// NewHost starts a libp2p node listening on the given multiaddr, for example
// /ip4/0.0.0.0/tcp/4001.
func NewHost(listen string, log zerolog.Logger) (*Host, error) {
	opts := []libp2p.Option{}
	if listen != "" {
		opts = append(opts, libp2p.ListenAddrStrings(listen))
	} else {
		opts = append(opts, libp2p.NoListenAddrs)
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, xerrors.Errorf("p2p: new host: %w", err)
	}
	return &Host{Host: h, log: log.With().Str("peer", h.ID().String()).Logger()}, nil
}

// FullAddrs returns the listen addresses with the /p2p/<id> suffix that
// clients need for Dial.
func (h *Host) FullAddrs() []string {
	addrs := h.Addrs()
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, fmt.Sprintf("%s/p2p/%s", a, h.ID()))
	}
	return out
}

// Serve hands every inbound quote stream to srv until ctx is done. It
// returns once the handler is removed and every open stream has finished.
func (h *Host) Serve(ctx context.Context, srv *server.Server) error {
	var mu sync.Mutex
	closing := false
	h.SetStreamHandler(ProtocolID, func(s network.Stream) {
		mu.Lock()
		if closing {
			mu.Unlock()
			s.Reset()
			return
		}
		h.wg.Add(1)
		mu.Unlock()
		defer h.wg.Done()
		srv.ServeConn(ctx, s, s.Conn().RemotePeer().String())
	})
	for _, a := range h.FullAddrs() {
		h.log.Info().Str("addr", a).Msg("serving quotes over libp2p")
	}

	<-ctx.Done()
	h.RemoveStreamHandler(ProtocolID)
	mu.Lock()
	closing = true
	mu.Unlock()
	h.wg.Wait()
	return nil
}

// Dial connects to the peer in addr, a multiaddr ending in /p2p/<id>, and
// opens a quote stream.
func (h *Host) Dial(ctx context.Context, addr string) (network.Stream, error) {
	maddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return nil, xerrors.Errorf("p2p: invalid multiaddr %q: %w", addr, err)
	}
	pi, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return nil, xerrors.Errorf("p2p: invalid peer address %q: %w", addr, err)
	}
	if err := h.Connect(ctx, *pi); err != nil {
		return nil, xerrors.Errorf("p2p: connect %s: %w", pi.ID, err)
	}
	h.log.Debug().Str("remote", pi.ID.String()).Msg("connected")
	s, err := h.NewStream(ctx, pi.ID, ProtocolID)
	if err != nil {
		return nil, xerrors.Errorf("p2p: open stream to %s: %w", pi.ID, err)
	}
	return s, nil
}
