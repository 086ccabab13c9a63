// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"context"
	"net"
	"strconv"

	"github.com/lightningnetwork/lnd/ticker"

	"gitlab.com/jaxnet/cnoted/network/peer"
)

// connectionHandler keeps the outbound connection set filled until ctx is
// done.
func (s *Server) connectionHandler(ctx context.Context) {
	if s.cfg.DisableOutbound {
		return
	}

	t := ticker.New(connectionRetryInterval)
	t.Resume()
	defer t.Stop()

	for {
		s.connectPeers(ctx)

		select {
		case <-t.Ticks():
		case <-ctx.Done():
			return
		}
	}
}

// connectPeers makes one round of outbound connection attempts.  Exclusive
// peers replace every other source.  Otherwise priority peers come first,
// seeds are used while both peer lists are empty, then white and gray list
// entries fill the remaining outbound slots.
func (s *Server) connectPeers(ctx context.Context) {
	connected := make(map[string]struct{})
	peerIDs := make(map[uint64]struct{})
	outbound := 0
	for _, sp := range s.connectedPeers() {
		connected[sp.Addr()] = struct{}{}
		if sp.addr != nil {
			connected[sp.addr.String()] = struct{}{}
		}
		if id := sp.PeerID(); id != 0 {
			peerIDs[id] = struct{}{}
		}
		if !sp.Inbound() {
			outbound++
		}
	}

	connectList := func(addrs []string) {
		for _, addr := range addrs {
			if ctx.Err() != nil {
				return
			}
			addr = s.normalizeAddress(addr)
			if _, ok := connected[addr]; ok {
				continue
			}
			if err := s.connect(ctx, addr, nil, true); err != nil {
				log.Debug().Err(err).Str("addr", addr).Msg("Cannot connect to peer")
			}
		}
	}

	if len(s.cfg.ExclusivePeers) > 0 {
		connectList(s.cfg.ExclusivePeers)
		return
	}
	connectList(s.cfg.PriorityPeers)

	whiteCount, grayCount := s.peerManager.Counts()
	if whiteCount+grayCount == 0 && outbound == 0 {
		seeds := s.cfg.Seeds
		if len(seeds) == 0 {
			seeds = s.params.Seeds
		}
		for _, seed := range seeds {
			if ctx.Err() != nil {
				return
			}
			if err := s.connect(ctx, s.normalizeAddress(seed), nil, false); err != nil {
				log.Debug().Err(err).Str("seed", seed).Msg("Cannot connect to seed")
				continue
			}
			outbound++
		}
	}

	skip := func(e PeerlistEntry) bool {
		if _, ok := connected[e.Address.String()]; ok {
			return true
		}
		_, ok := peerIDs[e.ID]
		return ok
	}

	for _, e := range s.peerManager.White() {
		if outbound >= s.cfg.MaxOutbound || ctx.Err() != nil {
			return
		}
		if skip(e) {
			continue
		}
		addr := e.Address
		if err := s.connect(ctx, addr.String(), &addr, false); err != nil {
			log.Debug().Err(err).Str("addr", addr.String()).Msg("Cannot connect to white peer")
			continue
		}
		connected[addr.String()] = struct{}{}
		outbound++
	}

	grayList := s.peerManager.Gray()
	for tries := 0; tries < len(grayList) && outbound < s.cfg.MaxOutbound; tries++ {
		if ctx.Err() != nil {
			return
		}
		e := grayList[randomUint16Number(uint16(minInt(len(grayList), 0xffff)))]
		if skip(e) {
			continue
		}
		addr := e.Address
		if err := s.connect(ctx, addr.String(), &addr, false); err != nil {
			log.Debug().Err(err).Str("addr", addr.String()).Msg("Cannot connect to gray peer")
			s.peerManager.RemoveGray(addr)
			continue
		}
		connected[addr.String()] = struct{}{}
		outbound++
	}
}

// connect dials addr and performs the handshake.
func (s *Server) connect(ctx context.Context, addr string, na *NetworkAddress, persistent bool) error {
	conn, err := s.dial(addr)
	if err != nil {
		return err
	}
	if na == nil {
		if parsed, err := ParseNetworkAddress(addr); err == nil {
			na = &parsed
		}
	}
	_, err = s.outboundPeerConnected(ctx, conn, na, persistent)
	return err
}

// dial connects to addr using the configured dialer, the SOCKS proxy when one
// is set up.
func (s *Server) dial(addr string) (net.Conn, error) {
	if s.cfg.Dial != nil {
		return s.cfg.Dial("tcp", addr, s.cfg.ConnectTimeout)
	}
	return net.DialTimeout("tcp", addr, s.cfg.ConnectTimeout)
}

// normalizeAddress adds the default port to addresses given without one.
func (s *Server) normalizeAddress(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return net.JoinHostPort(addr, strconv.Itoa(int(s.params.DefaultPort)))
	}
	return addr
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// tryPingBack checks that a node which connected in accepts connections at
// addr, and records it in the white list if so.
func (s *Server) tryPingBack(addr NetworkAddress, id uint64) {
	conn, err := s.dial(addr.String())
	if err != nil {
		log.Debug().Err(err).Str("addr", addr.String()).Msg("Ping back failed")
		return
	}

	params := &s.params.P2P
	p := peer.NewOutboundPeer(&peer.Config{
		MaxPacketSize: params.MaxPacketSize,
		Version:       params.Version,
		InvokeTimeout: params.PingTimeout,
	}, conn)
	p.Start()
	defer p.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), params.PingTimeout)
	defer cancel()
	if err = ping(ctx, p, id); err != nil {
		log.Debug().Err(err).Str("addr", addr.String()).Msg("Ping back failed")
		return
	}

	s.peerManager.AppendWhite(PeerlistEntry{Address: addr, ID: id, LastSeen: s.clock.Now().Unix()})
}
