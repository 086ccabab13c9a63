// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2018 The Decred developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	"golang.org/x/sync/errgroup"

	"gitlab.com/jaxnet/cnoted/network/netsync"
	"gitlab.com/jaxnet/cnoted/network/peer"
	"gitlab.com/jaxnet/cnoted/types/chaincfg"
)

// broadcastMsg provides the ability to house a notification to be broadcast
// to all synchronized peers except the one it came from.
type broadcastMsg struct {
	command uint32
	payload []byte
	exclude *peer.Peer
}

// ServerOpts holds the optional dependencies of the server.
type ServerOpts struct {
	// PeerStorePath is the file the peer lists are kept in.  Empty keeps
	// them in memory only.
	PeerStorePath string

	// Clock provides the local time of handshakes.  Nil uses the system
	// clock.
	Clock clock.Clock
}

// Server is the node server.  It accepts and dials connections, runs the
// handshake and timed sync with every node and hands the protocol messages
// to the sync manager.
type Server struct {
	// The following variables must only be used atomically.
	// Putting the uint64s first makes them 64-bit aligned for 32-bit systems.
	bytesReceived uint64 // Total bytes received from peers gone since start.
	bytesSent     uint64 // Total bytes sent to peers gone since start.
	started       int32

	cfg         *Config
	params      *chaincfg.Params
	clock       clock.Clock
	storePath   string
	myPort      uint32
	listeners   []net.Listener
	syncManager *netsync.SyncManager
	peerManager *PeerManager

	newPeers  chan *serverPeer
	donePeers chan *serverPeer
	query     chan interface{}
	broadcast chan broadcastMsg
	wg        sync.WaitGroup
	quit      chan struct{}
}

// NewServer returns a node server for the network described by params.  The
// peer lists are loaded from opts.PeerStorePath and the listeners are
// opened, use Run to begin accepting connections.
func NewServer(cfg *Config, params *chaincfg.Params, chain netsync.Chain, txPool netsync.TxPool,
	opts ServerOpts) (*Server, error) {
	c := *cfg
	if c.MaxOutbound <= 0 {
		c.MaxOutbound = params.P2P.OutboundConnections
		if c.MaxOutbound <= 0 {
			c.MaxOutbound = defaultTargetOutbound
		}
	}
	if c.MaxPeers <= 0 {
		c.MaxPeers = defaultMaxPeers
	}
	if c.MaxPeers < c.MaxOutbound {
		c.MaxOutbound = c.MaxPeers
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = params.P2P.ConnectTimeout
	}
	if c.HandshakeInterval <= 0 {
		c.HandshakeInterval = params.P2P.HandshakeInterval
	}

	s := &Server{
		cfg:         &c,
		params:      params,
		clock:       opts.Clock,
		storePath:   opts.PeerStorePath,
		peerManager: NewPeerManager(params.P2P.WhiteListSize, params.P2P.GrayListSize, c.AllowLocalIP),

		newPeers:  make(chan *serverPeer, c.MaxPeers),
		donePeers: make(chan *serverPeer, c.MaxPeers),
		query:     make(chan interface{}),
		broadcast: make(chan broadcastMsg, c.MaxPeers),
		quit:      make(chan struct{}),
	}
	if s.clock == nil {
		s.clock = clock.NewDefaultClock()
	}

	if s.storePath != "" {
		if err := s.peerManager.Load(s.storePath); err != nil {
			log.Warn().Err(err).Str("path", s.storePath).Msg("Cannot load peer lists, starting empty")
		}
	}
	if s.peerManager.PeerID() == 0 {
		s.peerManager.SetPeerID(randomPeerID())
	}

	s.syncManager = netsync.New(&netsync.Config{
		Chain:             chain,
		TxPool:            txPool,
		PeerNotifier:      s,
		BlockIDsSyncCount: params.P2P.BlockIDsSyncCount,
		BlocksSyncCount:   params.P2P.BlocksSyncCount,
	})

	if !c.DisableListen {
		addrs := c.Listeners
		if len(addrs) == 0 {
			addrs = []string{net.JoinHostPort("", strconv.Itoa(int(params.DefaultPort)))}
		}
		listeners, err := initListeners(addrs)
		if err != nil {
			return nil, err
		}
		if len(listeners) == 0 {
			return nil, errors.New("no valid listen address")
		}
		s.listeners = listeners
		if !c.HideMyPort {
			if tcpAddr, ok := listeners[0].Addr().(*net.TCPAddr); ok {
				s.myPort = uint32(tcpAddr.Port)
			}
		}
	}

	return s, nil
}

// SyncManager returns the protocol handler driven by the server.
func (s *Server) SyncManager() *netsync.SyncManager {
	return s.syncManager
}

// PeerManager returns the peer lists of the server.
func (s *Server) PeerManager() *PeerManager {
	return s.peerManager
}

// Run accepts and makes connections until ctx is done, then disconnects
// every peer and writes the peer lists out.
func (s *Server) Run(ctx context.Context) error {
	// Already started?
	if atomic.AddInt32(&s.started, 1) != 1 {
		return errors.New("server already started")
	}

	log.Info().Uint64("peer_id", s.peerManager.PeerID()).Uint32("port", s.myPort).
		Msg("Starting node server")

	// Start the peer handler which tracks the connection set.
	s.wg.Add(1)
	go s.peerHandler()

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range s.listeners {
		listener := l
		g.Go(func() error {
			s.listenHandler(gctx, listener)
			return nil
		})
	}
	g.Go(func() error {
		s.connectionHandler(gctx)
		return nil
	})
	g.Go(func() error {
		s.timedSyncHandler(gctx)
		return nil
	})
	g.Go(func() error {
		s.peerStoreHandler(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		for _, listener := range s.listeners {
			if err := listener.Close(); err != nil {
				log.Error().Err(err).Str("addr", listener.Addr().String()).Msg("Cannot close listener")
			}
		}
		return nil
	})
	err := g.Wait()

	// Signal the remaining goroutines to quit.
	close(s.quit)
	s.wg.Wait()

	if saveErr := s.savePeerStore(); saveErr != nil && err == nil {
		err = saveErr
	}
	log.Info().Msg("Node server stopped")
	return err
}

// AttachConn runs the node protocol over an established connection.  For an
// outbound connection it performs the handshake before returning.
func (s *Server) AttachConn(ctx context.Context, conn net.Conn, inbound bool) error {
	if inbound {
		s.inboundPeerConnected(conn)
		return nil
	}
	_, err := s.outboundPeerConnected(ctx, conn, nil, false)
	return err
}

// RelayMessage notifies every synchronized connection except exclude.  It
// implements netsync.PeerNotifier.
//
// This function is safe for concurrent access.
func (s *Server) RelayMessage(command uint32, payload []byte, exclude *peer.Peer) {
	select {
	case s.broadcast <- broadcastMsg{command: command, payload: payload, exclude: exclude}:
	case <-s.quit:
	}
}

// nodeData describes this node in handshakes.
func (s *Server) nodeData() NodeData {
	return NodeData{
		NetworkID: s.params.NetworkID,
		Version:   p2pVersion,
		LocalTime: s.clock.Now().Unix(),
		MyPort:    s.myPort,
		PeerID:    s.peerManager.PeerID(),
	}
}

// handleRemotePeerlist shifts a gossiped peer list into local time and merges
// it into the gray list.  A list with entries from the future is refused.
func (s *Server) handleRemotePeerlist(entries []PeerlistEntry, remoteTime int64) error {
	fixed, err := FixTimeDelta(entries, s.clock.Now().Unix(), remoteTime)
	if err != nil {
		return err
	}
	s.peerManager.Merge(fixed)
	return nil
}

// inboundPeerConnected initializes a server peer for an accepted connection
// and starts a goroutine to wait for its disconnection.
func (s *Server) inboundPeerConnected(conn net.Conn) {
	sp := newServerPeer(s, false, nil)
	sp.Peer = peer.NewInboundPeer(sp.newPeerConfig(), conn)
	s.startPeer(sp)
}

// outboundPeerConnected initializes a server peer for a dialed connection and
// performs the handshake.  addr is the listening address of the remote node
// when known.
func (s *Server) outboundPeerConnected(ctx context.Context, conn net.Conn, addr *NetworkAddress,
	persistent bool) (*serverPeer, error) {
	sp := newServerPeer(s, persistent, addr)
	sp.Peer = peer.NewOutboundPeer(sp.newPeerConfig(), conn)
	s.startPeer(sp)

	ctx, cancel := context.WithTimeout(ctx, s.params.P2P.InvokeTimeout)
	defer cancel()
	if err := sp.handshake(ctx); err != nil {
		log.Debug().Err(err).Str("peer", sp.String()).Msg("Handshake failed")
		sp.Disconnect()
		return nil, err
	}
	return sp, nil
}

func (s *Server) startPeer(sp *serverPeer) {
	select {
	case s.newPeers <- sp:
	case <-s.quit:
		sp.Disconnect()
		return
	}
	sp.Start()
	go s.peerDoneHandler(sp)
}

// peerDoneHandler handles peer disconnects by notifying the sync manager and
// the server that it's done.
func (s *Server) peerDoneHandler(sp *serverPeer) {
	sp.WaitForDisconnect()
	s.syncManager.OnDisconnect(sp.Peer)

	select {
	case s.donePeers <- sp:
	case <-s.quit:
	}
}

// peerHandler is used to handle peer operations such as adding and removing
// peers to and from the server and broadcasting messages to peers.  It must
// be run in a goroutine.
func (s *Server) peerHandler() {
	log.Trace().Msg("Starting peer handler")
	state := newPeerState()

out:
	for {
		select {
		// New peers connected to the server.
		case sp := <-s.newPeers:
			s.handleAddPeerMsg(state, sp)

		// Disconnected peers.
		case sp := <-s.donePeers:
			s.handleDonePeerMsg(state, sp)

		// Notification to relay to synchronized peers.
		case bmsg := <-s.broadcast:
			s.handleBroadcastMsg(state, &bmsg)

		case qmsg := <-s.query:
			s.handleQuery(state, qmsg)

		case <-s.quit:
			// Disconnect all peers on server shutdown.
			state.forAllPeers(func(sp *serverPeer) {
				log.Trace().Str("peer", sp.String()).Msg("Shutdown peer")
				sp.Disconnect()
			})
			break out
		}
	}

	// Drain channels before exiting so nothing is left waiting around
	// to send.
cleanup:
	for {
		select {
		case sp := <-s.newPeers:
			sp.Disconnect()
		case <-s.donePeers:
		case <-s.broadcast:
		default:
			break cleanup
		}
	}
	s.wg.Done()
	log.Trace().Msg("Peer handler done")
}

// listenHandler accepts incoming connections on listener until ctx is done.
func (s *Server) listenHandler(ctx context.Context, listener net.Listener) {
	log.Info().Str("addr", listener.Addr().String()).Msg("Server listening")
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Str("addr", listener.Addr().String()).Msg("Can't accept connection")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		s.inboundPeerConnected(conn)
	}
}

// timedSyncHandler refreshes the chain summary of every connection past its
// handshake once per handshake interval.
func (s *Server) timedSyncHandler(ctx context.Context) {
	t := ticker.New(s.cfg.HandshakeInterval)
	t.Resume()
	defer t.Stop()

	for {
		select {
		case <-t.Ticks():
		case <-ctx.Done():
			return
		}

		for _, sp := range s.connectedPeers() {
			if sp.PeerID() == 0 {
				continue
			}
			go func(sp *serverPeer) {
				ctx, cancel := context.WithTimeout(ctx, s.params.P2P.InvokeTimeout)
				defer cancel()
				if err := sp.timedSync(ctx); err != nil {
					log.Debug().Err(err).Str("peer", sp.String()).Msg("Timed sync failed")
					sp.Disconnect()
				}
			}(sp)
		}
	}
}

// peerStoreHandler writes the peer lists out periodically.
func (s *Server) peerStoreHandler(ctx context.Context) {
	if s.storePath == "" {
		return
	}
	t := ticker.New(peerStoreSaveInterval)
	t.Resume()
	defer t.Stop()

	for {
		select {
		case <-t.Ticks():
			if err := s.savePeerStore(); err != nil {
				log.Error().Err(err).Msg("Cannot save peer lists")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) savePeerStore() error {
	if s.storePath == "" {
		return nil
	}
	return s.peerManager.Save(s.storePath)
}

// Stats reports the connection set and traffic counters.
func (s *Server) Stats() Stats {
	white, gray := s.peerManager.Counts()
	st := Stats{
		WhitePeers:     white,
		GrayPeers:      gray,
		ObservedHeight: s.syncManager.ObservedHeight(),
		BytesSent:      atomic.LoadUint64(&s.bytesSent),
		BytesReceived:  atomic.LoadUint64(&s.bytesReceived),
	}
	for _, sp := range s.connectedPeers() {
		if sp.Inbound() {
			st.Inbound++
		} else {
			st.Outbound++
		}
		st.BytesSent += sp.BytesSent()
		st.BytesReceived += sp.BytesReceived()
	}
	return st
}

// Stats is a snapshot of the server counters.
type Stats struct {
	Inbound        int
	Outbound       int
	WhitePeers     int
	GrayPeers      int
	ObservedHeight uint32
	BytesSent      uint64
	BytesReceived  uint64
}
