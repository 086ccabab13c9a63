// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"sync/atomic"

	"gitlab.com/jaxnet/cnoted/network/peer"
)

// getPeersMsg asks for the connected peers.
type getPeersMsg struct {
	reply chan []*serverPeer
}

// claimPeerIDMsg binds a remote node id to a connection unless another
// connection already carries it.
type claimPeerIDMsg struct {
	sp    *serverPeer
	id    uint64
	reply chan bool
}

// handleAddPeerMsg deals with adding new peers.  It is invoked from the
// peerHandler goroutine.
func (s *Server) handleAddPeerMsg(state *peerState, sp *serverPeer) bool {
	if sp == nil {
		return false
	}

	// Limit max number of total peers.
	if state.Count() >= s.cfg.MaxPeers {
		log.Info().Msgf("Max peers reached [%d] - disconnecting peer %s", s.cfg.MaxPeers, sp)
		sp.Disconnect()
		return false
	}

	log.Debug().Msgf("New peer %s", sp)
	switch {
	case sp.Inbound():
		state.inboundPeers[sp.ID()] = sp
	case sp.persistent:
		state.persistentPeers[sp.ID()] = sp
	default:
		state.outboundPeers[sp.ID()] = sp
	}
	return true
}

// handleDonePeerMsg deals with peers that have signalled they are done.  It is
// invoked from the peerHandler goroutine.
func (s *Server) handleDonePeerMsg(state *peerState, sp *serverPeer) {
	var list map[int32]*serverPeer
	switch {
	case sp.persistent:
		list = state.persistentPeers
	case sp.Inbound():
		list = state.inboundPeers
	default:
		list = state.outboundPeers
	}

	if _, ok := list[sp.ID()]; ok {
		delete(list, sp.ID())
		atomic.AddUint64(&s.bytesSent, sp.BytesSent())
		atomic.AddUint64(&s.bytesReceived, sp.BytesReceived())
		log.Debug().Msgf("Removed peer %s", sp)
	}
}

// handleBroadcastMsg deals with relaying notifications to synchronized peers.
// It is invoked from the peerHandler goroutine.
func (s *Server) handleBroadcastMsg(state *peerState, bmsg *broadcastMsg) {
	state.forAllPeers(func(sp *serverPeer) {
		if !sp.Connected() || sp.Peer == bmsg.exclude {
			return
		}
		if sp.State() != peer.StateNormal {
			return
		}
		sp.Notify(bmsg.command, bmsg.payload)
	})
}

// handleQuery answers queries about the connection set.  It is invoked from
// the peerHandler goroutine.
func (s *Server) handleQuery(state *peerState, querymsg interface{}) {
	switch msg := querymsg.(type) {
	case getPeersMsg:
		peers := make([]*serverPeer, 0, state.Count())
		state.forAllPeers(func(sp *serverPeer) {
			if !sp.Connected() {
				return
			}
			peers = append(peers, sp)
		})
		msg.reply <- peers

	case claimPeerIDMsg:
		inUse := false
		state.forAllPeers(func(sp *serverPeer) {
			if sp != msg.sp && sp.Connected() && sp.PeerID() == msg.id {
				inUse = true
			}
		})
		if !inUse {
			msg.sp.setPeerID(msg.id)
		}
		msg.reply <- !inUse
	}
}

// connectedPeers returns the connected peers.  Nothing is returned once the
// server is shutting down.
//
// This function is safe for concurrent access.
func (s *Server) connectedPeers() []*serverPeer {
	reply := make(chan []*serverPeer, 1)
	select {
	case s.query <- getPeersMsg{reply: reply}:
		return <-reply
	case <-s.quit:
		return nil
	}
}

// ConnectedCount returns the number of connected peers.
//
// This function is safe for concurrent access.
func (s *Server) ConnectedCount() int {
	return len(s.connectedPeers())
}

// claimPeerID binds id to sp unless another connection carries it.
func (s *Server) claimPeerID(sp *serverPeer, id uint64) bool {
	reply := make(chan bool, 1)
	select {
	case s.query <- claimPeerIDMsg{sp: sp, id: id, reply: reply}:
		return <-reply
	case <-s.quit:
		return false
	}
}
