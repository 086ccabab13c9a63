// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"context"
	"fmt"
	"sync/atomic"

	"gitlab.com/jaxnet/cnoted/network/levin"
	"gitlab.com/jaxnet/cnoted/network/netsync"
	"gitlab.com/jaxnet/cnoted/network/peer"
)

// serverPeer extends the peer to maintain state shared by the server and
// the protocol handler.
type serverPeer struct {
	// The following variables must only be used atomically.
	remotePeerID uint64

	*peer.Peer

	server     *Server
	persistent bool

	// addr is the address an outbound peer was dialed at, nil for inbound
	// peers and seeds given by name.
	addr *NetworkAddress
}

// newServerPeer returns a new serverPeer instance. The peer needs to be set by
// the caller.
func newServerPeer(server *Server, persistent bool, addr *NetworkAddress) *serverPeer {
	return &serverPeer{
		server:     server,
		persistent: persistent,
		addr:       addr,
	}
}

// newPeerConfig returns the configuration for the peer.Peer.
func (sp *serverPeer) newPeerConfig() *peer.Config {
	params := &sp.server.params.P2P
	return &peer.Config{
		MaxPacketSize: params.MaxPacketSize,
		Version:       params.Version,
		InvokeTimeout: params.InvokeTimeout,
		OnRequest:     sp.onRequest,
		OnCallback:    sp.server.syncManager.OnCallback,
	}
}

// PeerID returns the id the remote node announced, zero before the
// handshake.
func (sp *serverPeer) PeerID() uint64 {
	return atomic.LoadUint64(&sp.remotePeerID)
}

func (sp *serverPeer) setPeerID(id uint64) {
	atomic.StoreUint64(&sp.remotePeerID, id)
}

// onRequest dispatches inbound requests to the node server handlers and
// everything else to the protocol handler.
func (sp *serverPeer) onRequest(p *peer.Peer, msg *levin.Message) ([]byte, int32, error) {
	switch msg.Header.Command {
	case CmdHandshake:
		return sp.onHandshake(msg)
	case CmdTimedSync:
		return sp.onTimedSync(msg)
	case CmdPing:
		return sp.onPing(msg)
	}

	if netsync.IsProtocolCommand(msg.Header.Command) {
		if msg.Header.ExpectResponse {
			return nil, 0, fmt.Errorf("command %d must be a notification", msg.Header.Command)
		}
		return nil, levin.ReturnOK, sp.server.syncManager.HandleMessage(p, msg)
	}

	log.Debug().Str("peer", sp.String()).Uint32("command", msg.Header.Command).
		Msg("unknown command")
	return nil, levin.ErrConnectionHandlerNotDefined, nil
}

// invoke sends a request message and decodes its response into resp.
func (sp *serverPeer) invoke(ctx context.Context, command uint32, req, resp netsync.Message) error {
	payload, err := netsync.EncodePayload(req)
	if err != nil {
		return err
	}
	respPayload, err := sp.Invoke(ctx, command, payload)
	if err != nil {
		return err
	}
	return netsync.DecodePayload(respPayload, resp)
}

// respond encodes a response message.
func respond(m netsync.Message) ([]byte, int32, error) {
	payload, err := netsync.EncodePayload(m)
	if err != nil {
		return nil, levin.ErrFormat, err
	}
	return payload, levin.ReturnOK, nil
}
