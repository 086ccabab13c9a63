// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"context"
	"errors"
	"fmt"

	"gitlab.com/jaxnet/cnoted/network/levin"
	"gitlab.com/jaxnet/cnoted/network/netsync"
	"gitlab.com/jaxnet/cnoted/network/peer"
)

var (
	errWrongNetwork     = errors.New("node is on another network")
	errSelfConnection   = errors.New("connected to self")
	errDuplicatePeer    = errors.New("node is already connected")
	errRepeatHandshake  = errors.New("handshake on a connection past its handshake")
	errNoHandshake      = errors.New("request before handshake")
	errUnreachablePeer  = errors.New("node did not answer the ping back")
	errUnexpectedPeerID = errors.New("ping answered by another node")
)

// handshake opens an outbound connection: it exchanges node and chain data,
// merges the returned peer list and records the remote node as reachable.
func (sp *serverPeer) handshake(ctx context.Context) error {
	s := sp.server
	req := HandshakeRequest{NodeData: s.nodeData(), PayloadData: s.syncManager.GetPayloadSyncData()}
	var resp HandshakeResponse
	if err := sp.invoke(ctx, CmdHandshake, &req, &resp); err != nil {
		return err
	}

	if resp.NodeData.NetworkID != s.params.NetworkID {
		return errWrongNetwork
	}
	if err := s.handleRemotePeerlist(resp.LocalPeerlist, resp.NodeData.LocalTime); err != nil {
		return err
	}
	if err := sp.bindPeerID(resp.NodeData.PeerID, resp.NodeData); err != nil {
		return err
	}

	s.syncManager.ProcessPayloadSyncData(sp.Peer, &resp.PayloadData, true)
	if sp.addr != nil {
		s.peerManager.AppendWhite(PeerlistEntry{
			Address:  *sp.addr,
			ID:       resp.NodeData.PeerID,
			LastSeen: s.clock.Now().Unix(),
		})
	}

	log.Debug().Str("peer", sp.String()).Uint32("remote_height", resp.PayloadData.CurrentHeight).
		Msg("handshake complete")
	sp.ProcessCallback()
	return nil
}

// bindPeerID records the remote node id, refusing this node's own id and
// ids bound to another connection.
func (sp *serverPeer) bindPeerID(id uint64, nd NodeData) error {
	s := sp.server
	if id == s.peerManager.PeerID() {
		return errSelfConnection
	}
	if !s.claimPeerID(sp, id) {
		return errDuplicatePeer
	}

	ctx := sp.Context()
	ctx.PeerID = id
	ctx.RemotePort = nd.MyPort
	ctx.Version = nd.Version
	return nil
}

func (sp *serverPeer) onHandshake(msg *levin.Message) ([]byte, int32, error) {
	s := sp.server
	var req HandshakeRequest
	if err := netsync.DecodePayload(msg.Payload, &req); err != nil {
		return nil, levin.ErrFormat, err
	}

	if req.NodeData.NetworkID != s.params.NetworkID {
		return nil, levin.ErrFormat, errWrongNetwork
	}
	if sp.PeerID() != 0 {
		return nil, levin.ErrFormat, errRepeatHandshake
	}
	if err := sp.bindPeerID(req.NodeData.PeerID, req.NodeData); err != nil {
		return nil, levin.ErrFormat, err
	}

	s.syncManager.ProcessPayloadSyncData(sp.Peer, &req.PayloadData, true)

	if req.NodeData.MyPort != 0 {
		if ip := sp.RemoteIP(); ip != nil {
			if addr, ok := NewNetworkAddress(ip, req.NodeData.MyPort); ok && s.peerManager.IsAllowed(addr) {
				go s.tryPingBack(addr, req.NodeData.PeerID)
			}
		}
	}

	log.Debug().Str("peer", sp.String()).Uint32("remote_height", req.PayloadData.CurrentHeight).
		Msg("inbound handshake")
	return respond(&HandshakeResponse{
		NodeData:      s.nodeData(),
		PayloadData:   s.syncManager.GetPayloadSyncData(),
		LocalPeerlist: s.peerManager.PeerlistHead(s.params.P2P.PeersInHandshake),
	})
}

func (sp *serverPeer) onTimedSync(msg *levin.Message) ([]byte, int32, error) {
	s := sp.server
	if sp.PeerID() == 0 {
		return nil, levin.ErrFormat, errNoHandshake
	}
	var req TimedSyncRequest
	if err := netsync.DecodePayload(msg.Payload, &req); err != nil {
		return nil, levin.ErrFormat, err
	}

	s.syncManager.ProcessPayloadSyncData(sp.Peer, &req.PayloadData, false)
	return respond(&TimedSyncResponse{
		LocalTime:     s.clock.Now().Unix(),
		PayloadData:   s.syncManager.GetPayloadSyncData(),
		LocalPeerlist: s.peerManager.PeerlistHead(s.params.P2P.PeersInHandshake),
	})
}

func (sp *serverPeer) onPing(msg *levin.Message) ([]byte, int32, error) {
	var req PingRequest
	if err := netsync.DecodePayload(msg.Payload, &req); err != nil {
		return nil, levin.ErrFormat, err
	}
	return respond(&PingResponse{Status: PingOKResponse, PeerID: sp.server.peerManager.PeerID()})
}

// timedSync refreshes the chain summary of a connection and merges the peer
// list it returns.
func (sp *serverPeer) timedSync(ctx context.Context) error {
	s := sp.server
	req := TimedSyncRequest{PayloadData: s.syncManager.GetPayloadSyncData()}
	var resp TimedSyncResponse
	if err := sp.invoke(ctx, CmdTimedSync, &req, &resp); err != nil {
		return err
	}
	if err := s.handleRemotePeerlist(resp.LocalPeerlist, resp.LocalTime); err != nil {
		return err
	}

	s.syncManager.ProcessPayloadSyncData(sp.Peer, &resp.PayloadData, false)
	if sp.addr != nil {
		s.peerManager.AppendWhite(PeerlistEntry{
			Address:  *sp.addr,
			ID:       sp.PeerID(),
			LastSeen: s.clock.Now().Unix(),
		})
	}
	sp.ProcessCallback()
	return nil
}

// ping checks that the node at the other end of p is the one with id.
func ping(ctx context.Context, p *peer.Peer, id uint64) error {
	payload, err := netsync.EncodePayload(&PingRequest{})
	if err != nil {
		return err
	}
	respPayload, err := p.Invoke(ctx, CmdPing, payload)
	if err != nil {
		return err
	}
	var resp PingResponse
	if err = netsync.DecodePayload(respPayload, &resp); err != nil {
		return err
	}
	if resp.Status != PingOKResponse {
		return fmt.Errorf("%w: status %q", errUnreachablePeer, resp.Status)
	}
	if resp.PeerID != id {
		return fmt.Errorf("%w: id %d, expected %d", errUnexpectedPeerID, resp.PeerID, id)
	}
	return nil
}
