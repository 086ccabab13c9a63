// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"fmt"

	"gitlab.com/jaxnet/cnoted/network/netsync"
	"gitlab.com/jaxnet/cnoted/types/portable"
)

// Node server commands.  All of them are invokes.
const (
	p2pCommandsPoolBase = 1000

	CmdHandshake uint32 = p2pCommandsPoolBase + 1
	CmdTimedSync uint32 = p2pCommandsPoolBase + 2
	CmdPing      uint32 = p2pCommandsPoolBase + 3
)

// PingOKResponse is the status a reachable node answers a ping with.
const PingOKResponse = "OK"

// NodeData describes the node at the other end of a handshake.
type NodeData struct {
	NetworkID [16]byte
	Version   uint8
	LocalTime int64
	MyPort    uint32
	PeerID    uint64
}

func (d *NodeData) section() *portable.Section {
	return portable.NewSection().
		Set("network_id", append([]byte(nil), d.NetworkID[:]...)).
		Set("version", d.Version).
		Set("local_time", uint64(d.LocalTime)).
		Set("my_port", d.MyPort).
		Set("peer_id", d.PeerID)
}

func (d *NodeData) fromSection(s *portable.Section) error {
	id, err := s.Bytes("network_id")
	if err != nil {
		return err
	}
	if len(id) != len(d.NetworkID) {
		return fmt.Errorf("network id of %d bytes", len(id))
	}
	copy(d.NetworkID[:], id)

	if s.Has("version") {
		v, err := s.Uint64("version")
		if err != nil {
			return err
		}
		d.Version = uint8(v)
	}
	if d.LocalTime, err = s.Int64("local_time"); err != nil {
		return err
	}
	if d.MyPort, err = s.Uint32("my_port"); err != nil {
		return err
	}
	d.PeerID, err = s.Uint64("peer_id")
	return err
}

func syncDataSection(s *portable.Section, name string) (netsync.CoreSyncData, error) {
	var d netsync.CoreSyncData
	sec, err := s.Section(name)
	if err != nil {
		return d, err
	}
	err = d.FromSection(sec)
	return d, err
}

func peerlistField(s *portable.Section, name string) ([]PeerlistEntry, error) {
	if !s.Has(name) {
		return nil, nil
	}
	b, err := s.Bytes(name)
	if err != nil {
		return nil, err
	}
	return unpackPeerlist(b)
}

// HandshakeRequest opens a connection.
type HandshakeRequest struct {
	NodeData    NodeData
	PayloadData netsync.CoreSyncData
}

func (m *HandshakeRequest) Section() *portable.Section {
	return portable.NewSection().
		Set("node_data", m.NodeData.section()).
		Set("payload_data", m.PayloadData.Section())
}

func (m *HandshakeRequest) FromSection(s *portable.Section) error {
	nd, err := s.Section("node_data")
	if err != nil {
		return err
	}
	if err = m.NodeData.fromSection(nd); err != nil {
		return err
	}
	m.PayloadData, err = syncDataSection(s, "payload_data")
	return err
}

// HandshakeResponse answers a handshake with the responder's own data and
// the head of its white list.
type HandshakeResponse struct {
	NodeData      NodeData
	PayloadData   netsync.CoreSyncData
	LocalPeerlist []PeerlistEntry
}

func (m *HandshakeResponse) Section() *portable.Section {
	return portable.NewSection().
		Set("node_data", m.NodeData.section()).
		Set("payload_data", m.PayloadData.Section()).
		Set("local_peerlist", packPeerlist(m.LocalPeerlist))
}

func (m *HandshakeResponse) FromSection(s *portable.Section) error {
	nd, err := s.Section("node_data")
	if err != nil {
		return err
	}
	if err = m.NodeData.fromSection(nd); err != nil {
		return err
	}
	if m.PayloadData, err = syncDataSection(s, "payload_data"); err != nil {
		return err
	}
	m.LocalPeerlist, err = peerlistField(s, "local_peerlist")
	return err
}

// TimedSyncRequest periodically refreshes the chain summary.
type TimedSyncRequest struct {
	PayloadData netsync.CoreSyncData
}

func (m *TimedSyncRequest) Section() *portable.Section {
	return portable.NewSection().Set("payload_data", m.PayloadData.Section())
}

func (m *TimedSyncRequest) FromSection(s *portable.Section) error {
	var err error
	m.PayloadData, err = syncDataSection(s, "payload_data")
	return err
}

// TimedSyncResponse answers a timed sync.
type TimedSyncResponse struct {
	LocalTime     int64
	PayloadData   netsync.CoreSyncData
	LocalPeerlist []PeerlistEntry
}

func (m *TimedSyncResponse) Section() *portable.Section {
	return portable.NewSection().
		Set("local_time", uint64(m.LocalTime)).
		Set("payload_data", m.PayloadData.Section()).
		Set("local_peerlist", packPeerlist(m.LocalPeerlist))
}

func (m *TimedSyncResponse) FromSection(s *portable.Section) error {
	var err error
	if m.LocalTime, err = s.Int64("local_time"); err != nil {
		return err
	}
	if m.PayloadData, err = syncDataSection(s, "payload_data"); err != nil {
		return err
	}
	m.LocalPeerlist, err = peerlistField(s, "local_peerlist")
	return err
}

// PingRequest probes a node.  It carries nothing.
type PingRequest struct{}

func (m *PingRequest) Section() *portable.Section {
	return portable.NewSection()
}

func (m *PingRequest) FromSection(*portable.Section) error {
	return nil
}

// PingResponse carries the probed node's status and id.
type PingResponse struct {
	Status string
	PeerID uint64
}

func (m *PingResponse) Section() *portable.Section {
	return portable.NewSection().
		Set("status", []byte(m.Status)).
		Set("peer_id", m.PeerID)
}

func (m *PingResponse) FromSection(s *portable.Section) error {
	var err error
	if m.Status, err = s.String("status"); err != nil {
		return err
	}
	m.PeerID, err = s.Uint64("peer_id")
	return err
}
