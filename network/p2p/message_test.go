// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/jaxnet/cnoted/network/netsync"
	"gitlab.com/jaxnet/cnoted/types/chainhash"
	"gitlab.com/jaxnet/cnoted/types/portable"
)

func TestHandshakeResponseLayout(t *testing.T) {
	msg := HandshakeResponse{
		NodeData: NodeData{
			NetworkID: [16]byte{1, 2, 3},
			Version:   1,
			LocalTime: 1600000000,
			MyPort:    18080,
			PeerID:    42,
		},
		PayloadData: netsync.CoreSyncData{CurrentHeight: 7, TopID: chainhash.HashH([]byte("top"))},
		LocalPeerlist: []PeerlistEntry{
			{Address: testAddress(t, "8.8.8.8:18080"), ID: 5, LastSeen: 1599999000},
		},
	}

	payload, err := netsync.EncodePayload(&msg)
	require.NoError(t, err)

	s, err := portable.Decode(payload)
	require.NoError(t, err)
	nd, err := s.Section("node_data")
	require.NoError(t, err)
	port, err := nd.Uint32("my_port")
	require.NoError(t, err)
	assert.EqualValues(t, 18080, port)
	sync, err := s.Section("payload_data")
	require.NoError(t, err)
	height, err := sync.Uint32("current_height")
	require.NoError(t, err)
	assert.EqualValues(t, 7, height)
	peerlist, err := s.Bytes("local_peerlist")
	require.NoError(t, err)
	assert.Len(t, peerlist, peerlistEntrySize)

	var got HandshakeResponse
	require.NoError(t, netsync.DecodePayload(payload, &got))
	assert.Equal(t, msg, got)
}

func TestNodeDataRejectsBadNetworkID(t *testing.T) {
	s := portable.NewSection().
		Set("node_data", portable.NewSection().
			Set("network_id", []byte{1, 2, 3}).
			Set("local_time", uint64(1)).
			Set("my_port", uint32(0)).
			Set("peer_id", uint64(1))).
		Set("payload_data", (&netsync.CoreSyncData{}).Section())

	var req HandshakeRequest
	assert.Error(t, req.FromSection(s))
}

func TestPingResponse(t *testing.T) {
	payload, err := netsync.EncodePayload(&PingResponse{Status: PingOKResponse, PeerID: 9})
	require.NoError(t, err)

	var resp PingResponse
	require.NoError(t, netsync.DecodePayload(payload, &resp))
	assert.Equal(t, PingOKResponse, resp.Status)
	assert.EqualValues(t, 9, resp.PeerID)

	// A timed sync response without a peer list is accepted.
	payload, err = netsync.EncodePayload(&TimedSyncRequest{})
	require.NoError(t, err)
	s, err := portable.Decode(payload)
	require.NoError(t, err)
	s.Set("local_time", uint64(5))
	var ts TimedSyncResponse
	require.NoError(t, ts.FromSection(s))
	assert.EqualValues(t, 5, ts.LocalTime)
	assert.Empty(t, ts.LocalPeerlist)
}
