// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netsync

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/jaxnet/cnoted/network/levin"
	"gitlab.com/jaxnet/cnoted/network/peer"
	"gitlab.com/jaxnet/cnoted/node/blockchain"
	"gitlab.com/jaxnet/cnoted/node/chaindata"
	"gitlab.com/jaxnet/cnoted/node/mempool"
	"gitlab.com/jaxnet/cnoted/types/chainhash"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

type fakeChain struct {
	height    uint32
	known     map[chainhash.Hash]bool
	processed []chainhash.Hash
}

func newFakeChain(height uint32) *fakeChain {
	return &fakeChain{height: height, known: make(map[chainhash.Hash]bool)}
}

func (c *fakeChain) Height() uint32 { return c.height }

func (c *fakeChain) BestBlock() (chainhash.Hash, uint32) {
	return chainhash.HashH([]byte("top")), c.height - 1
}

func (c *fakeChain) HaveBlock(hash chainhash.Hash) bool { return c.known[hash] }

func (c *fakeChain) BuildSparseChain() []chainhash.Hash {
	return []chainhash.Hash{chainhash.HashH([]byte("top"))}
}

func (c *fakeChain) FindBlockchainSupplement(remote []chainhash.Hash, maxCount int) (uint32, uint32, []chainhash.Hash, error) {
	return 0, c.height, remote, nil
}

func (c *fakeChain) BlocksByHashes(hashes []chainhash.Hash) ([]blockchain.BlockWithTxs, []chainhash.Hash, error) {
	return nil, hashes, nil
}

func (c *fakeChain) TransactionsByHashes(hashes []chainhash.Hash) ([]*wire.MsgTx, []chainhash.Hash, error) {
	return nil, hashes, nil
}

func (c *fakeChain) ProcessBlock(block *wire.MsgBlock, txs []*wire.MsgTx) chaindata.BlockVerificationContext {
	hash := block.BlockHash()
	c.processed = append(c.processed, hash)
	c.known[hash] = true
	c.height++
	return chaindata.BlockVerificationContext{Flags: chaindata.BVAddedToMainChain}
}

type fakePool struct{}

func (fakePool) AddTx(tx *wire.MsgTx, flags mempool.AddFlags, ctx *chaindata.TxVerificationContext) bool {
	ctx.AddedToPool, ctx.ShouldBeRelayed = true, true
	return true
}

func (fakePool) Transactions() []*mempool.TxDesc { return nil }

type relayed struct {
	command uint32
	exclude *peer.Peer
}

type fakeNotifier struct {
	relayed []relayed
}

func (n *fakeNotifier) RelayMessage(command uint32, payload []byte, exclude *peer.Peer) {
	n.relayed = append(n.relayed, relayed{command: command, exclude: exclude})
}

// newTestPeer returns a connection that is never started, so everything it
// is asked to send is dropped.
func newTestPeer(t *testing.T) *peer.Peer {
	local, remote := net.Pipe()
	t.Cleanup(func() {
		local.Close()
		remote.Close()
	})
	return peer.NewInboundPeer(&peer.Config{MaxPacketSize: 1 << 20}, local)
}

func testBlock(height uint32) *wire.MsgBlock {
	var key wire.PublicKey
	key[0] = byte(height)
	return &wire.MsgBlock{
		Header: wire.BlockHeader{MajorVersion: 1, Timestamp: uint64(height) * 120},
		MinerTx: wire.MsgTx{
			Version:    1,
			UnlockTime: uint64(height) + 10,
			TxIn:       []wire.TxIn{&wire.TxInGen{Height: height}},
			TxOut:      []wire.TxOut{{Amount: 100, Target: &wire.TxOutToKey{Key: key}}},
		},
	}
}

func protocolMessage(t *testing.T, command uint32, m Message) *levin.Message {
	payload, err := EncodePayload(m)
	require.NoError(t, err)
	return levin.NewRequest(command, payload, false)
}

func TestObservedHeight(t *testing.T) {
	chain := newFakeChain(10)
	sm := New(&Config{Chain: chain, TxPool: fakePool{}, PeerNotifier: &fakeNotifier{}})
	assert.EqualValues(t, 10, sm.ObservedHeight())

	a, b := newTestPeer(t), newTestPeer(t)
	unknownTop := chainhash.HashH([]byte("remote top"))

	sm.ProcessPayloadSyncData(a, &CoreSyncData{CurrentHeight: 20, TopID: unknownTop}, true)
	assert.EqualValues(t, 20, sm.ObservedHeight())
	assert.Equal(t, peer.StateSyncRequired, a.State())

	sm.ProcessPayloadSyncData(b, &CoreSyncData{CurrentHeight: 15, TopID: unknownTop}, true)
	assert.EqualValues(t, 20, sm.ObservedHeight())
	assert.Equal(t, 2, sm.PeersCount())

	// The leader regressing forces a rescan.
	sm.ProcessPayloadSyncData(a, &CoreSyncData{CurrentHeight: 12, TopID: unknownTop}, false)
	assert.EqualValues(t, 15, sm.ObservedHeight())
	assert.EqualValues(t, 12, a.Context().RemoteHeight)

	sm.OnDisconnect(b)
	assert.EqualValues(t, 12, sm.ObservedHeight())
	assert.Equal(t, 1, sm.PeersCount())

	// A non-initial summary before the handshake is ignored.
	c := newTestPeer(t)
	sm.ProcessPayloadSyncData(c, &CoreSyncData{CurrentHeight: 99, TopID: unknownTop}, false)
	assert.EqualValues(t, 12, sm.ObservedHeight())
	assert.Equal(t, peer.StateBeforeHandshake, c.State())
}

func TestSyncDataStates(t *testing.T) {
	chain := newFakeChain(10)
	known := chainhash.HashH([]byte("known"))
	chain.known[known] = true
	sm := New(&Config{Chain: chain, TxPool: fakePool{}, PeerNotifier: &fakeNotifier{}})

	p := newTestPeer(t)
	sm.ProcessPayloadSyncData(p, &CoreSyncData{CurrentHeight: 10, TopID: known}, true)
	assert.Equal(t, peer.StatePoolSyncRequired, p.State())

	sm.OnCallback(p)
	assert.Equal(t, peer.StateNormal, p.State())

	sm.ProcessPayloadSyncData(p, &CoreSyncData{CurrentHeight: 11, TopID: chainhash.HashH([]byte("new"))}, false)
	assert.Equal(t, peer.StateSyncRequired, p.State())

	sm.OnCallback(p)
	assert.Equal(t, peer.StateSynchronizing, p.State())
}

func TestChainEntryRules(t *testing.T) {
	chain := newFakeChain(6)
	known := chainhash.HashH([]byte("known"))
	chain.known[known] = true
	ids := []chainhash.Hash{known, chainhash.HashH([]byte("x")), chainhash.HashH([]byte("y"))}

	newManager := func() (*SyncManager, *peer.Peer) {
		sm := New(&Config{Chain: chain, TxPool: fakePool{}, PeerNotifier: &fakeNotifier{}, BlocksSyncCount: 1})
		p := newTestPeer(t)
		p.SetState(peer.StateSynchronizing)
		return sm, p
	}

	t.Run("empty", func(t *testing.T) {
		sm, p := newManager()
		err := sm.HandleMessage(p, protocolMessage(t, CmdResponseChainEntry,
			&ResponseChainEntry{StartHeight: 5, TotalHeight: 10}))
		assert.Error(t, err)
	})

	t.Run("unknown first id", func(t *testing.T) {
		sm, p := newManager()
		err := sm.HandleMessage(p, protocolMessage(t, CmdResponseChainEntry,
			&ResponseChainEntry{StartHeight: 5, TotalHeight: 10, BlockIDs: ids[1:]}))
		assert.Error(t, err)
	})

	t.Run("past total height", func(t *testing.T) {
		sm, p := newManager()
		err := sm.HandleMessage(p, protocolMessage(t, CmdResponseChainEntry,
			&ResponseChainEntry{StartHeight: 5, TotalHeight: 7, BlockIDs: ids}))
		assert.Error(t, err)
	})

	t.Run("too many ids", func(t *testing.T) {
		sm := New(&Config{Chain: chain, TxPool: fakePool{}, PeerNotifier: &fakeNotifier{},
			BlocksSyncCount: 1, BlockIDsSyncCount: 2})
		p := newTestPeer(t)
		p.SetState(peer.StateSynchronizing)
		err := sm.HandleMessage(p, protocolMessage(t, CmdResponseChainEntry,
			&ResponseChainEntry{StartHeight: 5, TotalHeight: 10, BlockIDs: ids}))
		assert.Error(t, err)
		assert.False(t, p.Context().HaveResponse)
	})

	t.Run("download queue full", func(t *testing.T) {
		sm := New(&Config{Chain: chain, TxPool: fakePool{}, PeerNotifier: &fakeNotifier{},
			BlocksSyncCount: 1, BlockIDsSyncCount: 2})
		p := newTestPeer(t)
		p.SetState(peer.StateSynchronizing)
		queued := []chainhash.Hash{
			chainhash.HashH([]byte("q1")), chainhash.HashH([]byte("q2")), chainhash.HashH([]byte("q3")),
		}
		p.Context().NeededObjects = append([]chainhash.Hash(nil), queued...)

		err := sm.HandleMessage(p, protocolMessage(t, CmdResponseChainEntry,
			&ResponseChainEntry{StartHeight: 5, TotalHeight: 10, BlockIDs: ids[:2]}))
		assert.Error(t, err)
		assert.Equal(t, queued, p.Context().NeededObjects)
	})

	t.Run("accepted then replayed ahead", func(t *testing.T) {
		sm, p := newManager()
		err := sm.HandleMessage(p, protocolMessage(t, CmdResponseChainEntry,
			&ResponseChainEntry{StartHeight: 5, TotalHeight: 8, BlockIDs: ids}))
		require.NoError(t, err)

		ctx := p.Context()
		assert.EqualValues(t, 7, ctx.LastResponseHeight)
		assert.EqualValues(t, 8, ctx.RemoteHeight)
		assert.Len(t, ctx.RequestedObjects, 1)
		assert.Equal(t, []chainhash.Hash{ids[2]}, ctx.NeededObjects)

		err = sm.HandleMessage(p, protocolMessage(t, CmdResponseChainEntry,
			&ResponseChainEntry{StartHeight: 8, TotalHeight: 20, BlockIDs: ids[:1]}))
		assert.Error(t, err)
	})
}

func TestObjectsResponse(t *testing.T) {
	chain := newFakeChain(6)
	sm := New(&Config{Chain: chain, TxPool: fakePool{}, PeerNotifier: &fakeNotifier{}})

	requested := testBlock(6)
	blob, err := requested.Bytes()
	require.NoError(t, err)
	other := testBlock(7)
	otherBlob, err := other.Bytes()
	require.NoError(t, err)

	t.Run("unrequested block", func(t *testing.T) {
		p := newTestPeer(t)
		p.SetState(peer.StateSynchronizing)
		err := sm.HandleMessage(p, protocolMessage(t, CmdResponseGetObjects, &ResponseGetObjects{
			Blocks:                  []BlockCompleteEntry{{Block: otherBlob}},
			CurrentBlockchainHeight: 8,
		}))
		assert.Error(t, err)
		assert.Empty(t, chain.processed)
	})

	t.Run("requested block", func(t *testing.T) {
		p := newTestPeer(t)
		p.SetState(peer.StateSynchronizing)
		ctx := p.Context()
		ctx.RemoteHeight = 7
		ctx.LastResponseHeight = 6
		ctx.HaveResponse = true
		ctx.RequestedObjects[requested.BlockHash()] = struct{}{}

		err := sm.HandleMessage(p, protocolMessage(t, CmdResponseGetObjects, &ResponseGetObjects{
			Blocks:                  []BlockCompleteEntry{{Block: blob}},
			CurrentBlockchainHeight: 7,
		}))
		require.NoError(t, err)
		assert.Equal(t, []chainhash.Hash{requested.BlockHash()}, chain.processed)
		assert.Empty(t, ctx.RequestedObjects)
		assert.Equal(t, peer.StateNormal, p.State())
		assert.True(t, sm.IsSynchronized())
	})
}

func TestNewBlockRelay(t *testing.T) {
	chain := newFakeChain(6)
	notifier := &fakeNotifier{}
	sm := New(&Config{Chain: chain, TxPool: fakePool{}, PeerNotifier: notifier})

	blk := testBlock(6)
	blob, err := blk.Bytes()
	require.NoError(t, err)
	msg := protocolMessage(t, CmdNotifyNewBlock, &NotifyNewBlock{
		Block:                   BlockCompleteEntry{Block: blob},
		CurrentBlockchainHeight: 7,
	})

	// Ignored until the connection is synchronized.
	p := newTestPeer(t)
	require.NoError(t, sm.HandleMessage(p, msg))
	assert.Empty(t, chain.processed)

	p.SetState(peer.StateNormal)
	require.NoError(t, sm.HandleMessage(p, msg))
	assert.Equal(t, []chainhash.Hash{blk.BlockHash()}, chain.processed)
	require.Len(t, notifier.relayed, 1)
	assert.Equal(t, CmdNotifyNewBlock, notifier.relayed[0].command)
	assert.Equal(t, p, notifier.relayed[0].exclude)

	// A block entry whose transaction count disagrees is malformed.
	bad := protocolMessage(t, CmdNotifyNewBlock, &NotifyNewBlock{
		Block: BlockCompleteEntry{Block: blob, Txs: [][]byte{{1}}},
	})
	assert.Error(t, sm.HandleMessage(p, bad))
}

func TestMessageSections(t *testing.T) {
	ids := []chainhash.Hash{chainhash.HashH([]byte("a")), chainhash.HashH([]byte("b"))}

	var entry ResponseChainEntry
	payload, err := EncodePayload(&ResponseChainEntry{StartHeight: 3, TotalHeight: 9, BlockIDs: ids})
	require.NoError(t, err)
	require.NoError(t, DecodePayload(payload, &entry))
	assert.Equal(t, ResponseChainEntry{StartHeight: 3, TotalHeight: 9, BlockIDs: ids}, entry)

	var objects ResponseGetObjects
	payload, err = EncodePayload(&ResponseGetObjects{
		Txs:                     [][]byte{{1, 2}},
		Blocks:                  []BlockCompleteEntry{{Block: []byte{3}, Txs: [][]byte{{4}}}},
		MissedIDs:               ids[:1],
		CurrentBlockchainHeight: 4,
	})
	require.NoError(t, err)
	require.NoError(t, DecodePayload(payload, &objects))
	assert.Equal(t, [][]byte{{1, 2}}, objects.Txs)
	assert.Equal(t, []byte{3}, objects.Blocks[0].Block)
	assert.Equal(t, ids[:1], objects.MissedIDs)

	_, err = unpackHashes(make([]byte, 33))
	assert.Error(t, err)

	assert.True(t, IsProtocolCommand(CmdRequestChain))
	assert.False(t, IsProtocolCommand(1001))
}
