// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"context"
	"math"
	"net"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/jaxnet/cnoted/network/netsync"
	"gitlab.com/jaxnet/cnoted/network/peer"
	"gitlab.com/jaxnet/cnoted/node/blockchain"
	"gitlab.com/jaxnet/cnoted/node/blockstore"
	"gitlab.com/jaxnet/cnoted/node/chaindata"
	"gitlab.com/jaxnet/cnoted/node/mempool"
	"gitlab.com/jaxnet/cnoted/types/chaincfg"
	"gitlab.com/jaxnet/cnoted/types/pow"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

// testNode is a chain with a node server on top of it.
type testNode struct {
	t      *testing.T
	params *chaincfg.Params
	chain  *blockchain.BlockChain
	server *Server
}

func newTestNode(t *testing.T, blocks int) *testNode {
	params := chaincfg.SimNet.Params()
	dir := t.TempDir()
	store, err := blockstore.Open(dir, params.BlocksFileName, params.BlockIndexesFileName)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	testClock := clock.NewTestClock(time.Unix(1600000000, 0))
	pool := mempool.New(&mempool.Config{MaxTxSize: params.Consensus.MaxTxSize})
	chain, err := blockchain.New(&blockchain.Config{
		ChainParams: params,
		Store:       store,
		TxPool:      pool,
		Clock:       testClock,
	})
	require.NoError(t, err)

	server, err := NewServer(&Config{DisableListen: true, DisableOutbound: true}, params, chain, pool,
		ServerOpts{Clock: testClock})
	require.NoError(t, err)

	n := &testNode{t: t, params: params, chain: chain, server: server}
	for i := 0; i < blocks; i++ {
		bvc := chain.AddNewBlock(n.nextBlock())
		require.False(t, bvc.Failed(), "%v", bvc.Err)
	}
	return n
}

// run starts the server until the test ends.
func (n *testNode) run() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(n.t, n.server.Run(ctx))
	}()
	n.t.Cleanup(func() {
		cancel()
		<-done
	})
}

// nextBlock builds a block on top of the main chain tip.
func (n *testNode) nextBlock() *wire.MsgBlock {
	hash, top := n.chain.BestBlock()
	entry, err := n.chain.BlockByHeight(top)
	require.NoError(n.t, err)

	height := top + 1
	reward := (math.MaxUint64 - entry.AlreadyGeneratedCoins) >> 18
	var key wire.PublicKey
	key[0], key[1] = byte(height), byte(height>>8)
	blk := &wire.MsgBlock{
		Header: wire.BlockHeader{
			MajorVersion: 1,
			Timestamp:    entry.Block.Header.Timestamp + 120,
			PrevBlock:    hash,
		},
		MinerTx: wire.MsgTx{
			Version:    1,
			UnlockTime: uint64(height) + 10,
			TxIn:       []wire.TxIn{&wire.TxInGen{Height: height}},
			TxOut:      []wire.TxOut{{Amount: reward, Target: &wire.TxOutToKey{Key: key}}},
			Extra:      wire.BuildTxExtra(&key, nil),
		},
	}
	for nonce := uint32(0); ; nonce++ {
		blk.Header.Nonce = nonce
		if pow.CheckHash(pow.KeccakHasher.PowHash(blk.HashingBlob(), 0), 64) {
			return blk
		}
	}
}

// connect attaches a pipe between two nodes, from dials to.
func connect(t *testing.T, from, to *testNode) error {
	inbound, outbound := net.Pipe()
	require.NoError(t, to.server.AttachConn(context.Background(), inbound, true))
	return from.server.AttachConn(context.Background(), outbound, false)
}

func TestNodesSynchronize(t *testing.T) {
	a := newTestNode(t, 12)
	b := newTestNode(t, 0)
	a.run()
	b.run()

	require.NoError(t, connect(t, b, a))

	require.Eventually(t, func() bool {
		return b.chain.Height() == a.chain.Height()
	}, 20*time.Second, 10*time.Millisecond)

	hashA, topA := a.chain.BestBlock()
	hashB, topB := b.chain.BestBlock()
	assert.Equal(t, hashA, hashB)
	assert.Equal(t, topA, topB)

	require.Eventually(t, b.server.SyncManager().IsSynchronized, 5*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 13, b.server.SyncManager().ObservedHeight())
	assert.Equal(t, 1, a.server.ConnectedCount())

	stats := b.server.Stats()
	assert.Equal(t, 1, stats.Outbound)
	assert.Zero(t, stats.Inbound)
	assert.NotZero(t, stats.BytesReceived)

	// A new block on one side reaches the other one.
	blk := a.nextBlock()
	bvc := a.chain.ProcessBlock(blk, nil)
	require.True(t, bvc.Flags.Has(chaindata.BVAddedToMainChain), "%v", bvc.Err)
	require.NoError(t, a.server.SyncManager().RelayBlock(blk, nil))

	require.Eventually(t, func() bool {
		return b.chain.HaveBlock(blk.BlockHash())
	}, 10*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 14, b.chain.Height())
}

func TestHandshakeRejections(t *testing.T) {
	a := newTestNode(t, 0)
	a.run()

	t.Run("self connection", func(t *testing.T) {
		b := newTestNode(t, 0)
		b.server.PeerManager().SetPeerID(a.server.PeerManager().PeerID())
		b.run()
		assert.Error(t, connect(t, b, a))
	})

	t.Run("other network", func(t *testing.T) {
		b := newTestNode(t, 0)
		b.server.params = chaincfg.TestNet.Params()
		b.run()
		assert.Error(t, connect(t, b, a))
	})

	t.Run("duplicate node", func(t *testing.T) {
		b := newTestNode(t, 0)
		b.run()
		require.NoError(t, connect(t, b, a))
		assert.Error(t, connect(t, b, a))
	})
}

func TestRequestBeforeHandshake(t *testing.T) {
	a := newTestNode(t, 0)
	a.run()

	inbound, outbound := net.Pipe()
	require.NoError(t, a.server.AttachConn(context.Background(), inbound, true))

	p := peer.NewOutboundPeer(&peer.Config{
		MaxPacketSize: a.params.P2P.MaxPacketSize,
		Version:       a.params.P2P.Version,
		InvokeTimeout: time.Second * 5,
	}, outbound)
	p.Start()
	defer p.Disconnect()

	// A ping is answered before the handshake.
	require.NoError(t, ping(context.Background(), p, a.server.PeerManager().PeerID()))

	// A timed sync is not.
	_, err := p.Invoke(context.Background(), CmdTimedSync, mustEncode(t, &TimedSyncRequest{}))
	assert.Error(t, err)
	p.WaitForDisconnect()
}

func mustEncode(t *testing.T, m netsync.Message) []byte {
	payload, err := netsync.EncodePayload(m)
	require.NoError(t, err)
	return payload
}
