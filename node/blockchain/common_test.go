// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"

	"gitlab.com/jaxnet/cnoted/database"
	_ "gitlab.com/jaxnet/cnoted/database/ldb"
	"gitlab.com/jaxnet/cnoted/node/blockstore"
	"gitlab.com/jaxnet/cnoted/node/chaindata"
	"gitlab.com/jaxnet/cnoted/node/mempool"
	"gitlab.com/jaxnet/cnoted/types/chaincfg"
	"gitlab.com/jaxnet/cnoted/types/chainhash"
	"gitlab.com/jaxnet/cnoted/types/pow"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

const (
	// testDbType is the database backend type to use for the tests.
	testDbType = "ldb"

	// blockSpacing is the timestamp distance of generated blocks.
	blockSpacing = 120

	// solveDifficulty is met by every generated block, which is well
	// above anything the test chains retarget to.
	solveDifficulty = 64
)

// testHarness wraps a chain backed by a temporary directory.
type testHarness struct {
	t      *testing.T
	dir    string
	params *chaincfg.Params
	store  *blockstore.Store
	db     database.DB
	pool   *mempool.TxPool
	chain  *BlockChain
}

// newTestHarness creates a chain on the simulation network.  withDB attaches
// a metadata database.
func newTestHarness(t *testing.T, withDB bool) *testHarness {
	h := &testHarness{t: t, dir: t.TempDir(), params: chaincfg.SimNet.Params()}
	if withDB {
		db, err := database.Create(testDbType, filepath.Join(h.dir, h.params.MetaDBName))
		require.NoError(t, err)
		h.db = db
	}
	h.open()
	t.Cleanup(h.close)
	return h
}

// open (re)creates the store, the pool and the chain over the harness dir.
func (h *testHarness) open() {
	store, err := blockstore.Open(h.dir, h.params.BlocksFileName, h.params.BlockIndexesFileName)
	require.NoError(h.t, err)
	h.store = store
	h.pool = mempool.New(&mempool.Config{MaxTxSize: h.params.Consensus.MaxTxSize})

	h.chain, err = New(&Config{
		ChainParams: h.params,
		Store:       store,
		TxPool:      h.pool,
		DB:          h.db,
		Clock:       clock.NewTestClock(time.Unix(1600000000, 0)),
	})
	require.NoError(h.t, err)
}

// reopen closes the store and builds a new chain from what it holds.
func (h *testHarness) reopen() {
	require.NoError(h.t, h.chain.Close())
	require.NoError(h.t, h.store.Close())
	h.open()
}

func (h *testHarness) close() {
	if h.store != nil {
		h.store.Close()
	}
	if h.db != nil {
		h.db.Close()
	}
}

// baseReward is the reward of a small block without fees.
func baseReward(generated uint64) uint64 {
	return (math.MaxUint64 - generated) >> 18
}

// testKey derives a distinct output key.
func testKey(branch byte, height uint32) wire.PublicKey {
	var key wire.PublicKey
	key[0] = branch
	key[1] = byte(height)
	key[2] = byte(height >> 8)
	return key
}

// minerTx pays reward to a key unique to branch and height.
func minerTx(height uint32, reward uint64, branch byte) wire.MsgTx {
	key := testKey(branch, height)
	return wire.MsgTx{
		Version:    1,
		UnlockTime: uint64(height) + 10,
		TxIn:       []wire.TxIn{&wire.TxInGen{Height: height}},
		TxOut:      []wire.TxOut{{Amount: reward, Target: &wire.TxOutToKey{Key: key}}},
		Extra:      wire.BuildTxExtra(&key, nil),
	}
}

// solveBlock grinds the nonce until the block meets solveDifficulty.
func solveBlock(blk *wire.MsgBlock) {
	for nonce := uint32(0); ; nonce++ {
		blk.Header.Nonce = nonce
		if pow.CheckHash(pow.KeccakHasher.PowHash(blk.HashingBlob(), 0), solveDifficulty) {
			return
		}
	}
}

// chainBuilder produces consecutive blocks of one branch.
type chainBuilder struct {
	prev      chainhash.Hash
	height    uint32
	generated uint64
	timestamp uint64
	branch    byte
}

// builderAt starts a branch on top of the main chain block at height.
func (h *testHarness) builderAt(height uint32, branch byte) *chainBuilder {
	entry, err := h.chain.BlockByHeight(height)
	require.NoError(h.t, err)
	return &chainBuilder{
		prev:      entry.Hash(),
		height:    height + 1,
		generated: entry.AlreadyGeneratedCoins,
		timestamp: entry.Block.Header.Timestamp,
		branch:    branch,
	}
}

// tipBuilder starts a branch on top of the main chain tip.
func (h *testHarness) tipBuilder() *chainBuilder {
	_, top := h.chain.BestBlock()
	return h.builderAt(top, 0)
}

// next returns the following block, spacing seconds after the previous one,
// paying base reward plus fee and including txHashes.
func (cb *chainBuilder) next(spacing uint64, fee uint64, txHashes ...chainhash.Hash) *wire.MsgBlock {
	blk := cb.peek(spacing, baseReward(cb.generated)+fee, txHashes...)
	cb.advance(blk)
	return blk
}

// peek builds the following block with an explicit reward without advancing.
func (cb *chainBuilder) peek(spacing uint64, reward uint64, txHashes ...chainhash.Hash) *wire.MsgBlock {
	blk := &wire.MsgBlock{
		Header: wire.BlockHeader{
			MajorVersion: 1,
			Timestamp:    cb.timestamp + spacing,
			PrevBlock:    cb.prev,
		},
		MinerTx:  minerTx(cb.height, reward, cb.branch),
		TxHashes: txHashes,
	}
	solveBlock(blk)
	return blk
}

func (cb *chainBuilder) advance(blk *wire.MsgBlock) {
	cb.prev = blk.BlockHash()
	cb.height++
	cb.generated += baseReward(cb.generated)
	cb.timestamp = blk.Header.Timestamp
}

// extend appends n plain blocks to the main chain.
func (h *testHarness) extend(n int) []*wire.MsgBlock {
	cb := h.tipBuilder()
	blocks := make([]*wire.MsgBlock, 0, n)
	for i := 0; i < n; i++ {
		blk := cb.next(blockSpacing, 0)
		bvc := h.chain.AddNewBlock(blk)
		require.Falsef(h.t, bvc.Failed(), "block %d: %v", i, bvc.Err)
		require.True(h.t, bvc.Flags.Has(chaindata.BVAddedToMainChain))
		blocks = append(blocks, blk)
	}
	return blocks
}

// spendTx spends the output at global index 0 of amount, paying fee.
func spendTx(amount, fee uint64, keyImage byte, paymentID *chainhash.Hash) *wire.MsgTx {
	var ki wire.KeyImage
	ki[0] = keyImage
	key := testKey(0xee, uint32(keyImage))
	return &wire.MsgTx{
		Version: 1,
		TxIn: []wire.TxIn{&wire.TxInToKey{
			Amount:     amount,
			KeyOffsets: []uint32{0},
			KeyImage:   ki,
		}},
		TxOut:      []wire.TxOut{{Amount: amount - fee, Target: &wire.TxOutToKey{Key: key}}},
		Extra:      wire.BuildTxExtra(&key, paymentID),
		Signatures: [][]wire.Signature{{{}}},
	}
}
