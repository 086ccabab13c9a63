// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/jaxnet/cnoted/node/chaindata"
	"gitlab.com/jaxnet/cnoted/types/chainhash"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

func TestGenesisInitialization(t *testing.T) {
	h := newTestHarness(t, false)

	genesis, err := h.params.GenesisHash()
	require.NoError(t, err)

	hash, top := h.chain.BestBlock()
	assert.Equal(t, genesis, hash)
	assert.EqualValues(t, 0, top)
	assert.EqualValues(t, 1, h.chain.Height())
	assert.EqualValues(t, uint64(1)<<46-1, h.chain.CirculatedCoins())
	assert.EqualValues(t, 1, h.chain.CumulativeDifficulty())
	assert.EqualValues(t, 1, h.chain.TransactionCount())

	genesisBlock, err := h.params.GenesisBlock()
	require.NoError(t, err)
	assert.True(t, h.chain.HaveTransaction(genesisBlock.MinerTx.TxHash()))
	assert.EqualValues(t, 1, h.chain.OutputsCount(genesisBlock.MinerTx.TxOut[0].Amount))
}

// Fifty blocks, genesis included, each minting the base reward.
func TestPushSequentialBlocks(t *testing.T) {
	h := newTestHarness(t, false)

	var notified []uint32
	h.chain.Subscribe(func(n *Notification) {
		if n.Type == NTNewBlock {
			notified = append(notified, n.Data.(*BlockNotification).Height)
		}
	})

	expected := h.chain.CirculatedCoins()
	blocks := h.extend(49)
	for range blocks {
		expected += baseReward(expected)
	}

	assert.EqualValues(t, 50, h.chain.Height())
	assert.Equal(t, expected, h.chain.CirculatedCoins())
	assert.EqualValues(t, 50, h.chain.TransactionCount())
	assert.EqualValues(t, 50, h.chain.CumulativeDifficulty())
	assert.Len(t, notified, 49)
	assert.EqualValues(t, 49, notified[48])

	difficulty, err := h.chain.CurrentDifficulty()
	require.NoError(t, err)
	assert.EqualValues(t, 1, difficulty)

	last := blocks[len(blocks)-1]
	hash, top := h.chain.BestBlock()
	assert.Equal(t, last.BlockHash(), hash)
	assert.EqualValues(t, 49, top)

	height, ok := h.chain.HeightByHash(blocks[9].BlockHash())
	require.True(t, ok)
	assert.EqualValues(t, 10, height)

	byHeight, ok := h.chain.BlockHashByHeight(10)
	require.True(t, ok)
	assert.Equal(t, blocks[9].BlockHash(), byHeight)

	entry, err := h.chain.BlockByHash(blocks[9].BlockHash())
	require.NoError(t, err)
	assert.EqualValues(t, 10, entry.Height)
	assert.EqualValues(t, 11, entry.CumulativeDifficulty)

	hashes, total := h.chain.BlocksByTimestamp(blockSpacing, 5*blockSpacing, 3)
	assert.Equal(t, 5, total)
	require.Len(t, hashes, 3)
	assert.Equal(t, blocks[0].BlockHash(), hashes[0])
	assert.Equal(t, blocks[2].BlockHash(), hashes[2])
}

func TestRejectedBlocks(t *testing.T) {
	h := newTestHarness(t, false)
	h.extend(3)
	cb := h.tipBuilder()

	t.Run("already exists", func(t *testing.T) {
		entry, err := h.chain.BlockByHeight(2)
		require.NoError(t, err)
		bvc := h.chain.AddNewBlock(&entry.Block)
		assert.False(t, bvc.Failed())
		assert.True(t, bvc.Flags.Has(chaindata.BVAlreadyExists))
	})

	t.Run("orphan", func(t *testing.T) {
		blk := cb.peek(blockSpacing, baseReward(cb.generated))
		blk.Header.PrevBlock = chainhash.HashH([]byte("unknown parent"))
		solveBlock(blk)
		bvc := h.chain.AddNewBlock(blk)
		assert.False(t, bvc.Failed())
		assert.True(t, bvc.Flags.Has(chaindata.BVMarkedAsOrphaned))
	})

	t.Run("bad reward", func(t *testing.T) {
		blk := cb.peek(blockSpacing, baseReward(cb.generated)+1)
		bvc := h.chain.AddNewBlock(blk)
		require.True(t, bvc.Failed())
		assert.True(t, chaindata.IsRuleError(bvc.Err, chaindata.ErrBadReward), "%v", bvc.Err)
	})

	t.Run("bad miner height", func(t *testing.T) {
		blk := cb.peek(blockSpacing, baseReward(cb.generated))
		blk.MinerTx = minerTx(cb.height+1, baseReward(cb.generated), 0)
		solveBlock(blk)
		bvc := h.chain.AddNewBlock(blk)
		require.True(t, bvc.Failed())
		assert.True(t, chaindata.IsRuleError(bvc.Err, chaindata.ErrBadMinerTx), "%v", bvc.Err)
	})

	t.Run("future timestamp", func(t *testing.T) {
		blk := cb.peek(1<<40, baseReward(cb.generated))
		bvc := h.chain.AddNewBlock(blk)
		require.True(t, bvc.Failed())
		assert.True(t, chaindata.IsRuleError(bvc.Err, chaindata.ErrTimeTooNew), "%v", bvc.Err)
	})

	t.Run("bad version", func(t *testing.T) {
		blk := cb.peek(blockSpacing, baseReward(cb.generated))
		blk.Header.MajorVersion = 2
		solveBlock(blk)
		bvc := h.chain.AddNewBlock(blk)
		require.True(t, bvc.Failed())
		assert.True(t, chaindata.IsRuleError(bvc.Err, chaindata.ErrBadVersion), "%v", bvc.Err)
	})

	t.Run("missing transaction", func(t *testing.T) {
		blk := cb.peek(blockSpacing, baseReward(cb.generated), chainhash.HashH([]byte("tx")))
		bvc := h.chain.AddNewBlock(blk)
		require.True(t, bvc.Failed())
		assert.True(t, chaindata.IsRuleError(bvc.Err, chaindata.ErrMissingTx), "%v", bvc.Err)
	})

	assert.EqualValues(t, 4, h.chain.Height())
	assert.False(t, h.chain.Halted())

	// The chain still accepts the valid block.
	bvc := h.chain.AddNewBlock(cb.next(blockSpacing, 0))
	require.False(t, bvc.Failed(), "%v", bvc.Err)
	assert.EqualValues(t, 5, h.chain.Height())
}

func TestSpendAndDoubleSpend(t *testing.T) {
	h := newTestHarness(t, false)
	h.extend(10)

	genesis, err := h.params.GenesisBlock()
	require.NoError(t, err)
	amount := genesis.MinerTx.TxOut[0].Amount
	const fee = 1000000

	paymentID := chainhash.HashH([]byte("invoice 42"))
	tx := spendTx(amount, fee, 1, &paymentID)
	txHash := tx.TxHash()

	var tvc chaindata.TxVerificationContext
	require.True(t, h.pool.AddTx(tx, 0, &tvc), "%v", tvc.Err)
	assert.True(t, tvc.ShouldBeRelayed)

	cb := h.tipBuilder()
	coinsBefore := h.chain.CirculatedCoins()
	bvc := h.chain.AddNewBlock(cb.next(blockSpacing, fee, txHash))
	require.False(t, bvc.Failed(), "%v", bvc.Err)
	assert.True(t, bvc.Flags.Has(chaindata.BVAddedToMainChain))

	assert.Equal(t, 0, h.pool.Count())
	assert.True(t, h.chain.HaveTransaction(txHash))
	assert.True(t, h.chain.KeyImageSpent(tx.KeyImages()[0]))
	assert.Equal(t, []chainhash.Hash{txHash}, h.chain.TransactionsByPaymentID(paymentID))
	assert.Equal(t, coinsBefore+baseReward(coinsBefore), h.chain.CirculatedCoins())
	assert.EqualValues(t, 13, h.chain.TransactionCount())

	te, idx, err := h.chain.Transaction(txHash)
	require.NoError(t, err)
	assert.EqualValues(t, 11, idx.Block)
	assert.EqualValues(t, 1, idx.Transaction)
	assert.Equal(t, []uint32{0}, te.GlobalOutputIndexes)

	// A loose double spend is refused by the pool.
	double := spendTx(amount, 2*fee, 1, nil)
	tvc = chaindata.TxVerificationContext{}
	assert.False(t, h.pool.AddTx(double, 0, &tvc))
	assert.True(t, chaindata.IsRuleError(tvc.Err, chaindata.ErrDoubleSpend), "%v", tvc.Err)

	// A block carrying it is rejected and leaves the chain untouched.
	height := h.chain.Height()
	bvc = h.chain.ProcessBlock(cb.peek(blockSpacing, baseReward(cb.generated)+2*fee, double.TxHash()),
		[]*wire.MsgTx{double})
	require.True(t, bvc.Failed())
	assert.True(t, chaindata.IsRuleError(bvc.Err, chaindata.ErrDoubleSpend), "%v", bvc.Err)
	assert.Equal(t, height, h.chain.Height())
	assert.True(t, h.pool.HaveTx(double.TxHash()))
	assert.False(t, h.chain.HaveTransaction(double.TxHash()))
}

func TestPopBlockUnwindsIndexes(t *testing.T) {
	h := newTestHarness(t, false)
	h.extend(10)

	genesis, err := h.params.GenesisBlock()
	require.NoError(t, err)
	amount := genesis.MinerTx.TxOut[0].Amount
	paymentID := chainhash.HashH([]byte("refund"))
	tx := spendTx(amount, 500, 7, &paymentID)
	require.True(t, h.pool.AddTx(tx, 0, &chaindata.TxVerificationContext{}))

	cb := h.tipBuilder()
	coinsBefore := h.chain.CirculatedCoins()
	bvc := h.chain.AddNewBlock(cb.next(blockSpacing, 500, tx.TxHash()))
	require.False(t, bvc.Failed(), "%v", bvc.Err)
	require.EqualValues(t, 1, h.chain.OutputsCount(amount-500))

	h.chain.chainLock.Lock()
	entry, err := h.chain.popBlock()
	h.chain.chainLock.Unlock()
	require.NoError(t, err)
	assert.EqualValues(t, 11, entry.Height)

	assert.EqualValues(t, 11, h.chain.Height())
	assert.False(t, h.chain.HaveTransaction(tx.TxHash()))
	assert.False(t, h.chain.KeyImageSpent(tx.KeyImages()[0]))
	assert.Empty(t, h.chain.TransactionsByPaymentID(paymentID))
	assert.EqualValues(t, 0, h.chain.OutputsCount(amount-500))
	assert.Equal(t, coinsBefore, h.chain.CirculatedCoins())
	assert.False(t, h.chain.Halted())
}

func TestRandomOutputs(t *testing.T) {
	h := newTestHarness(t, false)
	genesis, err := h.params.GenesisBlock()
	require.NoError(t, err)
	amount := genesis.MinerTx.TxOut[0].Amount

	// Still buried too shallow.
	h.extend(5)
	outs, err := h.chain.RandomOutputs([]uint64{amount}, 3)
	require.NoError(t, err)
	assert.Empty(t, outs[amount])

	h.extend(5)
	outs, err = h.chain.RandomOutputs([]uint64{amount, 12345}, 3)
	require.NoError(t, err)
	require.Len(t, outs[amount], 1)
	assert.EqualValues(t, 0, outs[amount][0].GlobalIndex)
	assert.Equal(t, genesis.MinerTx.TxOut[0].Target.(*wire.TxOutToKey).Key, outs[amount][0].Key)
	assert.Empty(t, outs[12345])
}

func TestReloadFromStore(t *testing.T) {
	h := newTestHarness(t, true)
	h.extend(10)

	genesis, err := h.params.GenesisBlock()
	require.NoError(t, err)
	amount := genesis.MinerTx.TxOut[0].Amount
	tx := spendTx(amount, 100, 3, nil)
	require.True(t, h.pool.AddTx(tx, 0, &chaindata.TxVerificationContext{}))
	cb := h.tipBuilder()
	bvc := h.chain.AddNewBlock(cb.next(blockSpacing, 100, tx.TxHash()))
	require.False(t, bvc.Failed(), "%v", bvc.Err)

	// One alternative block to persist.
	alt := h.builderAt(5, 1).next(blockSpacing+1, 0)
	bvc = h.chain.AddNewBlock(alt)
	require.True(t, bvc.Flags.Has(chaindata.BVAddedAsAlternative), "%v %v", bvc.Flags, bvc.Err)

	cp := chainhash.HashH([]byte("checkpoint"))
	require.NoError(t, h.chain.AddCheckpoint(500, cp))

	tip, _ := h.chain.BestBlock()
	coins := h.chain.CirculatedCoins()
	h.reopen()

	reloadedTip, top := h.chain.BestBlock()
	assert.Equal(t, tip, reloadedTip)
	assert.EqualValues(t, 11, top)
	assert.Equal(t, coins, h.chain.CirculatedCoins())
	assert.True(t, h.chain.KeyImageSpent(tx.KeyImages()[0]))
	assert.True(t, h.chain.HaveTransaction(tx.TxHash()))
	assert.EqualValues(t, 1, h.chain.OutputsCount(amount-100))
	assert.Equal(t, 1, h.chain.AlternativeBlockCount())
	assert.True(t, h.chain.HaveBlock(alt.BlockHash()))

	pinned, ok := h.chain.Checkpoints().Hash(500)
	require.True(t, ok)
	assert.Equal(t, cp, pinned)

	// The reloaded chain keeps growing.
	h.extend(1)
	assert.EqualValues(t, 13, h.chain.Height())
}

func TestTooManyTransactions(t *testing.T) {
	h := newTestHarness(t, false)

	blk := h.tipBuilder().next(blockSpacing, 0)
	blk.TxHashes = make([]chainhash.Hash, wire.MaxBlockTxCount+1)
	txs := make([]*wire.MsgTx, len(blk.TxHashes))

	h.chain.chainLock.Lock()
	err := h.chain.pushBlock(blk, txs)
	h.chain.chainLock.Unlock()

	assert.True(t, chaindata.IsRuleError(err, chaindata.ErrBlockTooBig), "%v", err)
	assert.False(t, h.chain.Halted())
	assert.EqualValues(t, 1, h.chain.Height())
}
