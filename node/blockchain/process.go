// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"

	"gitlab.com/jaxnet/cnoted/node/chaindata"
	"gitlab.com/jaxnet/cnoted/node/mempool"
	"gitlab.com/jaxnet/cnoted/types/chainhash"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

// ProcessBlock is the main workhorse for handling insertion of new blocks
// into the block chain.  The transactions the block includes are first put
// into the transaction pool, where the block push takes them from.
//
// This function is safe for concurrent access.
func (b *BlockChain) ProcessBlock(block *wire.MsgBlock, txs []*wire.MsgTx) chaindata.BlockVerificationContext {
	for _, tx := range txs {
		var tvc chaindata.TxVerificationContext
		if !b.pool.AddTx(tx, mempool.KeptByBlock, &tvc) {
			var bvc chaindata.BlockVerificationContext
			str := fmt.Sprintf("transaction %s of block %s rejected: %v",
				tx.TxHash(), block.BlockHash(), tvc.Err)
			bvc.Fail(chaindata.NewRuleError(chaindata.ErrBadTx, str))
			return bvc
		}
	}
	return b.AddNewBlock(block)
}

// AddNewBlock submits a block whose transactions are already pooled.  A block
// on top of the main chain is validated and appended; any other block with a
// known parent goes to an alternative branch, which becomes the main chain
// once it accumulates strictly more difficulty.
//
// This function is safe for concurrent access.
func (b *BlockChain) AddNewBlock(block *wire.MsgBlock) chaindata.BlockVerificationContext {
	defer b.flushNotifications()
	b.chainLock.Lock()
	defer b.chainLock.Unlock()

	var bvc chaindata.BlockVerificationContext
	if err := b.checkHalted(); err != nil {
		bvc.Fail(err)
		return bvc
	}

	hash := block.BlockHash()
	if b.haveBlock(hash) {
		log.Trace().Stringer("block", hash).Msg("block already exists")
		bvc.Flags |= chaindata.BVAlreadyExists
		return bvc
	}

	if block.Header.PrevBlock != b.tipHash() {
		b.handleAlternativeBlock(block, hash, &bvc)
		return bvc
	}

	if err := b.pushBlockFromPool(block, hash); err != nil {
		log.Debug().Stringer("block", hash).Err(err).Msg("block rejected")
		bvc.Fail(b.halt(err))
		return bvc
	}

	bvc.Flags |= chaindata.BVAddedToMainChain
	b.queueNotification(NTNewBlock, &BlockNotification{Hash: hash, Height: uint32(len(b.mainChain) - 1)})
	return bvc
}

// haveBlock reports whether the block is on the main chain or on an
// alternative branch.
//
// This function MUST be called with the chain lock held (for reads).
func (b *BlockChain) haveBlock(hash chainhash.Hash) bool {
	if _, ok := b.blockHeights[hash]; ok {
		return true
	}
	_, ok := b.altChains[hash]
	return ok
}

// pushBlockFromPool takes the block transactions out of the pool and pushes
// the block.  Whatever was taken goes back to the pool when the push fails.
//
// This function MUST be called with the chain lock held (for writes).
func (b *BlockChain) pushBlockFromPool(block *wire.MsgBlock, hash chainhash.Hash) error {
	txs := make([]*wire.MsgTx, 0, len(block.TxHashes))
	for _, txHash := range block.TxHashes {
		desc, ok := b.pool.TakeTx(txHash)
		if !ok {
			b.returnToPool(txs)
			str := fmt.Sprintf("block %s includes unknown transaction %s", hash, txHash)
			return chaindata.NewRuleError(chaindata.ErrMissingTx, str)
		}
		txs = append(txs, desc.Tx)
	}

	if err := b.pushBlock(block, txs); err != nil {
		b.returnToPool(txs)
		return err
	}
	return nil
}

// returnToPool puts transactions of a failed or disconnected block back into
// the pool.
func (b *BlockChain) returnToPool(txs []*wire.MsgTx) {
	for _, tx := range txs {
		var tvc chaindata.TxVerificationContext
		if !b.pool.AddTx(tx, mempool.KeptByBlock, &tvc) {
			log.Warn().Stringer("tx", tx.TxHash()).Err(tvc.Err).
				Msg("can't return transaction to the pool")
		}
	}
}

// pushedTx is a transaction registered while a block is being pushed.
type pushedTx struct {
	tx   *wire.MsgTx
	hash chainhash.Hash
	idx  chaindata.TransactionIndex
}

// pushBlock validates a block extending the main chain tip and commits it.
// txs are the block transactions in the order of its hash list.  When any
// rule fails the chain is left as it was.
//
// This function MUST be called with the chain lock held (for writes).
func (b *BlockChain) pushBlock(block *wire.MsgBlock, txs []*wire.MsgTx) error {
	height := uint32(len(b.mainChain))
	hash := block.BlockHash()

	if _, ok := b.blockHeights[hash]; ok {
		str := fmt.Sprintf("block %s already exists at height %d", hash, b.blockHeights[hash])
		return chaindata.NewRuleError(chaindata.ErrDuplicateBlock, str)
	}
	if tip := b.tipHash(); block.Header.PrevBlock != tip {
		str := fmt.Sprintf("block %s refers to %s, tip is %s", hash, block.Header.PrevBlock, tip)
		return chaindata.NewRuleError(chaindata.ErrPrevBlockNotTip, str)
	}
	if len(txs) != len(block.TxHashes) {
		return chaindata.AssertError(fmt.Sprintf("block %s lists %d transactions, %d supplied",
			hash, len(block.TxHashes), len(txs)))
	}
	if len(txs) > wire.MaxBlockTxCount {
		str := fmt.Sprintf("block %s lists %d transactions, at most %d allowed",
			hash, len(txs), wire.MaxBlockTxCount)
		return chaindata.NewRuleError(chaindata.ErrBlockTooBig, str)
	}
	if err := b.checkBlockVersion(block, height); err != nil {
		return err
	}
	if err := b.checkTimestampMain(block); err != nil {
		return err
	}

	difficulty, err := b.nextDifficultyMain()
	if err != nil || difficulty == 0 {
		str := fmt.Sprintf("can't compute difficulty at height %d: %v", height, err)
		return chaindata.NewRuleError(chaindata.ErrDifficulty, str)
	}
	if err := b.checkProofOfWork(block, hash, height, difficulty); err != nil {
		return err
	}
	if err := b.prevalidateMinerTx(block, height); err != nil {
		return err
	}

	// From here on the indexes are modified and have to be unwound on
	// failure.
	pushed := make([]pushedTx, 0, len(txs)+1)
	unwind := func() {
		for i := len(pushed) - 1; i >= 0; i-- {
			p := pushed[i]
			if err := b.popTransaction(p.tx, p.hash, p.idx); err != nil {
				b.halt(err)
				return
			}
		}
	}

	entry := &chaindata.BlockEntry{
		Block:        *block,
		Height:       height,
		Transactions: make([]chaindata.TransactionEntry, 0, len(txs)+1),
	}

	minerIdx := chaindata.TransactionIndex{Block: height}
	minerHash := block.MinerTx.TxHash()
	indexes, err := b.pushTransaction(&block.MinerTx, minerHash, minerIdx)
	if err != nil {
		return err
	}
	pushed = append(pushed, pushedTx{tx: &block.MinerTx, hash: minerHash, idx: minerIdx})
	entry.Transactions = append(entry.Transactions, chaindata.TransactionEntry{
		Tx: block.MinerTx, GlobalOutputIndexes: indexes})

	cumulativeSize := uint64(block.MinerTx.SerializeSize())
	var fee uint64
	for i, tx := range txs {
		txHash := block.TxHashes[i]
		if tx.TxHash() != txHash {
			unwind()
			return chaindata.AssertError(fmt.Sprintf("transaction %d of block %s hashes to %s, listed %s",
				i, hash, tx.TxHash(), txHash))
		}

		txSize := uint64(tx.SerializeSize())
		if txSize > b.consensus.MaxTxSize {
			unwind()
			str := fmt.Sprintf("transaction %s size %d exceeds %d", txHash, txSize, b.consensus.MaxTxSize)
			return chaindata.NewRuleError(chaindata.ErrBadTx, str)
		}

		txFee, err := b.checkTxInputs(tx, txHash, height)
		if err != nil {
			unwind()
			return err
		}

		idx := chaindata.TransactionIndex{Block: height, Transaction: uint16(i + 1)}
		indexes, err := b.pushTransaction(tx, txHash, idx)
		if err != nil {
			unwind()
			return err
		}
		pushed = append(pushed, pushedTx{tx: tx, hash: txHash, idx: idx})
		entry.Transactions = append(entry.Transactions, chaindata.TransactionEntry{
			Tx: *tx, GlobalOutputIndexes: indexes})

		if fee+txFee < fee {
			unwind()
			return chaindata.NewRuleError(chaindata.ErrBadTx, "block fees overflow")
		}
		fee += txFee
		cumulativeSize += txSize
	}

	if limit := chaindata.MaxBlockCumulativeSize(b.consensus, uint64(height)); cumulativeSize > limit {
		unwind()
		str := fmt.Sprintf("block %s cumulative size %d exceeds %d", hash, cumulativeSize, limit)
		return chaindata.NewRuleError(chaindata.ErrBlockTooBig, str)
	}

	var prevDifficulty, prevCoins uint64
	if height > 0 {
		top := b.topInfo()
		prevDifficulty, prevCoins = top.cumulativeDifficulty, top.alreadyGeneratedCoins
	}

	median := b.medianBlockSize()
	reward, emissionChange, ok := chaindata.BlockReward(b.consensus, median, cumulativeSize, prevCoins, fee)
	if !ok {
		unwind()
		str := fmt.Sprintf("block %s cumulative size %d is too big for median %d", hash, cumulativeSize, median)
		return chaindata.NewRuleError(chaindata.ErrBlockTooBig, str)
	}
	minerReward, _ := block.MinerTx.OutputsAmount()
	if minerReward != reward {
		unwind()
		str := fmt.Sprintf("block %s miner transaction pays %d, reward is %d", hash, minerReward, reward)
		return chaindata.NewRuleError(chaindata.ErrBadReward, str)
	}

	entry.BlockCumulativeSize = cumulativeSize
	entry.CumulativeDifficulty = prevDifficulty + difficulty
	entry.AlreadyGeneratedCoins = uint64(int64(prevCoins) + emissionChange)

	if err := b.store.Push(entry); err != nil {
		unwind()
		return err
	}
	b.appendBlock(entry, hash)

	log.Debug().Str("chain", b.chainParams.Name).Msgf("Block %s added at height %d (difficulty %d, size %d, txs %d)",
		hash, height, difficulty, cumulativeSize, len(txs))
	return nil
}

// popBlock disconnects the main chain tip and returns its entry.  Any
// inconsistency found on the way halts the chain.
//
// This function MUST be called with the chain lock held (for writes).
func (b *BlockChain) popBlock() (*chaindata.BlockEntry, error) {
	if len(b.mainChain) <= 1 {
		return nil, b.halt(chaindata.AssertError("can't pop the genesis block"))
	}

	height := uint32(len(b.mainChain) - 1)
	entry, err := b.store.Get(height)
	if err != nil {
		return nil, b.halt(err)
	}
	if entry.Hash() != b.topInfo().hash {
		return nil, b.halt(chaindata.AssertError(fmt.Sprintf(
			"stored block %s at height %d is not the tip %s", entry.Hash(), height, b.topInfo().hash)))
	}

	for i := len(entry.Transactions) - 1; i >= 0; i-- {
		tx := &entry.Transactions[i].Tx
		idx := chaindata.TransactionIndex{Block: height, Transaction: uint16(i)}
		if err := b.popTransaction(tx, tx.TxHash(), idx); err != nil {
			return nil, b.halt(err)
		}
	}
	if err := b.removeTopBlock(); err != nil {
		return nil, b.halt(err)
	}
	if err := b.store.Pop(); err != nil {
		return nil, b.halt(err)
	}

	log.Debug().Str("chain", b.chainParams.Name).Msgf("Block %s popped from height %d", entry.Hash(), height)
	return entry, nil
}

// blockTransactions returns the non-miner transactions of an entry.
func blockTransactions(entry *chaindata.BlockEntry) []*wire.MsgTx {
	if len(entry.Transactions) <= 1 {
		return nil
	}
	txs := make([]*wire.MsgTx, 0, len(entry.Transactions)-1)
	for i := 1; i < len(entry.Transactions); i++ {
		txs = append(txs, &entry.Transactions[i].Tx)
	}
	return txs
}

// medianBlockSize is the median cumulative size of the most recent reward
// window blocks.
//
// This function MUST be called with the chain lock held (for reads).
func (b *BlockChain) medianBlockSize() uint64 {
	count := len(b.mainChain)
	start := count - minInt(count, b.consensus.RewardBlocksWindow)
	sizes := make([]uint64, 0, count-start)
	for i := start; i < count; i++ {
		sizes = append(sizes, b.mainChain[i].cumulativeSize)
	}
	return chaindata.Median(sizes)
}
