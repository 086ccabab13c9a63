// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
	"math/rand"
	"sort"

	"gitlab.com/jaxnet/cnoted/node/chaindata"
	"gitlab.com/jaxnet/cnoted/types/chainhash"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

// Height returns the number of blocks on the main chain, genesis included.
//
// This function is safe for concurrent access.
func (b *BlockChain) Height() uint32 {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	return uint32(len(b.mainChain))
}

// BestBlock returns the hash and height of the main chain tip.
//
// This function is safe for concurrent access.
func (b *BlockChain) BestBlock() (chainhash.Hash, uint32) {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	return b.topInfo().hash, uint32(len(b.mainChain) - 1)
}

// GenesisHash returns the hash of block zero.
func (b *BlockChain) GenesisHash() chainhash.Hash {
	return b.genesisHash
}

// HaveBlock reports whether the block is known, on the main chain or on an
// alternative branch.
//
// This function is safe for concurrent access.
func (b *BlockChain) HaveBlock(hash chainhash.Hash) bool {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	return b.haveBlock(hash)
}

// HeightByHash returns the height of a main chain block.
//
// This function is safe for concurrent access.
func (b *BlockChain) HeightByHash(hash chainhash.Hash) (uint32, bool) {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	h, ok := b.blockHeights[hash]
	return h, ok
}

// BlockHashByHeight returns the hash of the main chain block at height.
//
// This function is safe for concurrent access.
func (b *BlockChain) BlockHashByHeight(height uint32) (chainhash.Hash, bool) {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	if int(height) >= len(b.mainChain) {
		return chainhash.ZeroHash, false
	}
	return b.mainChain[height].hash, true
}

// BlockByHeight returns the main chain entry at height.
//
// This function is safe for concurrent access.
func (b *BlockChain) BlockByHeight(height uint32) (*chaindata.BlockEntry, error) {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	if int(height) >= len(b.mainChain) {
		return nil, fmt.Errorf("no block at height %d exists", height)
	}
	return b.store.Get(height)
}

// BlockByHash returns the entry of a main chain or alternative block.
// Alternative entries carry no transactions.
//
// This function is safe for concurrent access.
func (b *BlockChain) BlockByHash(hash chainhash.Hash) (*chaindata.BlockEntry, error) {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	if height, ok := b.blockHeights[hash]; ok {
		return b.store.Get(height)
	}
	if entry, ok := b.altChains[hash]; ok {
		return entry, nil
	}
	return nil, fmt.Errorf("block %s is not known", hash)
}

// HaveTransaction reports whether the transaction is on the main chain.
//
// This function is safe for concurrent access.
func (b *BlockChain) HaveTransaction(hash chainhash.Hash) bool {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	_, ok := b.transactions[hash]
	return ok
}

// Transaction returns a main chain transaction with its global output
// indexes and location.
//
// This function is safe for concurrent access.
func (b *BlockChain) Transaction(hash chainhash.Hash) (*chaindata.TransactionEntry, chaindata.TransactionIndex, error) {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	return b.transaction(hash)
}

// transaction reads a main chain transaction from the store.
//
// This function MUST be called with the chain lock held (for reads).
func (b *BlockChain) transaction(hash chainhash.Hash) (*chaindata.TransactionEntry, chaindata.TransactionIndex, error) {
	idx, ok := b.transactions[hash]
	if !ok {
		return nil, idx, fmt.Errorf("transaction %s is not in the chain", hash)
	}
	entry, err := b.store.Get(idx.Block)
	if err != nil {
		return nil, idx, err
	}
	if int(idx.Transaction) >= len(entry.Transactions) {
		return nil, idx, chaindata.AssertError(fmt.Sprintf("transaction %s points past block %d", hash, idx.Block))
	}
	return &entry.Transactions[idx.Transaction], idx, nil
}

// TransactionsByPaymentID returns the hashes of main chain transactions
// carrying the payment id, oldest first.
//
// This function is safe for concurrent access.
func (b *BlockChain) TransactionsByPaymentID(paymentID chainhash.Hash) []chainhash.Hash {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	hashes := b.paymentIDs[paymentID]
	res := make([]chainhash.Hash, len(hashes))
	copy(res, hashes)
	return res
}

// BlocksByTimestamp returns up to limit main chain block hashes whose
// timestamps fall in [begin, end], ordered by timestamp, together with the
// number of blocks in the range.
//
// This function is safe for concurrent access.
func (b *BlockChain) BlocksByTimestamp(begin, end uint64, limit int) ([]chainhash.Hash, int) {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()

	var keys []uint64
	for ts := range b.timestamps {
		if ts >= begin && ts <= end {
			keys = append(keys, ts)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var res []chainhash.Hash
	total := 0
	for _, ts := range keys {
		for _, hash := range b.timestamps[ts] {
			if len(res) < limit {
				res = append(res, hash)
			}
			total++
		}
	}
	return res, total
}

// KeyImageSpent reports whether a main chain transaction spent the key
// image.
//
// This function is safe for concurrent access.
func (b *BlockChain) KeyImageSpent(ki wire.KeyImage) bool {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	_, ok := b.spentKeyImages[ki]
	return ok
}

// OutputsCount returns how many key outputs of amount exist.
//
// This function is safe for concurrent access.
func (b *BlockChain) OutputsCount(amount uint64) uint32 {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	return uint32(len(b.outputs[amount]))
}

// RandomOutput is a ring member candidate.
type RandomOutput struct {
	GlobalIndex uint32
	Key         wire.PublicKey
}

// RandomOutputs picks up to count distinct spendable key outputs of each
// amount, for use as ring members.
//
// This function is safe for concurrent access.
func (b *BlockChain) RandomOutputs(amounts []uint64, count int) (map[uint64][]RandomOutput, error) {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()

	height := uint32(len(b.mainChain))
	entries := make(map[uint32]*chaindata.BlockEntry)
	res := make(map[uint64][]RandomOutput, len(amounts))

	for _, amount := range amounts {
		refs := b.outputs[amount]
		limit := b.allowedOutputsEnd(refs, height)

		var candidates []int
		if limit <= count {
			candidates = make([]int, limit)
			for i := range candidates {
				candidates[i] = i
			}
		} else {
			candidates = rand.Perm(limit)
		}

		picked := make([]RandomOutput, 0, count)
		for _, i := range candidates {
			if len(picked) == count {
				break
			}
			ref := refs[i]
			if !b.isUnlocked(ref.unlockTime, height) {
				continue
			}
			entry, ok := entries[ref.tx.Block]
			if !ok {
				var err error
				if entry, err = b.store.Get(ref.tx.Block); err != nil {
					return nil, err
				}
				entries[ref.tx.Block] = entry
			}
			out := entry.Transactions[ref.tx.Transaction].Tx.TxOut[ref.output]
			target, ok := out.Target.(*wire.TxOutToKey)
			if !ok {
				return nil, chaindata.AssertError(fmt.Sprintf("output registry points to %s output %d",
					ref.tx, ref.output))
			}
			picked = append(picked, RandomOutput{GlobalIndex: uint32(i), Key: target.Key})
		}
		sort.Slice(picked, func(i, j int) bool { return picked[i].GlobalIndex < picked[j].GlobalIndex })
		res[amount] = picked
	}
	return res, nil
}

// allowedOutputsEnd returns how many of the oldest outputs sit in blocks
// buried by at least the mined money unlock window.
func (b *BlockChain) allowedOutputsEnd(refs []outputRef, height uint32) int {
	for i := len(refs); i > 0; i-- {
		if uint64(refs[i-1].tx.Block)+b.consensus.MinedMoneyUnlockWindow <= uint64(height) {
			return i
		}
	}
	return 0
}

// CumulativeDifficulty returns the cumulative difficulty of the main chain
// tip.
//
// This function is safe for concurrent access.
func (b *BlockChain) CumulativeDifficulty() uint64 {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	return b.topInfo().cumulativeDifficulty
}

// CirculatedCoins returns the total emission up to the main chain tip.
//
// This function is safe for concurrent access.
func (b *BlockChain) CirculatedCoins() uint64 {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	return b.topInfo().alreadyGeneratedCoins
}

// TransactionCount returns how many transactions, miner ones included, the
// main chain holds.
//
// This function is safe for concurrent access.
func (b *BlockChain) TransactionCount() uint64 {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	return b.generatedTxs[len(b.generatedTxs)-1]
}

// AlternativeBlockCount returns how many blocks the alternative branches
// hold.
//
// This function is safe for concurrent access.
func (b *BlockChain) AlternativeBlockCount() int {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	return len(b.altChains)
}

// MedianBlockSize returns the median cumulative size of recent blocks, the
// value block rewards are penalized against.
//
// This function is safe for concurrent access.
func (b *BlockChain) MedianBlockSize() uint64 {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	return b.medianBlockSize()
}
