// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"errors"

	"gitlab.com/jaxnet/cnoted/types/chainhash"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

// ErrGenesisMismatch is returned when a remote sparse chain does not end in
// our genesis block.
var ErrGenesisMismatch = errors.New("sparse chain does not end in the genesis block")

// BuildSparseChain returns main chain block ids from the tip down at
// exponentially growing distances: tip, tip-1, tip-2, tip-4, and so on.
// The genesis id always ends the list.
//
// This function is safe for concurrent access.
func (b *BlockChain) BuildSparseChain() []chainhash.Hash {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()

	top := len(b.mainChain) - 1
	ids := []chainhash.Hash{b.mainChain[top].hash}
	for step := 1; step <= top; step *= 2 {
		ids = append(ids, b.mainChain[top-step].hash)
	}
	if ids[len(ids)-1] != b.genesisHash {
		ids = append(ids, b.genesisHash)
	}
	return ids
}

// FindBlockchainSupplement locates the most recent id of a remote sparse
// chain that is on our main chain and returns up to maxCount main chain ids
// starting with it, along with its height and our chain height.
//
// This function is safe for concurrent access.
func (b *BlockChain) FindBlockchainSupplement(remote []chainhash.Hash,
	maxCount int) (start uint32, total uint32, ids []chainhash.Hash, err error) {
	if len(remote) == 0 || remote[len(remote)-1] != b.genesisHash {
		return 0, 0, nil, ErrGenesisMismatch
	}

	b.chainLock.RLock()
	defer b.chainLock.RUnlock()

	for _, hash := range remote {
		if height, ok := b.blockHeights[hash]; ok {
			start = height
			break
		}
	}

	total = uint32(len(b.mainChain))
	for h := start; h < total && len(ids) < maxCount; h++ {
		ids = append(ids, b.mainChain[h].hash)
	}
	return start, total, ids, nil
}

// BlockWithTxs is a block together with the transactions it includes.
type BlockWithTxs struct {
	Block *wire.MsgBlock
	Txs   []*wire.MsgTx
}

// BlocksByHashes returns the main chain blocks with their transactions in
// request order, and the ids that are not on the main chain.
//
// This function is safe for concurrent access.
func (b *BlockChain) BlocksByHashes(hashes []chainhash.Hash) ([]BlockWithTxs, []chainhash.Hash, error) {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()

	var (
		blocks []BlockWithTxs
		missed []chainhash.Hash
	)
	for _, hash := range hashes {
		height, ok := b.blockHeights[hash]
		if !ok {
			missed = append(missed, hash)
			continue
		}
		entry, err := b.store.Get(height)
		if err != nil {
			return nil, nil, err
		}
		blocks = append(blocks, BlockWithTxs{Block: &entry.Block, Txs: blockTransactions(entry)})
	}
	return blocks, missed, nil
}

// TransactionsByHashes returns the transactions found on the main chain or
// in the pool, and the ids found in neither.
//
// This function is safe for concurrent access.
func (b *BlockChain) TransactionsByHashes(hashes []chainhash.Hash) ([]*wire.MsgTx, []chainhash.Hash, error) {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()

	var (
		txs    []*wire.MsgTx
		missed []chainhash.Hash
	)
	for _, hash := range hashes {
		if _, ok := b.transactions[hash]; ok {
			te, _, err := b.transaction(hash)
			if err != nil {
				return nil, nil, err
			}
			txs = append(txs, &te.Tx)
			continue
		}
		if tx, ok := b.pool.FetchTx(hash); ok {
			txs = append(txs, tx)
			continue
		}
		missed = append(missed, hash)
	}
	return txs, missed, nil
}
