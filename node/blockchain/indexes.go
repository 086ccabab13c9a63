// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"

	"gitlab.com/jaxnet/cnoted/node/chaindata"
	"gitlab.com/jaxnet/cnoted/types/chainhash"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

// pushTransaction registers a transaction of the block being connected: its
// hash, the key images and multisignature outputs it spends, the outputs it
// creates and its payment id.  It returns the global indexes assigned to the
// outputs.  Nothing is modified when an error is returned.
//
// This function MUST be called with the chain lock held (for writes).
func (b *BlockChain) pushTransaction(tx *wire.MsgTx, hash chainhash.Hash,
	idx chaindata.TransactionIndex) ([]uint32, error) {
	if _, ok := b.transactions[hash]; ok {
		return nil, chaindata.NewRuleError(chaindata.ErrDuplicateTx,
			fmt.Sprintf("transaction %s already in the chain", hash))
	}

	seen := make(map[wire.KeyImage]struct{}, len(tx.TxIn))
	for _, in := range tx.TxIn {
		switch in := in.(type) {
		case *wire.TxInToKey:
			if _, ok := b.spentKeyImages[in.KeyImage]; ok {
				return nil, chaindata.NewRuleError(chaindata.ErrDoubleSpend,
					fmt.Sprintf("key image %s of %s already spent", in.KeyImage, hash))
			}
			if _, ok := seen[in.KeyImage]; ok {
				return nil, chaindata.NewRuleError(chaindata.ErrDoubleSpend,
					fmt.Sprintf("key image %s used twice in %s", in.KeyImage, hash))
			}
			seen[in.KeyImage] = struct{}{}

		case *wire.TxInMultisig:
			refs := b.multisigs[in.Amount]
			if int(in.OutputIndex) >= len(refs) {
				return nil, chaindata.NewRuleError(chaindata.ErrBadInput,
					fmt.Sprintf("multisig output %d of amount %d is unknown", in.OutputIndex, in.Amount))
			}
			if refs[in.OutputIndex].used {
				return nil, chaindata.NewRuleError(chaindata.ErrDoubleSpend,
					fmt.Sprintf("multisig output %d of amount %d already spent", in.OutputIndex, in.Amount))
			}
		}
	}

	for _, in := range tx.TxIn {
		switch in := in.(type) {
		case *wire.TxInToKey:
			b.spentKeyImages[in.KeyImage] = idx.Block
		case *wire.TxInMultisig:
			b.multisigs[in.Amount][in.OutputIndex].used = true
		}
	}

	globalIndexes := make([]uint32, len(tx.TxOut))
	for i, out := range tx.TxOut {
		switch out.Target.(type) {
		case *wire.TxOutToKey:
			globalIndexes[i] = uint32(len(b.outputs[out.Amount]))
			b.outputs[out.Amount] = append(b.outputs[out.Amount], outputRef{
				tx: idx, output: uint32(i), unlockTime: tx.UnlockTime})
		case *wire.TxOutMultisig:
			globalIndexes[i] = uint32(len(b.multisigs[out.Amount]))
			b.multisigs[out.Amount] = append(b.multisigs[out.Amount], multisigRef{
				tx: idx, output: uint32(i), unlockTime: tx.UnlockTime})
		}
	}

	b.transactions[hash] = idx
	if paymentID, ok := tx.PaymentID(); ok {
		b.paymentIDs[paymentID] = append(b.paymentIDs[paymentID], hash)
	}
	return globalIndexes, nil
}

// popTransaction reverses pushTransaction.  Transactions must be popped in
// the exact reverse order they were pushed; any mismatch is reported as an
// AssertError.
//
// This function MUST be called with the chain lock held (for writes).
func (b *BlockChain) popTransaction(tx *wire.MsgTx, hash chainhash.Hash, idx chaindata.TransactionIndex) error {
	for i := len(tx.TxOut) - 1; i >= 0; i-- {
		out := tx.TxOut[i]
		switch out.Target.(type) {
		case *wire.TxOutToKey:
			refs := b.outputs[out.Amount]
			if len(refs) == 0 || refs[len(refs)-1].tx != idx || refs[len(refs)-1].output != uint32(i) {
				return chaindata.AssertError(fmt.Sprintf(
					"output %d of %s is not the last of amount %d", i, hash, out.Amount))
			}
			if len(refs) == 1 {
				delete(b.outputs, out.Amount)
			} else {
				b.outputs[out.Amount] = refs[:len(refs)-1]
			}

		case *wire.TxOutMultisig:
			refs := b.multisigs[out.Amount]
			if len(refs) == 0 || refs[len(refs)-1].tx != idx || refs[len(refs)-1].output != uint32(i) {
				return chaindata.AssertError(fmt.Sprintf(
					"multisig output %d of %s is not the last of amount %d", i, hash, out.Amount))
			}
			if refs[len(refs)-1].used {
				return chaindata.AssertError(fmt.Sprintf(
					"popping spent multisig output %d of %s", i, hash))
			}
			if len(refs) == 1 {
				delete(b.multisigs, out.Amount)
			} else {
				b.multisigs[out.Amount] = refs[:len(refs)-1]
			}
		}
	}

	for i := len(tx.TxIn) - 1; i >= 0; i-- {
		switch in := tx.TxIn[i].(type) {
		case *wire.TxInToKey:
			if _, ok := b.spentKeyImages[in.KeyImage]; !ok {
				return chaindata.AssertError(fmt.Sprintf(
					"key image %s of %s is not marked spent", in.KeyImage, hash))
			}
			delete(b.spentKeyImages, in.KeyImage)

		case *wire.TxInMultisig:
			refs := b.multisigs[in.Amount]
			if int(in.OutputIndex) >= len(refs) || !refs[in.OutputIndex].used {
				return chaindata.AssertError(fmt.Sprintf(
					"multisig output %d of amount %d is not marked spent", in.OutputIndex, in.Amount))
			}
			refs[in.OutputIndex].used = false
		}
	}

	if paymentID, ok := tx.PaymentID(); ok {
		hashes := b.paymentIDs[paymentID]
		removed := false
		for i := len(hashes) - 1; i >= 0; i-- {
			if hashes[i] == hash {
				hashes = append(hashes[:i], hashes[i+1:]...)
				removed = true
				break
			}
		}
		if !removed {
			return chaindata.AssertError(fmt.Sprintf("payment id of %s is not indexed", hash))
		}
		if len(hashes) == 0 {
			delete(b.paymentIDs, paymentID)
		} else {
			b.paymentIDs[paymentID] = hashes
		}
	}

	if cur, ok := b.transactions[hash]; !ok || cur != idx {
		return chaindata.AssertError(fmt.Sprintf("transaction %s is not indexed at %s", hash, idx))
	}
	delete(b.transactions, hash)
	return nil
}

// appendBlock records a committed entry in the per-block indexes.
//
// This function MUST be called with the chain lock held (for writes).
func (b *BlockChain) appendBlock(entry *chaindata.BlockEntry, hash chainhash.Hash) {
	header := &entry.Block.Header
	b.mainChain = append(b.mainChain, blockInfo{
		hash:                  hash,
		timestamp:             header.Timestamp,
		cumulativeSize:        entry.BlockCumulativeSize,
		cumulativeDifficulty:  entry.CumulativeDifficulty,
		alreadyGeneratedCoins: entry.AlreadyGeneratedCoins,
		majorVersion:          header.MajorVersion,
	})
	b.blockHeights[hash] = entry.Height
	b.timestamps[header.Timestamp] = append(b.timestamps[header.Timestamp], hash)

	var total uint64
	if n := len(b.generatedTxs); n > 0 {
		total = b.generatedTxs[n-1]
	}
	b.generatedTxs = append(b.generatedTxs, total+uint64(len(entry.Transactions)))
}

// removeTopBlock reverses appendBlock for the tip.
//
// This function MUST be called with the chain lock held (for writes).
func (b *BlockChain) removeTopBlock() error {
	if len(b.mainChain) == 0 {
		return chaindata.AssertError("removing a block from an empty chain")
	}
	top := b.topInfo()

	hashes := b.timestamps[top.timestamp]
	removed := false
	for i := len(hashes) - 1; i >= 0; i-- {
		if hashes[i] == top.hash {
			hashes = append(hashes[:i], hashes[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		return chaindata.AssertError(fmt.Sprintf("block %s is not in the timestamp index", top.hash))
	}
	if len(hashes) == 0 {
		delete(b.timestamps, top.timestamp)
	} else {
		b.timestamps[top.timestamp] = hashes
	}

	delete(b.blockHeights, top.hash)
	b.mainChain = b.mainChain[:len(b.mainChain)-1]
	b.generatedTxs = b.generatedTxs[:len(b.generatedTxs)-1]
	return nil
}

// indexEntry registers a stored entry while the chain state is rebuilt.  The
// global output indexes recorded in the entry have to match the ones the
// registries hand out again.
//
// This function MUST be called with the chain lock held (for writes).
func (b *BlockChain) indexEntry(entry *chaindata.BlockEntry) error {
	if len(entry.Transactions) != len(entry.Block.TxHashes)+1 {
		return chaindata.AssertError(fmt.Sprintf("entry %d holds %d transactions, block lists %d",
			entry.Height, len(entry.Transactions), len(entry.Block.TxHashes)+1))
	}

	for i := range entry.Transactions {
		te := &entry.Transactions[i]
		idx := chaindata.TransactionIndex{Block: entry.Height, Transaction: uint16(i)}
		indexes, err := b.pushTransaction(&te.Tx, te.Tx.TxHash(), idx)
		if err != nil {
			return fmt.Errorf("can't index transaction %s of block %d: %v", idx, entry.Height, err)
		}
		if len(indexes) != len(te.GlobalOutputIndexes) {
			return chaindata.AssertError(fmt.Sprintf("transaction %s: output index count mismatch", idx))
		}
		for j := range indexes {
			if indexes[j] != te.GlobalOutputIndexes[j] {
				return chaindata.AssertError(fmt.Sprintf(
					"transaction %s output %d: stored global index %d, rebuilt %d",
					idx, j, te.GlobalOutputIndexes[j], indexes[j]))
			}
		}
	}

	b.appendBlock(entry, entry.Hash())
	return nil
}
