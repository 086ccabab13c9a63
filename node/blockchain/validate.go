// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
	"time"

	"gitlab.com/jaxnet/cnoted/node/chaindata"
	"gitlab.com/jaxnet/cnoted/types/chainhash"
	"gitlab.com/jaxnet/cnoted/types/pow"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

const (
	// maxBlockNumber separates height based unlock times from unix
	// timestamps.
	maxBlockNumber = 500000000

	// lockedTxAllowedDeltaBlocks lets an output unlocking at the next
	// height be spent by a block at that height.
	lockedTxAllowedDeltaBlocks = 1
)

// checkBlockVersion ensures the major version of a block at height matches
// the hardfork schedule.
func (b *BlockChain) checkBlockVersion(block *wire.MsgBlock, height uint32) error {
	expected := b.hardforks.MajorVersion(height)
	if block.Header.MajorVersion != expected {
		str := fmt.Sprintf("block major version %d at height %d, expected %d",
			block.Header.MajorVersion, height, expected)
		return chaindata.NewRuleError(chaindata.ErrBadVersion, str)
	}
	return nil
}

// checkFutureTimestamp rejects blocks too far ahead of the local clock.
func (b *BlockChain) checkFutureTimestamp(block *wire.MsgBlock) error {
	limit := b.clock.Now().Add(b.consensus.BlockFutureTimeLimit)
	if block.Header.Timestamp > uint64(limit.Unix()) {
		str := fmt.Sprintf("block timestamp of %d is too far in the future, limit %d",
			block.Header.Timestamp, limit.Unix())
		return chaindata.NewRuleError(chaindata.ErrTimeTooNew, str)
	}
	return nil
}

// checkTimestamps ensures the block is not older than the median of the
// given preceding timestamps.  Fewer timestamps than the check window are
// not enough to judge and always pass.
func (b *BlockChain) checkTimestamps(timestamps []uint64, block *wire.MsgBlock) error {
	if len(timestamps) < b.consensus.TimestampCheckWindow {
		return nil
	}

	median := chaindata.Median(timestamps)
	if block.Header.Timestamp < median {
		str := fmt.Sprintf("block timestamp of %d is not after expected %d",
			block.Header.Timestamp, median)
		return chaindata.NewRuleError(chaindata.ErrTimeTooOld, str)
	}
	return nil
}

// checkTimestampMain runs the timestamp rules for a block extending the main
// chain.
//
// This function MUST be called with the chain lock held (for reads).
func (b *BlockChain) checkTimestampMain(block *wire.MsgBlock) error {
	if err := b.checkFutureTimestamp(block); err != nil {
		return err
	}

	window := b.consensus.TimestampCheckWindow
	count := len(b.mainChain)
	if count < window {
		return nil
	}
	timestamps := make([]uint64, 0, window)
	for i := count - window; i < count; i++ {
		timestamps = append(timestamps, b.mainChain[i].timestamp)
	}
	return b.checkTimestamps(timestamps, block)
}

// checkProofOfWork compares the block against the checkpoint pinned at its
// height or, when there is none, checks its proof-of-work hash against the
// difficulty.
func (b *BlockChain) checkProofOfWork(block *wire.MsgBlock, hash chainhash.Hash,
	height uint32, difficulty uint64) error {
	if b.checkpoints.IsCheckpoint(height) {
		if !b.checkpoints.Check(height, hash) {
			pinned, _ := b.checkpoints.Hash(height)
			str := fmt.Sprintf("block at height %d does not match checkpoint hash: "+
				"expected %s, got %s", height, pinned, hash)
			return chaindata.NewRuleError(chaindata.ErrCheckpointMismatch, str)
		}
		return nil
	}

	powHash := b.hasher.PowHash(block.HashingBlob(), b.hardforks.Variant(block))
	if !pow.CheckHash(powHash, difficulty) {
		str := fmt.Sprintf("block %s proof of work %s is too weak for difficulty %d",
			hash, powHash, difficulty)
		return chaindata.NewRuleError(chaindata.ErrHighHash, str)
	}
	return nil
}

// prevalidateMinerTx checks the shape of the miner transaction: a single
// generation input carrying the block height, the mined money unlock time
// and outputs that do not overflow.
func (b *BlockChain) prevalidateMinerTx(block *wire.MsgBlock, height uint32) error {
	tx := &block.MinerTx
	if len(tx.TxIn) != 1 {
		str := fmt.Sprintf("miner transaction has %d inputs, expected 1", len(tx.TxIn))
		return chaindata.NewRuleError(chaindata.ErrBadMinerTx, str)
	}
	gen, ok := tx.TxIn[0].(*wire.TxInGen)
	if !ok {
		return chaindata.NewRuleError(chaindata.ErrBadMinerTx,
			"miner transaction input is not a generation input")
	}
	if gen.Height != height {
		str := fmt.Sprintf("miner transaction height %d, block height %d", gen.Height, height)
		return chaindata.NewRuleError(chaindata.ErrBadMinerTx, str)
	}

	unlock := uint64(height) + b.consensus.MinedMoneyUnlockWindow
	if tx.UnlockTime != unlock {
		str := fmt.Sprintf("miner transaction unlock time %d, expected %d", tx.UnlockTime, unlock)
		return chaindata.NewRuleError(chaindata.ErrBadMinerTx, str)
	}

	if _, ok := tx.OutputsAmount(); !ok {
		return chaindata.NewRuleError(chaindata.ErrBadMinerTx,
			"miner transaction outputs overflow")
	}
	return checkOutputs(tx)
}

// checkOutputs rejects zero amounts and malformed multisignature targets.
func checkOutputs(tx *wire.MsgTx) error {
	for i, out := range tx.TxOut {
		if out.Amount == 0 {
			str := fmt.Sprintf("output %d has zero amount", i)
			return chaindata.NewRuleError(chaindata.ErrBadTx, str)
		}
		if ms, ok := out.Target.(*wire.TxOutMultisig); ok {
			if ms.RequiredSignatures == 0 || int(ms.RequiredSignatures) > len(ms.Keys) {
				str := fmt.Sprintf("output %d requires %d of %d signatures",
					i, ms.RequiredSignatures, len(ms.Keys))
				return chaindata.NewRuleError(chaindata.ErrBadTx, str)
			}
		}
	}
	return nil
}

// isUnlocked reports whether an output with unlockTime may be spent by a
// block at height.  Unlock times below maxBlockNumber are heights, the rest
// unix timestamps.
func (b *BlockChain) isUnlocked(unlockTime uint64, height uint32) bool {
	if unlockTime < maxBlockNumber {
		return uint64(height)+lockedTxAllowedDeltaBlocks-1 >= unlockTime
	}
	delta := b.consensus.DifficultyTarget / time.Second
	return uint64(b.clock.Now().Unix())+uint64(delta) >= unlockTime
}

// checkTxInputs validates a non-miner transaction against the chain as it
// would be spent by a block at height, and returns its fee.  Ring
// signatures are not verified; only their layout is.
//
// This function MUST be called with the chain lock held (for reads).
func (b *BlockChain) checkTxInputs(tx *wire.MsgTx, hash chainhash.Hash, height uint32) (uint64, error) {
	if tx.Version == 0 || tx.Version > b.consensus.CurrentTransactionVersion {
		str := fmt.Sprintf("transaction %s has unsupported version %d", hash, tx.Version)
		return 0, chaindata.NewRuleError(chaindata.ErrBadTx, str)
	}
	if len(tx.TxIn) == 0 {
		str := fmt.Sprintf("transaction %s has no inputs", hash)
		return 0, chaindata.NewRuleError(chaindata.ErrBadTx, str)
	}
	if len(tx.Signatures) != len(tx.TxIn) {
		str := fmt.Sprintf("transaction %s has %d signature sets for %d inputs",
			hash, len(tx.Signatures), len(tx.TxIn))
		return 0, chaindata.NewRuleError(chaindata.ErrBadTx, str)
	}
	if err := checkOutputs(tx); err != nil {
		return 0, err
	}

	for i, in := range tx.TxIn {
		if len(tx.Signatures[i]) != in.SignatureCount() {
			str := fmt.Sprintf("transaction %s input %d has %d signatures, expected %d",
				hash, i, len(tx.Signatures[i]), in.SignatureCount())
			return 0, chaindata.NewRuleError(chaindata.ErrBadTx, str)
		}

		switch in := in.(type) {
		case *wire.TxInGen:
			str := fmt.Sprintf("transaction %s has a generation input", hash)
			return 0, chaindata.NewRuleError(chaindata.ErrBadInput, str)

		case *wire.TxInToKey:
			if err := b.checkKeyInput(in, hash, height); err != nil {
				return 0, err
			}

		case *wire.TxInMultisig:
			if err := b.checkMultisigInput(in, hash, height); err != nil {
				return 0, err
			}
		}
	}

	fee, err := tx.Fee()
	if err != nil {
		return 0, chaindata.NewRuleError(chaindata.ErrBadTx,
			fmt.Sprintf("transaction %s: %v", hash, err))
	}
	return fee, nil
}

// checkKeyInput resolves every ring member and ensures the key image is
// unspent.  Outputs of the block being connected are not spendable within it.
func (b *BlockChain) checkKeyInput(in *wire.TxInToKey, hash chainhash.Hash, height uint32) error {
	if _, ok := b.spentKeyImages[in.KeyImage]; ok {
		str := fmt.Sprintf("key image %s of %s already spent", in.KeyImage, hash)
		return chaindata.NewRuleError(chaindata.ErrDoubleSpend, str)
	}
	if len(in.KeyOffsets) == 0 {
		str := fmt.Sprintf("key input of %s has an empty ring", hash)
		return chaindata.NewRuleError(chaindata.ErrBadInput, str)
	}

	refs := b.outputs[in.Amount]
	for _, idx := range in.AbsoluteOffsets() {
		if int(idx) >= len(refs) {
			str := fmt.Sprintf("ring member %d of amount %d in %s is unknown, %d outputs exist",
				idx, in.Amount, hash, len(refs))
			return chaindata.NewRuleError(chaindata.ErrBadInput, str)
		}
		if refs[idx].tx.Block >= height {
			str := fmt.Sprintf("ring member %d of amount %d in %s is created by the same block",
				idx, in.Amount, hash)
			return chaindata.NewRuleError(chaindata.ErrBadInput, str)
		}
		if !b.isUnlocked(refs[idx].unlockTime, height) {
			str := fmt.Sprintf("ring member %d of amount %d in %s is still locked",
				idx, in.Amount, hash)
			return chaindata.NewRuleError(chaindata.ErrBadInput, str)
		}
	}
	return nil
}

// checkMultisigInput ensures the referenced output exists in an earlier
// block, is unspent and unlocked, and that the input carries the required
// signature count.
func (b *BlockChain) checkMultisigInput(in *wire.TxInMultisig, hash chainhash.Hash, height uint32) error {
	refs := b.multisigs[in.Amount]
	if int(in.OutputIndex) >= len(refs) {
		str := fmt.Sprintf("multisig output %d of amount %d in %s is unknown",
			in.OutputIndex, in.Amount, hash)
		return chaindata.NewRuleError(chaindata.ErrBadInput, str)
	}
	ref := refs[in.OutputIndex]
	if ref.tx.Block >= height {
		str := fmt.Sprintf("multisig output %d of amount %d in %s is created by the same block",
			in.OutputIndex, in.Amount, hash)
		return chaindata.NewRuleError(chaindata.ErrBadInput, str)
	}
	if ref.used {
		str := fmt.Sprintf("multisig output %d of amount %d in %s already spent",
			in.OutputIndex, in.Amount, hash)
		return chaindata.NewRuleError(chaindata.ErrDoubleSpend, str)
	}
	if !b.isUnlocked(ref.unlockTime, height) {
		str := fmt.Sprintf("multisig output %d of amount %d in %s is still locked",
			in.OutputIndex, in.Amount, hash)
		return chaindata.NewRuleError(chaindata.ErrBadInput, str)
	}

	entry, err := b.store.Get(ref.tx.Block)
	if err != nil {
		return err
	}
	out := entry.Transactions[ref.tx.Transaction].Tx.TxOut[ref.output]
	target, ok := out.Target.(*wire.TxOutMultisig)
	if !ok {
		return chaindata.AssertError(fmt.Sprintf("multisig registry points to %s output %d",
			ref.tx, ref.output))
	}
	if target.RequiredSignatures != in.Signatures {
		str := fmt.Sprintf("multisig input of %s carries %d signatures, output requires %d",
			hash, in.Signatures, target.RequiredSignatures)
		return chaindata.NewRuleError(chaindata.ErrBadInput, str)
	}
	return nil
}

// ValidateTransaction checks a loose transaction against the main chain as
// if it were included in the next block, and returns its fee.  It is the
// validator the transaction pool uses for relayed transactions.
//
// This function is safe for concurrent access.
func (b *BlockChain) ValidateTransaction(tx *wire.MsgTx) (uint64, error) {
	blob, err := tx.Bytes()
	if err != nil {
		return 0, chaindata.NewRuleError(chaindata.ErrBadTx, err.Error())
	}
	if uint64(len(blob)) > b.consensus.MaxTxSize {
		str := fmt.Sprintf("transaction size %d exceeds %d", len(blob), b.consensus.MaxTxSize)
		return 0, chaindata.NewRuleError(chaindata.ErrBadTx, str)
	}
	hash := chainhash.HashH(blob)

	b.chainLock.RLock()
	defer b.chainLock.RUnlock()

	if _, ok := b.transactions[hash]; ok {
		str := fmt.Sprintf("transaction %s already in the chain", hash)
		return 0, chaindata.NewRuleError(chaindata.ErrDuplicateTx, str)
	}

	seen := make(map[wire.KeyImage]struct{})
	for _, ki := range tx.KeyImages() {
		if _, ok := seen[ki]; ok {
			str := fmt.Sprintf("key image %s used twice in %s", ki, hash)
			return 0, chaindata.NewRuleError(chaindata.ErrDoubleSpend, str)
		}
		seen[ki] = struct{}{}
	}
	return b.checkTxInputs(tx, hash, uint32(len(b.mainChain)))
}
