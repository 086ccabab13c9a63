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

// altChainTo walks the alternative branches down from hash and returns the
// branch oldest block first, together with the main chain block it forks
// from.  ok is false when the walk ends on a block that is not on the main
// chain.
//
// This function MUST be called with the chain lock held (for reads).
func (b *BlockChain) altChainTo(hash chainhash.Hash) (branch []*chaindata.BlockEntry, forkHeight uint32, ok bool) {
	cursor := hash
	for {
		entry, found := b.altChains[cursor]
		if !found {
			break
		}
		branch = append(branch, entry)
		cursor = entry.Block.Header.PrevBlock
	}
	forkHeight, ok = b.blockHeights[cursor]

	for i, j := 0, len(branch)-1; i < j; i, j = i+1, j-1 {
		branch[i], branch[j] = branch[j], branch[i]
	}
	return branch, forkHeight, ok
}

// altTimestamps returns the timestamps a block extending branch is checked
// against: the branch itself completed with main chain blocks below the fork
// up to the check window.
//
// This function MUST be called with the chain lock held (for reads).
func (b *BlockChain) altTimestamps(branch []*chaindata.BlockEntry, forkHeight uint32) []uint64 {
	window := b.consensus.TimestampCheckWindow
	timestamps := make([]uint64, 0, window)
	for _, entry := range branch {
		timestamps = append(timestamps, entry.Block.Header.Timestamp)
	}
	if len(timestamps) >= window {
		return timestamps
	}

	need := window - len(timestamps)
	for h := int(forkHeight); h >= 0 && need > 0; h-- {
		timestamps = append(timestamps, b.mainChain[h].timestamp)
		need--
	}
	return timestamps
}

// handleAlternativeBlock validates a block that does not extend the main
// chain tip and stores it on its branch.  The branch replaces the main chain
// when the block carries it past the main chain cumulative difficulty or is
// pinned by a checkpoint.
//
// This function MUST be called with the chain lock held (for writes).
func (b *BlockChain) handleAlternativeBlock(block *wire.MsgBlock, hash chainhash.Hash,
	bvc *chaindata.BlockVerificationContext) {
	branch, forkHeight, ok := b.altChainTo(block.Header.PrevBlock)
	if !ok {
		log.Debug().Stringer("block", hash).Stringer("prev", block.Header.PrevBlock).
			Msg("block parent is unknown, marked as orphaned")
		bvc.Flags |= chaindata.BVMarkedAsOrphaned
		return
	}

	height := forkHeight + 1 + uint32(len(branch))
	chainHeight := uint32(len(b.mainChain))
	if !b.checkpoints.IsAllowed(chainHeight, height) {
		str := fmt.Sprintf("alternative block %s at height %d is below a checkpoint, chain height %d",
			hash, height, chainHeight)
		bvc.Fail(chaindata.NewRuleError(chaindata.ErrCheckpointZone, str))
		return
	}

	if err := b.validateAlternativeBlock(block, hash, height, branch, forkHeight); err != nil {
		log.Debug().Stringer("block", hash).Err(err).Msg("alternative block rejected")
		bvc.Fail(err)
		return
	}

	prevDifficulty := b.mainChain[forkHeight].cumulativeDifficulty
	if len(branch) > 0 {
		prevDifficulty = branch[len(branch)-1].CumulativeDifficulty
	}
	difficulty, _ := b.nextDifficultyAlt(branch, forkHeight+1)

	entry := &chaindata.BlockEntry{
		Block:                *block,
		Height:               height,
		CumulativeDifficulty: prevDifficulty + difficulty,
	}
	b.altChains[hash] = entry
	b.saveAltBlock(hash, entry)
	branch = append(branch, entry)

	pinned := b.checkpoints.IsCheckpoint(height)
	if pinned || b.topInfo().cumulativeDifficulty < entry.CumulativeDifficulty {
		log.Info().Str("chain", b.chainParams.Name).Msgf("REORGANIZE: Block %s at height %d is causing a reorganize "+
			"(fork at %d, main difficulty %d, alternative %d)", hash, height, forkHeight,
			b.topInfo().cumulativeDifficulty, entry.CumulativeDifficulty)

		if err := b.switchToAlternative(branch, forkHeight+1); err != nil {
			bvc.Fail(err)
			return
		}
		bvc.Flags |= chaindata.BVAddedToMainChain | chaindata.BVSwitchedToAltChain
		return
	}

	log.Info().Str("chain", b.chainParams.Name).Msgf("FORK: Block %s at height %d added to a side chain "+
		"(fork at %d, cumulative difficulty %d)", hash, height, forkHeight, entry.CumulativeDifficulty)
	bvc.Flags |= chaindata.BVAddedAsAlternative
	b.queueNotification(NTNewAlternativeBlock, &BlockNotification{Hash: hash, Height: height})
}

// validateAlternativeBlock runs the context free rules and the branch
// dependent timestamp and proof-of-work rules.  Transactions are only
// checked once the branch is pushed onto the main chain.
//
// This function MUST be called with the chain lock held (for reads).
func (b *BlockChain) validateAlternativeBlock(block *wire.MsgBlock, hash chainhash.Hash, height uint32,
	branch []*chaindata.BlockEntry, forkHeight uint32) error {
	if err := b.checkBlockVersion(block, height); err != nil {
		return err
	}
	if err := b.checkFutureTimestamp(block); err != nil {
		return err
	}
	if err := b.checkTimestamps(b.altTimestamps(branch, forkHeight), block); err != nil {
		return err
	}

	difficulty, err := b.nextDifficultyAlt(branch, forkHeight+1)
	if err != nil || difficulty == 0 {
		str := fmt.Sprintf("can't compute difficulty of alternative height %d: %v", height, err)
		return chaindata.NewRuleError(chaindata.ErrDifficulty, str)
	}
	if err := b.checkProofOfWork(block, hash, height, difficulty); err != nil {
		return err
	}
	return b.prevalidateMinerTx(block, height)
}

// switchToAlternative makes branch the main chain.  The main chain is popped
// down to splitHeight and the branch pushed on top; the popped blocks become
// an alternative branch.  When a branch block fails, the original chain is
// restored and the failing block and its descendants are forgotten.
//
// This function MUST be called with the chain lock held (for writes).
func (b *BlockChain) switchToAlternative(branch []*chaindata.BlockEntry, splitHeight uint32) error {
	var disconnected []*chaindata.BlockEntry
	for uint32(len(b.mainChain)) > splitHeight {
		entry, err := b.popBlock()
		if err != nil {
			return err
		}
		disconnected = append([]*chaindata.BlockEntry{entry}, disconnected...)
		b.returnToPool(blockTransactions(entry))
	}

	hashes := make([]chainhash.Hash, 0, len(branch))
	for i, alt := range branch {
		hash := alt.Hash()
		if err := b.pushBlockFromPool(&alt.Block, hash); err != nil {
			log.Warn().Str("chain", b.chainParams.Name).Msgf("REORGANIZE: Alternative block %s at height %d "+
				"failed, rolling back: %v", hash, alt.Height, err)

			if rollbackErr := b.rollbackSwitch(disconnected, splitHeight); rollbackErr != nil {
				return rollbackErr
			}
			for _, bad := range branch[i:] {
				badHash := bad.Hash()
				delete(b.altChains, badHash)
				b.deleteAltBlock(badHash)
			}
			return b.halt(err)
		}
		hashes = append(hashes, hash)
	}

	for _, old := range disconnected {
		hash := old.Hash()
		alt := &chaindata.BlockEntry{
			Block:                 old.Block,
			Height:                old.Height,
			BlockCumulativeSize:   old.BlockCumulativeSize,
			CumulativeDifficulty:  old.CumulativeDifficulty,
			AlreadyGeneratedCoins: old.AlreadyGeneratedCoins,
		}
		b.altChains[hash] = alt
		b.saveAltBlock(hash, alt)
	}
	for _, alt := range branch {
		hash := alt.Hash()
		delete(b.altChains, hash)
		b.deleteAltBlock(hash)
	}

	log.Info().Str("chain", b.chainParams.Name).Msgf("REORGANIZE: New best chain head is %s (height %d), "+
		"%d blocks disconnected", b.topInfo().hash, len(b.mainChain)-1, len(disconnected))
	b.queueNotification(NTChainSwitched, &ChainSwitchNotification{
		CommonRoot: splitHeight - 1,
		Hashes:     hashes,
	})
	return nil
}

// rollbackSwitch pops whatever part of a branch got pushed and restores the
// disconnected main chain blocks.  Failing to restore them halts the chain.
//
// This function MUST be called with the chain lock held (for writes).
func (b *BlockChain) rollbackSwitch(disconnected []*chaindata.BlockEntry, splitHeight uint32) error {
	for uint32(len(b.mainChain)) > splitHeight {
		entry, err := b.popBlock()
		if err != nil {
			return err
		}
		b.returnToPool(blockTransactions(entry))
	}

	for _, entry := range disconnected {
		if err := b.pushBlockFromPool(&entry.Block, entry.Hash()); err != nil {
			return b.halt(chaindata.AssertError(fmt.Sprintf(
				"can't restore block %s at height %d: %v", entry.Hash(), entry.Height, err)))
		}
	}
	return nil
}
