// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"gitlab.com/jaxnet/cnoted/node/chaindata"
	"gitlab.com/jaxnet/cnoted/types/pow"
)

// difficultyBlocksCount is how many preceding blocks the retarget looks at
// before the lag is cut off.
func (b *BlockChain) difficultyBlocksCount() int {
	return b.consensus.Difficulty().HistoryLen()
}

// calcNextDifficulty applies the lag and runs the retarget.  The history is
// oldest first; when it is longer than the window, only the oldest window
// entries are used, which leaves the most recent blocks out.
func (b *BlockChain) calcNextDifficulty(timestamps, cumulativeDifficulties []uint64) (uint64, error) {
	params := b.consensus.Difficulty()
	if len(timestamps) > params.Window {
		timestamps = timestamps[:params.Window]
		cumulativeDifficulties = cumulativeDifficulties[:params.Window]
	}
	return pow.NextDifficulty(timestamps, cumulativeDifficulties, params)
}

// nextDifficultyMain returns the difficulty required for the block extending
// the main chain.  Genesis never takes part in the retarget.
//
// This function MUST be called with the chain lock held (for reads).
func (b *BlockChain) nextDifficultyMain() (uint64, error) {
	count := len(b.mainChain)
	offset := count - minInt(count, b.difficultyBlocksCount())
	if offset == 0 {
		offset = 1
	}

	var timestamps, cumulativeDifficulties []uint64
	for i := offset; i < count; i++ {
		timestamps = append(timestamps, b.mainChain[i].timestamp)
		cumulativeDifficulties = append(cumulativeDifficulties, b.mainChain[i].cumulativeDifficulty)
	}
	return b.calcNextDifficulty(timestamps, cumulativeDifficulties)
}

// nextDifficultyAlt returns the difficulty required for a block extending an
// alternative branch.  altChain holds the branch from its oldest block, which
// sits right above the main chain block at splitHeight-1.  The history is
// the main chain up to the split followed by the branch, limited to the most
// recent difficultyBlocksCount blocks.
//
// This function MUST be called with the chain lock held (for reads).
func (b *BlockChain) nextDifficultyAlt(altChain []*chaindata.BlockEntry, splitHeight uint32) (uint64, error) {
	need := b.difficultyBlocksCount()

	var timestamps, cumulativeDifficulties []uint64
	if len(altChain) < need {
		mainCount := minInt(need-len(altChain), int(splitHeight))
		start := int(splitHeight) - mainCount
		if start == 0 {
			start = 1
		}
		for i := start; i < int(splitHeight); i++ {
			timestamps = append(timestamps, b.mainChain[i].timestamp)
			cumulativeDifficulties = append(cumulativeDifficulties, b.mainChain[i].cumulativeDifficulty)
		}
	} else {
		altChain = altChain[len(altChain)-need:]
	}

	for _, entry := range altChain {
		timestamps = append(timestamps, entry.Block.Header.Timestamp)
		cumulativeDifficulties = append(cumulativeDifficulties, entry.CumulativeDifficulty)
	}
	return b.calcNextDifficulty(timestamps, cumulativeDifficulties)
}

// CurrentDifficulty returns the difficulty the next main chain block has to
// meet.
//
// This function is safe for concurrent access.
func (b *BlockChain) CurrentDifficulty() (uint64, error) {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	return b.nextDifficultyMain()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
