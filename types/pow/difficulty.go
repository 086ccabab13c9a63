// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pow

import (
	"errors"
	"math/bits"
	"sort"
)

var (
	// ErrNoWork is returned when the trimmed window carries no work.
	ErrNoWork = errors.New("difficulty window has no accumulated work")

	// ErrDifficultyOverflow is returned when the next difficulty does not
	// fit into 64 bits.
	ErrDifficultyOverflow = errors.New("next difficulty overflows")
)

// DifficultyParams are the retargeting constants of a network.
type DifficultyParams struct {
	// TargetSeconds is the desired spacing between blocks.
	TargetSeconds uint64

	// Window is the number of blocks the computation looks at.
	Window int

	// Cut is the number of outliers trimmed from each end of the sorted
	// timestamps.
	Cut int

	// Lag is the number of most recent blocks left out of the window.
	Lag int
}

// HistoryLen is how many of the most recent blocks a caller has to supply.
func (p DifficultyParams) HistoryLen() int {
	return p.Window + p.Lag
}

// NextDifficulty computes the difficulty of the next block from the
// timestamps and cumulative difficulties of the preceding ones, oldest first.
//
// Only the most recent Window entries are used.  The timestamps are sorted
// and Cut outliers are dropped from each end; the cumulative difficulties are
// indexed with the same bounds but not sorted, so a timestamp and the work at
// the same position may belong to different blocks.
//
// The result is ceil(totalWork * TargetSeconds / timeSpan).  totalWork /
// timeSpan alone is work per second; scaling it by the target spacing gives
// the work expected of one block, as CryptoNote nodes compute it.  Dropping
// the factor would split the network from every other node.
func NextDifficulty(timestamps, cumulativeDifficulties []uint64, p DifficultyParams) (uint64, error) {
	if len(timestamps) != len(cumulativeDifficulties) {
		return 0, errors.New("timestamps and cumulative difficulties differ in length")
	}

	if len(timestamps) > p.Window {
		timestamps = timestamps[len(timestamps)-p.Window:]
		cumulativeDifficulties = cumulativeDifficulties[len(cumulativeDifficulties)-p.Window:]
	}

	length := len(timestamps)
	if length <= 1 {
		return 1, nil
	}

	sorted := make([]uint64, length)
	copy(sorted, timestamps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	kept := p.Window - 2*p.Cut
	var cutBegin, cutEnd int
	if length <= kept {
		cutBegin, cutEnd = 0, length
	} else {
		cutBegin = (length - kept + 1) / 2
		cutEnd = cutBegin + kept
	}

	timeSpan := sorted[cutEnd-1] - sorted[cutBegin]
	if timeSpan == 0 {
		timeSpan = 1
	}

	if cumulativeDifficulties[cutEnd-1] <= cumulativeDifficulties[cutBegin] {
		return 0, ErrNoWork
	}
	totalWork := cumulativeDifficulties[cutEnd-1] - cumulativeDifficulties[cutBegin]

	hi, lo := bits.Mul64(totalWork, p.TargetSeconds)
	if hi != 0 || lo+timeSpan-1 < lo {
		return 0, ErrDifficultyOverflow
	}
	return (lo + timeSpan - 1) / timeSpan, nil
}
