// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindata

import (
	"math/big"
	"sort"

	"gitlab.com/jaxnet/cnoted/types/chaincfg"
)

// BlockReward computes the miner reward for a block of currentBlockSize bytes
// given the median size of recent blocks, the coins emitted so far and the
// fees of the included transactions.
//
// Blocks larger than the median (floored to the full reward zone) lose a
// quadratic share of both the base reward and the fee; blocks larger than
// twice the median get no reward at all and ok is false.  emissionChange is
// the amount by which the generated coins counter grows: the penalized base
// reward minus the part of the fee that was burned.
func BlockReward(params *chaincfg.ConsensusParams, medianSize, currentBlockSize,
	alreadyGeneratedCoins, fee uint64) (reward uint64, emissionChange int64, ok bool) {
	if alreadyGeneratedCoins > params.MoneySupply {
		return 0, 0, false
	}
	baseReward := (params.MoneySupply - alreadyGeneratedCoins) >> params.EmissionSpeedFactor

	if medianSize < params.FullRewardZone {
		medianSize = params.FullRewardZone
	}
	if currentBlockSize > 2*medianSize {
		return 0, 0, false
	}

	penalizedBase := PenalizedAmount(baseReward, medianSize, currentBlockSize)
	penalizedFee := PenalizedAmount(fee, medianSize, currentBlockSize)

	emissionChange = int64(penalizedBase) - int64(fee-penalizedFee)
	return penalizedBase + penalizedFee, emissionChange, true
}

// PenalizedAmount scales amount by (2m - s) * s / m^2 when the block size s
// exceeds the median m.
func PenalizedAmount(amount, medianSize, currentBlockSize uint64) uint64 {
	if amount == 0 {
		return 0
	}
	if currentBlockSize <= medianSize {
		return amount
	}

	m := new(big.Int).SetUint64(medianSize)
	s := new(big.Int).SetUint64(currentBlockSize)
	multiplicand := new(big.Int).Sub(new(big.Int).Lsh(m, 1), s)
	multiplicand.Mul(multiplicand, s)

	res := new(big.Int).SetUint64(amount)
	res.Mul(res, multiplicand)
	res.Quo(res, m)
	res.Quo(res, m)
	return res.Uint64()
}

// MaxBlockCumulativeSize is the size limit of a block at height.
func MaxBlockCumulativeSize(params *chaincfg.ConsensusParams, height uint64) uint64 {
	growth := new(big.Int).SetUint64(height)
	growth.Mul(growth, new(big.Int).SetUint64(params.MaxBlockSizeGrowthNumerator))
	growth.Quo(growth, new(big.Int).SetUint64(params.MaxBlockSizeGrowthDenominator))
	return params.MaxBlockSizeInitial + growth.Uint64()
}

// Median returns the median of values without modifying them.  An even count
// averages the two middle values.
func Median(values []uint64) uint64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]uint64, n)
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if n%2 == 1 {
		return sorted[n/2]
	}
	a, b := sorted[n/2-1], sorted[n/2]
	return a/2 + b/2 + (a%2+b%2)/2
}
