// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindata

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/jaxnet/cnoted/types/chaincfg"
	"gitlab.com/jaxnet/cnoted/types/chainhash"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

func TestBlockReward(t *testing.T) {
	params := &chaincfg.MainNet.Params().Consensus

	reward, change, ok := BlockReward(params, 0, 100, 0, 0)
	require.True(t, ok)
	assert.EqualValues(t, uint64(1<<46-1), reward)
	assert.EqualValues(t, reward, change)

	// The median is floored to the full reward zone.
	reward2, _, ok := BlockReward(params, 10, 20000, 0, 0)
	require.True(t, ok)
	assert.Equal(t, reward, reward2)

	// Fees are added on top.
	withFee, change, ok := BlockReward(params, 0, 100, 0, 500)
	require.True(t, ok)
	assert.Equal(t, reward+500, withFee)
	assert.EqualValues(t, reward, change)

	// 1.5 * median loses a quarter.
	penalized, change, ok := BlockReward(params, 20000, 30000, 0, 1000)
	require.True(t, ok)
	assert.EqualValues(t, PenalizedAmount(1<<46-1, 20000, 30000)+750, penalized)
	assert.EqualValues(t, int64(PenalizedAmount(1<<46-1, 20000, 30000))-250, change)

	_, _, ok = BlockReward(params, 20000, 40001, 0, 0)
	assert.False(t, ok)

	_, _, ok = BlockReward(params, 20000, 40000, 0, 0)
	assert.True(t, ok)
}

func TestPenalizedAmount(t *testing.T) {
	assert.EqualValues(t, 0, PenalizedAmount(0, 10, 15))
	assert.EqualValues(t, 100, PenalizedAmount(100, 10, 10))
	assert.EqualValues(t, 75, PenalizedAmount(100, 10, 15))
	assert.EqualValues(t, 0, PenalizedAmount(100, 10, 20))
}

func TestMaxBlockCumulativeSize(t *testing.T) {
	params := &chaincfg.MainNet.Params().Consensus
	assert.EqualValues(t, 20*1024, MaxBlockCumulativeSize(params, 0))
	assert.EqualValues(t, 20*1024+100*1024, MaxBlockCumulativeSize(params, 262800))
}

func TestMedian(t *testing.T) {
	assert.EqualValues(t, 0, Median(nil))
	assert.EqualValues(t, 3, Median([]uint64{5, 1, 3}))
	assert.EqualValues(t, 2, Median([]uint64{4, 1, 3, 1}))

	values := []uint64{9, 8, 7}
	Median(values)
	assert.Equal(t, []uint64{9, 8, 7}, values)
}

func TestCheckpoints(t *testing.T) {
	cp, err := NewCheckpoints(nil)
	require.NoError(t, err)

	assert.False(t, cp.IsAllowed(10, 0))
	assert.True(t, cp.IsAllowed(10, 1))
	assert.False(t, cp.IsInCheckpointZone(0))

	h := chainhash.HashH([]byte("pin"))
	require.NoError(t, cp.AddHash(100, h))
	require.NoError(t, cp.Add(50, chainhash.HashH([]byte("pin50")).String()))
	assert.Error(t, cp.AddHash(100, chainhash.ZeroHash))
	assert.Error(t, cp.Add(7, "zz"))

	assert.True(t, cp.Check(100, h))
	assert.False(t, cp.Check(100, chainhash.ZeroHash))
	assert.False(t, cp.Check(101, h))
	assert.True(t, cp.IsCheckpoint(50))
	assert.Equal(t, []uint32{50, 100}, cp.Heights())

	assert.True(t, cp.IsInCheckpointZone(100))
	assert.False(t, cp.IsInCheckpointZone(101))

	// Below every pin nothing is locked.
	assert.True(t, cp.IsAllowed(40, 5))
	// Past pin 50 only blocks above it may be replaced.
	assert.False(t, cp.IsAllowed(60, 50))
	assert.True(t, cp.IsAllowed(60, 51))
	assert.False(t, cp.IsAllowed(150, 100))
	assert.True(t, cp.IsAllowed(150, 101))
}

func TestHardforks(t *testing.T) {
	hf := NewHardforks([]chaincfg.Hardfork{
		{Height: 100, MajorVersion: 3},
		{Height: 10, MajorVersion: 2},
	})
	assert.EqualValues(t, 1, hf.MajorVersion(0))
	assert.EqualValues(t, 1, hf.MajorVersion(9))
	assert.EqualValues(t, 2, hf.MajorVersion(10))
	assert.EqualValues(t, 2, hf.MajorVersion(99))
	assert.EqualValues(t, 3, hf.MajorVersion(1000))

	blk := &wire.MsgBlock{Header: wire.BlockHeader{MajorVersion: 8}}
	assert.Equal(t, 2, hf.Variant(blk))
}

func TestBlockEntryRoundTrip(t *testing.T) {
	genesis, err := chaincfg.MainNet.Params().GenesisBlock()
	require.NoError(t, err)

	entry := &BlockEntry{
		Block:                 *genesis,
		Height:                0,
		BlockCumulativeSize:   123,
		CumulativeDifficulty:  1,
		AlreadyGeneratedCoins: genesis.MinerTx.TxOut[0].Amount,
		Transactions: []TransactionEntry{
			{Tx: genesis.MinerTx, GlobalOutputIndexes: []uint32{0}},
		},
	}

	raw, err := entry.Bytes()
	require.NoError(t, err)

	decoded, err := NewBlockEntryFromBytes(raw)
	require.NoError(t, err)
	reencoded, err := decoded.Bytes()
	require.NoError(t, err)
	assert.Equal(t, raw, reencoded)
	assert.Equal(t, entry.Height, decoded.Height)
	assert.Equal(t, entry.BlockCumulativeSize, decoded.BlockCumulativeSize)
	assert.Equal(t, entry.CumulativeDifficulty, decoded.CumulativeDifficulty)
	assert.Equal(t, entry.AlreadyGeneratedCoins, decoded.AlreadyGeneratedCoins)
	require.Len(t, decoded.Transactions, 1)
	assert.Equal(t, []uint32{0}, decoded.Transactions[0].GlobalOutputIndexes)
	assert.Equal(t, genesis.MinerTx.TxHash(), decoded.Transactions[0].Tx.TxHash())
	assert.Equal(t, genesis.BlockHash(), decoded.Hash())

	_, err = NewBlockEntryFromBytes(raw[:len(raw)-1])
	require.Error(t, err)
	assert.True(t, wire.IsDecodeError(err))
}

func TestRuleError(t *testing.T) {
	err := error(NewRuleError(ErrHighHash, "hash too high"))
	assert.True(t, IsRuleError(err, ErrHighHash))
	assert.False(t, IsRuleError(err, ErrBadReward))
	assert.False(t, IsRuleError(errors.New("x"), ErrHighHash))
	assert.Equal(t, "ErrHighHash", ErrHighHash.String())
	assert.Contains(t, AssertError("broken").Error(), "broken")

	flags := BVFailed | BVAlreadyExists
	assert.Equal(t, "verification_failed|already_exists", flags.String())
}
