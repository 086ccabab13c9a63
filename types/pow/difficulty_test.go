// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/jaxnet/cnoted/types/chainhash"
)

var testParams = DifficultyParams{TargetSeconds: 120, Window: 720, Cut: 60, Lag: 15}

func TestNextDifficultyShortHistory(t *testing.T) {
	d, err := NextDifficulty(nil, nil, testParams)
	require.NoError(t, err)
	assert.EqualValues(t, 1, d)

	d, err = NextDifficulty([]uint64{100}, []uint64{5}, testParams)
	require.NoError(t, err)
	assert.EqualValues(t, 1, d)

	_, err = NextDifficulty([]uint64{1, 2}, []uint64{1}, testParams)
	require.Error(t, err)
}

func TestNextDifficultySteadyState(t *testing.T) {
	const work = 1000

	for _, n := range []int{10, 100, 600, 720, 735, 2000} {
		ts := make([]uint64, n)
		cd := make([]uint64, n)
		for i := 0; i < n; i++ {
			ts[i] = 1000000 + uint64(i)*testParams.TargetSeconds
			cd[i] = uint64(i+1) * work
		}
		d, err := NextDifficulty(ts, cd, testParams)
		require.NoError(t, err)
		assert.InDelta(t, work, d, 2, "history of %d blocks", n)
	}
}

func TestNextDifficultyFasterBlocksRaiseDifficulty(t *testing.T) {
	const n = 300
	ts := make([]uint64, n)
	cd := make([]uint64, n)
	for i := 0; i < n; i++ {
		ts[i] = uint64(i) * 60
		cd[i] = uint64(i+1) * 100
	}
	d, err := NextDifficulty(ts, cd, testParams)
	require.NoError(t, err)
	assert.EqualValues(t, 200, d)
}

func TestNextDifficultyTrimsOutliers(t *testing.T) {
	const n = 720
	ts := make([]uint64, n)
	cd := make([]uint64, n)
	for i := 0; i < n; i++ {
		ts[i] = uint64(i) * 120
		cd[i] = uint64(i+1) * 10
	}
	base, err := NextDifficulty(ts, cd, testParams)
	require.NoError(t, err)

	// A handful of wild timestamps falls into the cut.
	ts[700] = 1 << 40
	ts[701] = 0
	d, err := NextDifficulty(ts, cd, testParams)
	require.NoError(t, err)
	assert.InDelta(t, base, d, 1)
}

func TestNextDifficultyZeroTimeSpan(t *testing.T) {
	ts := []uint64{50, 50, 50}
	cd := []uint64{1, 2, 3}
	d, err := NextDifficulty(ts, cd, testParams)
	require.NoError(t, err)
	assert.EqualValues(t, 2*testParams.TargetSeconds, d)

	_, err = NextDifficulty(ts, []uint64{3, 3, 3}, testParams)
	assert.ErrorIs(t, err, ErrNoWork)
}

func TestCheckHash(t *testing.T) {
	var h chainhash.Hash
	assert.True(t, CheckHash(h, 1))
	assert.False(t, CheckHash(h, 0))

	for i := range h {
		h[i] = 0xff
	}
	assert.True(t, CheckHash(h, 1))
	assert.False(t, CheckHash(h, 2))

	// Little-endian: only the last byte is significant at the top.
	var low chainhash.Hash
	low[31] = 0x01
	assert.True(t, CheckHash(low, 1<<7))
	assert.False(t, CheckHash(low, 1<<8))
}

func TestVariant(t *testing.T) {
	assert.Equal(t, 0, Variant(1))
	assert.Equal(t, 0, Variant(6))
	assert.Equal(t, 1, Variant(7))
	assert.Equal(t, 2, Variant(8))
}
