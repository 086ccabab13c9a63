// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenesisBlock(t *testing.T) {
	params := MainNet.Params()
	blk, err := params.GenesisBlock()
	require.NoError(t, err)

	require.True(t, blk.MinerTx.IsCoinBase())
	assert.Len(t, blk.MinerTx.TxOut, 1)
	assert.EqualValues(t, 70368744177663, blk.MinerTx.TxOut[0].Amount)
	assert.EqualValues(t, 10, blk.MinerTx.UnlockTime)
	assert.Empty(t, blk.TxHashes)

	assert.Equal(t, "2734b067c7cfc24d68f6bb1049d8b6fb10f9d9e21e31fd9a86b4d6ae5d24fab5",
		blk.MinerTx.TxHash().String())
	assert.Equal(t, "a742885cb01d11b7b36fb8bf14616d42cd3d8c1429a224df41afa81b86b8a3a8",
		blk.BlockHash().String())

	raw, err := blk.MinerTx.Bytes()
	require.NoError(t, err)
	assert.Len(t, raw, 80)
}

func TestNetworkParams(t *testing.T) {
	assert.Equal(t, "testnet", TestNet.Params().Name)
	assert.Equal(t, "simnet", SimNet.Params().Name)
	assert.Equal(t, "mainnet", NetName("unknown").Params().Name)

	// Params returns copies.
	p := MainNet.Params()
	p.DefaultPort = 1
	assert.EqualValues(t, 8080, MainNetParams.DefaultPort)

	d := p.Consensus.Difficulty()
	assert.EqualValues(t, 120, d.TargetSeconds)
	assert.Equal(t, 735, d.HistoryLen())
	assert.NotNil(t, p.Hasher())
}
