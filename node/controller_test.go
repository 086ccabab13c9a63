// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/jaxnet/cnoted/network/p2p"
	"gitlab.com/jaxnet/cnoted/types/chaincfg"
)

func TestParseCheckpoints(t *testing.T) {
	hash := "a0d6b1a8f9e5cfbd2e2b3b8d5e1a7fc1b52a8b71c5e8b6c1f7f56a9b4c0c2d1e"

	cfg := InstanceConfig{Checkpoints: []string{"10:" + hash}}
	cps, err := cfg.ParseCheckpoints()
	require.NoError(t, err)
	require.Len(t, cps, 1)
	assert.EqualValues(t, 10, cps[0].Height)
	assert.Equal(t, hash, cps[0].Hash)

	tests := []string{
		"10",
		"x:" + hash,
		"10:",
		"10:zz",
		"-1:" + hash,
	}
	for _, test := range tests {
		cfg := InstanceConfig{Checkpoints: []string{test}}
		_, err := cfg.ParseCheckpoints()
		assert.Error(t, err, test)
	}

	empty := InstanceConfig{}
	cps, err = empty.ParseCheckpoints()
	require.NoError(t, err)
	assert.Nil(t, cps)
}

func TestChainParamsByName(t *testing.T) {
	cfg := InstanceConfig{Net: "simnet"}
	assert.Equal(t, chaincfg.SimNetParams.Name, cfg.ChainParams().Name)

	cfg.Net = "unknown"
	assert.Equal(t, chaincfg.MainNetParams.Name, cfg.ChainParams().Name)
}

// A node started on an empty data dir creates its files, and a second run
// picks the chain state back up.
func TestControllerRun(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		DataDir: dir,
		Node: InstanceConfig{
			Net: "simnet",
			P2P: p2p.Config{DisableListen: true, DisableOutbound: true},
		},
	}
	params := cfg.Node.ChainParams()

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		err := Controller().Run(ctx, cfg)
		cancel()
		require.NoError(t, err, "run %d", i)

		assert.FileExists(t, filepath.Join(dir, params.BlocksFileName))
		assert.FileExists(t, filepath.Join(dir, params.BlockIndexesFileName))
		assert.FileExists(t, filepath.Join(dir, params.PeerStoreFileName))
		assert.DirExists(t, filepath.Join(dir, params.MetaDBName))
	}
}

func TestControllerRejectsBadCheckpoint(t *testing.T) {
	cfg := &Config{
		DataDir: t.TempDir(),
		Node: InstanceConfig{
			Net:         "simnet",
			P2P:         p2p.Config{DisableListen: true, DisableOutbound: true},
			Checkpoints: []string{"bad"},
		},
	}
	assert.Error(t, Controller().Run(context.Background(), cfg))
}
