// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/jaxnet/cnoted/node/blockchain"
	"gitlab.com/jaxnet/cnoted/types/chainhash"
)

type fakeChain struct {
	height   uint32
	callback blockchain.NotificationCallback
}

func (c *fakeChain) Height() uint32                     { return c.height }
func (c *fakeChain) CumulativeDifficulty() uint64       { return 77 }
func (c *fakeChain) CurrentDifficulty() (uint64, error) { return 3, nil }
func (c *fakeChain) CirculatedCoins() uint64            { return 1000 }
func (c *fakeChain) TransactionCount() uint64           { return 12 }
func (c *fakeChain) AlternativeBlockCount() int         { return 2 }
func (c *fakeChain) MedianBlockSize() uint64            { return 20000 }

func (c *fakeChain) Subscribe(callback blockchain.NotificationCallback) {
	c.callback = callback
}

type fakeStats map[string]float64

func (s fakeStats) Stats() map[string]float64 { return s }

func newTestManager(t *testing.T) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, time.Hour, nil)
}

func TestChainMetrics(t *testing.T) {
	m := newTestManager(t)
	chain := &fakeChain{height: 10}
	m.Add(ChainMetrics(m, chain, "simnet"))
	require.NotNil(t, chain.callback)

	m.Collect()
	count, err := testutil.GatherAndCount(m.Registry(), "cnoted_chain_height")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	chain.height = 11
	m.Collect()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	values := make(map[string]float64)
	for _, f := range families {
		if metric := f.GetMetric()[0]; metric.GetGauge() != nil {
			values[f.GetName()] = metric.GetGauge().GetValue()
		}
	}
	assert.EqualValues(t, 11, values["cnoted_chain_height"])
	assert.EqualValues(t, 3, values["cnoted_chain_difficulty"])
	assert.EqualValues(t, 2, values["cnoted_chain_alternative_blocks"])

	chain.callback(&blockchain.Notification{Type: blockchain.NTNewBlock})
	chain.callback(&blockchain.Notification{Type: blockchain.NTNewBlock})
	chain.callback(&blockchain.Notification{
		Type: blockchain.NTChainSwitched,
		Data: &blockchain.ChainSwitchNotification{Hashes: make([]chainhash.Hash, 3)},
	})

	s := m.metrics[0].(*chainMetrics)
	assert.EqualValues(t, 2, testutil.ToFloat64(s.newBlocks))
	assert.EqualValues(t, 1, testutil.ToFloat64(s.chainSwitches))
	assert.EqualValues(t, 3, testutil.ToFloat64(s.switchedBlocks))
	assert.EqualValues(t, 0, testutil.ToFloat64(s.altBlocks))
}

func TestNodeMetrics(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blocks.dat"), make([]byte, 100), 0600))

	m := newTestManager(t)
	m.Add(NodeMetrics(m, "p2p", dir, fakeStats{"connections": 4}))
	m.Collect()

	s := m.metrics[0].(*nodeMetrics)
	assert.EqualValues(t, 4, testutil.ToFloat64(s.gauges.metricByName["cnoted_p2p_connections"]))
	assert.EqualValues(t, 100, testutil.ToFloat64(s.gauges.metricByName["cnoted_node_data_size"]))
}
