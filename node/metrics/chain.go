// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"gitlab.com/jaxnet/cnoted/node/blockchain"
)

// chainSource is the part of the chain the metrics read.
type chainSource interface {
	Height() uint32
	CumulativeDifficulty() uint64
	CurrentDifficulty() (uint64, error)
	CirculatedCoins() uint64
	TransactionCount() uint64
	AlternativeBlockCount() int
	MedianBlockSize() uint64
	Subscribe(callback blockchain.NotificationCallback)
}

type chainMetrics struct {
	gauges *gaugeSet
	chain  chainSource

	newBlocks      prometheus.Counter
	altBlocks      prometheus.Counter
	chainSwitches  prometheus.Counter
	switchedBlocks prometheus.Counter
}

// ChainMetrics exports the chain state as gauges and counts chain events.
func ChainMetrics(m *Manager, chain chainSource, netName string) IMetric {
	labels := prometheus.Labels{"net_name": netName}
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Name:        prometheus.BuildFQName("cnoted", "chain", name),
			Help:        help,
			ConstLabels: labels,
		})
		if err := m.registry.Register(c); err != nil {
			log.Error().Err(err).Str("metric", name).Msg("can't register metric")
		}
		return c
	}

	s := &chainMetrics{
		gauges:         newGaugeSet(m.registry, labels),
		chain:          chain,
		newBlocks:      counter("new_blocks_total", "Blocks appended to the main chain."),
		altBlocks:      counter("alternative_blocks_total", "Blocks stored on alternative branches."),
		chainSwitches:  counter("switches_total", "Alternative branches that became the main chain."),
		switchedBlocks: counter("switched_blocks_total", "Blocks made canonical by branch switches."),
	}
	chain.Subscribe(s.handleNotification)
	return s
}

func (s *chainMetrics) handleNotification(n *blockchain.Notification) {
	switch n.Type {
	case blockchain.NTNewBlock:
		s.newBlocks.Inc()
	case blockchain.NTNewAlternativeBlock:
		s.altBlocks.Inc()
	case blockchain.NTChainSwitched:
		s.chainSwitches.Inc()
		if data, ok := n.Data.(*blockchain.ChainSwitchNotification); ok {
			s.switchedBlocks.Add(float64(len(data.Hashes)))
		}
	}
}

func (s *chainMetrics) Read() {
	name := func(n string) string { return prometheus.BuildFQName("cnoted", "chain", n) }

	s.gauges.updateGauge(name("height"), "Main chain blocks, genesis included.", float64(s.chain.Height()))
	s.gauges.updateGauge(name("cumulative_difficulty"), "Cumulative difficulty of the tip.",
		float64(s.chain.CumulativeDifficulty()))
	s.gauges.updateGauge(name("circulated_coins"), "Coins emitted up to the tip.",
		float64(s.chain.CirculatedCoins()))
	s.gauges.updateGauge(name("transactions"), "Transactions on the main chain.",
		float64(s.chain.TransactionCount()))
	s.gauges.updateGauge(name("alternative_blocks"), "Blocks held on alternative branches.",
		float64(s.chain.AlternativeBlockCount()))
	s.gauges.updateGauge(name("median_block_size"), "Median cumulative size of recent blocks.",
		float64(s.chain.MedianBlockSize()))

	difficulty, err := s.chain.CurrentDifficulty()
	if err != nil {
		log.Error().Err(err).Msg("can't compute next difficulty")
		return
	}
	s.gauges.updateGauge(name("difficulty"), "Difficulty of the next block.", float64(difficulty))
}
