// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"context"
	"time"

	"gitlab.com/jaxnet/cnoted/network/p2p"
	"gitlab.com/jaxnet/cnoted/node/mempool"
	"gitlab.com/jaxnet/cnoted/node/metrics"
)

const (
	defaultMetricsInterval = 5
	defaultMetricsPort     = 2112
)

// serverStats exposes the node server counters as metric values.
type serverStats struct {
	server *p2p.Server
	pool   *mempool.TxPool
}

func (s serverStats) Stats() map[string]float64 {
	st := s.server.Stats()
	return map[string]float64{
		"inbound_peers":   float64(st.Inbound),
		"outbound_peers":  float64(st.Outbound),
		"white_peers":     float64(st.WhitePeers),
		"gray_peers":      float64(st.GrayPeers),
		"observed_height": float64(st.ObservedHeight),
		"bytes_sent":      float64(st.BytesSent),
		"bytes_received":  float64(st.BytesReceived),
		"txs_in_mempool":  float64(s.pool.Count()),
	}
}

func (chainCtl *chainController) runMetricsServer(ctx context.Context, cfg *Config) error {
	log.Info().Msg("Metrics Enabled")
	interval := cfg.Metrics.Interval
	if interval == 0 {
		interval = defaultMetricsInterval
	}
	port := cfg.Metrics.Port
	if port == 0 {
		port = defaultMetricsPort
	}

	m := metrics.New(ctx, time.Duration(interval)*time.Second, nil)
	m.Add(
		metrics.ChainMetrics(m, chainCtl.chain, chainCtl.params.Name),
		metrics.NodeMetrics(m, "p2p", cfg.DataDir, serverStats{server: chainCtl.server, pool: chainCtl.pool}),
	)

	return m.Listen(ctx, "/metrics", port)
}
