// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package metrics

import (
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// StatsProvider reports named values, such as the p2p server connection
// counts.
type StatsProvider interface {
	Stats() map[string]float64
}

type nodeMetrics struct {
	gauges    *gaugeSet
	dataDir   string
	subsystem string
	stats     StatsProvider
}

// NodeMetrics exports the values of stats under subsystem along with the size
// of dataDir.  stats may be nil.
func NodeMetrics(m *Manager, subsystem, dataDir string, stats StatsProvider) IMetric {
	return &nodeMetrics{
		gauges:    newGaugeSet(m.registry, nil),
		dataDir:   dataDir,
		subsystem: subsystem,
		stats:     stats,
	}
}

func (s *nodeMetrics) Read() {
	if s.stats != nil {
		for name, value := range s.stats.Stats() {
			s.gauges.updateGauge(prometheus.BuildFQName("cnoted", s.subsystem, name), "", value)
		}
	}

	if s.dataDir == "" {
		return
	}
	dSize, err := dirSize(s.dataDir)
	if err != nil && !os.IsNotExist(err) {
		log.Error().Err(err).Msg("can't calculate data dir size")
		return
	}
	s.gauges.updateGauge(prometheus.BuildFQName("cnoted", "node", "data_size"), "Bytes in the data dir.",
		float64(dSize))
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return err
	})
	return size, err
}
