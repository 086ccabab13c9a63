// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// IMetric is a set of gauges refreshed on every collection round.
type IMetric interface {
	Read()
}

// IMetricManager collects metrics periodically and serves them.
type IMetricManager interface {
	Add(metrics ...IMetric)
	Listen(ctx context.Context, route string, port uint16) error
}

// Manager refreshes the registered metrics on a ticker.
type Manager struct {
	mtx      sync.Mutex
	metrics  []IMetric
	registry *prometheus.Registry
	ticker   ticker.Ticker
}

// New creates a manager whose collector runs until ctx is done.  Gauges are
// registered on registry, or on a fresh one when registry is nil.
func New(ctx context.Context, interval time.Duration, registry *prometheus.Registry) *Manager {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Manager{
		registry: registry,
		ticker:   ticker.New(interval),
	}

	go m.collector(ctx)
	return m
}

// Registry returns the registry the gauges live on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Manager) Add(metrics ...IMetric) {
	m.mtx.Lock()
	m.metrics = append(m.metrics, metrics...)
	m.mtx.Unlock()
}

// Collect refreshes every metric once.
func (m *Manager) Collect() {
	m.mtx.Lock()
	metrics := make([]IMetric, len(m.metrics))
	copy(metrics, m.metrics)
	m.mtx.Unlock()

	for _, v := range metrics {
		v.Read()
	}
}

func (m *Manager) collector(ctx context.Context) {
	m.ticker.Resume()
	defer m.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.ticker.Ticks():
			m.Collect()
		}
	}
}

// Listen serves the registry on route until ctx is done.
func (m *Manager) Listen(ctx context.Context, route string, port uint16) error {
	mux := http.NewServeMux()
	mux.Handle(route, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.Info().Uint16("port", port).Str("route", route).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

var _ IMetricManager = (*Manager)(nil)

// gaugeSet lazily creates and registers gauges by name.
type gaugeSet struct {
	sync.Mutex
	registry     prometheus.Registerer
	constLabels  prometheus.Labels
	metricByName map[string]prometheus.Gauge
}

func newGaugeSet(registry prometheus.Registerer, labels prometheus.Labels) *gaugeSet {
	return &gaugeSet{
		registry:     registry,
		constLabels:  labels,
		metricByName: make(map[string]prometheus.Gauge),
	}
}

func (s *gaugeSet) updateGauge(name, help string, value float64) {
	s.Lock()
	defer s.Unlock()

	m, ok := s.metricByName[name]
	if !ok {
		m = prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        name,
			Help:        help,
			ConstLabels: s.constLabels,
		})
		if err := s.registry.Register(m); err != nil {
			log.Error().Err(err).Str("metric", name).Msg("can't register metric")
		}
		s.metricByName[name] = m
	}
	m.Set(value)
}
