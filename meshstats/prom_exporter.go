/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package meshstats

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// PrometheusExporter periodically snapshots Counters into gauges and serves
// them on /metrics, following the teacher's registry-per-exporter pattern.
type PrometheusExporter struct {
	registry *prometheus.Registry
	counters *Counters
	gauges   map[string]prometheus.Gauge
	addr     string
	interval time.Duration
}

// NewPrometheusExporter builds an exporter bound to the given counters.
func NewPrometheusExporter(counters *Counters, addr string, scrapeInterval time.Duration) *PrometheusExporter {
	e := &PrometheusExporter{
		registry: prometheus.NewRegistry(),
		counters: counters,
		gauges:   map[string]prometheus.Gauge{},
		addr:     addr,
		interval: scrapeInterval,
	}
	for name := range e.snapshotMap() {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mesh_" + name,
			Help: "mesh relay counter " + name,
		})
		e.registry.MustRegister(g)
		e.gauges[name] = g
	}
	return e
}

func (e *PrometheusExporter) snapshotMap() map[string]int64 {
	s := e.counters.Snapshot()
	return map[string]int64{
		"packets_forwarded":     s.PacketsForwarded,
		"packets_delivered":     s.PacketsDelivered,
		"packets_dropped":       s.PacketsDropped,
		"packets_duplicate":     s.PacketsDuplicate,
		"packets_expired":       s.PacketsExpired,
		"sends_succeeded":       s.SendsSucceeded,
		"sends_failed":          s.SendsFailed,
		"orchestrator_pauses":   s.OrchestratorPauses,
		"outbox_permanent_fail": s.OutboxPermanentFail,
		"host_uptime_seconds":   int64(s.HostUptimeSeconds),
	}
}

func (e *PrometheusExporter) scrape() {
	for name, v := range e.snapshotMap() {
		if g, ok := e.gauges[name]; ok {
			g.Set(float64(v))
		}
	}
}

// Run starts the scrape loop and the HTTP server; it blocks until ctx is
// cancelled or the listener fails.
func (e *PrometheusExporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.scrape()
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	srv := &http.Server{Addr: e.addr, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.Infof("meshstats: starting prometheus exporter on %s", e.addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
