// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ttbt-io/crickeeper/backend/scoring"
)

// Metrics holds the Prometheus instruments of the server on a private
// registry. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	balls      *prometheus.CounterVec
	history    *prometheus.CounterVec
	actions    *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	recomputes *prometheus.CounterVec
	skipped    prometheus.Counter
	liveHubs   prometheus.Gauge
	httpTime   *prometheus.HistogramVec
}

// NewMetrics registers the server instruments.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		balls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crickeeper",
			Name:      "balls_recorded_total",
			Help:      "Deliveries recorded, by outcome kind.",
		}, []string{"kind"}),
		history: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crickeeper",
			Name:      "history_operations_total",
			Help:      "Applied undo and redo operations.",
		}, []string{"op"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crickeeper",
			Name:      "actions_applied_total",
			Help:      "Operator actions applied, by type.",
		}, []string{"type"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crickeeper",
			Name:      "actions_rejected_total",
			Help:      "Operator actions refused, by reason.",
		}, []string{"reason"}),
		recomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crickeeper",
			Name:      "standings_recomputes_total",
			Help:      "Standings recomputations, by result.",
		}, []string{"result"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crickeeper",
			Name:      "standings_skipped_matches_total",
			Help:      "Matches left out of a standings recomputation.",
		}),
		liveHubs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crickeeper",
			Name:      "live_hubs",
			Help:      "Match hubs currently loaded.",
		}),
		httpTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crickeeper",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	reg.MustRegister(m.balls, m.history, m.actions, m.rejected, m.recomputes, m.skipped, m.liveHubs, m.httpTime)
	return m
}

// Registry exposes the underlying registry for tests and custom gatherers.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAction counts an applied action.
func (m *Metrics) RecordAction(actionType string, ball *scoring.Outcome) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(actionType).Inc()
	switch actionType {
	case ActionBall:
		if ball != nil {
			m.balls.WithLabelValues(ball.Kind.String()).Inc()
		}
	case ActionUndo:
		m.history.WithLabelValues("undo").Inc()
	case ActionRedo:
		m.history.WithLabelValues("redo").Inc()
	}
}

// RecordRejected counts a refused action.
func (m *Metrics) RecordRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

// RecordRecompute counts a standings recomputation and its skipped matches.
func (m *Metrics) RecordRecompute(err error, skipped int) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.recomputes.WithLabelValues(result).Inc()
	m.skipped.Add(float64(skipped))
}

// SetLiveHubs reports the number of loaded hubs.
func (m *Metrics) SetLiveHubs(n int) {
	if m == nil {
		return
	}
	m.liveHubs.Set(float64(n))
}

// ObserveHTTP records the latency of one request.
func (m *Metrics) ObserveHTTP(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpTime.WithLabelValues(method, route, strconv.Itoa(code)).Observe(d.Seconds())
}
