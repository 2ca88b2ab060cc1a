// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const timingRingCap = 1000

// TimingStats summarizes the samples retained for one operation.
type TimingStats struct {
	Count       int
	MinMs       float64
	MaxMs       float64
	AvgMs       float64
	SuccessRate float64
}

type timingRing struct {
	mu       sync.Mutex
	samples  []float64
	next     int
	full     bool
	successN int
	totalN   int
}

func newTimingRing() *timingRing {
	return &timingRing{samples: make([]float64, timingRingCap)}
}

func (r *timingRing) record(ms float64, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples[r.next] = ms
	r.next = (r.next + 1) % timingRingCap
	if r.next == 0 {
		r.full = true
	}
	r.totalN++
	if success {
		r.successN++
	}
}

func (r *timingRing) stats() TimingStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.next
	if r.full {
		n = timingRingCap
	}
	if n == 0 {
		return TimingStats{}
	}

	min, max, sum := r.samples[0], r.samples[0], 0.0
	for i := 0; i < n; i++ {
		v := r.samples[i]
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}

	rate := 0.0
	if r.totalN > 0 {
		rate = float64(r.successN) / float64(r.totalN)
	}

	return TimingStats{
		Count:       n,
		MinMs:       min,
		MaxMs:       max,
		AvgMs:       sum / float64(n),
		SuccessRate: rate,
	}
}

// Metrics owns the Prometheus registry plus the per-operation timing
// ring buffers that back TimingStats queries (spec §4.J).
type Metrics struct {
	namespace string
	registry  *prometheus.Registry

	counters *prometheus.CounterVec
	gauges   *prometheus.GaugeVec
	duration *prometheus.HistogramVec

	mu     sync.Mutex
	timers map[string]*timingRing
}

// NewMetrics builds a Metrics instance registered under namespace.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		namespace: namespace,
		registry:  registry,
		timers:    make(map[string]*timingRing),
		counters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Count of named runtime events.",
		}, []string{"name"}),
		gauges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gauge",
			Help:      "Named point-in-time runtime gauges.",
		}, []string{"name"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of named operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name", "success"}),
	}

	registry.MustRegister(m.counters, m.gauges, m.duration)
	return m
}

// IncCounter increments the named counter by one.
func (m *Metrics) IncCounter(name string) {
	if m == nil {
		return
	}
	m.counters.WithLabelValues(name).Inc()
}

// SetGauge sets the named gauge to value.
func (m *Metrics) SetGauge(name string, value float64) {
	if m == nil {
		return
	}
	m.gauges.WithLabelValues(name).Set(value)
}

// RecordTiming records a duration sample for operation name into both
// the Prometheus histogram and the in-memory ring buffer that backs
// Stats.
func (m *Metrics) RecordTiming(name string, d time.Duration, success bool) {
	if m == nil {
		return
	}
	successLabel := "true"
	if !success {
		successLabel = "false"
	}
	m.duration.WithLabelValues(name, successLabel).Observe(d.Seconds())

	m.mu.Lock()
	ring, ok := m.timers[name]
	if !ok {
		ring = newTimingRing()
		m.timers[name] = ring
	}
	m.mu.Unlock()

	ring.record(float64(d.Milliseconds()), success)
}

// Stats returns the TimingStats accumulated for operation name.
func (m *Metrics) Stats(name string) TimingStats {
	if m == nil {
		return TimingStats{}
	}
	m.mu.Lock()
	ring, ok := m.timers[name]
	m.mu.Unlock()
	if !ok {
		return TimingStats{}
	}
	return ring.stats()
}

// TimedOperation runs fn, recording its duration and success/failure
// under name (spec §4.J's timedOperation primitive).
func (m *Metrics) TimedOperation(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.RecordTiming(name, time.Since(start), err == nil)
	return err
}

// Handler exposes the registry over the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
