// Package metrics counts framing and dispatch outcomes for Prometheus and
// the status API.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gpsreader/internal/gps"
	"gpsreader/internal/nmea"
)

// Metrics implements gps.Hooks.
type Metrics struct {
	reg *prometheus.Registry

	overflow  *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	sentences *prometheus.CounterVec

	mu     sync.Mutex
	counts map[string]uint64
}

var _ gps.Hooks = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		overflow: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gpsreader_overflow_total",
			Help: "Line buffer overflow transitions.",
		}, []string{"transition"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gpsreader_dropped_total",
			Help: "Lines that produced no field updates, by reason and sentence kind.",
		}, []string{"reason", "kind"}),
		sentences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gpsreader_sentences_total",
			Help: "Sentences decoded and dispatched, by kind.",
		}, []string{"kind"}),
		counts: make(map[string]uint64),
	}
	m.reg.MustRegister(m.overflow, m.dropped, m.sentences)
	return m
}

// Registry exposes the registry so callers can add their own collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the Prometheus text exposition.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) inc(key string) {
	m.mu.Lock()
	m.counts[key]++
	m.mu.Unlock()
}

func (m *Metrics) OverflowEnter() {
	m.overflow.WithLabelValues("enter").Inc()
	m.inc("overflow_enter")
}

func (m *Metrics) OverflowClear() {
	m.overflow.WithLabelValues("clear").Inc()
	m.inc("overflow_clear")
}

func (m *Metrics) Decoded(kind nmea.Kind) {
	m.sentences.WithLabelValues(kind.String()).Inc()
	m.inc("decoded_" + kind.String())
}

func (m *Metrics) Dropped(reason gps.DropReason, kind nmea.Kind) {
	m.dropped.WithLabelValues(reason.String(), kind.String()).Inc()
	m.inc("dropped_" + reason.String())
}

// Counts returns a copy of the running totals, keyed as "overflow_enter",
// "decoded_RMC", "dropped_invalid" and so on.
func (m *Metrics) Counts() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out
}
