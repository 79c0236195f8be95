package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// engineCollector is a prometheus.Collector scraping live counters off
// every registered session at collection time, rather than updating
// package-level counters from the logic worker — the registry is
// already the single source of truth for "every live session", so
// there is nothing to keep in sync.
type engineCollector struct {
	server *Server

	totalSamples   *prometheus.Desc
	droppedSamples *prometheus.Desc
	hitCount       *prometheus.Desc
	cogLoadScore   *prometheus.Desc
	sessionState   *prometheus.Desc
}

func newEngineCollector(s *Server) *engineCollector {
	return &engineCollector{
		server: s,
		totalSamples: prometheus.NewDesc(
			"gazeengine_session_total_samples", "Total raw samples processed by this session.",
			[]string{"session_id"}, nil),
		droppedSamples: prometheus.NewDesc(
			"gazeengine_session_dropped_samples", "Samples dropped due to intake back-pressure.",
			[]string{"session_id"}, nil),
		hitCount: prometheus.NewDesc(
			"gazeengine_session_hit_count", "AOI hits recorded for this session.",
			[]string{"session_id"}, nil),
		cogLoadScore: prometheus.NewDesc(
			"gazeengine_session_cogload_score", "Most recent cognitive load score (0-100).",
			[]string{"session_id"}, nil),
		sessionState: prometheus.NewDesc(
			"gazeengine_session_state", "1 if the session is currently in the given state.",
			[]string{"session_id", "state"}, nil),
	}
}

func (c *engineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalSamples
	ch <- c.droppedSamples
	ch <- c.hitCount
	ch <- c.cogLoadScore
	ch <- c.sessionState
}

func (c *engineCollector) Collect(ch chan<- prometheus.Metric) {
	for _, id := range c.server.registry.List() {
		sess, err := c.server.registry.Get(id)
		if err != nil {
			continue
		}
		stat := sess.Statistics()
		ch <- prometheus.MustNewConstMetric(c.totalSamples, prometheus.CounterValue, float64(stat.TotalSamples), id)
		ch <- prometheus.MustNewConstMetric(c.droppedSamples, prometheus.CounterValue, float64(stat.DroppedSamples), id)
		ch <- prometheus.MustNewConstMetric(c.hitCount, prometheus.GaugeValue, float64(stat.HitCount), id)
		ch <- prometheus.MustNewConstMetric(c.cogLoadScore, prometheus.GaugeValue, stat.CogLoadScore, id)
		ch <- prometheus.MustNewConstMetric(c.sessionState, prometheus.GaugeValue, 1, id, string(stat.State))
	}
}

// attachMetricsRoute registers /metrics against a dedicated registry
// holding only this engine's collector, so scrapes aren't polluted by
// Go runtime defaults registered elsewhere in the process.
func (s *Server) attachMetricsRoute(mux *http.ServeMux) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(newEngineCollector(s))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}
