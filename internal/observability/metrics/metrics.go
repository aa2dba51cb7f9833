package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters/histograms for search and notification flows.
type Metrics struct {
	searchTotal   *prometheus.CounterVec
	searchResults prometheus.Histogram
	outboundTotal *prometheus.CounterVec
	inboundTotal  *prometheus.CounterVec
	notifyRuns    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		searchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "practicefinder",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total search requests by sort strategy",
		}, []string{"strategy"}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "practicefinder",
			Subsystem: "search",
			Name:      "results",
			Help:      "Result counts per search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "practicefinder",
			Subsystem: "notify",
			Name:      "outbound_email_total",
			Help:      "Total availability request emails sent",
		}, []string{"status", "suppressed"}),
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "practicefinder",
			Subsystem: "inbound",
			Name:      "reply_total",
			Help:      "Total inbound email replies by parse outcome",
		}, []string{"outcome", "status"}),
		notifyRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "practicefinder",
			Subsystem: "notify",
			Name:      "runs_total",
			Help:      "Total weekly notifier runs",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.searchTotal, m.searchResults, m.outboundTotal, m.inboundTotal, m.notifyRuns)
	return m
}

func (m *Metrics) ObserveSearch(strategy string, results int) {
	if m == nil {
		return
	}
	m.searchTotal.WithLabelValues(strategy).Inc()
	m.searchResults.Observe(float64(results))
}

func (m *Metrics) ObserveOutbound(status string, suppressed bool) {
	if m == nil {
		return
	}
	label := "false"
	if suppressed {
		label = "true"
	}
	m.outboundTotal.WithLabelValues(status, label).Inc()
}

func (m *Metrics) ObserveInbound(outcome, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(outcome, status).Inc()
}

func (m *Metrics) ObserveNotifyRun(status string) {
	if m == nil {
		return
	}
	m.notifyRuns.WithLabelValues(status).Inc()
}
