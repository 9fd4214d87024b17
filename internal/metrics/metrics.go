package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	newsFetched      *prometheus.CounterVec
	entriesEnriched  *prometheus.CounterVec
	decisionsTotal   *prometheus.CounterVec
	tradesTotal      *prometheus.CounterVec
	riskRejections   prometheus.Counter
	jobRuns          *prometheus.CounterVec
	analysisDuration prometheus.Histogram
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.newsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lse_news_fetched_total",
			Help: "Total knowledge-base entries inserted per source",
		},
		[]string{"source"},
	)
	r.entriesEnriched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lse_entries_enriched_total",
			Help: "Total enrichment updates applied per kind",
		},
		[]string{"kind"},
	)
	r.decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lse_decisions_total",
			Help: "Total analyst decisions per regime and action",
		},
		[]string{"regime", "decision"},
	)
	r.tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lse_trades_total",
			Help: "Total executed trades per side and signal",
		},
		[]string{"side", "signal"},
	)
	r.riskRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lse_risk_rejections_total",
			Help: "Total buys vetoed by the risk manager",
		},
	)
	r.jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lse_job_runs_total",
			Help: "Total scheduler job outcomes",
		},
		[]string{"job", "status"},
	)
	r.analysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lse_analysis_duration_seconds",
			Help:    "Per-ticker analysis duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	reg.MustRegister(r.newsFetched)
	reg.MustRegister(r.entriesEnriched)
	reg.MustRegister(r.decisionsTotal)
	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.riskRejections)
	reg.MustRegister(r.jobRuns)
	reg.MustRegister(r.analysisDuration)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordNewsFetched adds inserted entries for a source.
func (r *Registry) RecordNewsFetched(source string, count int) {
	r.newsFetched.WithLabelValues(source).Add(float64(count))
}

// RecordEnriched adds enrichment updates of one kind
// (sentiment, embedding, outcome).
func (r *Registry) RecordEnriched(kind string, count int) {
	r.entriesEnriched.WithLabelValues(kind).Add(float64(count))
}

// RecordDecision counts one analyst decision.
func (r *Registry) RecordDecision(regime, decision string, duration float64) {
	r.decisionsTotal.WithLabelValues(regime, decision).Inc()
	r.analysisDuration.Observe(duration)
}

// RecordTrade counts one executed trade.
func (r *Registry) RecordTrade(side, signal string) {
	r.tradesTotal.WithLabelValues(side, signal).Inc()
}

// RecordRiskRejection counts a vetoed buy.
func (r *Registry) RecordRiskRejection() {
	r.riskRejections.Inc()
}

// RecordJobRun counts a scheduler job outcome ("ok", "error", "skipped").
func (r *Registry) RecordJobRun(job, status string) {
	r.jobRuns.WithLabelValues(job, status).Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
