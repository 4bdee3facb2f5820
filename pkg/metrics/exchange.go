package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ExchangeMetrics records the marketplace credit flow counters.
type ExchangeMetrics struct {
	uploads          *prometheus.CounterVec
	downloads        *prometheus.CounterVec
	creditsMoved     *prometheus.CounterVec
	bountyFulfilled  prometheus.Counter
	analysisDuration *prometheus.HistogramVec
	analysisFallback prometheus.Counter
}

// NewExchangeMetrics registers the exchange metrics on the provided registerer.
func NewExchangeMetrics(reg prometheus.Registerer) *ExchangeMetrics {
	if reg == nil {
		return &ExchangeMetrics{}
	}
	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_uploads_total",
		Help: "Report upload attempts by result.",
	}, []string{"result"})
	downloads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_downloads_total",
		Help: "Report download attempts by result.",
	}, []string{"result"})
	creditsMoved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_credits_moved_total",
		Help: "Absolute credits recorded in the ledger by entry kind.",
	}, []string{"kind"})
	bountyFulfilled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bounty_fulfillments_total",
		Help: "Bounties fulfilled by uploads.",
	})
	analysisDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analysis_duration_seconds",
		Help:    "Battlecard generation latency by source.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	analysisFallback := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_fallbacks_total",
		Help: "Battlecard generations that fell back to the deterministic builder.",
	})
	reg.MustRegister(uploads, downloads, creditsMoved, bountyFulfilled, analysisDuration, analysisFallback)
	return &ExchangeMetrics{
		uploads:          uploads,
		downloads:        downloads,
		creditsMoved:     creditsMoved,
		bountyFulfilled:  bountyFulfilled,
		analysisDuration: analysisDuration,
		analysisFallback: analysisFallback,
	}
}

// IncUpload increments the upload counter for the given result.
func (m *ExchangeMetrics) IncUpload(result string) {
	if m == nil || m.uploads == nil {
		return
	}
	m.uploads.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncDownload increments the download counter for the given result.
func (m *ExchangeMetrics) IncDownload(result string) {
	if m == nil || m.downloads == nil {
		return
	}
	m.downloads.WithLabelValues(normalizeLabel(result)).Inc()
}

// AddCreditsMoved records the absolute credit amount for a ledger entry kind.
func (m *ExchangeMetrics) AddCreditsMoved(kind string, amount int) {
	if m == nil || m.creditsMoved == nil {
		return
	}
	if amount < 0 {
		amount = -amount
	}
	m.creditsMoved.WithLabelValues(normalizeLabel(kind)).Add(float64(amount))
}

// IncBountyFulfilled increments the fulfilled-bounty counter.
func (m *ExchangeMetrics) IncBountyFulfilled() {
	if m == nil || m.bountyFulfilled == nil {
		return
	}
	m.bountyFulfilled.Inc()
}

// ObserveAnalysis records a battlecard generation duration for a source.
func (m *ExchangeMetrics) ObserveAnalysis(source string, duration time.Duration) {
	if m == nil || m.analysisDuration == nil {
		return
	}
	m.analysisDuration.WithLabelValues(normalizeLabel(source)).Observe(duration.Seconds())
}

// IncAnalysisFallback increments the fallback counter.
func (m *ExchangeMetrics) IncAnalysisFallback() {
	if m == nil || m.analysisFallback == nil {
		return
	}
	m.analysisFallback.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
