package binary

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Provisioning outcomes used as the outcome label.
const (
	OutcomeCached      = "cached"
	OutcomeReady       = "ready"
	OutcomeUnsupported = "unsupported"
	OutcomeDownload    = "download_error"
	OutcomeIntegrity   = "integrity_error"
	OutcomeExtraction  = "extraction_error"
	OutcomeEmpty       = "empty_archive"
	OutcomeRelocation  = "relocation_error"
	OutcomeError       = "error"
)

// Metrics contains the Prometheus collectors for provisioning.
type Metrics struct {
	ProvisionTotal    *prometheus.CounterVec
	DownloadBytes     prometheus.Counter
	ProvisionDuration prometheus.Histogram
}

// NewMetrics creates provisioning metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProvisionTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skiacanvas_provision_total",
				Help: "Total number of provisioning attempts by outcome",
			},
			[]string{"outcome"},
		),
		DownloadBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "skiacanvas_download_bytes_total",
				Help: "Total number of archive bytes downloaded",
			},
		),
		ProvisionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "skiacanvas_provision_duration_seconds",
				Help:    "Duration of provisioning attempts",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.ProvisionTotal, m.DownloadBytes, m.ProvisionDuration)
	}
	return m
}

func (m *Metrics) observe(outcome string, bytes int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ProvisionTotal.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		m.DownloadBytes.Add(float64(bytes))
	}
	m.ProvisionDuration.Observe(elapsed.Seconds())
}

// outcomeOf classifies a provisioning error for the outcome label.
func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedPlatform):
		return OutcomeUnsupported
	case errors.Is(err, ErrDownload):
		return OutcomeDownload
	case errors.Is(err, ErrIntegrity):
		return OutcomeIntegrity
	case errors.Is(err, ErrExtraction):
		return OutcomeExtraction
	case errors.Is(err, ErrEmptyArchive):
		return OutcomeEmpty
	case errors.Is(err, ErrRelocation):
		return OutcomeRelocation
	default:
		return OutcomeError
	}
}
