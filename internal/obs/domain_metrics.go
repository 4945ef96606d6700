package obs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// BundlePassTotal counts resolution passes by result (ok, rejected, error).
	BundlePassTotal *prometheus.CounterVec
	// BundleDefinitionTotal counts per-definition outcomes (matched, skipped).
	BundleDefinitionTotal *prometheus.CounterVec
	// BundlePassDuration records resolution pass latency in milliseconds.
	BundlePassDuration prometheus.Histogram
	// CatalogLoadTotal counts catalog loads by source and result.
	CatalogLoadTotal *prometheus.CounterVec
	// CatalogDefinitions reports the size of the active static catalog.
	CatalogDefinitions prometheus.Gauge
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BundlePassTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundle_pass_total",
			Help:      "Count of bundle resolution passes by result.",
		}, []string{"result"}))
		BundleDefinitionTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundle_definition_total",
			Help:      "Count of bundle definition outcomes within resolution passes.",
		}, []string{"outcome"}))
		BundlePassDuration = registerOrReuse(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bundle_pass_duration_ms",
			Help:      "Latency of bundle resolution passes in milliseconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}))
		CatalogLoadTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_load_total",
			Help:      "Count of bundle catalog loads by source and result.",
		}, []string{"source", "result"}))
		CatalogDefinitions = registerOrReuse(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_definitions",
			Help:      "Number of bundle definitions in the active catalog.",
		}))
	})
}

// RecordBundlePass observes one resolution pass. It is a no-op until metrics are registered.
func RecordBundlePass(result string, matched, skipped int, elapsed time.Duration) {
	if BundlePassTotal != nil {
		BundlePassTotal.WithLabelValues(result).Inc()
	}
	if BundleDefinitionTotal != nil {
		if matched > 0 {
			BundleDefinitionTotal.WithLabelValues("matched").Add(float64(matched))
		}
		if skipped > 0 {
			BundleDefinitionTotal.WithLabelValues("skipped").Add(float64(skipped))
		}
	}
	if BundlePassDuration != nil {
		BundlePassDuration.Observe(DurationMillis(elapsed))
	}
}

// RecordCatalogLoad observes one catalog load and, on success, its size.
func RecordCatalogLoad(source, result string, definitions int) {
	if CatalogLoadTotal != nil {
		CatalogLoadTotal.WithLabelValues(source, result).Inc()
	}
	if CatalogDefinitions != nil && result == "ok" {
		CatalogDefinitions.Set(float64(definitions))
	}
}
