package obs_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/noah-isme/toko-bundles/internal/obs"
)

func TestDomainMetricsRegisterOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("test", registry)
	obs.MustRegisterDomainMetrics("test", registry)

	obs.BundleDefinitionTotal.WithLabelValues("matched").Add(2)
	obs.BundlePassTotal.WithLabelValues("ok").Inc()

	if got := testutil.ToFloat64(obs.BundleDefinitionTotal.WithLabelValues("matched")); got != 2 {
		t.Fatalf("expected 2 matched, got %v", got)
	}
	if n := testutil.CollectAndCount(obs.BundlePassTotal); n != 1 {
		t.Fatalf("expected one pass series, got %d", n)
	}
}

func TestRecordHelpers(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("test", registry)

	before := testutil.ToFloat64(obs.BundleDefinitionTotal.WithLabelValues("skipped"))
	obs.RecordBundlePass("ok", 1, 3, 0)
	if got := testutil.ToFloat64(obs.BundleDefinitionTotal.WithLabelValues("skipped")) - before; got != 3 {
		t.Fatalf("expected 3 skipped recorded, got %v", got)
	}

	obs.RecordCatalogLoad("file", "ok", 7)
	if got := testutil.ToFloat64(obs.CatalogDefinitions); got != 7 {
		t.Fatalf("expected gauge 7, got %v", got)
	}
	obs.RecordCatalogLoad("file", "error", 0)
	if got := testutil.ToFloat64(obs.CatalogDefinitions); got != 7 {
		t.Fatalf("failed load must not reset gauge, got %v", got)
	}
}
