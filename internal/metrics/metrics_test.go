package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsAreRegistered(t *testing.T) {
	SourceResults.WithLabelValues("torrentio").Add(3)
	AvailabilityChecks.WithLabelValues("torbox", ModeDegraded).Inc()

	if got := testutil.ToFloat64(SourceResults.WithLabelValues("torrentio")); got != 3 {
		t.Fatalf("source_results_total = %v, want 3", got)
	}

	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"source_results_total", "availability_checks_total"} {
		if !names[want] {
			t.Errorf("metric %s not gathered", want)
		}
	}
}
