package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestDispatchMetricsExportsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewDispatchMetrics(reg)

	metrics.IncOffersOpened("auto")
	metrics.IncOffersOpened("auto")
	metrics.IncOffersOpened("retry")
	metrics.IncOutcome("accepted")
	metrics.IncRetry()
	metrics.SetOpenWindows(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "dispatch_offers_opened", "trigger", "auto"); err != nil {
		t.Fatalf("fetch offers opened: %v", err)
	} else if got != 2 {
		t.Fatalf("expected auto offers=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "dispatch_offer_outcomes", "outcome", "accepted"); err != nil {
		t.Fatalf("fetch outcomes: %v", err)
	} else if got != 1 {
		t.Fatalf("expected accepted=1, got %f", got)
	}

	gauge := findMetricFamily(mfs, "dispatch_open_windows")
	if gauge == nil {
		t.Fatal("dispatch_open_windows not exported")
	}
	if got := gauge.GetMetric()[0].GetGauge().GetValue(); got != 3 {
		t.Fatalf("expected open windows=3, got %f", got)
	}
}

func TestDispatchMetricsNilSafe(t *testing.T) {
	var metrics *DispatchMetrics
	metrics.IncOffersOpened("auto")
	metrics.IncOutcome("expired")
	metrics.IncRetry()
	metrics.SetOpenWindows(1)
}
