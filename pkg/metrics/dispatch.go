package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics tracks offer volume and outcomes for the dispatch
// engine.
type DispatchMetrics struct {
	offersOpened *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	retries      prometheus.Counter
	openWindows  prometheus.Gauge
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	offersOpened := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_offers_opened",
		Help: "Decision windows opened, labeled by trigger.",
	}, []string{"trigger"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_offer_outcomes",
		Help: "Terminal offer outcomes.",
	}, []string{"outcome"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_assignment_retries",
		Help: "Re-dispatch attempts after a rejected or expired offer.",
	})
	openWindows := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_open_windows",
		Help: "Decision windows currently awaiting a rider decision.",
	})
	reg.MustRegister(offersOpened, outcomes, retries, openWindows)
	return &DispatchMetrics{
		offersOpened: offersOpened,
		outcomes:     outcomes,
		retries:      retries,
		openWindows:  openWindows,
	}
}

// IncOffersOpened counts a new decision window. Trigger is "auto",
// "manual" or "retry".
func (d *DispatchMetrics) IncOffersOpened(trigger string) {
	if d == nil || d.offersOpened == nil {
		return
	}
	d.offersOpened.WithLabelValues(normalizeLabel(trigger)).Inc()
}

// IncOutcome counts a terminal window outcome.
func (d *DispatchMetrics) IncOutcome(outcome string) {
	if d == nil || d.outcomes == nil {
		return
	}
	d.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncRetry counts a scheduled re-dispatch.
func (d *DispatchMetrics) IncRetry() {
	if d == nil || d.retries == nil {
		return
	}
	d.retries.Inc()
}

// SetOpenWindows reports how many windows are live.
func (d *DispatchMetrics) SetOpenWindows(n int) {
	if d == nil || d.openWindows == nil {
		return
	}
	d.openWindows.Set(float64(n))
}
