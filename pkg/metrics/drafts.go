package metrics

import "github.com/prometheus/client_golang/prometheus"

// Draft lifecycle events.
const (
	DraftEventOpened           = "opened"
	DraftEventDiscarded        = "discarded"
	DraftEventExpired          = "expired"
	DraftEventSupplierSelected = "supplier_selected"
	DraftEventStaleDiscarded   = "stale_load_discarded"
	DraftEventLineAdded        = "line_added"
	DraftEventLineMerged       = "line_merged"
	DraftEventLineRemoved      = "line_removed"
	DraftEventOverrideSaved    = "override_saved"
	DraftEventSubmitted        = "submitted"
	DraftEventLastCostMiss     = "last_cost_unavailable"
)

// DraftMetrics counts draft session events.
type DraftMetrics struct {
	events *prometheus.CounterVec
}

// NewDraftMetrics registers the draft event counter on the provided registerer.
func NewDraftMetrics(reg prometheus.Registerer) *DraftMetrics {
	if reg == nil {
		return &DraftMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasing_draft_events_total",
		Help: "Purchase-order draft session events.",
	}, []string{"event"})
	reg.MustRegister(events)
	return &DraftMetrics{events: events}
}

// Inc increments the counter for the named event.
func (d *DraftMetrics) Inc(event string) {
	if d == nil || d.events == nil {
		return
	}
	d.events.WithLabelValues(normalizeLabel(event)).Inc()
}
