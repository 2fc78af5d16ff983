package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Settlement lifecycle metrics
	settlementsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_created_total",
		Help: "Total number of settlements created",
	}, []string{
		"scope_kind", // office, team, agent
	})

	settlementsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_closed_total",
		Help: "Total number of settlements closed",
	}, []string{
		"scope_kind",
	})

	settlementsReopenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlements_reopened_total",
		Help: "Total number of closed settlements reopened",
	})

	// Adjustment metrics
	adjustmentsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adjustments_applied_total",
		Help: "Total number of line adjustments applied",
	}, []string{
		"kind", // absolute, percent
	})

	// Payout metrics
	payoutsGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payouts_generated_total",
		Help: "Total number of payout records generated",
	}, []string{
		"method", // transfer, cash, other
	})

	payoutStatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_status_transitions_total",
		Help: "Total payout status transitions",
	}, []string{
		"from",
		"to",
	})

	// Period closure metrics
	periodClosuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "period_closures_total",
		Help: "Total period closure runs",
	}, []string{
		"status", // committed, rejected
	})

	periodClosureSettlements = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "period_closure_settlements",
		Help:    "Distribution of settlements committed per closure run",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
	}, []string{
		"scope_kind",
	})

	// Export metrics
	exportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exports_total",
		Help: "Total settlement exports",
	}, []string{
		"format", // csv, json, xlsx
	})

	// Concurrency control metrics
	versionConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "version_conflicts_total",
		Help: "Total optimistic concurrency conflicts detected",
	})
)

// RecordSettlementCreated records a settlement created through the wizard
func RecordSettlementCreated(scopeKind string) {
	settlementsCreatedTotal.WithLabelValues(scopeKind).Inc()
}

// RecordSettlementClosed records a settlement reaching CLOSED
func RecordSettlementClosed(scopeKind string) {
	settlementsClosedTotal.WithLabelValues(scopeKind).Inc()
}

// RecordSettlementReopened records an authorized reopen
func RecordSettlementReopened() {
	settlementsReopenedTotal.Inc()
}

// RecordAdjustmentApplied records one adjustment ledger entry
func RecordAdjustmentApplied(kind string) {
	adjustmentsAppliedTotal.WithLabelValues(kind).Inc()
}

// RecordPayoutGenerated records one generated payout
func RecordPayoutGenerated(method string) {
	payoutsGeneratedTotal.WithLabelValues(method).Inc()
}

// RecordPayoutTransition records a payout status transition
func RecordPayoutTransition(from, to string) {
	payoutStatusTransitions.WithLabelValues(from, to).Inc()
}

// RecordPeriodClosure records a period closure run and, when committed, the
// number of settlements it closed
func RecordPeriodClosure(scopeKind string, committed int, rejected bool) {
	status := "committed"
	if rejected {
		status = "rejected"
	}
	periodClosuresTotal.WithLabelValues(status).Inc()
	if !rejected {
		periodClosureSettlements.WithLabelValues(scopeKind).Observe(float64(committed))
	}
}

// RecordExport records a settlement export
func RecordExport(format string) {
	exportsTotal.WithLabelValues(format).Inc()
}

// RecordVersionConflict records a rejected concurrent modification
func RecordVersionConflict() {
	versionConflictsTotal.Inc()
}
