package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrderMutationsTotal counts ledger writes by operation and outcome.
	OrderMutationsTotal *prometheus.CounterVec
	// PaymentsRecordedTotal counts recorded payments by method and status.
	PaymentsRecordedTotal *prometheus.CounterVec
	// ReportBuildDuration records report build latency in milliseconds.
	ReportBuildDuration *prometheus.HistogramVec
	// ReportCacheTotal counts report cache lookups by result.
	ReportCacheTotal *prometheus.CounterVec
	// VATReturnsTotal counts VAT return actions by outcome.
	VATReturnsTotal *prometheus.CounterVec
	// TasksProcessedTotal counts background task executions.
	TasksProcessedTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrderMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_mutations_total",
			Help:      "Count of order ledger mutations by operation and result.",
		}, []string{"operation", "result"})
		PaymentsRecordedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_recorded_total",
			Help:      "Count of recorded payments by method and status.",
		}, []string{"method", "status"})
		ReportBuildDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_build_duration_ms",
			Help:      "Time spent building financial reports in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}, []string{"kind"})
		ReportCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_cache_total",
			Help:      "Report cache lookups by result.",
		}, []string{"result"})
		VATReturnsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vat_returns_total",
			Help:      "VAT return generation, submission and export outcomes.",
		}, []string{"action", "result"})
		TasksProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_processed_total",
			Help:      "Background tasks processed by type and result.",
		}, []string{"type", "result"})

		OrderMutationsTotal = register(reg, OrderMutationsTotal)
		PaymentsRecordedTotal = register(reg, PaymentsRecordedTotal)
		ReportBuildDuration = register(reg, ReportBuildDuration)
		ReportCacheTotal = register(reg, ReportCacheTotal)
		VATReturnsTotal = register(reg, VATReturnsTotal)
		TasksProcessedTotal = register(reg, TasksProcessedTotal)
	})
}

// Result maps an error onto a metric label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// IncCounter increments a counter vec when it has been registered.
func IncCounter(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}

// ObserveMillis records a histogram sample when the histogram has been registered.
func ObserveMillis(vec *prometheus.HistogramVec, ms float64, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Observe(ms)
}
