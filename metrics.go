package bugsnag_notifier

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "rr_bugsnag"
)

// metricsCollector implements prometheus.Collector interface
type metricsCollector struct {
	queuedReports     *uint64 // Reports accepted into the queue
	discardedReports  *uint64 // Reports discarded by policy (ShouldNotify=false)
	droppedReports    *uint64 // Reports dropped because they did not fit in a payload
	deliveredPayloads *uint64 // Payloads accepted by the collector
	failedPayloads    *uint64 // Payloads that failed to send

	queuedReportsDesc     *prometheus.Desc
	discardedReportsDesc  *prometheus.Desc
	droppedReportsDesc    *prometheus.Desc
	deliveredPayloadsDesc *prometheus.Desc
	failedPayloadsDesc    *prometheus.Desc

	// Fields removed during payload degradation, by field name
	trimmedFields *prometheus.CounterVec
}

// newMetricsCollector creates a new metrics collector
func newMetricsCollector() *metricsCollector {
	return &metricsCollector{
		queuedReports:     ptrTo(uint64(0)),
		discardedReports:  ptrTo(uint64(0)),
		droppedReports:    ptrTo(uint64(0)),
		deliveredPayloads: ptrTo(uint64(0)),
		failedPayloads:    ptrTo(uint64(0)),

		queuedReportsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "queued_reports_total"),
			"Total number of reports queued for delivery",
			nil, nil),

		discardedReportsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "discarded_reports_total"),
			"Total number of reports discarded before queuing",
			nil, nil),

		droppedReportsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "dropped_reports_total"),
			"Total number of reports dropped because the payload was too large",
			nil, nil),

		deliveredPayloadsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "delivered_payloads_total"),
			"Total number of payloads delivered to the collector",
			nil, nil),

		failedPayloadsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "failed_payloads_total"),
			"Total number of payloads that could not be delivered",
			nil, nil),

		trimmedFields: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prometheus.BuildFQName(namespace, "", "trimmed_fields_total"),
				Help: "Total number of report fields removed to fit the payload size limit",
			},
			[]string{"field"}),
	}
}

func (mc *metricsCollector) IncQueuedReports() {
	atomic.AddUint64(mc.queuedReports, 1)
}

func (mc *metricsCollector) IncDiscardedReports() {
	atomic.AddUint64(mc.discardedReports, 1)
}

func (mc *metricsCollector) AddDroppedReports(n int) {
	if n > 0 {
		atomic.AddUint64(mc.droppedReports, uint64(n))
	}
}

func (mc *metricsCollector) IncDeliveredPayloads() {
	atomic.AddUint64(mc.deliveredPayloads, 1)
}

func (mc *metricsCollector) IncFailedPayloads() {
	atomic.AddUint64(mc.failedPayloads, 1)
}

func (mc *metricsCollector) AddTrimmedFields(field string, n int) {
	if n > 0 {
		mc.trimmedFields.WithLabelValues(field).Add(float64(n))
	}
}

// Describe sends all metric descriptions to Prometheus
func (mc *metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- mc.queuedReportsDesc
	ch <- mc.discardedReportsDesc
	ch <- mc.droppedReportsDesc
	ch <- mc.deliveredPayloadsDesc
	ch <- mc.failedPayloadsDesc

	mc.trimmedFields.Describe(ch)
}

// Collect sends current metric values to Prometheus
func (mc *metricsCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(
		mc.queuedReportsDesc,
		prometheus.CounterValue,
		float64(atomic.LoadUint64(mc.queuedReports)))

	ch <- prometheus.MustNewConstMetric(
		mc.discardedReportsDesc,
		prometheus.CounterValue,
		float64(atomic.LoadUint64(mc.discardedReports)))

	ch <- prometheus.MustNewConstMetric(
		mc.droppedReportsDesc,
		prometheus.CounterValue,
		float64(atomic.LoadUint64(mc.droppedReports)))

	ch <- prometheus.MustNewConstMetric(
		mc.deliveredPayloadsDesc,
		prometheus.CounterValue,
		float64(atomic.LoadUint64(mc.deliveredPayloads)))

	ch <- prometheus.MustNewConstMetric(
		mc.failedPayloadsDesc,
		prometheus.CounterValue,
		float64(atomic.LoadUint64(mc.failedPayloads)))

	mc.trimmedFields.Collect(ch)
}

func ptrTo[T any](v T) *T {
	return &v
}
