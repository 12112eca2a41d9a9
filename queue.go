package bugsnag_notifier

import (
	"time"

	"go.uber.org/zap"
)

const (
	headerAPIKey         = "Bugsnag-Api-Key"
	headerPayloadVersion = "Bugsnag-Payload-Version"
	headerSentAt         = "Bugsnag-Sent-At"
)

// Transport performs a single HTTP call on behalf of the pipeline
type Transport interface {
	Send(method, url string, headers map[string]string, body []byte) (*Status, error)
}

// WarnLogger receives the pipeline's diagnostic warnings
type WarnLogger interface {
	Warn(msg string, fields ...zap.Field)
}

// ReportQueue buffers reports and delivers them as one size-bounded payload.
//
// A ReportQueue is owned by a single execution context: Queue and Flush run
// synchronously on the caller and are not safe for concurrent use.
type ReportQueue struct {
	apiKey    string
	endpoint  string
	maxSize   int
	transport Transport
	logger    WarnLogger
	metrics   *metricsCollector
	now       func() time.Time

	reports []*Report
}

// NewReportQueue creates a new report queue
func NewReportQueue(cfg *Config, transport Transport, logger WarnLogger, metrics *metricsCollector) *ReportQueue {
	maxSize := cfg.MaxPayloadSize
	if maxSize <= 0 {
		maxSize = DefaultMaxPayloadSize
	}
	if metrics == nil {
		metrics = newMetricsCollector()
	}

	return &ReportQueue{
		apiKey:    cfg.APIKey,
		endpoint:  cfg.Endpoints.Notify,
		maxSize:   maxSize,
		transport: transport,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Queue appends the report unless it should not be notified
func (q *ReportQueue) Queue(report *Report) {
	if report == nil {
		return
	}
	if !report.ShouldNotify {
		q.metrics.IncDiscardedReports()
		return
	}

	q.reports = append(q.reports, report)
	q.metrics.IncQueuedReports()
}

// Len returns the number of queued reports
func (q *ReportQueue) Len() int {
	return len(q.reports)
}

// Flush serializes the queued reports and sends them in one transport call.
// The queue is empty when Flush returns, whatever the outcome of the delivery.
func (q *ReportQueue) Flush() {
	if len(q.reports) == 0 {
		return
	}

	reports := q.reports
	q.reports = nil

	b := newBatch(q.apiKey, q.maxSize, reports)
	if b.unencodable > 0 {
		q.logger.Warn("could not encode report", zap.Int("dropped_reports", b.unencodable))
		q.metrics.AddDroppedReports(b.unencodable)
	}

	b.degrade()

	if b.degraded() {
		q.logger.Warn("payload too large",
			zap.Int("dropped_metadata", b.droppedFields[fieldMetaData]),
			zap.Int("dropped_user", b.droppedFields[fieldUser]),
			zap.Int("dropped_reports", b.droppedReports),
			zap.Int("size", b.size()),
			zap.Int("max_size", q.maxSize))

		for field, count := range b.droppedFields {
			q.metrics.AddTrimmedFields(field, count)
		}
		q.metrics.AddDroppedReports(b.droppedReports)
	}

	if len(b.events) == 0 {
		return
	}

	body, err := b.encode()
	if err != nil {
		q.logger.Warn("couldn't notify: "+err.Error(), zap.Int("events", len(b.events)))
		q.metrics.IncFailedPayloads()
		return
	}

	if err := q.send(body); err != nil {
		q.logger.Warn("couldn't notify: "+err.Error(), zap.Int("events", len(b.events)))
		q.metrics.IncFailedPayloads()
		return
	}

	q.metrics.IncDeliveredPayloads()
}

// send issues the transport call and converts a panicking transport into an error
func (q *ReportQueue) send(body []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = panicError(rec)
		}
	}()

	headers := map[string]string{
		"Content-Type":       "application/json",
		headerAPIKey:         q.apiKey,
		headerPayloadVersion: PayloadVersion,
		headerSentAt:         q.now().UTC().Format(time.RFC3339),
	}

	_, err = q.transport.Send("POST", q.endpoint, headers, body)
	return err
}
