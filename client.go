package bugsnag_notifier

import (
	"go.uber.org/zap"
)

// BeforeNotifyFunc inspects a report before it is queued; clearing
// ShouldNotify discards it
type BeforeNotifyFunc func(report *Report)

// Client applies notification policy and owns the report queue
type Client struct {
	config    *Config
	queue     *ReportQueue
	builder   ReportBuilder
	logger    *zap.Logger
	level     ErrorKind
	callbacks []BeforeNotifyFunc
}

// NewClient creates a new client
func NewClient(config *Config, queue *ReportQueue, builder ReportBuilder, logger *zap.Logger) *Client {
	if builder == nil {
		builder = NewDefaultBuilder(config)
	}

	return &Client{
		config:  config,
		queue:   queue,
		builder: builder,
		logger:  logger,
		level:   config.ReportingLevel(),
	}
}

func (c *Client) ReportBuilder() ReportBuilder {
	return c.builder
}

func (c *Client) ErrorReportingLevel() ErrorKind {
	return c.level
}

// SetErrorReportingLevel changes the kinds reported by the error handler
func (c *Client) SetErrorReportingLevel(level ErrorKind) {
	c.level = level
}

// RegisterCallback adds a callback run on every report before it is queued
func (c *Client) RegisterCallback(fn BeforeNotifyFunc) {
	if fn != nil {
		c.callbacks = append(c.callbacks, fn)
	}
}

// Notify applies the release stage and callbacks to the report and queues it
func (c *Client) Notify(report *Report) {
	if report == nil {
		return
	}

	if !c.config.ShouldNotifyStage() {
		report.ShouldNotify = false
	}

	for _, fn := range c.callbacks {
		if !report.ShouldNotify {
			break
		}
		c.runCallback(fn, report)
	}

	c.queue.Queue(report)

	c.logger.Debug("Report notified",
		zap.String("report_id", report.ID),
		zap.String("error_class", report.ErrorClass),
		zap.String("severity", string(report.Severity)),
		zap.Bool("queued", report.ShouldNotify))
}

// NotifyError builds a handled report for err, applies opts and queues it.
// It returns the report ID, or an empty string when no report was built.
func (c *Client) NotifyError(err error, opts ...func(*Report)) string {
	report, buildErr := c.builder.FromError(err)
	if buildErr != nil {
		c.logger.Debug("could not build report", zap.Error(buildErr))
		return ""
	}

	for _, opt := range opts {
		opt(report)
	}

	c.Notify(report)
	return report.ID
}

// Flush delivers the queued reports
func (c *Client) Flush() {
	c.queue.Flush()
}

func (c *Client) runCallback(fn BeforeNotifyFunc, report *Report) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Warn("before notify callback failed",
				zap.String("report_id", report.ID),
				zap.Error(panicError(rec)))
		}
	}()
	fn(report)
}
