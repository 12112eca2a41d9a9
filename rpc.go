package bugsnag_notifier

import (
	"github.com/roadrunner-server/errors"
	"go.uber.org/zap"
)

// RPC lets worker processes submit reports
type RPC struct {
	plugin *Plugin
	logger *zap.Logger
}

// NewRPC creates a new RPC instance
func NewRPC(plugin *Plugin, logger *zap.Logger) *RPC {
	return &RPC{
		plugin: plugin,
		logger: logger,
	}
}

// Notify queues a report built by a worker
func (r *RPC) Notify(in *RPCReport, result *NotifyResult) error {
	const op = errors.Op("bugsnag_rpc_notify")

	if r.plugin.notifier == nil {
		return errors.E(op, errors.Str("plugin not initialized"))
	}

	if in == nil || (in.ErrorClass == "" && in.Message == "") {
		*result = NotifyResult{Error: "report must have an error class or a message"}
		return nil
	}

	report := r.toReport(in)
	r.plugin.notifier.Notify(report)

	*result = NotifyResult{
		Queued:   report.ShouldNotify,
		ReportID: report.ID,
	}

	r.logger.Debug("Report received via RPC",
		zap.String("report_id", report.ID),
		zap.String("error_class", report.ErrorClass),
		zap.Bool("queued", report.ShouldNotify))

	return nil
}

// Flush delivers the queued reports
func (r *RPC) Flush(_ bool, ok *bool) error {
	const op = errors.Op("bugsnag_rpc_flush")

	if r.plugin.notifier == nil {
		return errors.E(op, errors.Str("plugin not initialized"))
	}

	r.plugin.notifier.Flush()
	*ok = true
	return nil
}

func (r *RPC) toReport(in *RPCReport) *Report {
	report := r.plugin.builder.NewReport()
	report.ErrorClass = in.ErrorClass
	report.Message = in.Message
	report.Context = in.Context
	report.Unhandled = in.Unhandled
	report.Severity = SeverityError
	report.SeverityReason = reasonHandledException
	if in.Unhandled {
		report.SeverityReason = reasonUnhandledException
	}

	switch severity := Severity(in.Severity); severity {
	case SeverityError, SeverityWarning, SeverityInfo:
		report.Severity = severity
		report.SeverityReason = reasonUserSpecified
	}

	if in.Stacktrace != nil {
		report.Stacktrace = in.Stacktrace
	} else {
		report.Stacktrace = []Frame{}
	}
	if in.MetaData != nil {
		report.SetMetaData(in.MetaData)
	}
	if in.User != nil {
		report.SetUser(in.User)
	}

	return report
}
