package bugsnag_notifier

import (
	"sync"

	"go.uber.org/zap"
)

// Notifier is the client the handlers report through
type Notifier interface {
	ReportBuilder() ReportBuilder
	ErrorReportingLevel() ErrorKind
	Notify(report *Report)
	Flush()
}

// HandlerRegistration records what a Handler replaced when it was installed.
// The previous handlers are only kept for chained registrations.
type HandlerRegistration struct {
	Chained                  bool
	PreviousErrorHandler     ErrorHandlerFunc
	PreviousExceptionHandler ExceptionHandlerFunc
}

// Handler turns runtime errors, uncaught errors and process shutdown into
// reports. The client it reports to is expected to serialize its own callers.
type Handler struct {
	client       Notifier
	runtime      Runtime
	logger       *zap.Logger
	registration HandlerRegistration

	mu           sync.Mutex
	lastReported *RuntimeError
}

// RegisterExclusive installs a handler that replaces any handler already
// installed in rt
func RegisterExclusive(client Notifier, rt Runtime, logger *zap.Logger) *Handler {
	return register(client, rt, logger, false)
}

// RegisterChained installs a handler that calls the previously installed
// handlers after its own reporting
func RegisterChained(client Notifier, rt Runtime, logger *zap.Logger) *Handler {
	return register(client, rt, logger, true)
}

func register(client Notifier, rt Runtime, logger *zap.Logger, chained bool) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Handler{
		client:       client,
		runtime:      rt,
		logger:       logger,
		registration: HandlerRegistration{Chained: chained},
	}

	prevError := rt.SetErrorHandler(h.OnError)
	prevException := rt.SetExceptionHandler(h.OnException)
	// the shutdown slot is never chained: the last registration flushes
	rt.SetShutdownHandler(h.OnShutdown)

	if chained {
		h.registration.PreviousErrorHandler = prevError
		h.registration.PreviousExceptionHandler = prevException
	}

	h.logger.Debug("Handlers registered",
		zap.Bool("chained", chained),
		zap.Bool("previous_error_handler", prevError != nil),
		zap.Bool("previous_exception_handler", prevException != nil))

	return h
}

// Registration returns the registration record
func (h *Handler) Registration() HandlerRegistration {
	return h.registration
}

// OnError reports a runtime error when both the client level and the
// runtime's current reporting level include kind. When chained, the previous
// handler's result is returned unchanged.
func (h *Handler) OnError(kind ErrorKind, message, file string, line int) bool {
	if h.shouldReport(kind) {
		e := RuntimeError{Kind: kind, Message: message, File: file, Line: line}
		queued := h.notify(func() (*Report, error) {
			return h.client.ReportBuilder().FromRuntimeError(e)
		})
		if queued {
			h.markReported(e)
		}
	}

	if prev := h.registration.PreviousErrorHandler; prev != nil {
		return prev(kind, message, file, line)
	}
	return false
}

// OnException reports an uncaught error and passes the same value to the
// previous handler when chained
func (h *Handler) OnException(err error) {
	if err != nil {
		h.notify(func() (*Report, error) {
			report, buildErr := h.client.ReportBuilder().FromError(err)
			if buildErr != nil || report == nil {
				return report, buildErr
			}
			report.Severity = SeverityError
			report.SeverityReason = reasonUnhandledException
			report.Unhandled = true
			return report, nil
		})
	}

	if prev := h.registration.PreviousExceptionHandler; prev != nil {
		prev(err)
	}
}

// OnShutdown reports a pending fatal error, then flushes the client
func (h *Handler) OnShutdown() {
	h.notify(func() (*Report, error) {
		last := h.runtime.LastError()
		if last == nil || !last.Kind.IsFatal() || h.isReported(*last) {
			return nil, nil
		}
		if !h.client.ErrorReportingLevel().Enabled(last.Kind) {
			return nil, nil
		}
		return h.client.ReportBuilder().FromRuntimeError(*last)
	})

	h.flush()
}

func (h *Handler) shouldReport(kind ErrorKind) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
		}
	}()
	return h.client.ErrorReportingLevel().Enabled(kind) && h.runtime.ErrorReporting().Enabled(kind)
}

func (h *Handler) markReported(e RuntimeError) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastReported = &e
}

func (h *Handler) isReported(e RuntimeError) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.lastReported != nil && *h.lastReported == e
}

// notify builds a report and passes it to the client. It reports whether the
// client was handed a report; failures are logged and swallowed.
func (h *Handler) notify(build func() (*Report, error)) (notified bool) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Debug("could not build report", zap.Error(panicError(rec)))
			notified = false
		}
	}()

	report, err := build()
	if err != nil {
		h.logger.Debug("could not build report", zap.Error(err))
		return false
	}
	if report == nil {
		return false
	}

	h.client.Notify(report)
	return true
}

func (h *Handler) flush() {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Debug("flush failed", zap.Error(panicError(rec)))
		}
	}()

	h.client.Flush()
}
