package bugsnag_notifier

import (
	"errors"
	"reflect"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

const (
	reasonHandledException   = "handledException"
	reasonUnhandledError     = "unhandledError"
	reasonUnhandledException = "unhandledException"
	reasonUserSpecified      = "userSpecifiedSeverity"

	defaultStackDepth = 64
)

// ReportBuilder produces reports from raw runtime events
type ReportBuilder interface {
	FromRuntimeError(e RuntimeError) (*Report, error)
	FromError(err error) (*Report, error)
}

// Callers is implemented by errors that captured their own stack
type Callers interface {
	Callers() []uintptr
}

// DefaultBuilder builds reports carrying the stack, app and device details
type DefaultBuilder struct {
	config *Config
	// frames of the builder itself skipped when capturing a stack
	skip int
}

// NewDefaultBuilder creates a report builder for the given configuration
func NewDefaultBuilder(config *Config) *DefaultBuilder {
	return &DefaultBuilder{config: config, skip: 2}
}

// FromRuntimeError builds an unhandled report for an error raised by the runtime
func (b *DefaultBuilder) FromRuntimeError(e RuntimeError) (*Report, error) {
	if e.Kind == 0 {
		return nil, errors.New("runtime error without kind")
	}

	report := b.NewReport()
	report.Severity = e.Kind.Severity()
	report.SeverityReason = reasonUnhandledError
	report.Unhandled = true
	report.ErrorClass = runtimeErrorClass(e.Kind)
	report.Message = e.Message

	if e.File != "" {
		report.Stacktrace = []Frame{{File: e.File, LineNumber: e.Line, Method: "[unknown]", InProject: true}}
	} else {
		report.Stacktrace = captureStack(b.skip, defaultStackDepth)
	}

	return report, nil
}

// FromError builds a handled report for err
func (b *DefaultBuilder) FromError(err error) (*Report, error) {
	if err == nil {
		return nil, errors.New("cannot build a report from a nil error")
	}

	report := b.NewReport()
	report.Severity = SeverityError
	report.SeverityReason = reasonHandledException
	report.ErrorClass = errorClass(err)
	report.Message = err.Error()

	var withCallers Callers
	if errors.As(err, &withCallers) {
		report.Stacktrace = resolveFrames(withCallers.Callers(), defaultStackDepth)
	} else {
		report.Stacktrace = captureStack(b.skip, defaultStackDepth)
	}

	return report, nil
}

// NewReport returns an empty report carrying the app and device details
func (b *DefaultBuilder) NewReport() *Report {
	report := &Report{
		ID:           uuid.NewString(),
		ShouldNotify: true,
		MetaData:     map[string]map[string]any{},
		User:         map[string]any{},
		Device: map[string]any{
			"osName":          runtime.GOOS,
			"runtimeVersions": map[string]string{"go": runtime.Version()},
		},
	}

	if b.config != nil {
		report.App = map[string]any{"releaseStage": b.config.ReleaseStage}
		if b.config.AppVersion != "" {
			report.App["version"] = b.config.AppVersion
		}
		if b.config.AppType != "" {
			report.App["type"] = b.config.AppType
		}
		if b.config.Hostname != "" {
			report.Device["hostname"] = b.config.Hostname
		}
	}

	return report
}

func runtimeErrorClass(kind ErrorKind) string {
	switch {
	case kind.IsFatal():
		return "Fatal Error"
	case kind&KindError != 0:
		return "Error"
	case kind&KindWarning != 0:
		return "Warning"
	case kind&KindNotice != 0:
		return "Notice"
	case kind&KindDeprecated != 0:
		return "Deprecated"
	default:
		return "Unknown"
	}
}

func errorClass(err error) string {
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return "panic"
	}
	return reflect.TypeOf(err).String()
}

// captureStack captures up to maxDepth frames above its caller, skipping skip frames
func captureStack(skip, maxDepth int) []Frame {
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(skip+1, pcs)
	return resolveFrames(pcs[:n], maxDepth)
}

func resolveFrames(pcs []uintptr, maxDepth int) []Frame {
	if len(pcs) == 0 {
		return []Frame{}
	}

	frames := runtime.CallersFrames(pcs)
	out := make([]Frame, 0, len(pcs))
	for len(out) < maxDepth {
		frame, more := frames.Next()
		if frame.Function != "" || frame.File != "" {
			out = append(out, Frame{
				File:       frame.File,
				LineNumber: frame.Line,
				Method:     frame.Function,
				InProject:  !strings.HasPrefix(frame.Function, "runtime."),
			})
		}
		if !more {
			break
		}
	}
	return out
}
