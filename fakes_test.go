package bugsnag_notifier

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testAPIKey = "6015a72ff14038114c3d12623dfb018f"

type sendCall struct {
	method  string
	url     string
	headers map[string]string
	body    []byte
}

type fakeTransport struct {
	calls []sendCall
	err   error
	panic any
}

func (f *fakeTransport) Send(method, url string, headers map[string]string, body []byte) (*Status, error) {
	f.calls = append(f.calls, sendCall{method: method, url: url, headers: headers, body: body})
	if f.panic != nil {
		panic(f.panic)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Status{Code: 200}, nil
}

// decodedPayload is the payload of a recorded call decoded into generic values
type decodedPayload struct {
	APIKey   string           `json:"apiKey"`
	Notifier map[string]any   `json:"notifier"`
	Events   []map[string]any `json:"events"`
}

func (c sendCall) payload(t *testing.T) decodedPayload {
	t.Helper()

	var p decodedPayload
	require.NoError(t, json.Unmarshal(c.body, &p))
	return p
}

func testConfig() *Config {
	return &Config{
		Enabled:        true,
		APIKey:         testAPIKey,
		Endpoints:      EndpointsConfig{Notify: DefaultNotifyEndpoint},
		ReleaseStage:   "production",
		MaxPayloadSize: DefaultMaxPayloadSize,
	}
}

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

func newTestQueue(transport Transport) (*ReportQueue, *observer.ObservedLogs) {
	logger, logs := newObservedLogger()
	q := NewReportQueue(testConfig(), transport, logger, nil)
	q.now = func() time.Time {
		return time.Date(2026, 10, 18, 12, 30, 0, 0, time.UTC)
	}
	return q, logs
}

func namedReport(class string) *Report {
	return &Report{
		ID:           class,
		Severity:     SeverityWarning,
		ErrorClass:   class,
		Message:      "Something broke",
		ShouldNotify: true,
	}
}

type fakeBuilder struct {
	err   error
	panic any
	built int
}

func (b *fakeBuilder) build(class string, severity Severity) (*Report, error) {
	b.built++
	if b.panic != nil {
		panic(b.panic)
	}
	if b.err != nil {
		return nil, b.err
	}
	report := namedReport(class)
	report.Severity = severity
	return report, nil
}

func (b *fakeBuilder) FromRuntimeError(e RuntimeError) (*Report, error) {
	report, err := b.build(runtimeErrorClass(e.Kind), e.Kind.Severity())
	if report != nil {
		report.Message = e.Message
	}
	return report, err
}

func (b *fakeBuilder) FromError(err error) (*Report, error) {
	report, buildErr := b.build(errorClass(err), SeverityError)
	if report != nil {
		report.Message = err.Error()
	}
	return report, buildErr
}

type fakeNotifier struct {
	builder  *fakeBuilder
	level    ErrorKind
	notified []*Report
	flushes  int
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{builder: &fakeBuilder{}, level: KindAll}
}

func (n *fakeNotifier) ReportBuilder() ReportBuilder   { return n.builder }
func (n *fakeNotifier) ErrorReportingLevel() ErrorKind { return n.level }
func (n *fakeNotifier) Notify(report *Report)          { n.notified = append(n.notified, report) }
func (n *fakeNotifier) Flush()                         { n.flushes++ }

type fakeRuntime struct {
	errorHandler     ErrorHandlerFunc
	exceptionHandler ExceptionHandlerFunc
	shutdown         func()
	reporting        ErrorKind
	lastError        *RuntimeError
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{reporting: KindAll}
}

func (r *fakeRuntime) SetErrorHandler(h ErrorHandlerFunc) ErrorHandlerFunc {
	prev := r.errorHandler
	r.errorHandler = h
	return prev
}

func (r *fakeRuntime) SetExceptionHandler(h ExceptionHandlerFunc) ExceptionHandlerFunc {
	prev := r.exceptionHandler
	r.exceptionHandler = h
	return prev
}

func (r *fakeRuntime) SetShutdownHandler(fn func()) func() {
	prev := r.shutdown
	r.shutdown = fn
	return prev
}

func (r *fakeRuntime) ErrorReporting() ErrorKind { return r.reporting }
func (r *fakeRuntime) LastError() *RuntimeError  { return r.lastError }

func newTestProcessRuntime() (*ProcessRuntime, *bytes.Buffer, *[]int) {
	rt := NewProcessRuntime()
	stderr := &bytes.Buffer{}
	exits := &[]int{}
	rt.stderr = stderr
	rt.exit = func(code int) {
		*exits = append(*exits, code)
	}
	return rt, stderr, exits
}
