package bugsnag_notifier

import (
	"fmt"
)

// Report represents one diagnostic event destined for the collector.
// It is treated as immutable once queued.
type Report struct {
	ID             string
	Severity       Severity
	SeverityReason string
	Unhandled      bool
	ErrorClass     string
	Message        string
	Context        string
	Stacktrace     []Frame

	MetaData map[string]map[string]any
	User     map[string]any
	App      map[string]any
	Device   map[string]any

	// ShouldNotify is cleared by policy rules to discard the report
	ShouldNotify bool
}

// Frame is a single stack frame of a report
type Frame struct {
	File       string `json:"file"`
	LineNumber int    `json:"lineNumber"`
	Method     string `json:"method"`
	InProject  bool   `json:"inProject,omitempty"`
}

// SetMetaData replaces the report metadata
func (r *Report) SetMetaData(metaData map[string]map[string]any) *Report {
	r.MetaData = metaData
	return r
}

// AddMetaData merges values into a metadata group
func (r *Report) AddMetaData(group string, values map[string]any) *Report {
	if r.MetaData == nil {
		r.MetaData = make(map[string]map[string]any)
	}
	if r.MetaData[group] == nil {
		r.MetaData[group] = make(map[string]any, len(values))
	}
	for key, value := range values {
		r.MetaData[group][key] = value
	}
	return r
}

// SetUser replaces the user description
func (r *Report) SetUser(user map[string]any) *Report {
	r.User = user
	return r
}

// RuntimeError describes an error raised by the host runtime
type RuntimeError struct {
	Kind    ErrorKind
	Message string
	File    string
	Line    int
}

// String returns the error location and message
func (e RuntimeError) String() string {
	if e.File == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s in %s:%d", e.Kind, e.Message, e.File, e.Line)
}

// Status is the outcome of a successful transport call
type Status struct {
	Code int
}

// StatusError is returned when the collector answers with a non-2xx status
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// RPCReport is a report submitted by a worker process
type RPCReport struct {
	ErrorClass string                    `json:"errorClass"`
	Message    string                    `json:"message"`
	Severity   string                    `json:"severity,omitempty"`
	Unhandled  bool                      `json:"unhandled,omitempty"`
	Context    string                    `json:"context,omitempty"`
	Stacktrace []Frame                   `json:"stacktrace,omitempty"`
	MetaData   map[string]map[string]any `json:"metaData,omitempty"`
	User       map[string]any            `json:"user,omitempty"`
}

// NotifyResult represents the result of a notify call
type NotifyResult struct {
	Queued   bool   `json:"queued"`
	ReportID string `json:"report_id,omitempty"`
	Error    string `json:"error,omitempty"`
}
