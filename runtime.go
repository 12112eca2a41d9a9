package bugsnag_notifier

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
)

// ErrorHandlerFunc handles a non-fatal runtime error. Returning false lets the
// runtime perform its default error display.
type ErrorHandlerFunc func(kind ErrorKind, message, file string, line int) bool

// ExceptionHandlerFunc handles an uncaught error or panic
type ExceptionHandlerFunc func(err error)

// Runtime is the process-wide interception point the handlers install into
type Runtime interface {
	// SetErrorHandler installs h and returns the previously installed handler
	SetErrorHandler(h ErrorHandlerFunc) ErrorHandlerFunc
	// SetExceptionHandler installs h and returns the previously installed handler
	SetExceptionHandler(h ExceptionHandlerFunc) ExceptionHandlerFunc
	// SetShutdownHandler installs the function run at process end and returns
	// the previously installed one
	SetShutdownHandler(fn func()) func()
	// ErrorReporting returns the kinds the runtime currently reports
	ErrorReporting() ErrorKind
	// LastError returns the most recent runtime error, or nil
	LastError() *RuntimeError
}

// ProcessRuntime is the Runtime of the current Go process. Code reports
// errors through TriggerError and Fatal, and goroutines capture panics with
// defer Recover().
type ProcessRuntime struct {
	mu               sync.Mutex
	errorHandler     ErrorHandlerFunc
	exceptionHandler ExceptionHandlerFunc
	shutdownHandler  func()
	shutdownFuncs    []func()
	shutdownOnce     sync.Once
	reporting        ErrorKind
	lastError        *RuntimeError

	stderr io.Writer
	exit   func(code int)
}

var process = NewProcessRuntime()

// Process returns the runtime of the current process
func Process() *ProcessRuntime {
	return process
}

// NewProcessRuntime creates a runtime reporting every error kind
func NewProcessRuntime() *ProcessRuntime {
	return &ProcessRuntime{
		reporting: KindAll,
		stderr:    os.Stderr,
		exit:      os.Exit,
	}
}

func (r *ProcessRuntime) SetErrorHandler(h ErrorHandlerFunc) ErrorHandlerFunc {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.errorHandler
	r.errorHandler = h
	return prev
}

func (r *ProcessRuntime) SetExceptionHandler(h ExceptionHandlerFunc) ExceptionHandlerFunc {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.exceptionHandler
	r.exceptionHandler = h
	return prev
}

func (r *ProcessRuntime) SetShutdownHandler(fn func()) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.shutdownHandler
	r.shutdownHandler = fn
	return prev
}

// RegisterShutdown adds fn to the functions run at process end, before the
// shutdown handler
func (r *ProcessRuntime) RegisterShutdown(fn func()) {
	if fn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.shutdownFuncs = append(r.shutdownFuncs, fn)
}

func (r *ProcessRuntime) ErrorReporting() ErrorKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.reporting
}

// SetErrorReporting changes the reported kinds and returns the previous value
func (r *ProcessRuntime) SetErrorReporting(kinds ErrorKind) ErrorKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.reporting
	r.reporting = kinds
	return prev
}

func (r *ProcessRuntime) LastError() *RuntimeError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastError == nil {
		return nil
	}
	last := *r.lastError
	return &last
}

// TriggerError raises a non-fatal error at the caller's location. Fatal kinds
// are passed to Fatal.
func (r *ProcessRuntime) TriggerError(kind ErrorKind, message string) bool {
	file, line := callerLocation(2)
	e := RuntimeError{Kind: kind, Message: message, File: file, Line: line}

	if kind.IsFatal() {
		r.fatal(e)
		return true
	}

	r.mu.Lock()
	r.lastError = &e
	handler := r.errorHandler
	reporting := r.reporting
	r.mu.Unlock()

	if handler != nil && handler(kind, message, file, line) {
		return true
	}

	if reporting.Enabled(kind) {
		fmt.Fprintln(r.stderr, e.String())
	}
	return false
}

// Fatal records a fatal error at the caller's location, runs the shutdown
// functions and exits the process.
func (r *ProcessRuntime) Fatal(message string) {
	file, line := callerLocation(2)
	r.fatal(RuntimeError{Kind: KindFatal, Message: message, File: file, Line: line})
}

func (r *ProcessRuntime) fatal(e RuntimeError) {
	r.mu.Lock()
	r.lastError = &e
	r.mu.Unlock()

	fmt.Fprintln(r.stderr, e.String())
	r.Shutdown()
	r.exit(255)
}

// Recover must be deferred directly. It passes a panic to the exception
// handler and terminates the process; without a handler the panic is
// recorded as a fatal error and re-raised after shutdown.
func (r *ProcessRuntime) Recover() {
	rec := recover()
	if rec == nil {
		return
	}

	err := panicError(rec)

	r.mu.Lock()
	handler := r.exceptionHandler
	r.mu.Unlock()

	if handler == nil {
		r.mu.Lock()
		r.lastError = &RuntimeError{Kind: KindFatal, Message: "uncaught " + err.Error()}
		r.mu.Unlock()

		r.Shutdown()
		panic(rec)
	}

	handler(err)
	r.Shutdown()
	r.exit(2)
}

// Shutdown runs the registered shutdown functions once, in registration
// order, then the shutdown handler
func (r *ProcessRuntime) Shutdown() {
	r.shutdownOnce.Do(func() {
		r.mu.Lock()
		funcs := make([]func(), len(r.shutdownFuncs), len(r.shutdownFuncs)+1)
		copy(funcs, r.shutdownFuncs)
		if r.shutdownHandler != nil {
			funcs = append(funcs, r.shutdownHandler)
		}
		r.mu.Unlock()

		for _, fn := range funcs {
			runShutdownFunc(fn)
		}
	})
}

func runShutdownFunc(fn func()) {
	defer func() {
		_ = recover()
	}()
	fn()
}

func callerLocation(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "", 0
	}
	return file, line
}
