package bugsnag_notifier

import (
	"fmt"
)

// PanicError wraps a recovered panic value that was not an error
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// panicError converts a recovered value into an error, keeping error values intact
func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return err
	}
	return &PanicError{Value: rec}
}
