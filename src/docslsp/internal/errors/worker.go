package errors

import (
	stderr "errors"
	"fmt"
)

// TransportClosedError reports that the wire to a worker closed while calls
// were still outstanding. Every pending call on the affected endpoint fails
// with this error.
type TransportClosedError struct {
	Cause error
}

// Error is an implementation of the error interface.
func (e *TransportClosedError) Error() string {
	if e.Cause == nil {
		return "transport closed"
	}
	return fmt.Sprintf("transport closed: %v", e.Cause)
}

// Unwrap returns the error that closed the transport, if any.
func (e *TransportClosedError) Unwrap() error {
	return e.Cause
}

// IsTransportClosed reports whether the error chain contains a TransportClosedError.
func IsTransportClosed(e error) bool {
	var tc *TransportClosedError
	return stderr.As(e, &tc)
}

// ProcessExitError reports that a worker process exited unexpectedly.
type ProcessExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

// Error is an implementation of the error interface.
func (e *ProcessExitError) Error() string {
	return fmt.Sprintf("worker process %q exited with code %d", e.Command, e.ExitCode)
}

// ConfigResolutionError reports that a project's worker configuration could
// not be resolved. It short-circuits worker creation before any process is
// spawned and is surfaced to callers as "no worker", never as a crash.
type ConfigResolutionError struct {
	Scope  string
	Reason string
}

// Error is an implementation of the error interface.
func (e *ConfigResolutionError) Error() string {
	return fmt.Sprintf("resolving worker config for %q: %s", e.Scope, e.Reason)
}
