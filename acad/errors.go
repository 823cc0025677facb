package acad

import (
	"errors"
	"fmt"
)

// ResolveErrorKind classifies endpoint resolution failures.
type ResolveErrorKind int

const (
	// NoInstanceFound indicates no running instance was attachable and
	// starting a new one was not permitted or not configured.
	NoInstanceFound ResolveErrorKind = iota
	// VersionMismatch indicates instances were reachable but none matched
	// the pinned major version.
	VersionMismatch
	// LaunchTimeout indicates an explicitly launched process never became
	// attachable within the configured wait.
	LaunchTimeout
)

func (k ResolveErrorKind) String() string {
	switch k {
	case NoInstanceFound:
		return "no_instance_found"
	case VersionMismatch:
		return "version_mismatch"
	case LaunchTimeout:
		return "launch_timeout"
	}
	return "unknown"
}

// ResolveError is a typed endpoint resolution failure. It is surfaced to the
// caller as-is and never retried beyond the launch-wait loop.
type ResolveError struct {
	Kind    ResolveErrorKind
	Message string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve failed (%v): %v", e.Kind, e.Message)
}

func resolveErrorf(kind ResolveErrorKind, format string, args ...interface{}) *ResolveError {
	return &ResolveError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ErrBusy is the transient-busy signature: the automation layer momentarily
// rejected the call (COM RPC_E_CALL_REJECTED). Calls failing with it are
// expected to succeed on retry. Platform connectors wrap the raw automation
// error with ErrBusy so retry decisions stay platform independent.
var ErrBusy = errors.New("automation callee busy")

// ErrDisconnected indicates the endpoint process died or the handle went
// stale. It is never retried; the caller must re-resolve the endpoint.
var ErrDisconnected = errors.New("automation endpoint disconnected")

// IsBusy reports whether err carries the transient-busy signature.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

// IsDisconnected reports whether err indicates a dead endpoint.
func IsDisconnected(err error) bool {
	return errors.Is(err, ErrDisconnected)
}
