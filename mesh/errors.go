package mesh

import (
	"errors"
	"fmt"
)

var (
	// ErrTargetNotFound is returned when a dispatch target is registered
	// neither locally nor on any known cluster node.
	ErrTargetNotFound = errors.New("target not found")

	// ErrTargetUnavailable is returned when a target is registered but its
	// inbound channel no longer accepts messages.
	ErrTargetUnavailable = errors.New("target unavailable")

	// ErrReplyDropped is returned when a target finished processing a
	// message without ever sending a reply.
	ErrReplyDropped = errors.New("target dropped without reply")
)

// RouteError wraps a routing failure with the target it concerned. Callers
// can branch on the underlying sentinel via errors.Is.
type RouteError struct {
	Target string
	Err    error
}

// Error implements the error interface.
func (e *RouteError) Error() string {
	return fmt.Sprintf("route %q: %v", e.Target, e.Err)
}

// Unwrap exposes the underlying sentinel or transport error.
func (e *RouteError) Unwrap() error { return e.Err }

func routeErr(target string, err error) error {
	return &RouteError{Target: target, Err: err}
}
