package engine

import (
	"fmt"
	"strings"
	"time"
)

// NotFoundError reports a reference that resolved to nothing. It is
// never conflated with a resolved-but-structurally-empty result.
type NotFoundError struct {
	Ref string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("reference %q not found in graph", e.Ref)
}

// AmbiguousError reports a reference matching more than one node. The
// engine never auto-selects; callers choose a disambiguation policy.
type AmbiguousError struct {
	Ref        string
	Candidates []string
}

// Error implements the error interface.
func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("reference %q is ambiguous (%d candidates: %s)",
		e.Ref, len(e.Candidates), strings.Join(e.Candidates, ", "))
}

// ExecutionError reports a query that parsed but cannot be executed:
// unknown attribute, type mismatch, invalid edge type, missing change
// log, and similar.
type ExecutionError struct {
	Reason string
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return "execution error: " + e.Reason
}

func execErrorf(format string, args ...any) *ExecutionError {
	return &ExecutionError{Reason: fmt.Sprintf(format, args...)}
}

// TimeoutError reports a query stopped by its context, from the
// deadline or from the caller's cancel. Traversals check the context
// cooperatively; nothing blocks indefinitely.
type TimeoutError struct {
	Elapsed  time.Duration
	Canceled bool
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Canceled {
		return fmt.Sprintf("query canceled after %s", e.Elapsed)
	}
	return fmt.Sprintf("query timed out after %s", e.Elapsed)
}
