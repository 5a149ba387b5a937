// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package resource

import (
	"fmt"
	"strings"
)

// BindError reports a structural problem while attaching a resource to
// a dataset: a name collision, a missing name, or an attempt to bind a
// resource that is already bound. Bind errors indicate a malformed
// dataset definition and are never retryable.
type BindError struct {
	// Name is the resource name involved, when known.
	Name string
	// Message describes what went wrong.
	Message string
}

// Error is part of the error interface.
func (e *BindError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("cannot bind resource: %s", e.Message)
	}
	return fmt.Sprintf("cannot bind resource %q: %s", e.Name, e.Message)
}

// CycleError reports a dependency cycle discovered during topological
// ordering. Like BindError it indicates a malformed definition.
type CycleError struct {
	// Names holds the resources involved in the cycle.
	Names []string
}

// Error is part of the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle involving resources %s", strings.Join(e.Names, ", "))
}

// DownloadError wraps a failure inside a resource's fetch routine. The
// orchestrator records the state transition for the failing resource
// and returns one of these instead of attempting anything later in the
// walk.
type DownloadError struct {
	// Name identifies the resource whose fetch failed.
	Name string
	// Cause is the underlying fetch error.
	Cause error
}

// Error is part of the error interface.
func (e *DownloadError) Error() string {
	return fmt.Sprintf("cannot download resource %q: %v", e.Name, e.Cause)
}

// Unwrap exposes the underlying fetch error to errors.Is/As.
func (e *DownloadError) Unwrap() error {
	return e.Cause
}

// StateCorruptionError reports a state file that cannot be trusted:
// unreadable content or an unknown schema version. The engine aborts
// rather than silently resetting download history.
type StateCorruptionError struct {
	// Path is the state file location.
	Path string
	// Cause is the underlying parse or version problem.
	Cause error
}

// Error is part of the error interface.
func (e *StateCorruptionError) Error() string {
	return fmt.Sprintf("state file %q is corrupt: %v", e.Path, e.Cause)
}

// Unwrap exposes the underlying problem to errors.Is/As.
func (e *StateCorruptionError) Unwrap() error {
	return e.Cause
}
