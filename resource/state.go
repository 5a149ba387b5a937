// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package resource

import (
	"github.com/juju/errors"
)

// State records how far a resource has progressed towards being
// materialized on disk. It is persisted in the owning dataset's state
// file, never held only in memory.
type State string

const (
	// None means no usable data exists for the resource.
	None State = "none"

	// Partial means a fetch started but did not finish. Resources that
	// can recover keep their staging output in this state so a later
	// attempt can pick it up.
	Partial State = "partial"

	// Complete means the final artifact is in place.
	Complete State = "complete"
)

// ParseState converts the serialized form of a state back into a
// State, returning an error for anything unrecognised.
func ParseState(value string) (State, error) {
	switch s := State(value); s {
	case None, Partial, Complete:
		return s, nil
	}
	return "", errors.NotValidf("resource state %q", value)
}

// String is the serialized form used in the state file.
func (s State) String() string {
	return string(s)
}
