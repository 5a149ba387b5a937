// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package resource

import (
	"github.com/juju/materialize/fetch"
)

// Env carries the collaborators handed to every resource fetch for one
// download walk. It is passed explicitly by the orchestrator; nothing
// in the engine consults ambient global state.
type Env struct {
	// Client fetches URLs through the shared download cache. Leaves
	// that download from the network require it.
	Client *fetch.Client

	// Resolve maps a resource name to a path supplied by the caller,
	// consulted by link resources when none of their candidate paths
	// check out. Nil means no fallback.
	Resolve func(name string) (string, error)

	// Force reports whether the current walk is a forced re-download.
	// Resources that delegate to another dataset's engine propagate it.
	Force bool
}
