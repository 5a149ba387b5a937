// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package resource

import (
	"github.com/juju/collections/set"
)

// TopologicalSort orders resources so that every resource appears
// after everything in its dependency list. Resources with no ordering
// constraint between them keep their relative declaration order, so
// the result is reproducible across runs. A dependency cycle is
// reported as a *CycleError naming the resources on the cycle.
func TopologicalSort(ordered []Resource) ([]Resource, error) {
	done := set.NewStrings()
	result := make([]Resource, 0, len(ordered))

	// visiting tracks the DFS stack in order for cycle reporting.
	var visiting []Resource
	onStack := set.NewStrings()

	var visit func(r Resource) error
	visit = func(r Resource) error {
		if done.Contains(r.Name()) {
			return nil
		}
		if onStack.Contains(r.Name()) {
			return &CycleError{Names: cycleNames(visiting, r)}
		}
		visiting = append(visiting, r)
		onStack.Add(r.Name())
		for _, dep := range r.Dependencies() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		visiting = visiting[:len(visiting)-1]
		onStack.Remove(r.Name())
		done.Add(r.Name())
		result = append(result, r)
		return nil
	}

	for _, r := range ordered {
		if err := visit(r); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// cycleNames extracts the names on the cycle closed by repeated: the
// stack segment from its first occurrence onwards.
func cycleNames(stack []Resource, repeated Resource) []string {
	var names []string
	for i, r := range stack {
		if r.Name() == repeated.Name() {
			for _, member := range stack[i:] {
				names = append(names, member.Name())
			}
			break
		}
	}
	if len(names) == 0 {
		names = []string{repeated.Name()}
	}
	return names
}

// ComputeDependents populates every resource's dependents list with
// the reverse of the declared dependency edges. Existing dependents
// are cleared first, so re-running it on the same live graph (the
// orchestrator does, once per download walk) is safe.
func ComputeDependents(resources []Resource) {
	for _, r := range resources {
		r.clearDependents()
	}
	for _, r := range resources {
		for _, dep := range r.Dependencies() {
			dep.addDependent(r)
		}
	}
}
