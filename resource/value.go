// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package resource

// ValueBase is the base for resources producing an in-memory value
// rather than files. The two-path protocol is bypassed for these;
// state tracking still goes through the dataset's state file.
type ValueBase struct {
	Base
}

// NewValueBase returns a ValueBase for a value resource with the given
// name.
func NewValueBase(name string, deps ...Resource) ValueBase {
	return ValueBase{Base: NewBase(name, false, deps...)}
}

// HasFiles is part of the Resource interface.
func (b *ValueBase) HasFiles() bool {
	return false
}
