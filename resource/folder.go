// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package resource

// FolderBase is the base for resources producing a directory at
// <root>/<name>. It adds nothing to Base beyond the documented intent;
// the default path derivation already matches.
type FolderBase struct {
	Base
}

// NewFolderBase returns a FolderBase for a directory resource with the
// given name.
func NewFolderBase(name string, transient bool, deps ...Resource) FolderBase {
	return FolderBase{Base: NewBase(name, transient, deps...)}
}
