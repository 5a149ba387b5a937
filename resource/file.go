// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package resource

import (
	"path/filepath"
	"strings"
)

// FileBase is the base for resources producing a single file. The
// final artifact lives at <root>/<filename>; the resource name
// defaults to the filename with its extensions stripped.
type FileBase struct {
	Base
	filename string
}

// NewFileBase returns a FileBase for the given filename. An empty name
// derives the resource name from the filename.
func NewFileBase(filename, name string, transient bool, deps ...Resource) FileBase {
	if name == "" {
		name = filename
		if i := strings.Index(filename, "."); i > 0 {
			name = filename[:i]
		}
	}
	return FileBase{
		Base:     NewBase(name, transient, deps...),
		filename: filename,
	}
}

// Filename is the name of the produced file within the dataset root.
func (b *FileBase) Filename() string {
	return b.filename
}

// Path is part of the Resource interface.
func (b *FileBase) Path() string {
	return filepath.Join(b.Dataset().Path(), b.filename)
}

// TransientPath is part of the Resource interface.
func (b *FileBase) TransientPath() string {
	return filepath.Join(b.Dataset().Path(), downloadsDir, b.filename)
}
