// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package resource

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/juju/errors"
)

const (
	stateFileName    = ".state.json"
	stateFileVersion = 1
)

// StateFile is the durable record of resource states for one dataset,
// stored as a single JSON document in the dataset's root directory.
// Every write is a full read-modify-write followed by a rename, so a
// crash never leaves a half-written document behind. Writes must only
// happen while the dataset lock is held; the orchestrator is the sole
// writer during a download walk.
type StateFile struct {
	path string
}

// NewStateFile returns the state file for the dataset rooted at the
// given directory.
func NewStateFile(root string) *StateFile {
	return &StateFile{path: filepath.Join(root, stateFileName)}
}

// Path returns the on-disk location of the state file.
func (f *StateFile) Path() string {
	return f.path
}

type stateDoc struct {
	Version   int                    `json:"version"`
	Resources map[string]resourceDoc `json:"resources"`
}

type resourceDoc struct {
	State string `json:"state"`
}

// Read returns the recorded state for the named resource. Names absent
// from the document report None: that covers both first access and
// data laid down by engine versions that predate persisted state.
func (f *StateFile) Read(name string) (State, error) {
	doc, err := f.load()
	if err != nil {
		return "", errors.Trace(err)
	}
	entry, ok := doc.Resources[name]
	if !ok {
		return None, nil
	}
	state, err := ParseState(entry.State)
	if err != nil {
		return "", &StateCorruptionError{Path: f.path, Cause: err}
	}
	return state, nil
}

// Write durably records the state for the named resource, preserving
// all other entries.
func (f *StateFile) Write(name string, state State) error {
	doc, err := f.load()
	if err != nil {
		return errors.Trace(err)
	}
	if doc.Resources == nil {
		doc.Resources = make(map[string]resourceDoc)
	}
	doc.Resources[name] = resourceDoc{State: state.String()}
	return errors.Trace(f.save(doc))
}

func (f *StateFile) load() (*stateDoc, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return &stateDoc{
			Version:   stateFileVersion,
			Resources: make(map[string]resourceDoc),
		}, nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	var doc stateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &StateCorruptionError{Path: f.path, Cause: err}
	}
	if doc.Version != stateFileVersion {
		return nil, &StateCorruptionError{
			Path:  f.path,
			Cause: errors.Errorf("unknown state file version %d", doc.Version),
		}
	}
	return &doc, nil
}

func (f *StateFile) save(doc *stateDoc) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return errors.Trace(err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Trace(err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(os.Rename(tmp, f.path))
}
