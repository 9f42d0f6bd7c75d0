// workspace.go: shared workspace configuration with path-based access
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// WorkspaceConfig is the host's shared JSON configuration document.
// Values are addressed by dotted paths; extensions only ever see the
// subtree under "extensions.<id>" through their scoped context view.
// Mutations persist atomically via a temp-file rename.
type WorkspaceConfig struct {
	mu     sync.RWMutex
	path   string
	doc    []byte
	logger Logger
}

// NewWorkspaceConfig opens the workspace configuration file, creating an
// empty document when the file does not exist yet.
func NewWorkspaceConfig(path string, logger Logger) (*WorkspaceConfig, error) {
	if logger == nil {
		logger = DefaultLogger()
	}

	doc := []byte("{}")
	if data, err := os.ReadFile(path); err == nil { // #nosec G304 -- host-supplied config path
		if len(data) > 0 {
			if !gjson.ValidBytes(data) {
				return nil, NewWorkspaceConfigError("file is not valid JSON", nil)
			}
			doc = data
		}
	} else if !os.IsNotExist(err) {
		return nil, NewWorkspaceConfigError("read failed", err)
	}

	return &WorkspaceConfig{
		path:   path,
		doc:    doc,
		logger: logger,
	}, nil
}

// Get returns the value at a dotted path. The second result reports
// whether the path exists.
func (w *WorkspaceConfig) Get(path string) (gjson.Result, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	result := gjson.GetBytes(w.doc, path)
	return result, result.Exists()
}

// GetString returns the string form of the value at a dotted path.
func (w *WorkspaceConfig) GetString(path string) (string, bool) {
	result, ok := w.Get(path)
	if !ok {
		return "", false
	}
	return result.String(), true
}

// Set writes a value at a dotted path and persists the document.
func (w *WorkspaceConfig) Set(path string, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	updated, err := sjson.SetBytes(w.doc, path, value)
	if err != nil {
		return NewWorkspaceConfigError("set failed for path "+path, err)
	}
	w.doc = updated
	return w.persistLocked()
}

// Delete removes the value at a dotted path and persists the document.
func (w *WorkspaceConfig) Delete(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	updated, err := sjson.DeleteBytes(w.doc, path)
	if err != nil {
		return NewWorkspaceConfigError("delete failed for path "+path, err)
	}
	w.doc = updated
	return w.persistLocked()
}

// Snapshot returns a copy of the raw document.
func (w *WorkspaceConfig) Snapshot() []byte {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]byte, len(w.doc))
	copy(out, w.doc)
	return out
}

// persistLocked writes the document through a temp file and rename so a
// crash mid-write never leaves a torn config. Callers hold the write lock.
func (w *WorkspaceConfig) persistLocked() error {
	if w.path == "" {
		return nil
	}

	dir := filepath.Dir(w.path)
	tmp, err := os.CreateTemp(dir, ".workspace-*.json")
	if err != nil {
		return NewWorkspaceConfigError("temp file creation failed", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(w.doc); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return NewWorkspaceConfigError("write failed", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return NewWorkspaceConfigError("close failed", err)
	}

	if err := os.Rename(tmpName, w.path); err != nil {
		_ = os.Remove(tmpName)
		return NewWorkspaceConfigError("rename failed", err)
	}

	w.logger.Debug("Workspace configuration persisted", "path", w.path)
	return nil
}
