// manager_registry.go: install, uninstall, enable, disable
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Install copies an unpacked extension directory into the managed
// extensions directory, validates it, persists the installation record,
// and attempts activation.
//
// A manifest that fails validation still leaves the copied files and a
// disabled record behind, so the failure can be inspected and fixed
// without re-fetching the source. An activation failure leaves the record
// enabled with the instance in the failed state; the returned error
// reports it either way.
func (m *Manager) Install(ctx context.Context, sourcePath string) (*InstalledExtension, error) {
	manifest, err := LoadManifest(sourcePath)
	if err != nil {
		return nil, err
	}
	if manifest.ID == "" {
		return nil, NewManifestValidationError("", "id is required")
	}
	id := manifest.ID

	lock := m.lockFor(id)
	lock.Lock()

	if _, err := m.store.GetRecord(id); err == nil {
		lock.Unlock()
		return nil, NewAlreadyInstalledError(id)
	}

	dest := filepath.Join(m.extensionsDir, id)
	if err := copyDir(sourcePath, dest); err != nil {
		lock.Unlock()
		return nil, err
	}

	rec := &InstalledExtension{
		ID:          id,
		Manifest:    *manifest,
		InstallPath: dest,
		Enabled:     true,
	}

	if err := m.validator.Validate(manifest); err != nil {
		rec.Enabled = false
		if saveErr := m.store.SaveRecord(rec); saveErr != nil {
			m.logger.Error("Failed to persist record for invalid extension",
				"extension", id,
				"error", saveErr)
		}
		m.events.emit(EventValidationFailed, id, StateFailed, err)
		lock.Unlock()
		return rec, err
	}
	if err := m.validator.CheckHostCompatibility(manifest); err != nil {
		rec.Enabled = false
		if saveErr := m.store.SaveRecord(rec); saveErr != nil {
			m.logger.Error("Failed to persist record for incompatible extension",
				"extension", id,
				"error", saveErr)
		}
		m.events.emit(EventValidationFailed, id, StateFailed, err)
		lock.Unlock()
		return rec, err
	}

	if err := m.store.SaveRecord(rec); err != nil {
		lock.Unlock()
		return nil, err
	}
	m.events.emit(EventInstalled, id, StateDiscovered, nil)
	m.logger.Info("Extension installed",
		"extension", id,
		"version", manifest.Version,
		"path", dest)
	lock.Unlock()

	// Activation runs through the collapse path; its failure does not
	// undo the installation.
	if err := m.Activate(ctx, id); err != nil {
		return rec, err
	}
	return rec, nil
}

// Uninstall removes an extension entirely: a running instance is
// deactivated within the configured budget, an in-flight activation is
// cancelled rather than waited out, and the record, scoped storage, and
// installed files are deleted.
func (m *Manager) Uninstall(ctx context.Context, id string) error {
	// Cancel any in-flight activation before queueing on the lock, so a
	// stuck activate hook cannot block removal.
	m.mu.Lock()
	_, activating := m.inflight[id]
	inst := m.instances[id]
	m.mu.Unlock()
	if activating && inst != nil {
		inst.cancelActivation()
	}

	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	rec, err := m.store.GetRecord(id)
	if err != nil {
		return err
	}

	if err := m.deactivateLocked(ctx, id); err != nil {
		m.logger.Warn("Deactivation during uninstall reported an error",
			"extension", id,
			"error", err)
	}

	entry := rec.Manifest.EntryPath(rec.InstallPath)
	if !m.moduleShared(id, entry) {
		m.loader.Release(entry)
	}

	if err := m.store.DeleteRecord(id); err != nil {
		return err
	}

	if err := m.removeInstallDir(rec.InstallPath); err != nil {
		m.logger.Warn("Extension files could not be removed",
			"extension", id,
			"path", rec.InstallPath,
			"error", err)
	}

	m.gate.Drop(id)
	m.contributions.UnregisterAll(id)
	m.dropInstance(id)

	m.events.emit(EventUninstalled, id, StateDisabled, nil)
	m.logger.Info("Extension uninstalled", "extension", id)
	return nil
}

// cancelActivation closes the instance's cancel channel, idempotently.
func (i *extensionInstance) cancelActivation() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cancelCh == nil {
		return
	}
	select {
	case <-i.cancelCh:
		// already closed
	default:
		close(i.cancelCh)
	}
}

// removeInstallDir deletes an install directory, refusing anything that
// is not strictly inside the managed extensions directory.
func (m *Manager) removeInstallDir(path string) error {
	rel, err := filepath.Rel(m.extensionsDir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return NewPathTraversalError(path)
	}
	return os.RemoveAll(path)
}

// Enable marks an extension enabled and activates it.
func (m *Manager) Enable(ctx context.Context, id string) error {
	lock := m.lockFor(id)
	lock.Lock()
	if _, err := m.store.GetRecord(id); err != nil {
		lock.Unlock()
		return err
	}
	if err := m.store.SetEnabled(id, true); err != nil {
		lock.Unlock()
		return err
	}
	m.events.emit(EventEnabled, id, StateDisabled, nil)
	lock.Unlock()

	return m.Activate(ctx, id)
}

// Disable deactivates an extension and marks it disabled so scans and
// activation events skip it. The disabled flag is persisted even when the
// deactivate hook overran its budget. Deactivation and the flag write
// happen under one hold of the per-extension lock, so a concurrent
// activation can never land between them.
func (m *Manager) Disable(ctx context.Context, id string) error {
	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	deactErr := m.deactivateLocked(ctx, id)

	if err := m.store.SetEnabled(id, false); err != nil {
		return err
	}
	m.events.emit(EventDisabled, id, StateDisabled, nil)
	m.logger.Info("Extension disabled", "extension", id)
	return deactErr
}
