// manager_lifecycle.go: activation, deactivation, and reload
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"context"
	"time"
)

// Activate drives an extension to the active state. Concurrent calls for
// the same extension collapse onto a single activation: the hooks run
// once and every caller observes the same result.
func (m *Manager) Activate(ctx context.Context, id string) error {
	m.mu.Lock()
	if existing, ok := m.inflight[id]; ok {
		m.mu.Unlock()
		select {
		case <-existing.done:
			return existing.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	result := &activationResult{done: make(chan struct{})}
	m.inflight[id] = result
	m.mu.Unlock()

	err := m.runActivation(ctx, id)

	m.mu.Lock()
	delete(m.inflight, id)
	m.mu.Unlock()

	result.err = err
	close(result.done)
	return err
}

// runActivation performs one activation attempt under the per-extension
// lock.
func (m *Manager) runActivation(ctx context.Context, id string) error {
	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	return m.activateLocked(ctx, id)
}

// activateLocked walks the lifecycle from the persisted record to the
// active state. Callers hold the per-extension lock.
//
// State order: Discovered, Validated (manifest and host compatibility,
// re-checked on every load), Loaded (compiled entry module), Activating
// (top-level code plus the optional activate hook), Active. Any failure
// lands in Failed with the typed error recorded on the instance.
func (m *Manager) activateLocked(ctx context.Context, id string) error {
	rec, err := m.store.GetRecord(id)
	if err != nil {
		return err
	}
	if !rec.Enabled {
		return NewExtensionDisabledError(id)
	}

	inst := m.ensureInstance(rec)
	if inst.State() == StateActive {
		return nil
	}

	// Start each attempt from the freshest persisted snapshot.
	inst.mu.Lock()
	inst.manifest = rec.Manifest
	inst.installPath = rec.InstallPath
	inst.lastErr = nil
	inst.state = StateDiscovered
	inst.mu.Unlock()

	if err := m.validator.Validate(&rec.Manifest); err != nil {
		inst.fail(err)
		m.events.emit(EventActivationFailed, id, StateFailed, err)
		return err
	}
	if err := m.validator.CheckHostCompatibility(&rec.Manifest); err != nil {
		inst.fail(err)
		m.events.emit(EventActivationFailed, id, StateFailed, err)
		return err
	}
	inst.setState(StateValidated)

	entry := rec.Manifest.EntryPath(rec.InstallPath)
	module, err := m.loader.Load(entry)
	if err != nil {
		inst.fail(err)
		m.events.emit(EventActivationFailed, id, StateFailed, err)
		return err
	}
	inst.setState(StateLoaded)

	sandbox := NewSandbox()
	m.gate.Bind(id, rec.Manifest.Permissions)

	ectx := newExtensionContext(id, rec.Manifest.Version, m.gate, m.contributions,
		m.store, m.workspace, m.ui, sandbox, m.logger)
	ectx.bindLua()

	inst.mu.Lock()
	inst.sandbox = sandbox
	inst.context = ectx
	inst.module = module
	inst.cancelCh = make(chan struct{})
	inst.cancelled.Store(false)
	inst.mu.Unlock()

	inst.setState(StateActivating)
	m.events.emit(EventActivating, id, StateActivating, nil)

	// Top-level code and the optional activate hook run on a worker
	// goroutine so an uninstall can abandon a stuck activation. There is
	// no host-imposed activation timeout.
	hookDone := make(chan error, 1)
	go func() {
		defer withStackRecover(m.logger)()
		hookDone <- safeCall(m.logger, func() error {
			if err := sandbox.Run(module); err != nil {
				return err
			}
			_, err := sandbox.CallOptional("activate")
			return err
		})
	}()

	select {
	case hookErr := <-hookDone:
		if hookErr != nil {
			m.teardownLocked(inst, sandbox)
			activationErr := NewActivationError(id, hookErr)
			inst.fail(activationErr)
			m.events.emit(EventActivationFailed, id, StateFailed, activationErr)
			return activationErr
		}
	case <-inst.cancelCh:
		inst.cancelled.Store(true)
		ectx.revoke()
		// The hook may still be executing; a reaper finishes teardown
		// once it returns, whenever that is. By then the id may belong
		// to a reinstalled instance, so the reaper only strips the
		// shared tables while this instance is still the current one.
		SafeGo(m.logger, func() {
			<-hookDone
			if m.instanceFor(id) == inst {
				m.contributions.UnregisterAll(id)
				m.gate.Drop(id)
			}
			sandbox.Close()
		})
		cancelErr := NewActivationCancelledError(id)
		inst.fail(cancelErr)
		m.events.emit(EventActivationFailed, id, StateFailed, cancelErr)
		return cancelErr
	}

	m.registerDeclaredContributions(id, &rec.Manifest)

	inst.setState(StateActive)
	m.events.emit(EventActivated, id, StateActive, nil)
	m.logger.Info("Extension activated",
		"extension", id,
		"version", rec.Manifest.Version)
	return nil
}

// registerDeclaredContributions publishes the manifest's static views,
// settings, and themes once the activate hook has committed. Commands
// need runtime handlers and only enter the table through the context.
func (m *Manager) registerDeclaredContributions(id string, manifest *ExtensionManifest) {
	for _, v := range manifest.Contributes.Views {
		c := Contribution{Name: v.Name, Title: v.Title, Description: v.Location, Declared: true}
		if err := m.contributions.RegisterView(id, c); err != nil {
			m.logger.Debug("Declared view skipped", "extension", id, "view", v.Name, "error", err)
		}
	}
	for _, s := range manifest.Contributes.Settings {
		c := Contribution{Name: s.Name, Title: s.Description, Declared: true}
		if err := m.contributions.RegisterSetting(id, c); err != nil {
			m.logger.Debug("Declared setting skipped", "extension", id, "setting", s.Name, "error", err)
		}
	}
	for _, t := range manifest.Contributes.Themes {
		c := Contribution{Name: t.Name, Description: t.Path, Declared: true}
		if err := m.contributions.RegisterTheme(id, c); err != nil {
			m.logger.Debug("Declared theme skipped", "extension", id, "theme", t.Name, "error", err)
		}
	}
}

// Deactivate runs the optional deactivate hook within the configured
// budget, then tears the instance down. A hook that overruns the budget
// is abandoned and teardown is forced; the typed timeout error reports
// the overrun while the extension still ends up disabled.
func (m *Manager) Deactivate(ctx context.Context, id string) error {
	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	return m.deactivateLocked(ctx, id)
}

// deactivateLocked performs deactivation. Callers hold the per-extension
// lock.
func (m *Manager) deactivateLocked(ctx context.Context, id string) error {
	inst := m.instanceFor(id)
	if inst == nil || inst.State() != StateActive {
		return nil
	}

	inst.mu.RLock()
	sandbox := inst.sandbox
	inst.mu.RUnlock()

	inst.setState(StateDeactivating)
	m.events.emit(EventDeactivating, id, StateDeactivating, nil)

	var timeoutErr error
	if sandbox != nil {
		hookDone := make(chan error, 1)
		go func() {
			defer withStackRecover(m.logger)()
			hookDone <- safeCall(m.logger, func() error {
				_, err := sandbox.CallOptional("deactivate")
				return err
			})
		}()

		timeout := m.DeactivationTimeout()
		select {
		case hookErr := <-hookDone:
			if hookErr != nil {
				m.logger.Warn("Deactivate hook failed",
					"extension", id,
					"error", hookErr)
			}
		case <-time.After(timeout):
			timeoutErr = NewDeactivationTimeoutError(id, timeout.String())
			m.logger.Warn("Deactivate hook timed out, forcing teardown",
				"extension", id,
				"timeout", timeout.String())
			// The hook still owns the Lua state; close it once the hook
			// returns so the state is never torn down mid-execution.
			SafeGo(m.logger, func() {
				<-hookDone
				sandbox.Close()
			})
			sandbox = nil
		}
	}

	m.teardownLocked(inst, sandbox)

	inst.setState(StateDisabled)
	m.events.emit(EventDeactivated, id, StateDisabled, timeoutErr)
	m.logger.Info("Extension deactivated", "extension", id)
	return timeoutErr
}

// teardownLocked removes every externally visible trace of the instance:
// contributions, the capability grant, the cached module (unless another
// enabled extension shares the same entry path), and the sandbox when it
// is safe to close now.
func (m *Manager) teardownLocked(inst *extensionInstance, sandbox *Sandbox) {
	m.contributions.UnregisterAll(inst.id)
	m.gate.Drop(inst.id)

	inst.mu.Lock()
	entry := ""
	if inst.module != nil {
		entry = inst.module.Path
	}
	inst.sandbox = nil
	inst.context = nil
	inst.module = nil
	inst.mu.Unlock()

	if entry != "" && !m.moduleShared(inst.id, entry) {
		m.loader.Release(entry)
	}

	if sandbox != nil {
		sandbox.Close()
	}
}

// moduleShared reports whether another enabled extension resolves to the
// same entry module path.
func (m *Manager) moduleShared(id, entry string) bool {
	records, err := m.store.ListRecords()
	if err != nil {
		return false
	}
	for _, rec := range records {
		if rec.ID == id || !rec.Enabled {
			continue
		}
		if rec.Manifest.EntryPath(rec.InstallPath) == entry {
			return true
		}
	}
	return false
}

// Reload deactivates the extension, re-reads and re-validates the
// manifest, evicts the compiled module so the entry file is compiled
// fresh, and activates again. A contribution registered by the old code
// is gone before the new code registers it, so reload never doubles a
// registration.
func (m *Manager) Reload(ctx context.Context, id string) error {
	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	rec, err := m.store.GetRecord(id)
	if err != nil {
		return err
	}

	if err := m.deactivateLocked(ctx, id); err != nil {
		m.logger.Warn("Deactivation during reload reported an error",
			"extension", id,
			"error", err)
	}

	// Pick up manifest edits along with code edits.
	fresh, err := LoadManifest(rec.InstallPath)
	if err != nil {
		return err
	}
	if fresh.ID != id {
		return NewManifestValidationError(fresh.ID, "manifest id changed on disk; uninstall and reinstall instead")
	}
	if err := m.validator.Validate(fresh); err != nil {
		return err
	}
	if err := m.validator.CheckHostCompatibility(fresh); err != nil {
		return err
	}

	rec.Manifest = *fresh
	if err := m.store.SaveRecord(rec); err != nil {
		return err
	}

	entry := fresh.EntryPath(rec.InstallPath)
	if _, err := m.loader.Reload(entry); err != nil {
		return err
	}

	if err := m.activateLocked(ctx, id); err != nil {
		return err
	}

	m.events.emit(EventReloaded, id, StateActive, nil)
	m.logger.Info("Extension reloaded", "extension", id)
	return nil
}
