// discovery.go: extension directory scanning and activation dispatch
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Scan walks the managed extensions directory, adopts directories that
// carry a manifest but no installation record yet, and then dispatches
// the startup activation event. Activations run concurrently across
// extensions; per-extension serialization and activation collapse still
// apply.
func (m *Manager) Scan(ctx context.Context) error {
	entries, err := os.ReadDir(m.extensionsDir)
	if err != nil {
		return NewRegistryStoreError("extensions directory scan failed", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(m.extensionsDir, entry.Name())
		if FindManifestFile(dir) == "" {
			continue
		}

		manifest, err := LoadManifest(dir)
		if err != nil {
			m.logger.Warn("Unreadable manifest skipped during scan",
				"dir", dir,
				"error", err)
			continue
		}
		if manifest.ID == "" {
			continue
		}

		if _, err := m.store.GetRecord(manifest.ID); err == nil {
			continue // already managed
		}

		rec := &InstalledExtension{
			ID:          manifest.ID,
			Manifest:    *manifest,
			InstallPath: dir,
			Enabled:     true,
		}
		if err := m.store.SaveRecord(rec); err != nil {
			m.logger.Error("Failed to adopt discovered extension",
				"extension", manifest.ID,
				"error", err)
			continue
		}
		m.events.emit(EventInstalled, manifest.ID, StateDiscovered, nil)
		m.logger.Info("Extension discovered", "extension", manifest.ID, "dir", dir)
	}

	return m.DispatchActivationEvent(ctx, ActivationEventStartup)
}

// DispatchActivationEvent activates every enabled extension whose
// manifest subscribes to the named event, either exactly or through the
// "*" wildcard. Activations run concurrently; individual failures are
// recorded on their instances and logged, never aborting the dispatch.
func (m *Manager) DispatchActivationEvent(ctx context.Context, event string) error {
	records, err := m.store.ListRecords()
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, rec := range records {
		if !rec.Enabled || !rec.Manifest.WantsActivationOn(event) {
			continue
		}

		wg.Add(1)
		id := rec.ID
		go func() {
			defer wg.Done()
			defer withStackRecover(m.logger)()

			if err := m.Activate(ctx, id); err != nil {
				m.logger.Warn("Activation failed during event dispatch",
					"extension", id,
					"event", event,
					"error", err)
			}
		}()
	}
	wg.Wait()
	return nil
}

// copyDir recursively copies an extension directory, preserving file
// modes. Symlinks are skipped; an installed extension must be
// self-contained.
func copyDir(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return NewInstallSourceError(src, "source is not readable")
	}
	if !info.IsDir() {
		return NewInstallSourceError(src, "source is not a directory")
	}

	if err := os.MkdirAll(dst, 0o750); err != nil {
		return NewInstallCopyError(src, dst, err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return NewInstallCopyError(src, dst, err)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.Type()&os.ModeSymlink != 0 {
			continue
		}
		if entry.IsDir() {
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return NewInstallCopyError(srcPath, dstPath, err)
		}
	}
	return nil
}

// copyFile copies one regular file, preserving its mode.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src) // #nosec G304 -- paths come from directory walking above
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()) // #nosec G304
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
