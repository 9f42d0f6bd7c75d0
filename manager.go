// manager.go: extension manager construction and shared surfaces
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultDeactivationTimeout bounds the deactivate hook before teardown
// is forced.
const DefaultDeactivationTimeout = 5 * time.Second

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// HostVersion is the semantic version of the embedding application,
	// checked against every manifest's engines range.
	HostVersion string

	// ExtensionsDir is the managed directory extensions are installed
	// into and scanned from.
	ExtensionsDir string

	// StatePath is the SQLite file holding the installation registry and
	// scoped storage. Defaults to extensions.db inside ExtensionsDir.
	StatePath string

	// WorkspaceConfigPath is the shared JSON configuration document.
	// Defaults to workspace.json inside ExtensionsDir.
	WorkspaceConfigPath string

	// UI receives user-facing operations. Defaults to NoOpHostUI.
	UI HostUI

	// Logger receives runtime logs. Defaults to a silent logger.
	Logger Logger

	// DeactivationTimeout bounds the deactivate hook. Zero selects
	// DefaultDeactivationTimeout.
	DeactivationTimeout time.Duration
}

// extensionInstance is the runtime side of one installed extension.
type extensionInstance struct {
	id          string
	installPath string

	mu       sync.RWMutex
	state    ExtensionState
	lastErr  error
	manifest ExtensionManifest

	sandbox *Sandbox
	context *ExtensionContext
	module  *Module

	// cancelCh aborts an in-flight activation; recreated per attempt.
	cancelCh  chan struct{}
	cancelled atomic.Bool
}

func (i *extensionInstance) setState(state ExtensionState) {
	i.mu.Lock()
	i.state = state
	i.mu.Unlock()
}

func (i *extensionInstance) fail(err error) {
	i.mu.Lock()
	i.state = StateFailed
	i.lastErr = err
	i.mu.Unlock()
}

// State returns the instance's current lifecycle state.
func (i *extensionInstance) State() ExtensionState {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// LastError returns the failure recorded on the instance, if any.
func (i *extensionInstance) LastError() error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.lastErr
}

// activationResult lets concurrent activation requests share one outcome.
type activationResult struct {
	done chan struct{}
	err  error
}

// Manager drives extensions through their lifecycle: install, validate,
// load, activate, deactivate, reload, uninstall. It owns the module
// cache, the capability gate, the contribution tables, and the persisted
// installation registry.
//
// Lifecycle operations on the same extension are strictly serialized;
// concurrent activation requests collapse onto a single hook run whose
// result every caller observes.
type Manager struct {
	hostVersion   *Version
	extensionsDir string

	store         *Store
	loader        *ModuleLoader
	validator     *Validator
	gate          *CapabilityGate
	contributions *ContributionRegistry
	workspace     *WorkspaceConfig
	ui            HostUI
	logger        Logger
	events        *eventBus

	deactivationTimeout atomic.Int64

	mu        sync.Mutex
	instances map[string]*extensionInstance
	locks     map[string]*sync.Mutex
	inflight  map[string]*activationResult

	shutdown atomic.Bool
}

// NewManager creates a manager rooted at the configured extensions
// directory, opening the registry database and workspace configuration.
func NewManager(opts ManagerOptions) (*Manager, error) {
	logger := opts.Logger
	if logger == nil {
		logger = DefaultLogger()
	}
	ui := opts.UI
	if ui == nil {
		ui = NewNoOpHostUI()
	}

	validator, err := NewValidator(opts.HostVersion, logger)
	if err != nil {
		return nil, err
	}

	if opts.ExtensionsDir == "" {
		return nil, NewRegistryStoreError("extensions directory is required", nil)
	}
	if err := os.MkdirAll(opts.ExtensionsDir, 0o750); err != nil {
		return nil, NewRegistryStoreError("extensions directory creation failed", err)
	}

	statePath := opts.StatePath
	if statePath == "" {
		statePath = filepath.Join(opts.ExtensionsDir, "extensions.db")
	}
	store, err := OpenStore(statePath, logger)
	if err != nil {
		return nil, err
	}

	workspacePath := opts.WorkspaceConfigPath
	if workspacePath == "" {
		workspacePath = filepath.Join(opts.ExtensionsDir, "workspace.json")
	}
	workspace, err := NewWorkspaceConfig(workspacePath, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	m := &Manager{
		hostVersion:   validator.HostVersion(),
		extensionsDir: opts.ExtensionsDir,
		store:         store,
		loader:        NewModuleLoader(logger),
		validator:     validator,
		gate:          NewCapabilityGate(logger),
		contributions: NewContributionRegistry(logger),
		workspace:     workspace,
		ui:            ui,
		logger:        logger,
		events:        newEventBus(logger),
		instances:     make(map[string]*extensionInstance),
		locks:         make(map[string]*sync.Mutex),
		inflight:      make(map[string]*activationResult),
	}

	timeout := opts.DeactivationTimeout
	if timeout <= 0 {
		timeout = DefaultDeactivationTimeout
	}
	m.deactivationTimeout.Store(int64(timeout))

	logger.Info("Extension manager initialized",
		"host_version", m.hostVersion.String(),
		"extensions_dir", opts.ExtensionsDir)
	return m, nil
}

// lockFor returns the per-extension operation lock, creating it on first
// use. The lock serializes lifecycle operations for one extension while
// leaving other extensions free to proceed.
func (m *Manager) lockFor(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	return lock
}

// instanceFor returns the runtime instance for an extension, if any.
func (m *Manager) instanceFor(id string) *extensionInstance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instances[id]
}

// ensureInstance returns the runtime instance, creating a fresh one from
// the installation record when none exists.
func (m *Manager) ensureInstance(rec *InstalledExtension) *extensionInstance {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[rec.ID]
	if !ok {
		inst = &extensionInstance{
			id:          rec.ID,
			installPath: rec.InstallPath,
			state:       StateDiscovered,
			manifest:    rec.Manifest,
		}
		m.instances[rec.ID] = inst
	}
	return inst
}

// dropInstance forgets the runtime instance for an extension.
func (m *Manager) dropInstance(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.instances, id)
}

// OnEvent registers a handler for lifecycle events.
func (m *Manager) OnEvent(handler LifecycleEventHandler) {
	m.events.subscribe(handler)
}

// SetDeactivationTimeout changes the deactivate hook budget at runtime.
func (m *Manager) SetDeactivationTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultDeactivationTimeout
	}
	m.deactivationTimeout.Store(int64(d))
	m.logger.Info("Deactivation timeout updated", "timeout", d.String())
}

// DeactivationTimeout returns the current deactivate hook budget.
func (m *Manager) DeactivationTimeout() time.Duration {
	return time.Duration(m.deactivationTimeout.Load())
}

// HostVersion returns the host version the manager validates against.
func (m *Manager) HostVersion() *Version {
	return m.hostVersion
}

// Workspace returns the shared workspace configuration document.
func (m *Manager) Workspace() *WorkspaceConfig {
	return m.workspace
}

// ListInstalled returns all installation records ordered by identifier.
func (m *Manager) ListInstalled() ([]*InstalledExtension, error) {
	return m.store.ListRecords()
}

// Status reports the combined persisted and runtime view of one
// extension.
func (m *Manager) Status(id string) (ExtensionStatus, error) {
	rec, err := m.store.GetRecord(id)
	if err != nil {
		return ExtensionStatus{}, err
	}

	status := ExtensionStatus{
		ID:      rec.ID,
		Name:    rec.Manifest.Name,
		Version: rec.Manifest.Version,
		State:   StateDisabled,
		Enabled: rec.Enabled,
	}

	if inst := m.instanceFor(id); inst != nil {
		status.State = inst.State()
		if lastErr := inst.LastError(); lastErr != nil {
			status.LastError = lastErr.Error()
		}
	}
	return status, nil
}

// ListStatus reports the status of every installed extension.
func (m *Manager) ListStatus() ([]ExtensionStatus, error) {
	records, err := m.store.ListRecords()
	if err != nil {
		return nil, err
	}

	statuses := make([]ExtensionStatus, 0, len(records))
	for _, rec := range records {
		status, err := m.Status(rec.ID)
		if err != nil {
			continue
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// ExecuteCommand invokes a registered command on behalf of the host. The
// host is trusted; permission gating applies only to extension-initiated
// cross-extension calls.
func (m *Manager) ExecuteCommand(ctx context.Context, name string, args []string) (string, error) {
	return m.contributions.ExecuteCommand(name, args)
}

// ListCommands returns the command contributions of active extensions.
func (m *Manager) ListCommands() []Contribution {
	return m.contributions.ListCommands()
}

// ListViews returns the view contributions of active extensions.
func (m *Manager) ListViews() []Contribution {
	return m.contributions.ListViews()
}

// ListSettings returns the setting contributions of active extensions.
func (m *Manager) ListSettings() []Contribution {
	return m.contributions.ListSettings()
}

// ListThemes returns the theme contributions of active extensions.
func (m *Manager) ListThemes() []Contribution {
	return m.contributions.ListThemes()
}

// Shutdown deactivates every active extension with the bounded teardown
// budget and closes the registry. The manager must not be used after
// Shutdown returns.
func (m *Manager) Shutdown(ctx context.Context) error {
	if !m.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	m.mu.Lock()
	ids := make([]string, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Deactivate(ctx, id); err != nil {
			m.logger.Warn("Deactivation during shutdown failed",
				"extension", id,
				"error", err)
		}
	}

	m.loader.Clear()
	err := m.store.Close()

	m.logger.Info("Extension manager shut down")
	return err
}
