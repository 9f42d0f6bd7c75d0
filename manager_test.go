// manager_test.go: extension manager lifecycle integration tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_InstallActivatesAndRegistersCommands(t *testing.T) {
	manager, _ := newTestManager(t, "1.0.0")
	source := writeExtensionDir(t, helloManifest, helloLua)

	rec, err := manager.Install(context.Background(), source)
	require.NoError(t, err)
	assert.Equal(t, "hello", rec.ID)
	assert.True(t, rec.Enabled)

	status, err := manager.Status("hello")
	require.NoError(t, err)
	assert.Equal(t, StateActive, status.State)

	out, err := manager.ExecuteCommand(context.Background(), "hello.greet", []string{"there"})
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)

	commands := manager.ListCommands()
	require.Len(t, commands, 1)
	assert.Equal(t, "hello.greet", commands[0].Name)
	assert.Equal(t, "hello", commands[0].Owner)
}

func TestManager_InstallDuplicateRejected(t *testing.T) {
	manager, _ := newTestManager(t, "1.0.0")
	source := writeExtensionDir(t, helloManifest, helloLua)

	_, err := manager.Install(context.Background(), source)
	require.NoError(t, err)

	_, err = manager.Install(context.Background(), source)
	require.Error(t, err)
	assert.True(t, HasErrorCode(err, ErrCodeAlreadyInstalled))
}

func TestManager_InstallIncompatibleHostLeavesDisabledRecord(t *testing.T) {
	manager, _ := newTestManager(t, "2.0.0")
	source := writeExtensionDir(t, helloManifest, helloLua)

	rec, err := manager.Install(context.Background(), source)
	require.Error(t, err)
	assert.True(t, HasErrorCode(err, ErrCodeIncompatibleHost))

	// The record is retained disabled so the failure can be inspected
	require.NotNil(t, rec)
	assert.False(t, rec.Enabled)

	stored, err := manager.Status("hello")
	require.NoError(t, err)
	assert.False(t, stored.Enabled)
}

func TestManager_InstallUnparsableManifestCopiesNothing(t *testing.T) {
	manager, _ := newTestManager(t, "1.0.0")
	source := writeExtensionDir(t, `{not json`, helloLua)

	_, err := manager.Install(context.Background(), source)
	require.Error(t, err)

	records, err := manager.ListInstalled()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestManager_ActivationFailureRecordsFailedState(t *testing.T) {
	manager, _ := newTestManager(t, "1.0.0")
	source := writeExtensionDir(t, helloManifest, `error("activation exploded")`)

	rec, err := manager.Install(context.Background(), source)
	require.Error(t, err)
	assert.True(t, HasErrorCode(err, ErrCodeActivationFailed))
	require.NotNil(t, rec)
	assert.True(t, rec.Enabled)

	status, err := manager.Status("hello")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, status.State)
	assert.Contains(t, status.LastError, "activation exploded")

	// Nothing leaked into the contribution tables
	assert.Empty(t, manager.ListCommands())
}

func TestManager_PermissionDenialIsSideEffectFree(t *testing.T) {
	manager, ui := newTestManager(t, "1.0.0")

	// No clipboard permission declared
	source := writeExtensionDir(t, helloManifest, `
		function activate()
			host.register_command("paste", function(args)
				local ok, err = host.write_clipboard("secret")
				if not ok then
					return "denied: " .. err
				end
				return "written"
			end)
		end
	`)

	_, err := manager.Install(context.Background(), source)
	require.NoError(t, err)

	out, err := manager.ExecuteCommand(context.Background(), "hello.paste", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "denied: ")

	// The denied operation performed no part of its work
	assert.Equal(t, 0, ui.clipboardWrites())
}

func TestManager_GrantedPermissionAllowsOperation(t *testing.T) {
	manager, ui := newTestManager(t, "1.0.0")

	manifest := `{
		"id": "clip",
		"name": "Clip",
		"version": "1.0.0",
		"engines": {"host": "^1.0.0"},
		"permissions": ["clipboard"]
	}`
	source := writeExtensionDir(t, manifest, `
		function activate()
			host.register_command("copy", function(args)
				host.write_clipboard(args[1])
				return "copied"
			end)
		end
	`)

	_, err := manager.Install(context.Background(), source)
	require.NoError(t, err)

	out, err := manager.ExecuteCommand(context.Background(), "clip.copy", []string{"payload"})
	require.NoError(t, err)
	assert.Equal(t, "copied", out)
	assert.Equal(t, 1, ui.clipboardWrites())
}

func TestManager_CommandNamespaceEnforced(t *testing.T) {
	manager, _ := newTestManager(t, "1.0.0")

	source := writeExtensionDir(t, helloManifest, `
		function activate()
			local ok, err = host.register_command("other-ext.steal", function(args)
				return "stolen"
			end)
			impersonation_error = err
		end
	`)

	_, err := manager.Install(context.Background(), source)
	require.NoError(t, err)

	// The foreign-prefixed registration was rejected
	_, err = manager.ExecuteCommand(context.Background(), "other-ext.steal", nil)
	assert.True(t, HasErrorCode(err, ErrCodeCommandNotFound))
}

func TestManager_CrossExtensionCallRequiresMCP(t *testing.T) {
	providerManifest := `{
		"id": "provider",
		"name": "Provider",
		"version": "1.0.0",
		"engines": {"host": "^1.0.0"}
	}`
	providerLua := `
		function activate()
			host.register_command("ping", function(args)
				return "pong"
			end)
		end
	`
	callerLua := `
		function activate()
			host.register_command("call", function(args)
				local out, err = host.execute_command("provider.ping", {})
				if not out then
					return "denied: " .. err
				end
				return out
			end)
		end
	`

	t.Run("WithoutMCPDenied", func(t *testing.T) {
		manager, _ := newTestManager(t, "1.0.0")
		_, err := manager.Install(context.Background(), writeExtensionDir(t, providerManifest, providerLua))
		require.NoError(t, err)

		callerManifest := `{
			"id": "caller",
			"name": "Caller",
			"version": "1.0.0",
			"engines": {"host": "^1.0.0"}
		}`
		_, err = manager.Install(context.Background(), writeExtensionDir(t, callerManifest, callerLua))
		require.NoError(t, err)

		out, err := manager.ExecuteCommand(context.Background(), "caller.call", nil)
		require.NoError(t, err)
		assert.Contains(t, out, "denied: ")
	})

	t.Run("WithMCPAllowed", func(t *testing.T) {
		manager, _ := newTestManager(t, "1.0.0")
		_, err := manager.Install(context.Background(), writeExtensionDir(t, providerManifest, providerLua))
		require.NoError(t, err)

		callerManifest := `{
			"id": "caller",
			"name": "Caller",
			"version": "1.0.0",
			"engines": {"host": "^1.0.0"},
			"permissions": ["mcp"]
		}`
		_, err = manager.Install(context.Background(), writeExtensionDir(t, callerManifest, callerLua))
		require.NoError(t, err)

		out, err := manager.ExecuteCommand(context.Background(), "caller.call", nil)
		require.NoError(t, err)
		assert.Equal(t, "pong", out)
	})
}

func TestManager_DisableClearsContributions(t *testing.T) {
	manager, _ := newTestManager(t, "1.0.0")
	source := writeExtensionDir(t, helloManifest, helloLua)

	_, err := manager.Install(context.Background(), source)
	require.NoError(t, err)
	require.Len(t, manager.ListCommands(), 1)

	require.NoError(t, manager.Disable(context.Background(), "hello"))

	assert.Empty(t, manager.ListCommands())
	_, err = manager.ExecuteCommand(context.Background(), "hello.greet", nil)
	assert.True(t, HasErrorCode(err, ErrCodeCommandNotFound))

	status, err := manager.Status("hello")
	require.NoError(t, err)
	assert.False(t, status.Enabled)
	assert.Equal(t, StateDisabled, status.State)

	// A disabled extension refuses activation until re-enabled
	err = manager.Activate(context.Background(), "hello")
	assert.True(t, HasErrorCode(err, ErrCodeExtensionDisabled))

	require.NoError(t, manager.Enable(context.Background(), "hello"))
	out, err := manager.ExecuteCommand(context.Background(), "hello.greet", []string{"again"})
	require.NoError(t, err)
	assert.Equal(t, "hello again", out)
}

func TestManager_ConcurrentActivationRunsHooksOnce(t *testing.T) {
	manager, _ := newTestManager(t, "1.0.0")

	// The activate hook counts its own runs inside the Lua state
	source := writeExtensionDir(t, helloManifest, `
		runs = 0
		function activate()
			runs = runs + 1
			host.register_command("runs", function(args)
				return tostring(runs)
			end)
		end
	`)

	_, err := manager.Install(context.Background(), source)
	require.NoError(t, err)
	require.NoError(t, manager.Deactivate(context.Background(), "hello"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, manager.Activate(context.Background(), "hello"))
		}()
	}
	wg.Wait()

	out, err := manager.ExecuteCommand(context.Background(), "hello.runs", nil)
	require.NoError(t, err)
	assert.Equal(t, "1", out)
}

func TestManager_ReloadPicksUpChangesWithoutDoubling(t *testing.T) {
	manager, _ := newTestManager(t, "1.0.0")
	source := writeExtensionDir(t, helloManifest, helloLua)

	rec, err := manager.Install(context.Background(), source)
	require.NoError(t, err)

	// Edit the installed entry module in place
	entry := filepath.Join(rec.InstallPath, "init.lua")
	require.NoError(t, os.WriteFile(entry, []byte(`
		function activate()
			host.register_command("greet", function(args)
				return "ciao " .. (args[1] or "mondo")
			end)
		end
	`), 0o600))

	require.NoError(t, manager.Reload(context.Background(), "hello"))

	out, err := manager.ExecuteCommand(context.Background(), "hello.greet", []string{"bella"})
	require.NoError(t, err)
	assert.Equal(t, "ciao bella", out)

	// Old registrations are gone before the new code re-registers
	assert.Len(t, manager.ListCommands(), 1)
}

func TestManager_ReloadRejectsIDChange(t *testing.T) {
	manager, _ := newTestManager(t, "1.0.0")
	source := writeExtensionDir(t, helloManifest, helloLua)

	rec, err := manager.Install(context.Background(), source)
	require.NoError(t, err)

	renamed := `{
		"id": "renamed",
		"name": "Hello",
		"version": "1.0.0",
		"engines": {"host": "^1.0.0"}
	}`
	require.NoError(t, os.WriteFile(
		filepath.Join(rec.InstallPath, "extension.json"), []byte(renamed), 0o600))

	err = manager.Reload(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, HasErrorCode(err, ErrCodeManifestValidation))
}

func TestManager_UninstallRemovesEverything(t *testing.T) {
	manager, _ := newTestManager(t, "1.0.0")

	source := writeExtensionDir(t, helloManifest, `
		function activate()
			host.register_command("greet", function(args)
				return "hi"
			end)
			host.storage_set("seen", "yes")
		end
	`)

	rec, err := manager.Install(context.Background(), source)
	require.NoError(t, err)
	installPath := rec.InstallPath

	require.NoError(t, manager.Uninstall(context.Background(), "hello"))

	// Record, contributions, storage, and files are all gone
	_, err = manager.Status("hello")
	assert.True(t, HasErrorCode(err, ErrCodeExtensionNotFound))

	_, err = manager.ExecuteCommand(context.Background(), "hello.greet", nil)
	assert.True(t, HasErrorCode(err, ErrCodeCommandNotFound))

	_, statErr := os.Stat(installPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestManager_DeactivateHookFailureStillTearsDown(t *testing.T) {
	manager, _ := newTestManager(t, "1.0.0")

	source := writeExtensionDir(t, helloManifest, `
		function activate()
			host.register_command("greet", function(args)
				return "hi"
			end)
		end
		function deactivate()
			error("cleanup failed")
		end
	`)

	_, err := manager.Install(context.Background(), source)
	require.NoError(t, err)

	// The failing hook is logged but teardown always completes
	require.NoError(t, manager.Deactivate(context.Background(), "hello"))
	assert.Empty(t, manager.ListCommands())

	status, err := manager.Status("hello")
	require.NoError(t, err)
	assert.Equal(t, StateDisabled, status.State)
}

func TestManager_ScanAdoptsAndActivatesOnStartup(t *testing.T) {
	extensionsDir := t.TempDir()

	first, err := NewManager(ManagerOptions{
		HostVersion:   "1.0.0",
		ExtensionsDir: extensionsDir,
		Logger:        NewTestLogger(),
	})
	require.NoError(t, err)

	_, err = first.Install(context.Background(), writeExtensionDir(t, helloManifest, helloLua))
	require.NoError(t, err)
	require.NoError(t, first.Shutdown(context.Background()))

	// A fresh manager over the same directories restores state on scan
	second, err := NewManager(ManagerOptions{
		HostVersion:   "1.0.0",
		ExtensionsDir: extensionsDir,
		Logger:        NewTestLogger(),
	})
	require.NoError(t, err)
	defer func() { _ = second.Shutdown(context.Background()) }()

	require.NoError(t, second.Scan(context.Background()))

	out, err := second.ExecuteCommand(context.Background(), "hello.greet", []string{"back"})
	require.NoError(t, err)
	assert.Equal(t, "hello back", out)
}

func TestManager_ScanSkipsNonStartupActivationEvents(t *testing.T) {
	manager, _ := newTestManager(t, "1.0.0")

	lazyManifest := `{
		"id": "lazy",
		"name": "Lazy",
		"version": "1.0.0",
		"engines": {"host": "^1.0.0"},
		"activationEvents": ["onCommand:lazy.wake"]
	}`
	_, err := manager.Install(context.Background(), writeExtensionDir(t, lazyManifest, helloLua))
	// Install always attempts activation; the extension itself activates fine
	require.NoError(t, err)
	require.NoError(t, manager.Deactivate(context.Background(), "lazy"))

	require.NoError(t, manager.Scan(context.Background()))
	status, err := manager.Status("lazy")
	require.NoError(t, err)
	assert.Equal(t, StateDisabled, status.State)

	// The subscribed event wakes it up
	require.NoError(t, manager.DispatchActivationEvent(context.Background(), "onCommand:lazy.wake"))
	status, err = manager.Status("lazy")
	require.NoError(t, err)
	assert.Equal(t, StateActive, status.State)
}

func TestManager_LifecycleEventsEmitted(t *testing.T) {
	manager, _ := newTestManager(t, "1.0.0")

	var mu sync.Mutex
	seen := make(map[LifecycleEventType]int)
	manager.OnEvent(func(event LifecycleEvent) {
		mu.Lock()
		seen[event.Type]++
		mu.Unlock()
	})

	_, err := manager.Install(context.Background(), writeExtensionDir(t, helloManifest, helloLua))
	require.NoError(t, err)
	require.NoError(t, manager.Deactivate(context.Background(), "hello"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen[EventInstalled] == 1 &&
			seen[EventActivating] == 1 &&
			seen[EventActivated] == 1 &&
			seen[EventDeactivating] == 1 &&
			seen[EventDeactivated] == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManager_DeclaredContributionsPublishedOnActivation(t *testing.T) {
	manager, _ := newTestManager(t, "1.0.0")

	manifest := `{
		"id": "themed",
		"name": "Themed",
		"version": "1.0.0",
		"engines": {"host": "^1.0.0"},
		"contributes": {
			"views": [{"name": "themed.panel", "title": "Panel"}],
			"settings": [{"name": "themed.verbose", "type": "boolean"}],
			"themes": [{"name": "themed.dark", "path": "themes/dark.json"}]
		}
	}`
	_, err := manager.Install(context.Background(), writeExtensionDir(t, manifest, `function activate() end`))
	require.NoError(t, err)

	views := manager.ListViews()
	require.Len(t, views, 1)
	assert.True(t, views[0].Declared)
	assert.Equal(t, "themed", views[0].Owner)
	assert.Len(t, manager.ListSettings(), 1)
	assert.Len(t, manager.ListThemes(), 1)

	require.NoError(t, manager.Disable(context.Background(), "themed"))
	assert.Empty(t, manager.ListViews())
	assert.Empty(t, manager.ListThemes())
}

func TestManager_ScopedConfigIsolation(t *testing.T) {
	manager, _ := newTestManager(t, "1.0.0")

	configLua := `
		function activate()
			host.config_set("color", extension.id)
			host.register_command("color", function(args)
				return host.config_get("color") or "unset"
			end)
		end
	`
	for _, id := range []string{"alpha", "beta"} {
		manifest := fmt.Sprintf(`{
			"id": %q,
			"name": "Ext",
			"version": "1.0.0",
			"engines": {"host": "^1.0.0"}
		}`, id)
		_, err := manager.Install(context.Background(), writeExtensionDir(t, manifest, configLua))
		require.NoError(t, err)
	}

	out, err := manager.ExecuteCommand(context.Background(), "alpha.color", nil)
	require.NoError(t, err)
	assert.Equal(t, "alpha", out)

	out, err = manager.ExecuteCommand(context.Background(), "beta.color", nil)
	require.NoError(t, err)
	assert.Equal(t, "beta", out)

	// Both live under their own subtree of the shared document
	value, ok := manager.Workspace().GetString("extensions.alpha.color")
	require.True(t, ok)
	assert.Equal(t, "alpha", value)
}

func TestManager_DisableActivateRaceStaysConsistent(t *testing.T) {
	manager, _ := newTestManager(t, "1.0.0")
	_, err := manager.Install(context.Background(), writeExtensionDir(t, helloManifest, helloLua))
	require.NoError(t, err)

	// Rapid enable/activate/disable toggling must never leave an active
	// instance behind a persisted-disabled record.
	for i := 0; i < 20; i++ {
		require.NoError(t, manager.Enable(context.Background(), "hello"))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = manager.Activate(context.Background(), "hello")
		}()
		go func() {
			defer wg.Done()
			_ = manager.Disable(context.Background(), "hello")
		}()
		wg.Wait()

		status, err := manager.Status("hello")
		require.NoError(t, err)
		assert.False(t, status.Enabled)
		assert.NotEqual(t, StateActive, status.State)
		assert.Empty(t, manager.ListCommands())
	}
}

func TestManager_DeactivationTimeoutForcesTeardown(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	manager, err := NewManager(ManagerOptions{
		HostVersion:         "1.0.0",
		ExtensionsDir:       t.TempDir(),
		Logger:              NewTestLogger(),
		DeactivationTimeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })

	manifest := `{
		"id": "slow",
		"name": "Slow",
		"version": "1.0.0",
		"engines": {"host": "^1.0.0"},
		"permissions": ["shell"]
	}`
	source := writeExtensionDir(t, manifest, `
		function activate()
			host.register_command("noop", function(args)
				return "ok"
			end)
		end
		function deactivate()
			host.run_shell("sleep", {"2"})
		end
	`)

	_, err = manager.Install(context.Background(), source)
	require.NoError(t, err)
	require.Len(t, manager.ListCommands(), 1)

	start := time.Now()
	err = manager.Deactivate(context.Background(), "slow")
	require.Error(t, err)
	assert.True(t, HasErrorCode(err, ErrCodeDeactivationTimeout))
	assert.Less(t, time.Since(start), 2*time.Second)

	// Teardown was forced despite the overrunning hook
	assert.Empty(t, manager.ListCommands())
	status, err := manager.Status("slow")
	require.NoError(t, err)
	assert.Equal(t, StateDisabled, status.State)
}

// stuckActivationSource builds an extension whose activate hook blocks
// until the release file exists, then tries a late registration.
func stuckActivationSource(t *testing.T, id, releasePath string) string {
	t.Helper()

	manifest := fmt.Sprintf(`{
		"id": %q,
		"name": "Stuck",
		"version": "1.0.0",
		"engines": {"host": "^1.0.0"},
		"permissions": ["shell"]
	}`, id)
	luaSource := fmt.Sprintf(`
		function activate()
			host.run_shell("sh", {"-c", "while [ ! -f %s ]; do sleep 0.05; done"})
			host.register_command("late", function(args)
				return "late"
			end)
		end
	`, releasePath)
	return writeExtensionDir(t, manifest, luaSource)
}

func TestManager_UninstallCancelsStuckActivation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	manager, _ := newTestManager(t, "1.0.0")
	release := filepath.Join(t.TempDir(), "release")
	t.Cleanup(func() { _ = os.WriteFile(release, []byte("go"), 0o600) })

	installErr := make(chan error, 1)
	go func() {
		_, err := manager.Install(context.Background(), stuckActivationSource(t, "stuck", release))
		installErr <- err
	}()

	require.Eventually(t, func() bool {
		status, err := manager.Status("stuck")
		return err == nil && status.State == StateActivating
	}, 5*time.Second, 10*time.Millisecond)

	// Uninstall does not wait out the hung hook
	start := time.Now()
	require.NoError(t, manager.Uninstall(context.Background(), "stuck"))
	assert.Less(t, time.Since(start), 3*time.Second)

	err := <-installErr
	require.Error(t, err)
	assert.True(t, HasErrorCode(err, ErrCodeActivationCancelled))

	_, err = manager.Status("stuck")
	assert.True(t, HasErrorCode(err, ErrCodeExtensionNotFound))

	// Let the abandoned hook finish; its late registration must be refused
	require.NoError(t, os.WriteFile(release, []byte("go"), 0o600))
	time.Sleep(700 * time.Millisecond)

	_, err = manager.ExecuteCommand(context.Background(), "stuck.late", nil)
	assert.True(t, HasErrorCode(err, ErrCodeCommandNotFound))
}

func TestManager_ReinstallSurvivesAbandonedActivation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	manager, _ := newTestManager(t, "1.0.0")
	release := filepath.Join(t.TempDir(), "release")
	t.Cleanup(func() { _ = os.WriteFile(release, []byte("go"), 0o600) })

	installErr := make(chan error, 1)
	go func() {
		_, err := manager.Install(context.Background(), stuckActivationSource(t, "hello", release))
		installErr <- err
	}()

	require.Eventually(t, func() bool {
		status, err := manager.Status("hello")
		return err == nil && status.State == StateActivating
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, manager.Uninstall(context.Background(), "hello"))
	require.Error(t, <-installErr)

	// Reinstall the same id while the abandoned hook is still blocked
	replacement := `{
		"id": "hello",
		"name": "Hello",
		"version": "2.0.0",
		"engines": {"host": "^1.0.0"},
		"permissions": ["clipboard"]
	}`
	_, err := manager.Install(context.Background(), writeExtensionDir(t, replacement, `
		function activate()
			host.register_command("copy", function(args)
				local ok, err = host.write_clipboard("x")
				if not ok then
					return "denied"
				end
				return "copied"
			end)
		end
	`))
	require.NoError(t, err)

	out, err := manager.ExecuteCommand(context.Background(), "hello.copy", nil)
	require.NoError(t, err)
	require.Equal(t, "copied", out)

	// Release the old hook and let its reaper run; the replacement's
	// contributions and capability grant must survive it.
	require.NoError(t, os.WriteFile(release, []byte("go"), 0o600))
	time.Sleep(700 * time.Millisecond)

	out, err = manager.ExecuteCommand(context.Background(), "hello.copy", nil)
	require.NoError(t, err)
	assert.Equal(t, "copied", out)

	_, err = manager.ExecuteCommand(context.Background(), "hello.late", nil)
	assert.True(t, HasErrorCode(err, ErrCodeCommandNotFound))
}

func TestManager_ShutdownDeactivatesEverything(t *testing.T) {
	ui := &recordingUI{}
	manager, err := NewManager(ManagerOptions{
		HostVersion:   "1.0.0",
		ExtensionsDir: t.TempDir(),
		UI:            ui,
		Logger:        NewTestLogger(),
	})
	require.NoError(t, err)

	_, err = manager.Install(context.Background(), writeExtensionDir(t, helloManifest, helloLua))
	require.NoError(t, err)

	require.NoError(t, manager.Shutdown(context.Background()))
	assert.Empty(t, manager.ListCommands())

	// Shutdown is idempotent
	require.NoError(t, manager.Shutdown(context.Background()))
}
