// testing_helpers_test.go: shared fixtures for the extension runtime tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// writeExtensionDir creates an unpacked extension directory with the
// given manifest JSON and entry module source.
func writeExtensionDir(t *testing.T, manifest, luaSource string) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "extension.json"), []byte(manifest), 0o600); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "init.lua"), []byte(luaSource), 0o600); err != nil {
		t.Fatalf("writing entry module: %v", err)
	}
	return dir
}

// newTestManager builds a manager over temp directories with a test
// logger and recording UI attached.
func newTestManager(t *testing.T, hostVersion string) (*Manager, *recordingUI) {
	t.Helper()

	ui := &recordingUI{}
	manager, err := NewManager(ManagerOptions{
		HostVersion:   hostVersion,
		ExtensionsDir: t.TempDir(),
		UI:            ui,
		Logger:        NewTestLogger(),
	})
	if err != nil {
		t.Fatalf("creating manager: %v", err)
	}
	t.Cleanup(func() {
		_ = manager.Shutdown(context.Background())
	})
	return manager, ui
}

// recordingUI captures host UI calls for assertions.
type recordingUI struct {
	mu         sync.Mutex
	Messages   []string
	Clipboard  []string
	Notices    []string
	InputReply string
	PickReply  string
}

func (r *recordingUI) ShowMessage(ctx context.Context, extensionID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, extensionID+": "+message)
	return nil
}

func (r *recordingUI) RequestInput(ctx context.Context, extensionID, prompt, placeholder string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.InputReply, nil
}

func (r *recordingUI) RequestPick(ctx context.Context, extensionID, prompt string, items []string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.PickReply, nil
}

func (r *recordingUI) WriteClipboard(ctx context.Context, extensionID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Clipboard = append(r.Clipboard, text)
	return nil
}

func (r *recordingUI) Notify(ctx context.Context, extensionID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notices = append(r.Notices, extensionID+": "+message)
	return nil
}

func (r *recordingUI) clipboardWrites() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Clipboard)
}

// helloManifest is a minimal valid manifest for the hello extension.
const helloManifest = `{
	"id": "hello",
	"name": "Hello",
	"version": "1.0.0",
	"engines": {"host": "^1.0.0"}
}`

// helloLua registers one command inside the activate hook.
const helloLua = `
function activate()
	host.register_command("greet", function(args)
		return "hello " .. (args[1] or "world")
	end, "Say hello")
end

function deactivate()
end
`
