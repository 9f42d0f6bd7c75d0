// context.go: per-extension sandbox execution context
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// defaultHTTPTimeout bounds extension-initiated HTTP requests.
const defaultHTTPTimeout = 30 * time.Second

// defaultShellTimeout bounds extension-initiated shell commands.
const defaultShellTimeout = 60 * time.Second

// ExtensionContext is the capability surface handed to exactly one
// extension instance at activation. Every operation is closed over the
// extension's identifier: configuration and storage are transparently
// scoped, contributions are attributed, and privileged operations are
// authorized against the grant fixed at load time.
//
// A context never leaks host internals. Extensions reach the host only
// through these methods and their Lua bindings.
type ExtensionContext struct {
	extensionID string
	version     string

	gate          *CapabilityGate
	contributions *ContributionRegistry
	store         *Store
	workspace     *WorkspaceConfig
	ui            HostUI
	sandbox       *Sandbox
	httpClient    *http.Client
	logger        Logger

	// revoked flips when the activation this context belongs to is
	// abandoned; a revoked context refuses new registrations so a hook
	// that returns late cannot touch a successor instance's tables.
	revoked atomic.Bool
}

// newExtensionContext wires a context for one activation.
func newExtensionContext(id, version string, gate *CapabilityGate, contributions *ContributionRegistry,
	store *Store, workspace *WorkspaceConfig, ui HostUI, sandbox *Sandbox, logger Logger) *ExtensionContext {
	return &ExtensionContext{
		extensionID:   id,
		version:       version,
		gate:          gate,
		contributions: contributions,
		store:         store,
		workspace:     workspace,
		ui:            ui,
		sandbox:       sandbox,
		httpClient:    &http.Client{Timeout: defaultHTTPTimeout},
		logger:        logger.With("extension", id),
	}
}

// ExtensionID returns the owning extension's identifier.
func (c *ExtensionContext) ExtensionID() string {
	return c.extensionID
}

// qualifyCommandName enforces the "<id>.<command>" naming scheme. A bare
// name is qualified automatically; a name already carrying the owner's
// prefix passes through; anything else would impersonate another
// extension and is rejected.
func (c *ExtensionContext) qualifyCommandName(name string) (string, error) {
	if name == "" {
		return "", NewInvalidContributionError(ContributionCommand, name, "name is required")
	}
	if !strings.Contains(name, ".") {
		return c.extensionID + "." + name, nil
	}
	if strings.HasPrefix(name, c.extensionID+".") {
		return name, nil
	}
	return "", NewInvalidContributionError(ContributionCommand, name,
		"command names must be scoped under the owning extension")
}

// revoke permanently detaches the context from the contribution tables.
func (c *ExtensionContext) revoke() {
	c.revoked.Store(true)
}

// RegisterCommand adds a command to the host's contribution table,
// attributed to this extension. Registrations live until deactivation.
func (c *ExtensionContext) RegisterCommand(name, title string, handler CommandHandler) error {
	if c.revoked.Load() {
		return NewActivationCancelledError(c.extensionID)
	}
	qualified, err := c.qualifyCommandName(name)
	if err != nil {
		return err
	}
	return c.contributions.RegisterCommand(c.extensionID, qualified, title, handler)
}

// ExecuteCommand invokes a registered command. Invoking a command owned
// by another extension requires the mcp permission; an extension may
// always invoke its own commands.
func (c *ExtensionContext) ExecuteCommand(ctx context.Context, name string, args []string) (string, error) {
	owner, ok := c.contributions.CommandOwner(name)
	if !ok {
		return "", NewCommandNotFoundError(name)
	}

	if owner != c.extensionID {
		if err := c.gate.Authorize(c.extensionID, PermissionMCP); err != nil {
			return "", err
		}
	}
	return c.contributions.ExecuteCommand(name, args)
}

// ShowMessage displays a message through the host UI.
func (c *ExtensionContext) ShowMessage(ctx context.Context, message string) error {
	return c.ui.ShowMessage(ctx, c.extensionID, message)
}

// RequestInput prompts the user for text through the host UI.
func (c *ExtensionContext) RequestInput(ctx context.Context, prompt, placeholder string) (string, error) {
	return c.ui.RequestInput(ctx, c.extensionID, prompt, placeholder)
}

// RequestPick asks the user to choose one of the items.
func (c *ExtensionContext) RequestPick(ctx context.Context, prompt string, items []string) (string, error) {
	return c.ui.RequestPick(ctx, c.extensionID, prompt, items)
}

// WriteClipboard writes text to the host clipboard. Requires the
// clipboard permission.
func (c *ExtensionContext) WriteClipboard(ctx context.Context, text string) error {
	if err := c.gate.Authorize(c.extensionID, PermissionClipboard); err != nil {
		return err
	}
	return c.ui.WriteClipboard(ctx, c.extensionID, text)
}

// Notify posts a host notification. Requires the notifications
// permission.
func (c *ExtensionContext) Notify(ctx context.Context, message string) error {
	if err := c.gate.Authorize(c.extensionID, PermissionNotifications); err != nil {
		return err
	}
	return c.ui.Notify(ctx, c.extensionID, message)
}

// configPath scopes a key under this extension's configuration subtree.
func (c *ExtensionContext) configPath(key string) string {
	return "extensions." + c.extensionID + "." + key
}

// ConfigGet reads a value from the extension's configuration subtree.
func (c *ExtensionContext) ConfigGet(key string) (string, bool) {
	return c.workspace.GetString(c.configPath(key))
}

// ConfigSet writes a value into the extension's configuration subtree.
func (c *ExtensionContext) ConfigSet(key string, value any) error {
	return c.workspace.Set(c.configPath(key), value)
}

// ConfigDelete removes a value from the extension's configuration subtree.
func (c *ExtensionContext) ConfigDelete(key string) error {
	return c.workspace.Delete(c.configPath(key))
}

// StorageGet reads from the extension's private key-value storage.
func (c *ExtensionContext) StorageGet(key string) (string, bool, error) {
	return c.store.StorageGet(c.extensionID, key)
}

// StorageSet writes into the extension's private key-value storage.
func (c *ExtensionContext) StorageSet(key, value string) error {
	return c.store.StorageSet(c.extensionID, key, value)
}

// StorageDelete removes a key from the extension's private storage.
func (c *ExtensionContext) StorageDelete(key string) error {
	return c.store.StorageDelete(c.extensionID, key)
}

// StorageKeys lists the extension's private storage keys.
func (c *ExtensionContext) StorageKeys() ([]string, error) {
	return c.store.StorageKeys(c.extensionID)
}

// ReadFile reads a host file. Requires the filesystem permission.
func (c *ExtensionContext) ReadFile(path string) ([]byte, error) {
	if err := c.gate.Authorize(c.extensionID, PermissionFilesystem); err != nil {
		return nil, err
	}
	return os.ReadFile(path) // #nosec G304 -- gated by the filesystem permission
}

// WriteFile writes a host file. Requires the filesystem permission.
func (c *ExtensionContext) WriteFile(path string, data []byte) error {
	if err := c.gate.Authorize(c.extensionID, PermissionFilesystem); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644) // #nosec G306 -- extension output files are not secrets
}

// RunShell executes a host command and returns its combined output.
// Requires the shell permission.
func (c *ExtensionContext) RunShell(ctx context.Context, name string, args ...string) (string, error) {
	if err := c.gate.Authorize(c.extensionID, PermissionShell); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithTimeout(ctx, defaultShellTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...) // #nosec G204 -- gated by the shell permission
	out, err := cmd.CombinedOutput()
	if err != nil {
		c.logger.Warn("Shell command failed", "command", name, "error", err)
		return string(out), err
	}
	return string(out), nil
}

// HTTPGet fetches a URL and returns the response body. Requires the
// network permission.
func (c *ExtensionContext) HTTPGet(ctx context.Context, url string) (string, error) {
	if err := c.gate.Authorize(c.extensionID, PermissionNetwork); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// bindLua installs the host module and extension metadata inside the
// sandbox. Functions follow the Lua convention of returning a result plus
// an error string; host failures never panic into extension code.
func (c *ExtensionContext) bindLua() {
	c.sandbox.SetModule("host", c.luaModule())

	meta := c.sandbox.L.NewTable()
	c.sandbox.L.SetField(meta, "id", lua.LString(c.extensionID))
	c.sandbox.L.SetField(meta, "version", lua.LString(c.version))
	c.sandbox.SetGlobal("extension", meta)
}

// luaHandler wraps a Lua function into a CommandHandler. The handler
// receives its arguments as a single array-style table. Invocation
// re-enters the sandbox under its mutex, so handlers fired from host
// goroutines never race extension code.
func (c *ExtensionContext) luaHandler(fn *lua.LFunction) CommandHandler {
	return func(args []string) (string, error) {
		c.sandbox.enter()
		defer c.sandbox.leave()

		table := c.sandbox.L.NewTable()
		for _, a := range args {
			table.Append(lua.LString(a))
		}

		results, err := c.sandbox.CallFunction(fn, table)
		if err != nil {
			return "", err
		}
		if len(results) > 0 {
			return results[0].String(), nil
		}
		return "", nil
	}
}

// pushLuaError pushes the (nil, message) error convention.
func pushLuaError(L *lua.LState, err error) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(err.Error()))
	return 2
}

func (c *ExtensionContext) luaModule() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"register_command": func(L *lua.LState) int {
			name := L.CheckString(1)
			fn := L.CheckFunction(2)
			title := L.OptString(3, "")

			if err := c.RegisterCommand(name, title, c.luaHandler(fn)); err != nil {
				return pushLuaError(L, err)
			}
			L.Push(lua.LTrue)
			return 1
		},
		"execute_command": func(L *lua.LState) int {
			name := L.CheckString(1)
			args := luaTableToStrings(L, 2)

			out, err := c.ExecuteCommand(context.Background(), name, args)
			if err != nil {
				return pushLuaError(L, err)
			}
			L.Push(lua.LString(out))
			return 1
		},
		"show_message": func(L *lua.LState) int {
			if err := c.ShowMessage(context.Background(), L.CheckString(1)); err != nil {
				return pushLuaError(L, err)
			}
			L.Push(lua.LTrue)
			return 1
		},
		"request_input": func(L *lua.LState) int {
			prompt := L.CheckString(1)
			placeholder := L.OptString(2, "")

			input, err := c.RequestInput(context.Background(), prompt, placeholder)
			if err != nil {
				return pushLuaError(L, err)
			}
			L.Push(lua.LString(input))
			return 1
		},
		"request_pick": func(L *lua.LState) int {
			prompt := L.CheckString(1)
			items := luaTableToStrings(L, 2)

			choice, err := c.RequestPick(context.Background(), prompt, items)
			if err != nil {
				return pushLuaError(L, err)
			}
			L.Push(lua.LString(choice))
			return 1
		},
		"write_clipboard": func(L *lua.LState) int {
			if err := c.WriteClipboard(context.Background(), L.CheckString(1)); err != nil {
				return pushLuaError(L, err)
			}
			L.Push(lua.LTrue)
			return 1
		},
		"notify": func(L *lua.LState) int {
			if err := c.Notify(context.Background(), L.CheckString(1)); err != nil {
				return pushLuaError(L, err)
			}
			L.Push(lua.LTrue)
			return 1
		},
		"config_get": func(L *lua.LState) int {
			value, ok := c.ConfigGet(L.CheckString(1))
			if !ok {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(lua.LString(value))
			return 1
		},
		"config_set": func(L *lua.LState) int {
			key := L.CheckString(1)
			value := L.CheckAny(2)

			if err := c.ConfigSet(key, luaValueToGo(value)); err != nil {
				return pushLuaError(L, err)
			}
			L.Push(lua.LTrue)
			return 1
		},
		"config_delete": func(L *lua.LState) int {
			if err := c.ConfigDelete(L.CheckString(1)); err != nil {
				return pushLuaError(L, err)
			}
			L.Push(lua.LTrue)
			return 1
		},
		"storage_get": func(L *lua.LState) int {
			value, ok, err := c.StorageGet(L.CheckString(1))
			if err != nil {
				return pushLuaError(L, err)
			}
			if !ok {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(lua.LString(value))
			return 1
		},
		"storage_set": func(L *lua.LState) int {
			if err := c.StorageSet(L.CheckString(1), L.CheckString(2)); err != nil {
				return pushLuaError(L, err)
			}
			L.Push(lua.LTrue)
			return 1
		},
		"storage_delete": func(L *lua.LState) int {
			if err := c.StorageDelete(L.CheckString(1)); err != nil {
				return pushLuaError(L, err)
			}
			L.Push(lua.LTrue)
			return 1
		},
		"read_file": func(L *lua.LState) int {
			data, err := c.ReadFile(L.CheckString(1))
			if err != nil {
				return pushLuaError(L, err)
			}
			L.Push(lua.LString(data))
			return 1
		},
		"write_file": func(L *lua.LState) int {
			if err := c.WriteFile(L.CheckString(1), []byte(L.CheckString(2))); err != nil {
				return pushLuaError(L, err)
			}
			L.Push(lua.LTrue)
			return 1
		},
		"run_shell": func(L *lua.LState) int {
			name := L.CheckString(1)
			args := luaTableToStrings(L, 2)

			out, err := c.RunShell(context.Background(), name, args...)
			if err != nil {
				return pushLuaError(L, err)
			}
			L.Push(lua.LString(out))
			return 1
		},
		"http_get": func(L *lua.LState) int {
			body, err := c.HTTPGet(context.Background(), L.CheckString(1))
			if err != nil {
				return pushLuaError(L, err)
			}
			L.Push(lua.LString(body))
			return 1
		},
		"log": func(L *lua.LState) int {
			c.logger.Info(L.CheckString(1))
			return 0
		},
	}
}

// luaTableToStrings converts an optional table argument into a string
// slice. A missing or nil argument yields an empty slice.
func luaTableToStrings(L *lua.LState, index int) []string {
	value := L.Get(index)
	table, ok := value.(*lua.LTable)
	if !ok {
		return nil
	}

	var out []string
	table.ForEach(func(_, v lua.LValue) {
		out = append(out, v.String())
	})
	return out
}

// luaValueToGo converts a Lua scalar into the matching Go value for JSON
// storage.
func luaValueToGo(value lua.LValue) any {
	switch v := value.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	default:
		return value.String()
	}
}
