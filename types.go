// types.go: core types shared across the extension runtime
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"time"
)

// Permission identifies a capability group an extension may request in its
// manifest. The set is closed: any other value fails manifest validation.
type Permission string

const (
	// PermissionFilesystem allows reading and writing files on the host.
	PermissionFilesystem Permission = "filesystem"

	// PermissionNetwork allows outbound HTTP requests.
	PermissionNetwork Permission = "network"

	// PermissionClipboard allows writing to the host clipboard.
	PermissionClipboard Permission = "clipboard"

	// PermissionNotifications allows posting host notifications.
	PermissionNotifications Permission = "notifications"

	// PermissionShell allows spawning host shell commands.
	PermissionShell Permission = "shell"

	// PermissionMCP allows invoking commands registered by other extensions.
	PermissionMCP Permission = "mcp"
)

// KnownPermissions is the closed set of permissions the runtime understands.
var KnownPermissions = map[Permission]bool{
	PermissionFilesystem:    true,
	PermissionNetwork:       true,
	PermissionClipboard:     true,
	PermissionNotifications: true,
	PermissionShell:         true,
	PermissionMCP:           true,
}

// IsValidPermission reports whether p belongs to the closed permission set.
func IsValidPermission(p Permission) bool {
	return KnownPermissions[p]
}

// ExtensionState represents the lifecycle state of a managed extension
// instance. Transitions are driven exclusively by the Manager.
type ExtensionState int

const (
	// StateDiscovered means the extension directory was found but the
	// manifest has not been validated yet.
	StateDiscovered ExtensionState = iota

	// StateValidated means the manifest passed validation and the host
	// compatibility check.
	StateValidated

	// StateLoaded means the entry module compiled successfully.
	StateLoaded

	// StateActivating means the activation hook is currently running.
	StateActivating

	// StateActive means activation completed and contributions are live.
	StateActive

	// StateDeactivating means the deactivation hook is currently running.
	StateDeactivating

	// StateDisabled means the extension is installed but not running.
	StateDisabled

	// StateFailed means a lifecycle step failed; the failure is recorded
	// on the instance.
	StateFailed
)

// String returns the lowercase name of the state.
func (s ExtensionState) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateValidated:
		return "validated"
	case StateLoaded:
		return "loaded"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	case StateDeactivating:
		return "deactivating"
	case StateDisabled:
		return "disabled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ContributionKind classifies a runtime contribution.
type ContributionKind string

const (
	ContributionCommand ContributionKind = "command"
	ContributionView    ContributionKind = "view"
	ContributionSetting ContributionKind = "setting"
	ContributionTheme   ContributionKind = "theme"
)

// Contribution is a single entry in the host's contribution tables. Every
// contribution is traceable to the extension that registered it, and is
// removed when that extension deactivates.
type Contribution struct {
	Kind         ContributionKind `json:"kind"`
	Name         string           `json:"name"`
	Title        string           `json:"title,omitempty"`
	Description  string           `json:"description,omitempty"`
	Owner        string           `json:"owner"`
	Declared     bool             `json:"declared,omitempty"`
	RegisteredAt time.Time        `json:"registered_at"`
}

// CommandHandler executes a registered command with positional arguments
// and returns its textual output.
type CommandHandler func(args []string) (string, error)

// InstalledExtension is the persisted registry record for one installed
// extension: the validated manifest snapshot, where its files live, and
// whether it should be activated.
type InstalledExtension struct {
	ID          string            `json:"id"`
	Manifest    ExtensionManifest `json:"manifest"`
	InstallPath string            `json:"install_path"`
	Enabled     bool              `json:"enabled"`
	InstalledAt time.Time         `json:"installed_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ExtensionStatus is a point-in-time view of a managed extension combining
// the persisted record with the runtime instance state.
type ExtensionStatus struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Version   string         `json:"version"`
	State     ExtensionState `json:"state"`
	Enabled   bool           `json:"enabled"`
	LastError string         `json:"last_error,omitempty"`
}
