// errors.go: structured error definitions for the go-extensions runtime
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"github.com/agilira/go-errors"
)

// Error codes for the go-extensions runtime
const (
	// Manifest validation errors (1000-1099)
	ErrCodeManifestValidation = "EXT_1001"
	ErrCodeManifestParse      = "EXT_1002"
	ErrCodeIncompatibleHost   = "EXT_1003"
	ErrCodePathTraversal      = "EXT_1004"
	ErrCodeUnknownPermission  = "EXT_1005"
	ErrCodeInvalidVersion     = "EXT_1006"

	// Module loading errors (1100-1199)
	ErrCodeModuleLoad    = "EXT_1101"
	ErrCodeModuleCompile = "EXT_1102"

	// Lifecycle errors (1200-1299)
	ErrCodeActivationFailed    = "EXT_1201"
	ErrCodeActivationCancelled = "EXT_1202"
	ErrCodeDeactivationTimeout = "EXT_1203"
	ErrCodeOperationBusy       = "EXT_1204"

	// Capability errors (1300-1399)
	ErrCodePermissionDenied = "EXT_1301"

	// Registry and storage errors (1400-1499)
	ErrCodeExtensionNotFound = "EXT_1401"
	ErrCodeExtensionDisabled = "EXT_1402"
	ErrCodeAlreadyInstalled  = "EXT_1403"
	ErrCodeRegistryStore     = "EXT_1404"
	ErrCodeScopedStorage     = "EXT_1405"

	// Contribution errors (1500-1599)
	ErrCodeCommandNotFound       = "EXT_1501"
	ErrCodeDuplicateContribution = "EXT_1502"
	ErrCodeInvalidContribution   = "EXT_1503"

	// Installation errors (1600-1699)
	ErrCodeInstallSource = "EXT_1601"
	ErrCodeInstallCopy   = "EXT_1602"

	// Runtime configuration errors (1700-1799)
	ErrCodeRuntimeConfig   = "EXT_1701"
	ErrCodeWorkspaceConfig = "EXT_1702"
)

// Manifest validation error constructors

func NewManifestValidationError(extensionID, message string) *errors.Error {
	return errors.New(ErrCodeManifestValidation, "Manifest validation failed: "+message).
		WithUserMessage("The extension manifest is invalid").
		WithContext("extension_id", extensionID).
		WithSeverity("error")
}

func NewManifestParseError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeManifestParse, "Manifest parse error").
		WithUserMessage("The extension manifest could not be parsed as JSON or YAML").
		WithContext("manifest_path", path).
		WithSeverity("error")
}

func NewIncompatibleHostError(extensionID, required, hostVersion string) *errors.Error {
	return errors.New(ErrCodeIncompatibleHost, "Incompatible host version").
		WithUserMessage("The extension requires a host version outside the supported range").
		WithContext("extension_id", extensionID).
		WithContext("required_range", required).
		WithContext("host_version", hostVersion).
		WithSeverity("error")
}

func NewPathTraversalError(path string) *errors.Error {
	return errors.New(ErrCodePathTraversal, "Path traversal attempt detected").
		WithUserMessage("The entry path must stay inside the extension directory").
		WithContext("attempted_path", path).
		WithSeverity("error")
}

func NewUnknownPermissionError(extensionID string, permission string) *errors.Error {
	return errors.New(ErrCodeUnknownPermission, "Unknown permission").
		WithUserMessage("The manifest requests a permission outside the known set").
		WithContext("extension_id", extensionID).
		WithContext("permission", permission).
		WithSeverity("error")
}

func NewInvalidVersionError(version string, cause error) *errors.Error {
	if cause != nil {
		return errors.Wrap(cause, ErrCodeInvalidVersion, "Invalid semantic version").
			WithUserMessage("The version string is not valid semver").
			WithContext("version", version).
			WithSeverity("error")
	}
	return errors.New(ErrCodeInvalidVersion, "Invalid semantic version").
		WithUserMessage("The version string is not valid semver").
		WithContext("version", version).
		WithSeverity("error")
}

// Module loading error constructors

func NewModuleLoadError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeModuleLoad, "Module load failed").
		WithUserMessage("The extension entry module could not be loaded").
		WithContext("module_path", path).
		WithSeverity("error")
}

func NewModuleCompileError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeModuleCompile, "Module compilation failed").
		WithUserMessage("The extension entry module contains errors").
		WithContext("module_path", path).
		WithSeverity("error")
}

// Lifecycle error constructors

func NewActivationError(extensionID string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeActivationFailed, "Activation failed").
		WithUserMessage("The extension failed to activate").
		WithContext("extension_id", extensionID).
		WithSeverity("error")
}

func NewActivationCancelledError(extensionID string) *errors.Error {
	return errors.New(ErrCodeActivationCancelled, "Activation cancelled").
		WithUserMessage("The activation was cancelled by an uninstall request").
		WithContext("extension_id", extensionID).
		WithSeverity("warning")
}

func NewDeactivationTimeoutError(extensionID string, timeout interface{}) *errors.Error {
	return errors.New(ErrCodeDeactivationTimeout, "Deactivation timeout").
		WithUserMessage("The deactivation hook exceeded its time budget; teardown was forced").
		WithContext("extension_id", extensionID).
		WithContext("timeout", timeout).
		WithSeverity("warning")
}

func NewOperationBusyError(extensionID, operation string) *errors.Error {
	return errors.New(ErrCodeOperationBusy, "Extension busy").
		WithUserMessage("Another lifecycle operation is in progress for this extension").
		WithContext("extension_id", extensionID).
		WithContext("operation", operation).
		WithSeverity("warning")
}

// Capability error constructors

func NewPermissionDeniedError(extensionID string, permission Permission) *errors.Error {
	return errors.New(ErrCodePermissionDenied, "Permission denied").
		WithUserMessage("The extension did not declare the required permission").
		WithContext("extension_id", extensionID).
		WithContext("permission", string(permission)).
		WithSeverity("warning")
}

// Registry and storage error constructors

func NewExtensionNotFoundError(extensionID string) *errors.Error {
	return errors.New(ErrCodeExtensionNotFound, "Extension not found").
		WithUserMessage("No installed extension matches the requested identifier").
		WithContext("extension_id", extensionID).
		WithSeverity("error")
}

func NewExtensionDisabledError(extensionID string) *errors.Error {
	return errors.New(ErrCodeExtensionDisabled, "Extension disabled").
		WithUserMessage("The extension is installed but disabled").
		WithContext("extension_id", extensionID).
		WithSeverity("warning")
}

func NewAlreadyInstalledError(extensionID string) *errors.Error {
	return errors.New(ErrCodeAlreadyInstalled, "Extension already installed").
		WithUserMessage("An extension with this identifier is already installed").
		WithContext("extension_id", extensionID).
		WithSeverity("error")
}

func NewRegistryStoreError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeRegistryStore, "Registry store error: "+message).
		WithUserMessage("The installation registry operation failed").
		WithSeverity("error")
}

func NewScopedStorageError(extensionID string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeScopedStorage, "Scoped storage error").
		WithUserMessage("The extension storage operation failed").
		WithContext("extension_id", extensionID).
		WithSeverity("error")
}

// Contribution error constructors

func NewCommandNotFoundError(command string) *errors.Error {
	return errors.New(ErrCodeCommandNotFound, "Command not found").
		WithUserMessage("No active extension registered the requested command").
		WithContext("command", command).
		WithSeverity("error")
}

func NewDuplicateContributionError(kind ContributionKind, name, owner string) *errors.Error {
	return errors.New(ErrCodeDuplicateContribution, "Duplicate contribution").
		WithUserMessage("A contribution with this name is already registered").
		WithContext("kind", string(kind)).
		WithContext("name", name).
		WithContext("owner", owner).
		WithSeverity("error")
}

func NewInvalidContributionError(kind ContributionKind, name, message string) *errors.Error {
	return errors.New(ErrCodeInvalidContribution, "Invalid contribution: "+message).
		WithUserMessage("The contribution is malformed").
		WithContext("kind", string(kind)).
		WithContext("name", name).
		WithSeverity("error")
}

// Installation error constructors

func NewInstallSourceError(path string, message string) *errors.Error {
	return errors.New(ErrCodeInstallSource, "Invalid install source: "+message).
		WithUserMessage("The install source is not a usable extension directory").
		WithContext("source_path", path).
		WithSeverity("error")
}

func NewInstallCopyError(source, destination string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeInstallCopy, "Install copy failed").
		WithUserMessage("Copying the extension into the managed directory failed").
		WithContext("source_path", source).
		WithContext("destination_path", destination).
		WithSeverity("error")
}

// Runtime configuration error constructors

func NewRuntimeConfigError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeRuntimeConfig, "Runtime configuration error: "+message).
		WithUserMessage("Runtime configuration could not be applied").
		WithSeverity("error")
}

func NewWorkspaceConfigError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeWorkspaceConfig, "Workspace configuration error: "+message).
		WithUserMessage("Workspace configuration operation failed").
		WithSeverity("error")
}

// HasErrorCode reports whether err carries the given structured error code.
func HasErrorCode(err error, code string) bool {
	if err == nil {
		return false
	}
	if structured, ok := err.(*errors.Error); ok {
		return string(structured.Code) == code
	}
	return false
}
