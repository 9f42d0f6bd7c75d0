// manifest.go: extension manifest schema, parsing, and validation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFileNames lists the manifest file names probed inside an
// extension directory, in priority order.
var ManifestFileNames = []string{
	"extension.json",
	"extension.yaml",
	"extension.yml",
}

// extensionIDPattern constrains identifiers to lowercase letters, digits,
// and hyphens, starting with a letter. Dots are excluded on purpose: the
// identifier is used as a path segment and as a configuration key prefix.
var extensionIDPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{0,63}$`)

// ExtensionManifest declares an extension's identity, entry module,
// compatibility range, permission requests, and static contributions.
type ExtensionManifest struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Author      string `json:"author,omitempty" yaml:"author,omitempty"`
	License     string `json:"license,omitempty" yaml:"license,omitempty"`

	// Main is the entry module path, relative to the extension directory.
	Main string `json:"main,omitempty" yaml:"main,omitempty"`

	Engines          EngineRequirements    `json:"engines,omitempty" yaml:"engines,omitempty"`
	Permissions      []Permission          `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	ActivationEvents []string              `json:"activationEvents,omitempty" yaml:"activationEvents,omitempty"`
	Dependencies     []string              `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Contributes      DeclaredContributions `json:"contributes,omitempty" yaml:"contributes,omitempty"`
}

// EngineRequirements carries version ranges the host must satisfy.
type EngineRequirements struct {
	// Host is a semver range the host version must fall inside, for
	// example "^1.0.0". Empty means any host version is acceptable.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
}

// DeclaredContributions are contributions listed statically in the
// manifest. They appear in the host's contribution tables when the
// extension activates, before any runtime registration.
type DeclaredContributions struct {
	Commands []DeclaredCommand `json:"commands,omitempty" yaml:"commands,omitempty"`
	Views    []DeclaredView    `json:"views,omitempty" yaml:"views,omitempty"`
	Settings []DeclaredSetting `json:"settings,omitempty" yaml:"settings,omitempty"`
	Themes   []DeclaredTheme   `json:"themes,omitempty" yaml:"themes,omitempty"`
}

// DeclaredCommand describes a command the extension intends to register.
type DeclaredCommand struct {
	Name        string `json:"name" yaml:"name"`
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// DeclaredView describes a view surface contributed to the host UI.
type DeclaredView struct {
	Name     string `json:"name" yaml:"name"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
}

// DeclaredSetting describes a configurable setting the extension exposes.
type DeclaredSetting struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// DeclaredTheme describes a theme file contributed by the extension.
type DeclaredTheme struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// DefaultEntryModule is used when the manifest omits the main field.
const DefaultEntryModule = "init.lua"

// FindManifestFile returns the path of the manifest file inside dir, or an
// empty string when none of the known names exists.
func FindManifestFile(dir string) string {
	for _, name := range ManifestFileNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// LoadManifest reads and parses the manifest inside an extension
// directory. JSON is tried first, then YAML. Parsing applies defaults but
// performs no validation; callers run Validator.Validate separately.
func LoadManifest(dir string) (*ExtensionManifest, error) {
	path := FindManifestFile(dir)
	if path == "" {
		return nil, NewInstallSourceError(dir, "no manifest file found")
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from directory probing above
	if err != nil {
		return nil, NewManifestParseError(path, err)
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, NewManifestParseError(path, err)
	}
	return manifest, nil
}

// ParseManifest parses raw manifest bytes, trying JSON first and falling
// back to YAML, and applies defaults.
func ParseManifest(data []byte) (*ExtensionManifest, error) {
	var manifest ExtensionManifest

	jsonErr := json.Unmarshal(data, &manifest)
	if jsonErr != nil {
		manifest = ExtensionManifest{}
		if yamlErr := yaml.Unmarshal(data, &manifest); yamlErr != nil {
			return nil, yamlErr
		}
	}

	if manifest.Main == "" {
		manifest.Main = DefaultEntryModule
	}
	return &manifest, nil
}

// EntryPath resolves the entry module path under the given install root.
func (m *ExtensionManifest) EntryPath(root string) string {
	return filepath.Join(root, m.Main)
}

// HasPermission reports whether the manifest declares the permission.
func (m *ExtensionManifest) HasPermission(p Permission) bool {
	for _, declared := range m.Permissions {
		if declared == p {
			return true
		}
	}
	return false
}

// WantsActivationOn reports whether the manifest requests activation for
// the named event. The wildcard "*" matches every event including the
// startup scan; an empty list also activates on startup only.
func (m *ExtensionManifest) WantsActivationOn(event string) bool {
	if len(m.ActivationEvents) == 0 {
		return event == ActivationEventStartup
	}
	for _, declared := range m.ActivationEvents {
		if declared == "*" || declared == event {
			return true
		}
	}
	return false
}

// Validator checks manifests against the runtime's structural rules and
// the host version.
type Validator struct {
	hostVersion *Version
	logger      Logger
}

// NewValidator creates a manifest validator bound to the given host
// version.
func NewValidator(hostVersion string, logger Logger) (*Validator, error) {
	if logger == nil {
		logger = DefaultLogger()
	}

	parsed, err := ParseVersion(hostVersion)
	if err != nil {
		return nil, err
	}

	return &Validator{
		hostVersion: parsed,
		logger:      logger,
	}, nil
}

// HostVersion returns the host version the validator was built with.
func (v *Validator) HostVersion() *Version {
	return v.hostVersion
}

// Validate checks the manifest's structural rules: required fields, the
// identifier pattern, semver version, a well-formed engines range, the
// closed permission set, and a safe entry path. It does not check host
// compatibility; CheckHostCompatibility runs separately on every load.
func (v *Validator) Validate(m *ExtensionManifest) error {
	if m == nil {
		return NewManifestValidationError("", "manifest is nil")
	}

	if m.ID == "" {
		return NewManifestValidationError(m.ID, "id is required")
	}
	if !extensionIDPattern.MatchString(m.ID) {
		return NewManifestValidationError(m.ID,
			"id must be lowercase letters, digits, and hyphens, starting with a letter")
	}

	if m.Name == "" {
		return NewManifestValidationError(m.ID, "name is required")
	}
	if err := checkControlCharacters(m.Name); err != nil {
		return NewManifestValidationError(m.ID, "name contains control characters")
	}

	if m.Version == "" {
		return NewManifestValidationError(m.ID, "version is required")
	}
	if _, err := ParseVersion(m.Version); err != nil {
		return NewManifestValidationError(m.ID, "version is not valid semver: "+m.Version)
	}

	if m.Engines.Host != "" {
		if err := ValidateConstraint(m.Engines.Host); err != nil {
			return NewManifestValidationError(m.ID,
				"engines.host is not a valid version range: "+m.Engines.Host)
		}
	}

	for _, p := range m.Permissions {
		if !IsValidPermission(p) {
			return NewUnknownPermissionError(m.ID, string(p))
		}
	}

	if err := v.validateEntryPath(m.Main); err != nil {
		return err
	}

	if err := v.validateDeclaredContributions(m); err != nil {
		return err
	}

	v.logger.Debug("Manifest validated",
		"extension", m.ID,
		"version", m.Version)
	return nil
}

// validateEntryPath rejects entry modules that could escape the extension
// directory or smuggle dangerous characters.
func (v *Validator) validateEntryPath(entry string) error {
	if entry == "" {
		return NewManifestValidationError("", "main entry path is required")
	}

	if filepath.IsAbs(entry) || !filepath.IsLocal(entry) {
		return NewPathTraversalError(entry)
	}
	if strings.Contains(entry, "..") {
		return NewPathTraversalError(entry)
	}
	if err := checkControlCharacters(entry); err != nil {
		return NewPathTraversalError(entry)
	}
	if strings.ContainsAny(entry, ";&|$`") {
		return NewPathTraversalError(entry)
	}

	if !strings.HasSuffix(entry, ".lua") {
		return NewManifestValidationError("", "main entry module must be a .lua file: "+entry)
	}
	return nil
}

// validateDeclaredContributions checks statically declared contributions
// for missing names and duplicates within the manifest.
func (v *Validator) validateDeclaredContributions(m *ExtensionManifest) error {
	seen := make(map[string]bool)

	check := func(kind ContributionKind, name string) error {
		if name == "" {
			return NewInvalidContributionError(kind, name, "name is required")
		}
		key := string(kind) + ":" + name
		if seen[key] {
			return NewDuplicateContributionError(kind, name, m.ID)
		}
		seen[key] = true
		return nil
	}

	for _, c := range m.Contributes.Commands {
		if err := check(ContributionCommand, c.Name); err != nil {
			return err
		}
	}
	for _, c := range m.Contributes.Views {
		if err := check(ContributionView, c.Name); err != nil {
			return err
		}
	}
	for _, c := range m.Contributes.Settings {
		if err := check(ContributionSetting, c.Name); err != nil {
			return err
		}
	}
	for _, c := range m.Contributes.Themes {
		if err := check(ContributionTheme, c.Name); err != nil {
			return err
		}
	}
	return nil
}

// CheckHostCompatibility verifies the host version falls inside the
// manifest's engines range. An empty range is always compatible. This
// check runs on every load, not only at install time, because the host
// may have been upgraded since the extension was installed.
func (v *Validator) CheckHostCompatibility(m *ExtensionManifest) error {
	if m.Engines.Host == "" {
		return nil
	}

	if !v.hostVersion.SatisfiesConstraint(m.Engines.Host) {
		return NewIncompatibleHostError(m.ID, m.Engines.Host, v.hostVersion.String())
	}
	return nil
}

// checkControlCharacters rejects strings containing control characters
func checkControlCharacters(s string) error {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return NewManifestValidationError("", "control character in string")
		}
	}
	return nil
}
