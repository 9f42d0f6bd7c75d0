// version.go: semantic version parsing and host compatibility ranges
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"strconv"
	"strings"
)

// Version represents a semantic version with comparison capabilities.
//
// Supports the standard major.minor.patch format with optional prerelease
// and build metadata.
//
//	v1, _ := ParseVersion("1.2.3-beta.1+build.123")
//	v2, _ := ParseVersion("1.2.4")
//	if v1.Compare(v2) < 0 { ... }
type Version struct {
	Major      uint64 `json:"major"`
	Minor      uint64 `json:"minor"`
	Patch      uint64 `json:"patch"`
	Prerelease string `json:"prerelease,omitempty"`
	Build      string `json:"build,omitempty"`
	Original   string `json:"original"`
}

// ParseVersion parses a semantic version string.
func ParseVersion(versionStr string) (*Version, error) {
	if versionStr == "" {
		return nil, NewInvalidVersionError(versionStr, nil)
	}

	parts := strings.Split(strings.TrimPrefix(versionStr, "v"), ".")
	if len(parts) != 3 {
		return nil, NewInvalidVersionError(versionStr, nil)
	}

	major, err := parseVersionComponent(parts[0], "major")
	if err != nil {
		return nil, err
	}

	minor, err := parseVersionComponent(parts[1], "minor")
	if err != nil {
		return nil, err
	}

	// Patch may carry prerelease and build metadata
	patch, prerelease, build, err := parsePatchVersion(parts[2])
	if err != nil {
		return nil, err
	}

	return &Version{
		Major:      major,
		Minor:      minor,
		Patch:      patch,
		Prerelease: prerelease,
		Build:      build,
		Original:   versionStr,
	}, nil
}

// parseVersionComponent parses a single numeric version component
func parseVersionComponent(component, componentType string) (uint64, error) {
	value, err := strconv.ParseUint(component, 10, 64)
	if err != nil {
		return 0, NewInvalidVersionError(componentType+" component "+component, err)
	}
	return value, nil
}

// parsePatchVersion parses the patch component with possible prerelease and
// build metadata
func parsePatchVersion(patchPart string) (uint64, string, string, error) {
	var patch uint64
	var prerelease, build string
	var err error

	if idx := strings.Index(patchPart, "-"); idx >= 0 {
		patch, prerelease, build, err = parsePatchWithPrerelease(patchPart, idx)
	} else if idx := strings.Index(patchPart, "+"); idx >= 0 {
		patch, err = parseVersionComponent(patchPart[:idx], "patch")
		build = patchPart[idx+1:]
	} else {
		patch, err = parseVersionComponent(patchPart, "patch")
	}

	if err != nil {
		return 0, "", "", err
	}
	return patch, prerelease, build, nil
}

// parsePatchWithPrerelease splits the prerelease identifier and optional
// build metadata after it
func parsePatchWithPrerelease(patchPart string, idx int) (uint64, string, string, error) {
	patch, err := parseVersionComponent(patchPart[:idx], "patch")
	if err != nil {
		return 0, "", "", err
	}

	remaining := patchPart[idx+1:]
	var prerelease, build string

	if buildIdx := strings.Index(remaining, "+"); buildIdx >= 0 {
		prerelease = remaining[:buildIdx]
		build = remaining[buildIdx+1:]
	} else {
		prerelease = remaining
	}

	return patch, prerelease, build, nil
}

// String returns the original version string.
func (v *Version) String() string {
	return v.Original
}

// Compare compares two versions. Returns -1, 0, or 1.
func (v *Version) Compare(other *Version) int {
	if result := compareComponent(v.Major, other.Major); result != 0 {
		return result
	}

	if result := compareComponent(v.Minor, other.Minor); result != 0 {
		return result
	}

	if result := compareComponent(v.Patch, other.Patch); result != 0 {
		return result
	}

	return v.comparePrerelease(other)
}

// compareComponent compares two uint64 version components
func compareComponent(a, b uint64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// comparePrerelease compares prerelease identifiers (simplified)
func (v *Version) comparePrerelease(other *Version) int {
	if v.Prerelease == "" && other.Prerelease != "" {
		return 1 // Release > prerelease
	}
	if v.Prerelease != "" && other.Prerelease == "" {
		return -1 // Prerelease < release
	}

	return strings.Compare(v.Prerelease, other.Prerelease)
}

// SatisfiesConstraint checks if the version satisfies a constraint.
//
// Supported forms: "*" (any), "^x.y.z" (caret), "~x.y.z" (tilde), bare
// "x.y.z" (exact), and comparator lists such as ">=1.0.0 <2.0.0" separated
// by spaces or commas where every comparator must hold.
func (v *Version) SatisfiesConstraint(constraint string) bool {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" || constraint == "*" {
		return true
	}

	if strings.HasPrefix(constraint, "^") {
		return v.satisfiesCaretConstraint(constraint)
	}

	if strings.HasPrefix(constraint, "~") {
		return v.satisfiesTildeConstraint(constraint)
	}

	if strings.ContainsAny(constraint, "<>=, ") {
		return v.satisfiesComparators(constraint)
	}

	// Exact match
	target, err := ParseVersion(constraint)
	if err != nil {
		return false
	}

	return v.Compare(target) == 0
}

// satisfiesCaretConstraint checks a caret range (^x.y.z): same major, at
// least the target version
func (v *Version) satisfiesCaretConstraint(constraint string) bool {
	target, err := ParseVersion(strings.TrimPrefix(constraint, "^"))
	if err != nil {
		return false
	}

	return v.Major == target.Major &&
		(v.Minor > target.Minor ||
			(v.Minor == target.Minor && v.Patch >= target.Patch))
}

// satisfiesTildeConstraint checks a tilde range (~x.y.z): same major.minor,
// at least the target patch
func (v *Version) satisfiesTildeConstraint(constraint string) bool {
	target, err := ParseVersion(strings.TrimPrefix(constraint, "~"))
	if err != nil {
		return false
	}

	return v.Major == target.Major &&
		v.Minor == target.Minor &&
		v.Patch >= target.Patch
}

// satisfiesComparators checks a comparator list; all comparators must hold
func (v *Version) satisfiesComparators(constraint string) bool {
	fields := strings.FieldsFunc(constraint, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
	if len(fields) == 0 {
		return false
	}

	for _, field := range fields {
		if !v.satisfiesComparator(field) {
			return false
		}
	}
	return true
}

// satisfiesComparator checks a single comparator such as ">=1.0.0"
func (v *Version) satisfiesComparator(comparator string) bool {
	op := "="
	rest := comparator

	switch {
	case strings.HasPrefix(comparator, ">="):
		op, rest = ">=", comparator[2:]
	case strings.HasPrefix(comparator, "<="):
		op, rest = "<=", comparator[2:]
	case strings.HasPrefix(comparator, ">"):
		op, rest = ">", comparator[1:]
	case strings.HasPrefix(comparator, "<"):
		op, rest = "<", comparator[1:]
	case strings.HasPrefix(comparator, "="):
		op, rest = "=", comparator[1:]
	}

	target, err := ParseVersion(rest)
	if err != nil {
		return false
	}

	switch cmp := v.Compare(target); op {
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	default:
		return cmp == 0
	}
}

// ValidateConstraint reports whether the constraint string is well formed.
func ValidateConstraint(constraint string) error {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" || constraint == "*" {
		return nil
	}

	trimmed := strings.TrimLeft(constraint, "^~")
	if strings.ContainsAny(trimmed, "<>=, ") {
		fields := strings.FieldsFunc(constraint, func(r rune) bool {
			return r == ' ' || r == ',' || r == '\t'
		})
		for _, field := range fields {
			stripped := strings.TrimLeft(field, "<>=")
			if _, err := ParseVersion(stripped); err != nil {
				return err
			}
		}
		return nil
	}

	_, err := ParseVersion(trimmed)
	return err
}
