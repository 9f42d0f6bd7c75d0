// gatekeeper.go: capability grants fixed at load time
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"sort"
	"sync"
)

// CapabilityGrant is the immutable permission set bound to one extension
// when it loads. It never changes while the extension runs; widening a
// grant requires a manifest change followed by a reload.
type CapabilityGrant struct {
	extensionID string
	permissions map[Permission]struct{}
}

// newCapabilityGrant copies the declared permissions into an immutable set.
func newCapabilityGrant(extensionID string, permissions []Permission) CapabilityGrant {
	set := make(map[Permission]struct{}, len(permissions))
	for _, p := range permissions {
		set[p] = struct{}{}
	}
	return CapabilityGrant{
		extensionID: extensionID,
		permissions: set,
	}
}

// ExtensionID returns the extension the grant belongs to.
func (g CapabilityGrant) ExtensionID() string {
	return g.extensionID
}

// Has reports whether the grant includes the permission.
func (g CapabilityGrant) Has(p Permission) bool {
	_, ok := g.permissions[p]
	return ok
}

// List returns the granted permissions in stable order.
func (g CapabilityGrant) List() []Permission {
	out := make([]Permission, 0, len(g.permissions))
	for p := range g.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CapabilityGate authorizes privileged operations against the grants
// bound at load time. Authorization is pure set membership; every denial
// is logged and returns a typed permission error without performing any
// part of the requested operation.
type CapabilityGate struct {
	mu     sync.RWMutex
	grants map[string]CapabilityGrant
	logger Logger
}

// NewCapabilityGate creates an empty gate.
func NewCapabilityGate(logger Logger) *CapabilityGate {
	if logger == nil {
		logger = DefaultLogger()
	}
	return &CapabilityGate{
		grants: make(map[string]CapabilityGrant),
		logger: logger,
	}
}

// Bind fixes the grant for an extension at load time. A re-load after
// manifest re-validation replaces the previous grant.
func (cg *CapabilityGate) Bind(extensionID string, permissions []Permission) {
	cg.mu.Lock()
	defer cg.mu.Unlock()
	cg.grants[extensionID] = newCapabilityGrant(extensionID, permissions)
}

// Drop removes the grant for an extension, typically on deactivation.
func (cg *CapabilityGate) Drop(extensionID string) {
	cg.mu.Lock()
	defer cg.mu.Unlock()
	delete(cg.grants, extensionID)
}

// Authorize checks that the extension's grant includes the permission.
// Unknown extensions are denied; there is no implicit grant.
func (cg *CapabilityGate) Authorize(extensionID string, p Permission) error {
	cg.mu.RLock()
	grant, ok := cg.grants[extensionID]
	cg.mu.RUnlock()

	if !ok || !grant.Has(p) {
		cg.logger.Warn("Permission denied",
			"extension", extensionID,
			"permission", string(p))
		return NewPermissionDeniedError(extensionID, p)
	}
	return nil
}

// GrantFor returns the grant bound to an extension.
func (cg *CapabilityGate) GrantFor(extensionID string) (CapabilityGrant, bool) {
	cg.mu.RLock()
	defer cg.mu.RUnlock()
	grant, ok := cg.grants[extensionID]
	return grant, ok
}
