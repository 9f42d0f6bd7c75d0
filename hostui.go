// hostui.go: host collaborator interface for UI and system integration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"context"
)

// HostUI is implemented by the embedding application. Extension contexts
// forward user-facing operations here; the runtime never renders anything
// itself. Every call carries the requesting extension's identifier so the
// host can attribute prompts and notifications.
type HostUI interface {
	// ShowMessage displays an informational message to the user.
	ShowMessage(ctx context.Context, extensionID, message string) error

	// RequestInput prompts the user for a line of free-form text.
	RequestInput(ctx context.Context, extensionID, prompt, placeholder string) (string, error)

	// RequestPick asks the user to choose one of the given items.
	RequestPick(ctx context.Context, extensionID, prompt string, items []string) (string, error)

	// WriteClipboard replaces the host clipboard contents.
	WriteClipboard(ctx context.Context, extensionID, text string) error

	// Notify posts a host notification.
	Notify(ctx context.Context, extensionID, message string) error
}

// NoOpHostUI is a HostUI that accepts every call and returns zero values.
// It backs headless hosts and tests that do not exercise UI paths.
type NoOpHostUI struct{}

// NewNoOpHostUI creates a no-operation host UI.
func NewNoOpHostUI() *NoOpHostUI {
	return &NoOpHostUI{}
}

// ShowMessage implements HostUI (no-op)
func (n *NoOpHostUI) ShowMessage(ctx context.Context, extensionID, message string) error {
	return nil
}

// RequestInput implements HostUI (returns empty input)
func (n *NoOpHostUI) RequestInput(ctx context.Context, extensionID, prompt, placeholder string) (string, error) {
	return "", nil
}

// RequestPick implements HostUI (returns empty selection)
func (n *NoOpHostUI) RequestPick(ctx context.Context, extensionID, prompt string, items []string) (string, error) {
	return "", nil
}

// WriteClipboard implements HostUI (no-op)
func (n *NoOpHostUI) WriteClipboard(ctx context.Context, extensionID, text string) error {
	return nil
}

// Notify implements HostUI (no-op)
func (n *NoOpHostUI) Notify(ctx context.Context, extensionID, message string) error {
	return nil
}
