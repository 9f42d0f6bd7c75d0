// Package goextensions provides a production-ready extension runtime for Go
// host applications. It loads sandboxed Lua extensions from disk, validates
// their manifests, enforces declared permission grants, and drives each
// extension through an explicit lifecycle with a persisted installation
// registry.
//
// Key Features:
//   - Manifest validation with strict identifier and entry-path checks
//   - Semantic version parsing with host compatibility ranges
//   - Compiled-chunk module cache with explicit cache-busting reload
//   - Capability gatekeeping fixed at load time, checked on every call
//   - Sandboxed execution contexts scoped to a single extension
//   - Lifecycle state machine with activation collapse and bounded teardown
//   - SQLite-backed installation registry surviving restarts
//   - Hot-reloadable runtime configuration
//
// Basic Usage:
//
//	// Create a manager rooted at the managed extensions directory
//	manager, err := goextensions.NewManager(goextensions.ManagerOptions{
//		HostVersion:   "1.2.0",
//		ExtensionsDir: "/var/lib/myapp/extensions",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer manager.Shutdown(context.Background())
//
//	// Install an extension from an unpacked directory
//	rec, err := manager.Install(ctx, "/tmp/hello-ext")
//
//	// Activate everything installed and enabled
//	manager.Scan(ctx)
//
//	// Invoke a command an extension registered
//	out, err := manager.ExecuteCommand(ctx, "hello.greet", nil)
//
// Security:
// Extensions run inside a restricted Lua state with no io, os, debug, or
// package libraries. Every privileged host operation is gated by the
// permission set declared in the manifest and bound at load time; an
// undeclared capability fails with a typed permission error and performs
// no side effects.
//
// Isolation:
// A failure inside extension code (error or panic) is contained to that
// extension instance. The host process and sibling extensions are never
// affected.
//
// Copyright (c) 2025 AGILira - A. Giordano
// SPDX-License-Identifier: MPL-2.0
package goextensions
