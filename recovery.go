// recovery.go: panic containment for calls into extension code
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"fmt"
	"runtime"
)

// withStackRecover returns a panic recovery function that logs panic details
// including the full stack trace. Every goroutine that may execute extension
// code or user-supplied handlers defers one of these so a misbehaving
// extension cannot crash the host.
//
// Example usage:
//
//	go func() {
//	    defer withStackRecover(logger)()
//	    // potentially panicking code
//	}()
func withStackRecover(logger Logger) func() {
	return func() {
		if r := recover(); r != nil {
			buf := make([]byte, 64<<10)
			n := runtime.Stack(buf, false)

			logger.Error("Panic recovered in goroutine",
				"panic", r,
				"stack", string(buf[:n]))
		}
	}
}

// SafeGo executes a function in a new goroutine with automatic panic
// recovery. If the function panics, the panic is logged and the goroutine
// terminates without affecting the host or other extensions.
func SafeGo(logger Logger, fn func()) {
	go func() {
		defer withStackRecover(logger)()
		fn()
	}()
}

// safeCall invokes fn synchronously, converting a panic into an error so
// lifecycle code can report it through the normal failure path.
func safeCall(logger Logger, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 64<<10)
			n := runtime.Stack(buf, false)

			logger.Error("Panic recovered in extension call",
				"panic", r,
				"stack", string(buf[:n]))
			err = fmt.Errorf("panic in extension code: %v", r)
		}
	}()
	return fn()
}
