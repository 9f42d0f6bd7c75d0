// sandbox.go: restricted Lua execution state for extension instances
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// Sandbox wraps a restricted gopher-lua state for a single extension
// instance. Only the safe standard libraries are opened; io, os, debug,
// and package are never available, and the code-loading base functions
// are scrubbed so extension code cannot pull in anything the loader did
// not compile.
//
// LState is not goroutine-safe. Entry into the state is serialized with a
// goroutine-reentrant lock: a host binding invoked from running Lua code
// may re-enter the sandbox on the same goroutine (an extension executing
// one of its own commands through the host module) without deadlocking,
// while other goroutines still block until the state is free.
type Sandbox struct {
	L      *lua.LState
	mu     sync.Mutex
	holder atomic.Uint64
	depth  int
	closed bool
}

// sandboxUnheld marks the sandbox as held by no goroutine. Real ids are
// small positive integers, and a failed stack-header parse yields 0, so
// neither can ever compare equal to it.
const sandboxUnheld = ^uint64(0)

// goroutineID extracts the current goroutine's id from its stack header.
// Returns 0 when the header cannot be parsed; 0 is never treated as a
// holding goroutine, so a parse failure degrades to plain locking.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := strings.Fields(string(buf[:n]))
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// enter acquires the sandbox for the current goroutine, re-entrantly.
func (s *Sandbox) enter() {
	gid := goroutineID()
	if gid != 0 && s.holder.Load() == gid {
		s.depth++
		return
	}
	s.mu.Lock()
	s.holder.Store(gid)
	s.depth = 1
}

// leave releases one level of sandbox entry.
func (s *Sandbox) leave() {
	s.depth--
	if s.depth == 0 {
		s.holder.Store(sandboxUnheld)
		s.mu.Unlock()
	}
}

// unsafeBaseGlobals are base-library functions removed after opening,
// because they load or execute code outside the module cache.
var unsafeBaseGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"collectgarbage",
}

// NewSandbox creates a restricted Lua state.
func NewSandbox() *Sandbox {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	// Safe libraries only; io, os, debug, and package stay closed.
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range unsafeBaseGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	s := &Sandbox{L: L}
	s.holder.Store(sandboxUnheld)
	return s
}

// Run executes a compiled module's top-level code inside the sandbox.
func (s *Sandbox) Run(m *Module) error {
	s.enter()
	defer s.leave()

	if s.closed {
		return fmt.Errorf("sandbox is closed")
	}

	return s.withRecovery(func() error {
		fn := s.L.NewFunctionFromProto(m.proto)
		s.L.Push(fn)
		return s.L.PCall(0, 0, nil)
	})
}

// CallOptional invokes a global function by name if the module defined
// one. Returns found=false without error when the global is absent, which
// lets lifecycle hooks stay optional.
func (s *Sandbox) CallOptional(name string, args ...lua.LValue) (bool, error) {
	s.enter()
	defer s.leave()

	if s.closed {
		return false, fmt.Errorf("sandbox is closed")
	}

	fnVal := s.L.GetGlobal(name)
	if fnVal == lua.LNil {
		return false, nil
	}
	if fnVal.Type() != lua.LTFunction {
		return false, fmt.Errorf("global %q is not a function (got %s)", name, fnVal.Type())
	}

	err := s.withRecovery(func() error {
		s.L.Push(fnVal)
		for _, arg := range args {
			s.L.Push(arg)
		}
		return s.L.PCall(len(args), 0, nil)
	})
	return true, err
}

// CallFunction invokes a Lua function value, typically a command handler
// captured at registration time, and returns its results.
func (s *Sandbox) CallFunction(fn *lua.LFunction, args ...lua.LValue) ([]lua.LValue, error) {
	s.enter()
	defer s.leave()

	if s.closed {
		return nil, fmt.Errorf("sandbox is closed")
	}

	stackTop := s.L.GetTop()

	err := s.withRecovery(func() error {
		s.L.Push(fn)
		for _, arg := range args {
			s.L.Push(arg)
		}
		return s.L.PCall(len(args), lua.MultRet, nil)
	})
	if err != nil {
		s.L.SetTop(stackTop)
		return nil, err
	}

	nRet := s.L.GetTop() - stackTop
	if nRet <= 0 {
		return []lua.LValue{}, nil
	}
	results := make([]lua.LValue, nRet)
	for i := 0; i < nRet; i++ {
		results[i] = s.L.Get(stackTop + i + 1)
	}
	s.L.Pop(nRet)

	return results, nil
}

// SetModule installs a table of Go functions as a named Lua module.
func (s *Sandbox) SetModule(name string, funcs map[string]lua.LGFunction) {
	s.enter()
	defer s.leave()

	if s.closed {
		return
	}

	mod := s.L.SetFuncs(s.L.NewTable(), funcs)
	s.L.SetGlobal(name, mod)
}

// SetGlobal sets a global value inside the sandbox.
func (s *Sandbox) SetGlobal(name string, value lua.LValue) {
	s.enter()
	defer s.leave()

	if s.closed {
		return
	}

	s.L.SetGlobal(name, value)
}

// withRecovery converts a Lua runtime panic into an error. Callers must
// hold the mutex.
func (s *Sandbox) withRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// IsClosed reports whether Close was called.
func (s *Sandbox) IsClosed() bool {
	s.enter()
	defer s.leave()
	return s.closed
}

// Close releases the underlying Lua state. Safe to call more than once.
func (s *Sandbox) Close() {
	s.enter()
	defer s.leave()

	if s.closed {
		return
	}
	s.L.Close()
	s.closed = true
}
