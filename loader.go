// loader.go: compiled entry-module cache with cache-busting reload
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agilira/go-timecache"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// Module is a compiled extension entry module. The compiled function
// prototype is immutable and can be instantiated into any sandbox, so a
// cached Module is shared safely while every activation still executes
// its top-level code fresh.
type Module struct {
	// Path is the canonical resolved path the module was compiled from.
	Path string

	// CompiledAt records when this compilation happened.
	CompiledAt time.Time

	proto *lua.FunctionProto
}

// ModuleLoader compiles Lua entry modules and caches the compiled chunks
// keyed by canonical resolved path, so two references to the same file
// through different symlinks share one cache entry.
//
// The loader only compiles. It never executes top-level code and never
// invokes lifecycle hooks; that is the manager's job through a sandbox.
type ModuleLoader struct {
	mu     sync.RWMutex
	cache  map[string]*Module
	logger Logger
}

// NewModuleLoader creates an empty module loader.
func NewModuleLoader(logger Logger) *ModuleLoader {
	if logger == nil {
		logger = DefaultLogger()
	}
	return &ModuleLoader{
		cache:  make(map[string]*Module),
		logger: logger,
	}
}

// Load returns the compiled module for the given path, compiling it on
// first use. Subsequent loads of the same canonical path return the
// cached chunk without touching the file again.
func (l *ModuleLoader) Load(path string) (*Module, error) {
	canonical, err := l.canonicalPath(path)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	cached, ok := l.cache[canonical]
	l.mu.RUnlock()
	if ok {
		l.logger.Debug("Module cache hit", "path", canonical)
		return cached, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Another goroutine may have compiled it while we waited
	if cached, ok := l.cache[canonical]; ok {
		return cached, nil
	}

	module, err := l.compile(canonical)
	if err != nil {
		return nil, err
	}
	l.cache[canonical] = module

	l.logger.Debug("Module compiled", "path", canonical)
	return module, nil
}

// Reload evicts the cache entry for the given path and compiles the file
// again, so the next activation executes the current on-disk source.
func (l *ModuleLoader) Reload(path string) (*Module, error) {
	canonical, err := l.canonicalPath(path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.cache, canonical)

	module, err := l.compile(canonical)
	if err != nil {
		return nil, err
	}
	l.cache[canonical] = module

	l.logger.Info("Module reloaded", "path", canonical)
	return module, nil
}

// Release drops the cache entry for the given path, if present.
func (l *ModuleLoader) Release(path string) {
	canonical, err := l.canonicalPath(path)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, canonical)
}

// Cached reports whether a compiled chunk exists for the given path.
func (l *ModuleLoader) Cached(path string) bool {
	canonical, err := l.canonicalPath(path)
	if err != nil {
		return false
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.cache[canonical]
	return ok
}

// Clear empties the module cache.
func (l *ModuleLoader) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]*Module)
}

// canonicalPath resolves symlinks and makes the path absolute so cache
// keys are unique per on-disk file.
func (l *ModuleLoader) canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", NewModuleLoadError(path, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", NewModuleLoadError(path, err)
	}
	return resolved, nil
}

// compile reads and compiles a Lua source file into a function prototype.
// Callers must hold the write lock.
func (l *ModuleLoader) compile(canonical string) (*Module, error) {
	source, err := os.ReadFile(canonical) // #nosec G304 -- canonical path resolved from a validated manifest entry
	if err != nil {
		return nil, NewModuleLoadError(canonical, err)
	}

	chunk, err := parse.Parse(bytes.NewReader(source), canonical)
	if err != nil {
		return nil, NewModuleCompileError(canonical, err)
	}

	proto, err := lua.Compile(chunk, canonical)
	if err != nil {
		return nil, NewModuleCompileError(canonical, err)
	}

	return &Module{
		Path:       canonical,
		CompiledAt: timecache.CachedTime(),
		proto:      proto,
	}, nil
}
