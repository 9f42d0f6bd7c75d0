// events.go: lifecycle event stream for observability
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"sync"
	"time"

	"github.com/agilira/go-timecache"
)

// ActivationEventStartup is the implicit event dispatched by the startup
// scan. Manifests with an empty activationEvents list, or containing the
// "*" wildcard, activate on it.
const ActivationEventStartup = "startup"

// LifecycleEventType classifies lifecycle notifications.
type LifecycleEventType string

const (
	EventInstalled        LifecycleEventType = "extension_installed"
	EventValidationFailed LifecycleEventType = "extension_validation_failed"
	EventActivating       LifecycleEventType = "extension_activating"
	EventActivated        LifecycleEventType = "extension_activated"
	EventActivationFailed LifecycleEventType = "extension_activation_failed"
	EventDeactivating     LifecycleEventType = "extension_deactivating"
	EventDeactivated      LifecycleEventType = "extension_deactivated"
	EventReloaded         LifecycleEventType = "extension_reloaded"
	EventEnabled          LifecycleEventType = "extension_enabled"
	EventDisabled         LifecycleEventType = "extension_disabled"
	EventUninstalled      LifecycleEventType = "extension_uninstalled"
)

// LifecycleEvent describes one lifecycle transition of a managed
// extension.
type LifecycleEvent struct {
	Type      LifecycleEventType `json:"type"`
	Extension string             `json:"extension"`
	State     ExtensionState     `json:"state"`
	Timestamp time.Time          `json:"timestamp"`
	Err       error              `json:"-"`
}

// LifecycleEventHandler receives lifecycle events. Handlers run on their
// own goroutines; a panicking handler is contained and logged.
type LifecycleEventHandler func(event LifecycleEvent)

// eventBus fans lifecycle events out to registered handlers.
type eventBus struct {
	mu       sync.RWMutex
	handlers []LifecycleEventHandler
	logger   Logger
}

func newEventBus(logger Logger) *eventBus {
	return &eventBus{logger: logger}
}

// subscribe registers a handler for all future events.
func (b *eventBus) subscribe(handler LifecycleEventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// emit delivers an event to every handler on its own goroutine.
func (b *eventBus) emit(eventType LifecycleEventType, extension string, state ExtensionState, err error) {
	b.mu.RLock()
	handlers := make([]LifecycleEventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := LifecycleEvent{
		Type:      eventType,
		Extension: extension,
		State:     state,
		Timestamp: timecache.CachedTime(),
		Err:       err,
	}

	for _, handler := range handlers {
		go func(h LifecycleEventHandler) {
			defer withStackRecover(b.logger)()
			h(event)
		}(handler)
	}
}
