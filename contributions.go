// contributions.go: host contribution tables for active extensions
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"sort"

	"github.com/agilira/go-timecache"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// commandEntry pairs a command contribution with its executable handler.
type commandEntry struct {
	contribution Contribution
	handler      CommandHandler
}

// ContributionRegistry holds the host's contribution tables: commands,
// views, settings, and themes. Entries exist only while their owning
// extension is active; deactivation removes every entry the extension
// registered, so the tables always reflect the set of active extensions.
type ContributionRegistry struct {
	commands cmap.ConcurrentMap[string, *commandEntry]
	views    cmap.ConcurrentMap[string, Contribution]
	settings cmap.ConcurrentMap[string, Contribution]
	themes   cmap.ConcurrentMap[string, Contribution]
	logger   Logger
}

// NewContributionRegistry creates empty contribution tables.
func NewContributionRegistry(logger Logger) *ContributionRegistry {
	if logger == nil {
		logger = DefaultLogger()
	}
	return &ContributionRegistry{
		commands: cmap.New[*commandEntry](),
		views:    cmap.New[Contribution](),
		settings: cmap.New[Contribution](),
		themes:   cmap.New[Contribution](),
		logger:   logger,
	}
}

// RegisterCommand adds a named command owned by an extension. Names must
// be unique across all extensions; a duplicate registration fails without
// touching the existing entry.
func (r *ContributionRegistry) RegisterCommand(owner, name, title string, handler CommandHandler) error {
	if name == "" {
		return NewInvalidContributionError(ContributionCommand, name, "name is required")
	}
	if handler == nil {
		return NewInvalidContributionError(ContributionCommand, name, "handler is required")
	}

	entry := &commandEntry{
		contribution: Contribution{
			Kind:         ContributionCommand,
			Name:         name,
			Title:        title,
			Owner:        owner,
			RegisteredAt: timecache.CachedTime(),
		},
		handler: handler,
	}

	if !r.commands.SetIfAbsent(name, entry) {
		return NewDuplicateContributionError(ContributionCommand, name, owner)
	}

	r.logger.Debug("Command registered", "command", name, "owner", owner)
	return nil
}

// RegisterView adds a view contribution owned by an extension.
func (r *ContributionRegistry) RegisterView(owner string, c Contribution) error {
	return r.registerDeclarative(&r.views, ContributionView, owner, c)
}

// RegisterSetting adds a setting contribution owned by an extension.
func (r *ContributionRegistry) RegisterSetting(owner string, c Contribution) error {
	return r.registerDeclarative(&r.settings, ContributionSetting, owner, c)
}

// RegisterTheme adds a theme contribution owned by an extension.
func (r *ContributionRegistry) RegisterTheme(owner string, c Contribution) error {
	return r.registerDeclarative(&r.themes, ContributionTheme, owner, c)
}

func (r *ContributionRegistry) registerDeclarative(table *cmap.ConcurrentMap[string, Contribution], kind ContributionKind, owner string, c Contribution) error {
	if c.Name == "" {
		return NewInvalidContributionError(kind, c.Name, "name is required")
	}

	c.Kind = kind
	c.Owner = owner
	c.RegisteredAt = timecache.CachedTime()

	if !table.SetIfAbsent(c.Name, c) {
		return NewDuplicateContributionError(kind, c.Name, owner)
	}

	r.logger.Debug("Contribution registered",
		"kind", string(kind),
		"name", c.Name,
		"owner", owner)
	return nil
}

// ExecuteCommand runs a registered command handler by name.
func (r *ContributionRegistry) ExecuteCommand(name string, args []string) (string, error) {
	entry, ok := r.commands.Get(name)
	if !ok {
		return "", NewCommandNotFoundError(name)
	}
	return entry.handler(args)
}

// CommandOwner returns the extension that registered a command.
func (r *ContributionRegistry) CommandOwner(name string) (string, bool) {
	entry, ok := r.commands.Get(name)
	if !ok {
		return "", false
	}
	return entry.contribution.Owner, true
}

// ListCommands returns the command contributions sorted by name.
func (r *ContributionRegistry) ListCommands() []Contribution {
	out := make([]Contribution, 0, r.commands.Count())
	for tuple := range r.commands.IterBuffered() {
		out = append(out, tuple.Val.contribution)
	}
	sortContributions(out)
	return out
}

// ListViews returns the view contributions sorted by name.
func (r *ContributionRegistry) ListViews() []Contribution {
	return listTable(&r.views)
}

// ListSettings returns the setting contributions sorted by name.
func (r *ContributionRegistry) ListSettings() []Contribution {
	return listTable(&r.settings)
}

// ListThemes returns the theme contributions sorted by name.
func (r *ContributionRegistry) ListThemes() []Contribution {
	return listTable(&r.themes)
}

func listTable(table *cmap.ConcurrentMap[string, Contribution]) []Contribution {
	out := make([]Contribution, 0, table.Count())
	for tuple := range table.IterBuffered() {
		out = append(out, tuple.Val)
	}
	sortContributions(out)
	return out
}

func sortContributions(list []Contribution) {
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
}

// UnregisterAll removes every contribution owned by the extension and
// returns how many entries were dropped.
func (r *ContributionRegistry) UnregisterAll(owner string) int {
	removed := 0

	for tuple := range r.commands.IterBuffered() {
		if tuple.Val.contribution.Owner == owner {
			r.commands.Remove(tuple.Key)
			removed++
		}
	}
	removed += unregisterTable(&r.views, owner)
	removed += unregisterTable(&r.settings, owner)
	removed += unregisterTable(&r.themes, owner)

	if removed > 0 {
		r.logger.Debug("Contributions removed", "owner", owner, "count", removed)
	}
	return removed
}

func unregisterTable(table *cmap.ConcurrentMap[string, Contribution], owner string) int {
	removed := 0
	for tuple := range table.IterBuffered() {
		if tuple.Val.Owner == owner {
			table.Remove(tuple.Key)
			removed++
		}
	}
	return removed
}
