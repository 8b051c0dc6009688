// ABOUTME: Thread-safe registry of capability handlers keyed by name.
// ABOUTME: Manages registration, lifecycle hooks, enable/disable toggles, and priority ordering.

package plugins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// ErrInvalidHandler indicates a nil handler or one without a name.
var ErrInvalidHandler = errors.New("invalid handler")

// entry is a registered handler plus the registry-owned state around it.
type entry struct {
	handler Handler
	info    Info
	enabled bool
	seq     uint64 // registration order, used to break priority ties
}

func (e *entry) metadata() Metadata {
	commands := make([]string, len(e.info.Commands))
	copy(commands, e.info.Commands)
	return Metadata{
		Name:        e.info.Name,
		Version:     e.info.Version,
		Description: e.info.Description,
		Enabled:     e.enabled,
		Priority:    e.info.Priority,
		Commands:    commands,
	}
}

// Registry holds every registered handler. Dispatch order is computed from
// priority at dispatch time, never from map or insertion order.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	nextSeq uint64
	logger  *slog.Logger
}

// NewRegistry creates an empty Registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// DiscoverAndLoad builds every handler from the registration table and
// registers those that start enabled. A factory that fails or panics is
// logged and skipped; loading continues with the rest. Returns the number
// of handlers registered.
func (r *Registry) DiscoverAndLoad(ctx context.Context, factories []Factory) int {
	loaded := 0
	for i, factory := range factories {
		h, err := construct(factory)
		if err != nil {
			r.logger.Error("handler construction failed", "index", i, "error", err)
			continue
		}
		info := h.Info()
		if info.StartDisabled {
			r.logger.Info("handler starts disabled, not loading", "handler", info.Name)
			continue
		}
		if err := r.Register(ctx, h); err != nil {
			r.logger.Error("handler registration failed", "index", i, "error", err)
			continue
		}
		loaded++
	}
	return loaded
}

// construct calls a factory, converting a panic into an error.
func construct(factory Factory) (h Handler, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			h, err = nil, fmt.Errorf("constructor panic: %v", rec)
		}
	}()
	if factory == nil {
		return nil, fmt.Errorf("%w: nil factory", ErrInvalidHandler)
	}
	h, err = factory()
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("%w: factory returned nil", ErrInvalidHandler)
	}
	return h, nil
}

// Register inserts h, replacing any handler with the same name. The
// replacement keeps the replaced handler's position among equal priorities.
// OnLoad runs after insertion; its failure is logged and the handler stays
// registered. The replaced handler's OnUnload runs the same way.
func (r *Registry) Register(ctx context.Context, h Handler) error {
	if h == nil {
		return fmt.Errorf("%w: nil handler", ErrInvalidHandler)
	}
	info := h.Info()
	info.Name = strings.TrimSpace(info.Name)
	if info.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidHandler)
	}
	if info.Version == "" {
		info.Version = DefaultVersion
	}

	r.mu.Lock()
	previous := r.entries[info.Name]
	e := &entry{handler: h, info: info, enabled: !info.StartDisabled}
	if previous != nil {
		e.seq = previous.seq
	} else {
		e.seq = r.nextSeq
		r.nextSeq++
	}
	r.entries[info.Name] = e
	total := len(r.entries)
	r.mu.Unlock()

	if previous != nil {
		r.runUnload(ctx, previous.handler, info.Name)
	}
	r.runLoad(ctx, h, info.Name)

	r.logger.Info("=== HANDLER REGISTERED ===",
		"handler", info.Name,
		"version", info.Version,
		"priority", info.Priority,
		"enabled", e.enabled,
		"replaced", previous != nil,
		"total_handlers", total,
	)
	return nil
}

// Unregister removes the named handler and runs its OnUnload hook.
// Returns false, without error, when no such handler exists.
func (r *Registry) Unregister(ctx context.Context, name string) bool {
	r.mu.Lock()
	e, ok := r.entries[name]
	if ok {
		delete(r.entries, name)
	}
	total := len(r.entries)
	r.mu.Unlock()

	if !ok {
		return false
	}

	r.runUnload(ctx, e.handler, name)

	r.logger.Info("=== HANDLER UNREGISTERED ===",
		"handler", name,
		"total_handlers", total,
	)
	return true
}

// Enable marks the named handler as participating in dispatch.
// Returns whether the name exists.
func (r *Registry) Enable(name string) bool {
	return r.setEnabled(name, true)
}

// Disable stops the named handler from participating in dispatch without
// unregistering it. Returns whether the name exists.
func (r *Registry) Disable(name string) bool {
	return r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	e, ok := r.entries[name]
	if ok {
		e.enabled = enabled
	}
	r.mu.Unlock()

	if ok {
		r.logger.Info("handler toggled", "handler", name, "enabled", enabled)
	}
	return ok
}

// Get returns metadata for the named handler.
func (r *Registry) Get(name string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return Metadata{}, false
	}
	return e.metadata(), true
}

// ListMetadata returns metadata for every registered handler, enabled or not,
// in dispatch order.
func (r *Registry) ListMetadata() []Metadata {
	ordered := r.ordered()
	out := make([]Metadata, 0, len(ordered))
	for _, e := range ordered {
		out = append(out, e.metadata())
	}
	return out
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// dispatchEntry is an immutable view of an entry taken for one dispatch.
type dispatchEntry struct {
	name    string
	handler Handler
	enabled bool
}

// snapshot returns the dispatch order: priority descending, ties broken by
// registration order.
func (r *Registry) snapshot() []dispatchEntry {
	ordered := r.ordered()
	out := make([]dispatchEntry, len(ordered))
	for i, e := range ordered {
		out[i] = dispatchEntry{name: e.info.Name, handler: e.handler, enabled: e.enabled}
	}
	return out
}

func (r *Registry) ordered() []entry {
	r.mu.RLock()
	list := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		list = append(list, *e)
	}
	r.mu.RUnlock()

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].info.Priority != list[j].info.Priority {
			return list[i].info.Priority > list[j].info.Priority
		}
		return list[i].seq < list[j].seq
	})
	return list
}

// Close unregisters every handler, running OnUnload hooks.
// This should be called during graceful shutdown.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for name, e := range entries {
		r.runUnload(ctx, e.handler, name)
	}

	r.logger.Info("registry closed", "handlers_unloaded", len(entries))
}

func (r *Registry) runLoad(ctx context.Context, h Handler, name string) {
	l, ok := h.(Loader)
	if !ok {
		return
	}
	if err := safeHook(func() error { return l.OnLoad(ctx) }); err != nil {
		r.logger.Warn("handler on_load failed", "handler", name, "error", err)
	}
}

func (r *Registry) runUnload(ctx context.Context, h Handler, name string) {
	u, ok := h.(Unloader)
	if !ok {
		return
	}
	if err := safeHook(func() error { return u.OnUnload(ctx) }); err != nil {
		r.logger.Warn("handler on_unload failed", "handler", name, "error", err)
	}
}

func safeHook(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("hook panic: %v", rec)
		}
	}()
	return fn()
}
