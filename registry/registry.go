package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/snailos/snail/internal/log"
	"github.com/snailos/snail/internal/metrics"
)

// ModuleID identifies a wrapped module.
type ModuleID string

// State is a module's position in the handshake.
type State int

const (
	Uninstantiated State = iota
	Registered
	Ready
)

func (s State) String() string {
	switch s {
	case Uninstantiated:
		return "uninstantiated"
	case Registered:
		return "registered"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Entry is a snapshot of one module's registry record.
type Entry struct {
	ID     ModuleID
	State  State
	Handle Handle
	// Fault is the first protocol violation the module committed, if any.
	Fault error
}

type entry struct {
	handle Handle
	state  State
	fault  error
}

// Registry maps module identities to handles and readiness.
type Registry struct {
	mu      sync.RWMutex
	entries map[ModuleID]*entry
	ready   map[ModuleID]chan struct{}
	logger  hclog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l hclog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// New returns an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[ModuleID]*entry),
		ready:   make(map[ModuleID]chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = log.Named(r.logger, "registry")
	return r
}

// Register stores h under id and marks the module Registered. Registering
// the same handle again is a no-op.
func (r *Registry) Register(id ModuleID, h Handle) error {
	if id == "" {
		return protocolErr(OpRegister, id, ErrInvalidModule)
	}
	if h.IsZero() {
		return protocolErr(OpRegister, id, ErrInvalidHandle)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok {
		if e.handle.Same(h) {
			return nil
		}
		return r.fault(e, protocolErr(OpRegister, id, ErrDuplicateRegistration))
	}

	r.entries[id] = &entry{handle: h, state: Registered}
	metrics.ModulesRegistered.Inc()
	r.logger.Debug("module registered", "module", id, "handle", h)
	return nil
}

// SignalReady moves a Registered module to Ready. It may succeed once per module.
func (r *Registry) SignalReady(id ModuleID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		err := protocolErr(OpReady, id, ErrNotRegistered)
		metrics.ProtocolViolations.WithLabelValues(string(OpReady)).Inc()
		r.logger.Warn("protocol violation", "module", id, "error", err)
		return err
	}
	if e.state == Ready {
		return r.fault(e, protocolErr(OpReady, id, ErrDuplicateReady))
	}

	e.state = Ready
	close(r.readyChan(id))
	metrics.ModulesReady.Inc()
	r.logger.Debug("module ready", "module", id)
	return nil
}

// fault records err on e unless an earlier violation is already recorded.
// Must be called with r.mu held.
func (r *Registry) fault(e *entry, err *ProtocolError) error {
	if e.fault == nil {
		e.fault = err
	}
	metrics.ProtocolViolations.WithLabelValues(string(err.Op)).Inc()
	r.logger.Warn("protocol violation", "module", err.Module, "error", err)
	return err
}

// readyChan must be called with r.mu held.
func (r *Registry) readyChan(id ModuleID) chan struct{} {
	ch, ok := r.ready[id]
	if !ok {
		ch = make(chan struct{})
		r.ready[id] = ch
	}
	return ch
}

// Lookup returns a snapshot of the entry for id.
func (r *Registry) Lookup(id ModuleID) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Entry{ID: id, State: Uninstantiated}, false
	}
	return Entry{ID: id, State: e.state, Handle: e.handle, Fault: e.fault}, true
}

// State returns the handshake state of id.
func (r *Registry) State(id ModuleID) State {
	e, _ := r.Lookup(id)
	return e.State
}

// Acquire returns a dereferenceable handle for a Ready module.
func (r *Registry) Acquire(id ModuleID) (ReadyHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	switch {
	case !ok:
		return ReadyHandle{}, protocolErr(OpAcquire, id, ErrNotRegistered)
	case e.fault != nil:
		return ReadyHandle{}, protocolErr(OpAcquire, id, fmt.Errorf("%w: %w", ErrModuleFaulted, e.fault))
	case e.state != Ready:
		return ReadyHandle{}, protocolErr(OpAcquire, id, ErrNotReady)
	}
	return ReadyHandle{id: id, heap: e.handle.heap}, nil
}

// Await blocks until id is Ready and returns its handle. The module need not
// be registered yet. There is no built-in timeout; ctx bounds the wait.
func (r *Registry) Await(ctx context.Context, id ModuleID) (ReadyHandle, error) {
	r.mu.Lock()
	ch := r.readyChan(id)
	r.mu.Unlock()

	select {
	case <-ch:
		return r.Acquire(id)
	case <-ctx.Done():
		return ReadyHandle{}, ctx.Err()
	}
}

// Entries returns snapshots of every entry sorted by identity.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for id, e := range r.entries {
		out = append(out, Entry{ID: id, State: e.state, Handle: e.handle, Fault: e.fault})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
