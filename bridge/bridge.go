// Package bridge defines the "os" host module through which wrapped
// WebAssembly modules hand their heap to the process manager and announce
// that their runtime is ready.
//
// A wrapped module imports two functions, both () -> i32:
//
//	(import "os" "set_module"   (func (result i32)))
//	(import "os" "init_runtime" (func (result i32)))
//
// set_module is called as early as possible, typically from the module's
// start function; init_runtime once the module's own initialisation has
// finished. The calling module instance is the handle, its module name the
// identity. Failures never trap the guest; they come back as status codes.
package bridge

import (
	"context"
	"errors"
	"fmt"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/snailos/snail/internal/log"
	"github.com/snailos/snail/registry"
)

// ModuleName is the import module name wrapped modules link against.
const ModuleName = "os"

// Exported host functions.
const (
	ExportSetModule   = "set_module"
	ExportInitRuntime = "init_runtime"
)

// Status codes returned to the guest.
const (
	StatusOK                    int32 = 0
	StatusDuplicateRegistration int32 = 1
	StatusUnknownTarget         int32 = 2
	StatusNotRegistered         int32 = 3
	StatusDuplicateReady        int32 = 4
	StatusInvalidCaller         int32 = 5
)

// Bridge routes guest calls into a registration channel.
type Bridge struct {
	ch     registry.Channel
	logger hclog.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge logger.
func WithLogger(l hclog.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// New returns a bridge targeting reg. A nil reg yields a bridge whose every
// call reports StatusUnknownTarget.
func New(reg *registry.Registry, opts ...Option) *Bridge {
	b := &Bridge{ch: registry.NewChannel(reg)}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = log.Named(b.logger, "bridge")
	return b
}

// Instantiate defines the "os" host module in rt. It must happen before any
// wrapped module that imports it is instantiated.
func (b *Bridge) Instantiate(ctx context.Context, rt wazero.Runtime) (api.Module, error) {
	mod, err := rt.NewHostModuleBuilder(ModuleName).
		NewFunctionBuilder().
		WithFunc(b.setModule).
		WithName(ExportSetModule).
		Export(ExportSetModule).
		NewFunctionBuilder().
		WithFunc(b.initRuntime).
		WithName(ExportInitRuntime).
		Export(ExportInitRuntime).
		Instantiate(ctx)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s host module: %w", ModuleName, err)
	}
	return mod, nil
}

func (b *Bridge) setModule(ctx context.Context, m api.Module) int32 {
	id, ok := identity(m)
	if !ok {
		return b.status(ExportSetModule, "", registry.ErrInvalidModule)
	}
	return b.status(ExportSetModule, id, b.ch.Register(id, registry.NewHandle(m)))
}

func (b *Bridge) initRuntime(ctx context.Context, m api.Module) int32 {
	id, ok := identity(m)
	if !ok {
		return b.status(ExportInitRuntime, "", registry.ErrInvalidModule)
	}
	return b.status(ExportInitRuntime, id, b.ch.SignalReady(id))
}

func identity(m api.Module) (registry.ModuleID, bool) {
	if m == nil || m.Name() == "" {
		return "", false
	}
	return registry.ModuleID(m.Name()), true
}

func (b *Bridge) status(fn string, id registry.ModuleID, err error) int32 {
	if err == nil {
		b.logger.Trace("handshake", "fn", fn, "module", id)
		return StatusOK
	}

	code := Status(err)
	b.logger.Error("handshake rejected", "fn", fn, "module", id, "status", code, "error", err)
	return code
}

// Status maps a registration error to the code returned to the guest.
func Status(err error) int32 {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, registry.ErrDuplicateRegistration):
		return StatusDuplicateRegistration
	case errors.Is(err, registry.ErrUnknownTarget):
		return StatusUnknownTarget
	case errors.Is(err, registry.ErrNotRegistered):
		return StatusNotRegistered
	case errors.Is(err, registry.ErrDuplicateReady):
		return StatusDuplicateReady
	default:
		return StatusInvalidCaller
	}
}
