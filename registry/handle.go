package registry

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// Heap is whatever exposes a wrapped module's linear memory and call
// surface. A wazero api.Module satisfies it. Implementations must be
// comparable; pointer types are.
type Heap interface {
	Name() string
	Memory() api.Memory
	ExportedFunction(name string) api.Function
}

// Handle is a non-owning reference to a wrapped module's heap. It cannot be
// dereferenced: memory and calls are only reachable through a ReadyHandle.
type Handle struct {
	heap Heap
}

// NewHandle wraps h as a raw handle.
func NewHandle(h Heap) Handle {
	return Handle{heap: h}
}

// IsZero reports whether the handle refers to nothing.
func (h Handle) IsZero() bool {
	return h.heap == nil
}

// Same reports whether both handles refer to the same heap.
func (h Handle) Same(other Handle) bool {
	return h.heap == other.heap
}

func (h Handle) String() string {
	if h.heap == nil {
		return "handle(nil)"
	}
	return fmt.Sprintf("handle(%s)", h.heap.Name())
}

// ReadyHandle is a handle whose module has signalled readiness.
type ReadyHandle struct {
	id   ModuleID
	heap Heap
}

// ID returns the module identity the handle was registered under.
func (h ReadyHandle) ID() ModuleID {
	return h.id
}

// Handle returns the raw handle behind h.
func (h ReadyHandle) Handle() Handle {
	return Handle{heap: h.heap}
}

// IsZero reports whether h was not obtained from a registry.
func (h ReadyHandle) IsZero() bool {
	return h.heap == nil
}

// Memory returns the module's linear memory, or nil if it exports none or h
// is the zero handle.
func (h ReadyHandle) Memory() api.Memory {
	if h.heap == nil {
		return nil
	}
	return h.heap.Memory()
}

// Call invokes an exported function of the module.
func (h ReadyHandle) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	if h.heap == nil {
		return nil, fmt.Errorf("call %s: %w", name, ErrNotReady)
	}
	fn := h.heap.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("call %s.%s: %w", h.id, name, ErrNoSuchExport)
	}
	return fn.Call(ctx, params...)
}
