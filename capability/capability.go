// Package capability assembles the fixed set of host facilities handed to
// the OS module at boot.
//
// A Bundle is assembled once from a Spec of host-side constructors and is
// immutable afterwards. Constructors run eagerly during Assemble, but
// nothing is attached: opening the terminal and fitting the layout are the
// OS module's responsibility.
package capability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"

	"github.com/snailos/snail/deferred"
	"github.com/snailos/snail/loader"
)

// ErrConfiguration matches every assembly failure.
var ErrConfiguration = errors.New("capability configuration")

// ErrMissing is the cause recorded for absent constructors.
var ErrMissing = errors.New("missing")

// Terminal is the display/input surface.
type Terminal interface {
	io.ReadWriter
	Open(out io.Writer, in io.Reader) error
	Writeln(s string) error
	ReadLine() (string, error)
	Close() error
}

// Layout fits the terminal to its available display area.
type Layout interface {
	Fit() error
}

// DeferredFactory produces resolve/reject pairs.
type DeferredFactory func() *deferred.Deferred[any]

// Spec describes how to construct a bundle.
type Spec struct {
	NewTerminal func() (Terminal, error)
	NewLayout   func(Terminal) (Layout, error)
	Deferred    DeferredFactory
	Loader      loader.Func
	BuildMode   string

	// Extra carries additional named capabilities.
	Extra map[string]any
}

// Bundle is the assembled set of capabilities. The zero value is unusable.
type Bundle struct {
	terminal Terminal
	layout   Layout
	deferred DeferredFactory
	loader   loader.Func
	mode     Mode
	extra    map[string]any
}

// ConfigurationError names the bundle field that could not be assembled.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("assemble capabilities: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() []error {
	return []error{ErrConfiguration, e.Err}
}

func configErr(field string, err error) error {
	return &ConfigurationError{Field: field, Err: err}
}

// Assemble builds a bundle from spec.
func Assemble(spec Spec) (Bundle, error) {
	switch {
	case spec.NewTerminal == nil:
		return Bundle{}, configErr("terminal", ErrMissing)
	case spec.NewLayout == nil:
		return Bundle{}, configErr("layout", ErrMissing)
	case spec.Deferred == nil:
		return Bundle{}, configErr("deferred", ErrMissing)
	case spec.Loader == nil:
		return Bundle{}, configErr("loader", ErrMissing)
	}

	mode, err := ParseMode(spec.BuildMode)
	if err != nil {
		return Bundle{}, configErr("mode", err)
	}

	t, err := spec.NewTerminal()
	if err != nil {
		return Bundle{}, configErr("terminal", err)
	}
	if t == nil {
		return Bundle{}, configErr("terminal", ErrMissing)
	}

	l, err := spec.NewLayout(t)
	if err != nil {
		return Bundle{}, configErr("layout", err)
	}
	if l == nil {
		return Bundle{}, configErr("layout", ErrMissing)
	}

	return Bundle{
		terminal: t,
		layout:   l,
		deferred: spec.Deferred,
		loader:   spec.Loader,
		mode:     mode,
		extra:    maps.Clone(spec.Extra),
	}, nil
}

// Terminal returns the terminal surface.
func (b Bundle) Terminal() Terminal { return b.terminal }

// Layout returns the layout-fit helper.
func (b Bundle) Layout() Layout { return b.layout }

// Deferred returns the deferred factory.
func (b Bundle) Deferred() DeferredFactory { return b.deferred }

// NewDeferred calls the deferred factory.
func (b Bundle) NewDeferred() *deferred.Deferred[any] { return b.deferred() }

// Loader returns the dynamic loader.
func (b Bundle) Loader() loader.Func { return b.loader }

// Load calls the dynamic loader.
func (b Bundle) Load(ctx context.Context, id string) deferred.Pending[*loader.Module] {
	return b.loader(ctx, id)
}

// Mode returns the build mode.
func (b Bundle) Mode() Mode { return b.mode }

// Extra returns the named additional capability.
func (b Bundle) Extra(name string) (any, bool) {
	v, ok := b.extra[name]
	return v, ok
}
