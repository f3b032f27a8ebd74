package capability

import (
	"github.com/snailos/snail/term"
)

// NewTerminal constructs a detached terminal.
func NewTerminal(opts ...term.Option) func() (Terminal, error) {
	return func() (Terminal, error) {
		return term.New(opts...), nil
	}
}

// NewLayout constructs a fit helper bound to t when t is a term.Terminal.
func NewLayout(fallback term.Dimensions) func(Terminal) (Layout, error) {
	return func(t Terminal) (Layout, error) {
		fit := term.NewFit(fallback)
		if tt, ok := t.(*term.Terminal); ok {
			tt.LoadAddon(fit)
		}
		return fit, nil
	}
}
