// Package inspect is a named-value surface for interactive inspection of a
// running system, the host's analogue of a global debugging hook.
package inspect

import (
	"sort"
	"sync"
)

// Surface holds exposed values by name.
type Surface struct {
	mu     sync.RWMutex
	values map[string]any
}

// New returns an empty surface.
func New() *Surface {
	return &Surface{values: make(map[string]any)}
}

var def = New()

// Default returns the process-wide surface.
func Default() *Surface {
	return def
}

// Expose publishes v under name, replacing any earlier value.
func (s *Surface) Expose(name string, v any) {
	s.mu.Lock()
	s.values[name] = v
	s.mu.Unlock()
}

// Lookup returns the value exposed under name.
func (s *Surface) Lookup(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Withdraw removes name.
func (s *Surface) Withdraw(name string) {
	s.mu.Lock()
	delete(s.values, name)
	s.mu.Unlock()
}

// Names returns the exposed names, sorted.
func (s *Surface) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Expose publishes v on the default surface.
func Expose(name string, v any) { def.Expose(name, v) }

// Lookup reads from the default surface.
func Lookup(name string) (any, bool) { return def.Lookup(name) }

// Withdraw removes name from the default surface.
func Withdraw(name string) { def.Withdraw(name) }

// Names lists the default surface.
func Names() []string { return def.Names() }
