// Package registry tracks wrapped modules on behalf of the process manager.
//
// # Lifecycle
//
// Every wrapped module moves through three states, strictly in order:
//
//	Uninstantiated -> Registered -> Ready
//
// A module registers a [Handle] to its own heap as soon as it is
// instantiated, before its runtime (allocator, static initialisers) has
// finished setting up. Later it signals readiness exactly once. Only then
// does the registry hand out a [ReadyHandle], the sole type that exposes the
// module's memory and exported functions:
//
//	reg := registry.New()
//	ch := registry.NewChannel(reg)
//
//	ch.Register("shell.2", registry.NewHandle(mod)) // from the module's bridge
//	ch.SignalReady("shell.2")                       // after runtime init
//
//	h, err := reg.Acquire("shell.2")
//	mem := h.Memory()
//
// # Protocol violations
//
// Registering a different handle under a known identity, signalling twice,
// or signalling before registering are programming errors in the wrapped
// module's bridge. They are reported as [*ProtocolError] and recorded on the
// offending entry only; other entries are never touched.
package registry
