// Package snail is the boot and interop layer of a multi-module
// WebAssembly pseudo-OS hosted by a Go process.
//
// # Boot
//
// The host assembles a [capability.Bundle] (terminal, layout-fit helper,
// deferred factory, dynamic loader and build mode) and hands it to the OS
// entry point on the next turn of an [eventloop.Loop]:
//
//	k, _ := kernel.New()
//	defer k.Close()
//
//	l, _ := loader.New(k.Runtime(), os.DirFS("./bin"))
//	host := &boot.Host{Loop: eventloop.New(), Instance: k}
//	s, err := host.Boot(ctx, capability.Spec{
//	    NewTerminal: capability.NewTerminal(),
//	    NewLayout:   capability.NewLayout(term.DefaultDimensions),
//	    Deferred:    deferred.Factory,
//	    Loader:      l.Func(),
//	    BuildMode:   "dbg",
//	}, k.Entry)
//
// Outside opt builds the OS instance is also exposed on the [inspect]
// surface under "os".
//
// # Module registration
//
// Wrapped modules import the "os" host module defined by [bridge]. They call
// os.set_module from their start function to publish their heap, and
// os.init_runtime once their own runtime is initialised. The process manager
// reads both through a [registry.Registry]; a module's heap can only be
// dereferenced once it is Ready.
//
// See the [boot], [capability], [registry], [bridge] and [kernel] packages
// for details.
package snail
