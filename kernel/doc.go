// Package kernel is a minimal process manager built on the boot and
// registration layers.
//
// Its entry point opens the terminal it is handed, fits the layout, prints
// the boot banner, and runs the init program as a wrapped module:
//
//	k, _ := kernel.New(kernel.WithInit("/bin/busybox", "hush"))
//	defer k.Close()
//
//	l, _ := loader.New(k.Runtime(), os.DirFS("./bin"))
//	host := &boot.Host{Instance: k}
//	s, _ := host.Boot(ctx, capability.Spec{
//	    NewTerminal: capability.NewTerminal(),
//	    NewLayout:   capability.NewLayout(term.DefaultDimensions),
//	    Deferred:    deferred.Factory,
//	    Loader:      l.Func(),
//	    BuildMode:   "dbg",
//	}, k.Entry)
//
// Every program it starts gets a pid, starting at 2, and is instantiated
// under the module name "<base>.<pid>". The program's heap becomes
// reachable through the kernel's registry once the program has called
// os.set_module and os.init_runtime.
package kernel
