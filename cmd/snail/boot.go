package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/snailos/snail/boot"
	"github.com/snailos/snail/capability"
	"github.com/snailos/snail/deferred"
	"github.com/snailos/snail/eventloop"
	"github.com/snailos/snail/inspect"
	"github.com/snailos/snail/internal/config"
	"github.com/snailos/snail/internal/debughttp"
	"github.com/snailos/snail/internal/log"
	"github.com/snailos/snail/internal/telemetry"
	"github.com/snailos/snail/kernel"
	"github.com/snailos/snail/loader"
	"github.com/snailos/snail/term"
)

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Boot the OS and run init",
	Long: `Boot the OS: assemble the capability bundle, hand it to the process
manager on the next loop turn, and run init until it exits.

Examples:
  snail boot --bin ./out/bin
  snail boot --mode dbg --init /bin/busybox --arg hush
  SNAIL_BUILD_MODE=opt snail boot`,
	Args: cobra.NoArgs,
	RunE: runBoot,
}

func init() {
	addBootFlags(bootCmd)
	rootCmd.AddCommand(bootCmd)
}

func addBootFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", "", "Build mode: dbg, fastbuild, opt (default $SNAIL_BUILD_MODE or fastbuild)")
	cmd.Flags().String("init", "", "Program to run at boot (default $SNAIL_INIT or /bin/busybox)")
	cmd.Flags().StringArray("arg", nil, "Argument passed to init (repeatable)")
	cmd.Flags().Bool("no-cache", false, "Disable compilation cache")
	cmd.Flags().String("memory", "", "Memory limit: 1mb, 16mb, 64mb, 256mb, 1gb")
	cmd.Flags().String("history", "", "Readline history file")
	cmd.Flags().String("debug-addr", "", "Serve metrics and module state on this address (default $SNAIL_DEBUG_ADDR)")
}

type bootOptions struct {
	mode      string
	binDir    string
	init      string
	args      []string
	noCache   bool
	memory    uint32
	history   string
	debugAddr string
	host      config.Host
}

func loadBootOptions(cmd *cobra.Command) (bootOptions, error) {
	host, err := loadConfig(cmd)
	if err != nil {
		return bootOptions{}, err
	}

	opts := bootOptions{
		mode:      host.BuildMode,
		binDir:    host.BinDir,
		init:      host.Init,
		debugAddr: host.DebugAddr,
		host:      host,
	}

	if v, _ := cmd.Flags().GetString("mode"); v != "" {
		opts.mode = v
	}
	if v, _ := cmd.Flags().GetString("bin"); v != "" {
		opts.binDir = v
	}
	if v, _ := cmd.Flags().GetString("init"); v != "" {
		opts.init = v
	}
	opts.args, _ = cmd.Flags().GetStringArray("arg")
	if len(opts.args) == 0 && opts.init == kernel.DefaultInit {
		opts.args = []string{"hush"}
	}
	opts.noCache, _ = cmd.Flags().GetBool("no-cache")
	opts.history, _ = cmd.Flags().GetString("history")
	if v, _ := cmd.Flags().GetString("debug-addr"); v != "" {
		opts.debugAddr = v
	}

	memory, _ := cmd.Flags().GetString("memory")
	if opts.memory, err = parseMemoryLimit(memory); err != nil {
		return bootOptions{}, err
	}
	return opts, nil
}

func runBoot(cmd *cobra.Command, args []string) error {
	opts, err := loadBootOptions(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if opts.host.LogFile != "" {
		f := log.ToFile(opts.host.LogFile)
		defer f.Close()
	}

	shutdown, err := telemetry.Setup(ctx, "snail", opts.host.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer shutdown(context.Background())

	kernelOpts := []kernel.Option{
		kernel.WithStdio(cmd.OutOrStdout(), cmd.InOrStdin()),
		kernel.WithInit(opts.init, opts.args...),
	}
	if !opts.noCache {
		kernelOpts = append(kernelOpts, kernel.WithDiskCache(opts.host.CacheDir))
	}
	if opts.memory > 0 {
		kernelOpts = append(kernelOpts, kernel.WithMemoryLimit(opts.memory))
	}

	k, err := kernel.New(kernelOpts...)
	if err != nil {
		return err
	}
	defer k.Close()

	var loaderOpts []loader.Option
	if opts.noCache {
		loaderOpts = append(loaderOpts, loader.WithoutCache())
	}
	l, err := loader.New(k.Runtime(), os.DirFS(opts.binDir), loaderOpts...)
	if err != nil {
		return err
	}

	if opts.debugAddr != "" {
		h := debughttp.New(inspect.Default(), k.Registry())
		go func() {
			if err := debughttp.Serve(ctx, opts.debugAddr, h, nil); err != nil {
				log.L.Error("debug server failed", "addr", opts.debugAddr, "error", err)
			}
		}()
	}

	var termOpts []term.Option
	if opts.history != "" {
		termOpts = append(termOpts, term.WithHistoryFile(opts.history))
	}

	loop := eventloop.New()
	host := &boot.Host{Loop: loop, Instance: k}
	s, err := host.Boot(ctx, capability.Spec{
		NewTerminal: capability.NewTerminal(termOpts...),
		NewLayout:   capability.NewLayout(term.DefaultDimensions),
		Deferred:    deferred.Factory,
		Loader:      l.Func(),
		BuildMode:   opts.mode,
	}, k.Entry)
	if err != nil {
		return err
	}

	go func() {
		<-s.Done()
		loop.Stop()
	}()
	if err := loop.Run(ctx); err != nil {
		return err
	}
	return s.Err()
}
