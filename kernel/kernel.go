package kernel

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/snailos/snail/bridge"
	"github.com/snailos/snail/internal/log"
	"github.com/snailos/snail/registry"
)

// Version is reported in the boot banner.
const Version = "0.1.0"

// ErrClosed is returned by operations on a closed kernel.
var ErrClosed = errors.New("kernel closed")

// Kernel owns the runtime every wrapped module is instantiated in.
type Kernel struct {
	cfg      config
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	registry *registry.Registry
	logger   hclog.Logger

	mu      sync.Mutex
	lastPID int
	procs   map[int]*Process
	closed  bool
}

// New creates a kernel with WASI and the "os" host module instantiated.
func New(opts ...Option) (*Kernel, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()
	logger := log.Named(cfg.logger, "kernel")

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, errors.Wrap(err, "create disk cache")
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	closeAll := func() {
		rt.Close(ctx)
		if cache != nil {
			cache.Close(ctx)
		}
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		closeAll()
		return nil, errors.Wrap(err, "instantiate WASI")
	}

	reg := registry.New(registry.WithLogger(logger.Named("registry")))
	if _, err := bridge.New(reg, bridge.WithLogger(logger.Named("bridge"))).Instantiate(ctx, rt); err != nil {
		closeAll()
		return nil, err
	}

	return &Kernel{
		cfg:      cfg,
		runtime:  rt,
		cache:    cache,
		registry: reg,
		logger:   logger,
		lastPID:  1,
		procs:    make(map[int]*Process),
	}, nil
}

// Runtime returns the runtime programs are compiled and instantiated in.
func (k *Kernel) Runtime() wazero.Runtime {
	return k.runtime
}

// Registry returns the module registry wrapped modules register with.
func (k *Kernel) Registry() *registry.Registry {
	return k.registry
}

// Close releases the runtime and every module instantiated in it.
func (k *Kernel) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil
	}
	k.closed = true

	ctx := context.Background()

	var errs []error
	if err := k.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if k.cache != nil {
		if err := k.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "snail")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "snail")
	}
	return filepath.Join(os.TempDir(), "snail-cache")
}
