// Package loader is the dynamic loader capability: it turns an executable
// path into a compiled module, asynchronously.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/tetratelabs/wazero"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/snailos/snail/deferred"
	"github.com/snailos/snail/internal/log"
	"github.com/snailos/snail/internal/metrics"
	"github.com/snailos/snail/internal/telemetry"
)

// ErrModuleNotFound is the rejection reason for identifiers that resolve to
// nothing.
var ErrModuleNotFound = errors.New("module not found")

// Func is the loader capability. It never fails synchronously; every
// outcome arrives through the returned pending value.
type Func func(ctx context.Context, id string) deferred.Pending[*Module]

// Module is a resolved and compiled executable.
type Module struct {
	ID       string
	Path     string
	Digest   string
	Compiled wazero.CompiledModule
}

// Loader resolves executables from a BinFS and compiles them with a runtime.
type Loader struct {
	rt     wazero.Runtime
	bin    *BinFS
	cache  *Cache
	logger hclog.Logger
}

type config struct {
	mount     string
	cacheSize int
	noCache   bool
	logger    hclog.Logger
}

// Option configures a Loader.
type Option func(*config)

// WithMount sets the mount point executables are resolved under.
func WithMount(mount string) Option {
	return func(c *config) {
		c.mount = mount
	}
}

// WithCacheSize sets how many compiled modules are kept.
func WithCacheSize(n int) Option {
	return func(c *config) {
		c.cacheSize = n
	}
}

// WithoutCache compiles on every load.
func WithoutCache() Option {
	return func(c *config) {
		c.noCache = true
	}
}

// WithLogger sets the loader logger.
func WithLogger(l hclog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// New returns a loader compiling with rt the images found in files.
func New(rt wazero.Runtime, files fs.FS, opts ...Option) (*Loader, error) {
	cfg := config{mount: DefaultMount, cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	l := &Loader{
		rt:     rt,
		bin:    NewBinFS(files, cfg.mount),
		logger: log.Named(cfg.logger, "loader"),
	}
	if !cfg.noCache {
		cache, err := NewCache(cfg.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create loader cache: %w", err)
		}
		l.cache = cache
	}
	return l, nil
}

// Func returns the loader as a capability.
func (l *Loader) Func() Func {
	return l.Load
}

// BinFS returns the filesystem executables are resolved from.
func (l *Loader) BinFS() *BinFS {
	return l.bin
}

// List returns every resolvable executable path.
func (l *Loader) List() ([]string, error) {
	return l.bin.List()
}

// Load resolves id on its own goroutine.
func (l *Loader) Load(ctx context.Context, id string) deferred.Pending[*Module] {
	d := deferred.New[*Module]()
	go func() {
		m, err := l.resolve(ctx, id)
		if err != nil {
			d.Reject(err)
			return
		}
		d.Resolve(m)
	}()
	return d.Pending()
}

func (l *Loader) resolve(ctx context.Context, id string) (*Module, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "snail.loader.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("snail.module", id))

	m, err := l.compile(ctx, id)
	if err != nil {
		if errors.Is(err, ErrModuleNotFound) {
			metrics.LoaderLookups.WithLabelValues(metrics.LookupNotFound).Inc()
		} else {
			metrics.LoaderLookups.WithLabelValues(metrics.LookupError).Inc()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Debug("load failed", "module", id, "error", err)
		return nil, err
	}
	return m, nil
}

func (l *Loader) compile(ctx context.Context, id string) (*Module, error) {
	name, ok := l.bin.Resolve(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}

	image, err := fs.ReadFile(l.bin.files, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, id)
		}
		return nil, fmt.Errorf("read %s: %w", id, err)
	}

	key := Digest(image)
	if l.cache != nil {
		if compiled, ok := l.cache.Lookup(key); ok {
			l.logger.Trace("cache hit", "module", id, "key", key)
			metrics.LoaderLookups.WithLabelValues(metrics.LookupHit).Inc()
			return &Module{ID: id, Path: name, Digest: key, Compiled: compiled}, nil
		}
	}

	compiled, err := l.rt.CompileModule(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", id, err)
	}
	if l.cache != nil {
		l.cache.Set(key, compiled)
	}
	metrics.LoaderLookups.WithLabelValues(metrics.LookupMiss).Inc()

	l.logger.Debug("module compiled", "module", id, "key", key)
	return &Module{ID: id, Path: name, Digest: key, Compiled: compiled}, nil
}

// CacheLen returns the number of cached compiled modules.
func (l *Loader) CacheLen() int {
	if l.cache == nil {
		return 0
	}
	return l.cache.Len()
}
