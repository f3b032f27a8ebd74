package kernel

import (
	"io"
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

// DefaultInit is the program the entry point runs.
const DefaultInit = "/bin/busybox"

// Option configures a Kernel at creation time.
type Option func(*config)

type config struct {
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32 // 0 = wazero default (4GB)
	init             string
	args             []string
	env              map[string]string
	stdout           io.Writer
	stdin            io.Reader
	logger           hclog.Logger
}

func defaultConfig() config {
	return config{
		init:   DefaultInit,
		args:   []string{"hush"},
		env:    map[string]string{"USER": "snail", "HOME": "/home/snail"},
		stdout: os.Stdout,
		stdin:  os.Stdin,
	}
}

// WithDiskCache enables a persistent compilation cache. An empty dir uses
// XDG_CACHE_HOME/snail or ~/.cache/snail.
func WithDiskCache(dir string) Option {
	return func(c *config) {
		c.diskCache = true
		c.cacheDir = dir
	}
}

// WithMemoryLimit caps every module's memory, in 64KB pages.
// Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) Option {
	return func(c *config) {
		c.memoryLimitPages = pages
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16    // 1 MB
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)

// WithInit sets the program the entry point executes and its arguments.
func WithInit(path string, args ...string) Option {
	return func(c *config) {
		c.init = path
		c.args = args
	}
}

// WithEnv adds an environment variable visible to every program.
func WithEnv(key, value string) Option {
	return func(c *config) {
		c.env[key] = value
	}
}

// WithStdio sets the streams the terminal is opened on.
func WithStdio(out io.Writer, in io.Reader) Option {
	return func(c *config) {
		c.stdout = out
		c.stdin = in
	}
}

// WithLogger sets the kernel logger.
func WithLogger(l hclog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
