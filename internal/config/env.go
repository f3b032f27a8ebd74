// Package config loads host configuration.
//
// Values are layered: built-in defaults, then an optional TOML file, then
// environment variables. Command-line flags are applied by the caller on
// top of the result.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	toml "github.com/pelletier/go-toml/v2"
)

// Host is the configuration of a snail host process.
type Host struct {
	BuildMode    string `toml:"build_mode" env:"SNAIL_BUILD_MODE"`
	BinDir       string `toml:"bin_dir" env:"SNAIL_BIN_DIR"`
	Init         string `toml:"init" env:"SNAIL_INIT"`
	CacheDir     string `toml:"cache_dir" env:"SNAIL_CACHE_DIR"`
	LogFile      string `toml:"log_file" env:"SNAIL_LOG_FILE"`
	DebugAddr    string `toml:"debug_addr" env:"SNAIL_DEBUG_ADDR"`
	OTelEndpoint string `toml:"otel_endpoint" env:"SNAIL_OTEL_ENDPOINT"`
}

// Defaults returns the built-in configuration.
func Defaults() Host {
	return Host{
		BuildMode: "fastbuild",
		BinDir:    "./bin",
		Init:      "/bin/busybox",
	}
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseFile decodes a TOML file into target. Unknown keys are an error.
func ParseFile(path string, target any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Load layers defaults, the file at path (if any) and the environment.
func Load(path string) (Host, error) {
	h := Defaults()
	if path != "" {
		if err := ParseFile(path, &h); err != nil {
			return Host{}, err
		}
	}
	if err := ParseEnv(&h); err != nil {
		return Host{}, err
	}
	return h, nil
}
