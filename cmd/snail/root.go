package main

import (
	"fmt"
	"os"
	"strings"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/snailos/snail/internal/config"
	"github.com/snailos/snail/internal/log"
	"github.com/snailos/snail/kernel"
)

var rootCmd = &cobra.Command{
	Use:   "snail",
	Short: "Boot the snail OS on a WebAssembly host",
	Long: `snail - a multi-module WebAssembly pseudo-OS.

Boots the process manager with a terminal, layout, deferred factory and
dynamic loader, then runs the init program from the bin directory. Programs
are WebAssembly modules that register with the process manager through the
"os" host module.

Settings are read from a TOML file (--config), then SNAIL_BUILD_MODE,
SNAIL_BIN_DIR, SNAIL_INIT, SNAIL_CACHE_DIR, SNAIL_LOG_FILE and
SNAIL_DEBUG_ADDR; flags take precedence.`,
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
	RunE:              runBoot, // Default to boot command behavior
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "TOML configuration file")
	rootCmd.PersistentFlags().String("bin", "", "Directory mounted at /bin (default $SNAIL_BIN_DIR or ./bin)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")

	addBootFlags(rootCmd)
}

func setupLogging(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		return nil
	}
	l := hclog.LevelFromString(level)
	if l == hclog.NoLevel {
		return fmt.Errorf("invalid log level %q", level)
	}
	log.L.SetLevel(l)
	return nil
}

func loadConfig(cmd *cobra.Command) (config.Host, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func parseMemoryLimit(s string) (uint32, error) {
	switch strings.ToLower(s) {
	case "", "0":
		return 0, nil
	case "1mb":
		return kernel.MemoryLimit1MB, nil
	case "16mb":
		return kernel.MemoryLimit16MB, nil
	case "64mb":
		return kernel.MemoryLimit64MB, nil
	case "256mb":
		return kernel.MemoryLimit256MB, nil
	case "1gb":
		return kernel.MemoryLimit1GB, nil
	default:
		return 0, fmt.Errorf("invalid memory limit %q (expected 1mb, 16mb, 64mb, 256mb or 1gb)", s)
	}
}
