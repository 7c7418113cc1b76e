// Package config holds the settings shared by the rosdecode commands. Values
// come from ROSDECODE_* environment variables and are then overridden by
// command line flags.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"rosdecode/pkg/ctout"
	"rosdecode/pkg/tlout"
)

// Environment variable names.
const (
	EnvTloutRevision = "ROSDECODE_TLOUT_REVISION"
	EnvCtoutRevision = "ROSDECODE_CTOUT_REVISION"
	EnvDataDir       = "ROSDECODE_DATA_DIR"
	EnvMaxBins       = "ROSDECODE_MAX_BINS"
	EnvLogLevel      = "ROSDECODE_LOG_LEVEL"
	EnvFormat        = "ROSDECODE_FORMAT"
)

// Config is the resolved configuration.
type Config struct {
	TloutRevision tlout.Revision
	CtoutRevision ctout.Revision
	DataDir       string
	MaxBins       uint32
	LogLevel      slog.Level
	// Format is the export format name; empty means pick one based on
	// whether stdout is a terminal.
	Format string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		TloutRevision: tlout.V2,
		CtoutRevision: ctout.V2,
		DataDir:       ".",
		MaxBins:       tlout.DefaultMaxBinCount,
		LogLevel:      slog.LevelInfo,
	}
}

// Load starts from Default and applies the environment as seen through
// getenv (usually os.Getenv).
func Load(getenv func(string) string) (Config, error) {
	cfg := Default()
	var err error

	if v := getenv(EnvTloutRevision); v != "" {
		if cfg.TloutRevision, err = tlout.ParseRevision(v); err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvTloutRevision, err)
		}
	}
	if v := getenv(EnvCtoutRevision); v != "" {
		if cfg.CtoutRevision, err = ctout.ParseRevision(v); err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvCtoutRevision, err)
		}
	}
	if v := getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := getenv(EnvMaxBins); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvMaxBins, err)
		}
		cfg.MaxBins = uint32(n)
	}
	if v := getenv(EnvLogLevel); v != "" {
		if cfg.LogLevel, err = ParseLevel(v); err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
	}
	cfg.Format = getenv(EnvFormat)
	return cfg, nil
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// TloutOptions returns the reader options implied by the configuration.
func (c Config) TloutOptions() []tlout.Option {
	return []tlout.Option{tlout.WithMaxBinCount(c.MaxBins)}
}

// ResolveDataDir returns dir, or the current directory when dir is empty,
// after checking that it is a directory. With createIfMissing it is created.
func ResolveDataDir(dir string, createIfMissing bool) (string, error) {
	if dir == "" {
		dir = "."
	}
	fi, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) && createIfMissing {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("failed to create data directory: %w", err)
			}
			return dir, nil
		}
		return "", fmt.Errorf("data directory %q: %w", dir, err)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("data directory %q is not a directory", dir)
	}
	return dir, nil
}
