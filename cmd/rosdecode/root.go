package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"rosdecode/internal/config"
	"rosdecode/internal/sysmon"
	"rosdecode/pkg/ctout"
	"rosdecode/pkg/tlout"
)

// app holds the configuration shared by all subcommands once the root
// command has merged environment and flags.
type app struct {
	cfg config.Config

	logLevel string
	dataDir  string
	maxBins  uint32
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "rosdecode",
		Short: "Decode randoutbreaksim tlout and ctout files",
		Long: `rosdecode reads the binary outputs of the randoutbreaksim simulator:
timeline files (.tlout) with per-path infection timelines and contact
tracing files (.ctout) with fixed-size records.

Neither format records its own revision. Pass --revision (or set
ROSDECODE_TLOUT_REVISION / ROSDECODE_CTOUT_REVISION) to match the
simulator that wrote the file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error (default: $ROSDECODE_LOG_LEVEL or info)")
	rootCmd.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "Directory with data files (default: $ROSDECODE_DATA_DIR or .)")
	rootCmd.PersistentFlags().Uint32Var(&a.maxBins, "max-bins", 0, "Reject tlout records with more bins than this, 0 for no limit (default: $ROSDECODE_MAX_BINS or 16777216)")

	rootCmd.AddCommand(
		a.newTloutCmd(),
		a.newCtoutCmd(),
		a.newSummaryCmd(),
		a.newIndexCmd(),
		a.newPathsCmd(),
		a.newServeCmd(),
	)
	return rootCmd
}

// load reads the environment and applies the persistent flags on top.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		if cfg.LogLevel, err = config.ParseLevel(a.logLevel); err != nil {
			return err
		}
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = a.dataDir
	}
	if flags.Changed("max-bins") {
		cfg.MaxBins = a.maxBins
	}
	a.cfg = cfg

	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel})))
	return nil
}

func (a *app) tloutRevision(flag string) (tlout.Revision, error) {
	if flag == "" {
		return a.cfg.TloutRevision, nil
	}
	return tlout.ParseRevision(flag)
}

func (a *app) ctoutRevision(flag string) (ctout.Revision, error) {
	if flag == "" {
		return a.cfg.CtoutRevision, nil
	}
	return ctout.ParseRevision(flag)
}

// resolvePath finds a data file: as given, or else inside the data
// directory.
func (a *app) resolvePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}
	if a.cfg.DataDir != "" {
		candidate := filepath.Join(a.cfg.DataDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return name
}

// kindOf returns tlout or ctout for a file, by flag or by extension.
func kindOf(flag, path string) (string, error) {
	kind := strings.ToLower(flag)
	if kind == "" {
		kind = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch kind {
	case "tlout", "ctout":
		return kind, nil
	}
	return "", fmt.Errorf("cannot tell the file kind of %q, use --kind tlout or --kind ctout", path)
}

// statsRecorder prints resource usage of a command to stderr.
type statsRecorder struct {
	before *sysmon.Stats
}

func startStats(enabled bool) *statsRecorder {
	if !enabled {
		return nil
	}
	s, err := sysmon.Snapshot()
	if err != nil {
		slog.Warn("Process stats unavailable", "error", err)
		return nil
	}
	return &statsRecorder{before: s}
}

func (r *statsRecorder) report(cmd *cobra.Command, records int) {
	if r == nil {
		return
	}
	after, err := sysmon.Snapshot()
	if err != nil {
		slog.Warn("Process stats unavailable", "error", err)
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "records=%d %s\n", records, sysmon.Delta(r.before, after))
}
