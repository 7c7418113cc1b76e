package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rosdecode/internal/export"
	"rosdecode/pkg/ctout"
	"rosdecode/pkg/tlout"
)

// errLimitReached stops a tlout decode once --limit records were written.
var errLimitReached = errors.New("record limit reached")

func (a *app) exportFormat(flag string) (export.Format, error) {
	if flag == "" {
		flag = a.cfg.Format
	}
	return export.ParseFormat(flag)
}

func (a *app) newTloutCmd() *cobra.Command {
	var (
		revision string
		format   string
		limit    int
		stats    bool
	)
	cmd := &cobra.Command{
		Use:   "tlout FILE",
		Short: "Decode a timeline file",
		Long: `Decode a timeline file and write one entry per path.

The output format is json (one object per line), cbor (a sequence of
CBOR items) or text (a table). Without --format text is used when
stdout is a terminal, json otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rev, err := a.tloutRevision(revision)
			if err != nil {
				return err
			}
			fmtName, err := a.exportFormat(format)
			if err != nil {
				return err
			}

			path := a.resolvePath(args[0])
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			w, err := export.New(fmtName, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			st := startStats(stats)

			n, err := tlout.DecodeContext(cmd.Context(), f, rev, func(rec *tlout.Record) error {
				if err := w.WriteTimeline(rec); err != nil {
					return err
				}
				if limit > 0 && rec.Index+1 >= limit {
					return errLimitReached
				}
				return nil
			}, a.cfg.TloutOptions()...)
			if errors.Is(err, errLimitReached) {
				// the record that hit the limit was written
				n++
			}
			if ferr := w.Flush(); err == nil {
				err = ferr
			}
			st.report(cmd, n)
			if err != nil && !errors.Is(err, errLimitReached) {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&revision, "revision", "", "Format revision v1 or v2 (default: $ROSDECODE_TLOUT_REVISION or v2)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: json, cbor or text (default: $ROSDECODE_FORMAT or by terminal)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Stop after this many paths, 0 for all")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print resource usage to stderr")
	return cmd
}

func (a *app) newCtoutCmd() *cobra.Command {
	var (
		revision string
		format   string
		stats    bool
	)
	cmd := &cobra.Command{
		Use:   "ctout FILE",
		Short: "Decode a contact tracing file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rev, err := a.ctoutRevision(revision)
			if err != nil {
				return err
			}
			fmtName, err := a.exportFormat(format)
			if err != nil {
				return err
			}

			path := a.resolvePath(args[0])
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			st := startStats(stats)
			records, err := ctout.Decode(f, rev)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			w, err := export.New(fmtName, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			for _, rec := range records {
				if err := w.WriteContact(rec); err != nil {
					return err
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}
			st.report(cmd, len(records))
			return nil
		},
	}
	cmd.Flags().StringVar(&revision, "revision", "", "Record revision v1 or v2 (default: $ROSDECODE_CTOUT_REVISION or v2)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: json, cbor or text (default: $ROSDECODE_FORMAT or by terminal)")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print resource usage to stderr")
	return cmd
}
