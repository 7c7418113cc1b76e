package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rosdecode/internal/index"
	"rosdecode/internal/report"
	"rosdecode/internal/server"
	"rosdecode/pkg/ctout"
	"rosdecode/pkg/tlout"
)

func (a *app) newSummaryCmd() *cobra.Command {
	var (
		kind     string
		revision string
		html     bool
	)
	cmd := &cobra.Command{
		Use:   "summary FILE",
		Short: "Summarize a tlout or ctout file as Markdown or HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.resolvePath(args[0])
			k, err := kindOf(kind, path)
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			title := filepath.Base(path)
			var md string
			switch k {
			case "tlout":
				rev, err := a.tloutRevision(revision)
				if err != nil {
					return err
				}
				r, err := tlout.NewReader(f, rev, a.cfg.TloutOptions()...)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				s, err := report.SummarizeTimelines(cmd.Context(), r)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				md = report.TimelineMarkdown(title, s)
			case "ctout":
				rev, err := a.ctoutRevision(revision)
				if err != nil {
					return err
				}
				records, err := ctout.Decode(f, rev)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				md = report.ContactMarkdown(title, report.SummarizeContacts(rev, records))
			}

			if html {
				md = report.HTML(md)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), md)
			return err
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "File kind tlout or ctout (default: by extension)")
	cmd.Flags().StringVar(&revision, "revision", "", "Format revision v1 or v2 (default: from the environment or v2)")
	cmd.Flags().BoolVar(&html, "html", false, "Write sanitized HTML instead of Markdown")
	return cmd
}

func (a *app) newIndexCmd() *cobra.Command {
	var (
		dbPath   string
		revision string
	)
	cmd := &cobra.Command{
		Use:   "index FILE...",
		Short: "Store per-path summaries of tlout files in an index database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rev, err := a.tloutRevision(revision)
			if err != nil {
				return err
			}
			store, err := index.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, arg := range args {
				meta, err := store.IndexTimelines(cmd.Context(), a.resolvePath(arg), rev, a.cfg.TloutOptions()...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d paths\n", meta.Path, meta.Records)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Index database file")
	cmd.Flags().StringVar(&revision, "revision", "", "Format revision v1 or v2 (default: $ROSDECODE_TLOUT_REVISION or v2)")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func (a *app) newPathsCmd() *cobra.Command {
	var (
		dbPath string
		filter index.Filter
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "paths FILE",
		Short: "List indexed paths of a tlout file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := index.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			paths, err := store.Paths(a.resolvePath(args[0]), filter)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, p := range paths {
					if err := enc.Encode(p); err != nil {
						return err
					}
				}
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tBINS\tT0\tEXTINCT\tMAXED\tNEW\tPEAK")
			for _, p := range paths {
				fmt.Fprintf(tw, "%d\t%d\t%d\t%t\t%t\t%d\t%d\n",
					p.Index, p.Bins, p.T0Index, p.Extinct, p.MaxedOut, p.TotalNewInfections, p.PeakActive)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Index database file")
	cmd.Flags().BoolVar(&filter.ExtinctOnly, "extinct", false, "Only paths that went extinct")
	cmd.Flags().BoolVar(&filter.MaxedOutOnly, "maxed-out", false, "Only paths that hit the infection cap")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON lines instead of a table")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func (a *app) newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reports and record streams for the data directory",
		Long: `Serve the files of the data directory over HTTP.

  GET /                        JSON list of .tlout and .ctout files
  GET /files/{name}/report     HTML summary
  GET /ws/tlout/{name}         websocket stream of timeline records
  GET /ws/ctout/{name}         websocket stream of contact records`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := server.New(a.cfg)
			if err != nil {
				return err
			}
			return srv.Start(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:22123", "Address to listen on")
	return cmd
}
