package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"wasmtriage/internal/format"
	"wasmtriage/internal/store"
)

var (
	catalogDB     string
	catalogFormat string
	catalogWidth  int
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the SQLite catalog of dedup runs",
}

var catalogRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded dedup runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		mode, err := format.ParseMode(catalogFormat)
		if err != nil {
			return err
		}
		st, err := openCatalog()
		if err != nil {
			return err
		}
		defer st.Close()
		runs, err := st.ListRuns()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded. Run 'wasmtriage dedup --db' first.")
			return nil
		}
		tb := format.NewTable(mode)
		tb.Header("ID", "Started", "Dir", "Scanned", "Unique", "Incomplete", "Errors")
		for _, r := range runs {
			tb.Row(r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Dir, r.Scanned, r.Unique, r.Incomplete, r.Errors)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tb.String())
		return nil
	},
}

var catalogBucketsCmd = &cobra.Command{
	Use:   "buckets [run-id]",
	Short: "List the signature buckets of a run (latest by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := format.ParseMode(catalogFormat)
		if err != nil {
			return err
		}
		st, err := openCatalog()
		if err != nil {
			return err
		}
		defer st.Close()

		var run *store.Run
		if len(args) == 1 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			run, err = st.GetRun(id)
			if err != nil {
				return err
			}
		} else {
			run, err = st.LatestRun()
			if err != nil {
				return err
			}
		}
		buckets, err := st.ListBuckets(run.ID)
		if err != nil {
			return err
		}

		tb := format.NewTable(mode)
		tb.Header("Representative", "Categories", "Signature")
		for _, b := range buckets {
			first, _, _ := strings.Cut(b.Signature, "\n")
			tb.Row(b.Representative, strings.Join(b.Categories, " "), format.Truncate(first, catalogWidth))
		}
		tb.Footer("TOTAL", len(buckets), "")
		fmt.Fprintf(cmd.OutOrStdout(), "Run %d: %s\n", run.ID, run.Dir)
		fmt.Fprintln(cmd.OutOrStdout(), tb.String())
		return nil
	},
}

func init() {
	pf := catalogCmd.PersistentFlags()
	pf.StringVar(&catalogDB, "db", "", "catalog path (default store.path, then "+store.DefaultDBPath+")")
	pf.StringVar(&catalogFormat, "format", "table", "output format: table, markdown, csv")
	catalogBucketsCmd.Flags().IntVar(&catalogWidth, "width", 60, "truncate the signature's first line to this many bytes")
	catalogCmd.AddCommand(catalogRunsCmd)
	catalogCmd.AddCommand(catalogBucketsCmd)
}

func openCatalog() (*store.SqlStore, error) {
	return store.Open(firstNonEmpty(catalogDB, cfg.Store.Path, store.DefaultDBPath))
}
