package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"wasmtriage/internal/dedup"
	"wasmtriage/internal/display"
	"wasmtriage/internal/format"
	"wasmtriage/internal/logging"
	"wasmtriage/internal/metrics"
	"wasmtriage/internal/store"
)

var (
	dedupWorkers  int
	dedupMinLines int
	dedupDryRun   bool
	dedupDB       string
	dedupFormat   string
	dedupMetrics  string
)

var dedupCmd = &cobra.Command{
	Use:   "dedup <dir>",
	Short: "Collapse a directory of raw records to one file per signature",
	Long: `Reads every *.txt record in <dir>, deletes records shorter than the
line threshold, and writes one file per distinct normalized signature
to <dir>/deduped/, named after the first record (in sorted order) that
produced it. Unreadable records are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runDedup,
}

func init() {
	f := dedupCmd.Flags()
	f.IntVar(&dedupWorkers, "workers", 0, "parallel readers (default from config)")
	f.IntVar(&dedupMinLines, "min-lines", 0, "records with fewer lines are incomplete (default from config)")
	f.BoolVar(&dedupDryRun, "dry-run", false, "scan and report without writing or deleting")
	f.StringVar(&dedupDB, "db", "", "record the run in this SQLite catalog (default store.path)")
	f.StringVar(&dedupFormat, "format", "table", "summary format: table, markdown, csv")
	f.StringVar(&dedupMetrics, "metrics-file", "", "write Prometheus textfile metrics for this run")
}

func runDedup(cmd *cobra.Command, args []string) error {
	mode, err := format.ParseMode(dedupFormat)
	if err != nil {
		return err
	}
	opts := dedup.Options{
		MinLines: cfg.Dedup.MinLines,
		Workers:  cfg.Dedup.Workers,
		Logger:   logging.New("dedup"),
	}
	if dedupWorkers > 0 {
		opts.Workers = dedupWorkers
	}
	if dedupMinLines > 0 {
		opts.MinLines = dedupMinLines
	}

	started := time.Now()
	plan, err := dedup.Scan(cmd.Context(), args[0], opts)
	if err != nil {
		return err
	}
	res := &dedup.Result{Plan: plan}
	var applyErr error
	if !dedupDryRun {
		res, applyErr = dedup.Apply(plan)
	}
	printDedupSummary(cmd.OutOrStdout(), res, mode)

	if dedupMetrics != "" {
		m := metrics.NewDedupRun(args[0])
		m.Observe(plan, time.Since(started), time.Now())
		if err := m.WriteFile(dedupMetrics); err != nil {
			return err
		}
	}

	if dbPath := firstNonEmpty(dedupDB, cfg.Store.Path); dbPath != "" && !dedupDryRun {
		if err := recordRun(dbPath, plan, started); err != nil {
			return err
		}
	}
	return applyErr
}

func printDedupSummary(w io.Writer, res *dedup.Result, mode format.Mode) {
	tb := format.NewTable(mode)
	tb.Header("Outcome", "Count", "Description")
	rows := []struct {
		key string
		n   int
	}{
		{"scanned", res.Scanned},
		{"unique", res.Index.Len()},
		{"duplicates", len(res.Duplicates)},
		{"incomplete", len(res.Incomplete)},
		{"empty", len(res.Empty)},
		{"errors", len(res.Errors)},
	}
	for _, r := range rows {
		tb.Row(r.key, r.n, display.Outcome(r.key))
	}
	tb.Columns(format.ColumnConfig{Number: 2, Align: format.AlignRight})
	fmt.Fprintln(w, tb.String())

	for _, fe := range res.Errors {
		fmt.Fprintf(w, "skipped %s: %v\n", fe.Path, fe.Err)
	}
}

func recordRun(dbPath string, plan *dedup.Plan, started time.Time) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer st.Close()
	run, err := store.RecordPlan(st, plan, started)
	if err != nil {
		return err
	}
	logging.New("catalog").Info("run recorded", "run_id", run.ID, "db", dbPath, "buckets", run.Unique)
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
