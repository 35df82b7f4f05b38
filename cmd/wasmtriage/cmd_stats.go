package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"wasmtriage/internal/display"
	"wasmtriage/internal/format"
	"wasmtriage/internal/logging"
	"wasmtriage/internal/stats"
)

var statsFormat string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Corpus statistics",
}

var statsSizesCmd = &cobra.Command{
	Use:   "sizes <dir>",
	Short: "Size distribution of every file under <dir>",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := format.ParseMode(statsFormat)
		if err != nil {
			return err
		}
		s, err := stats.Sizes(args[0], logging.New("stats"))
		if errors.Is(err, stats.ErrNoFiles) {
			fmt.Fprintln(cmd.OutOrStdout(), "No files found.")
			return nil
		}
		if err != nil {
			return err
		}
		tb := format.NewTable(mode)
		tb.Header("Count", "Min", "Max", "Mean", "Median", "SD")
		if mode == format.CSV {
			tb.Row(s.Count, s.Min, s.Max,
				fmt.Sprintf("%.2f", s.Mean), fmt.Sprintf("%.2f", s.Median), fmt.Sprintf("%.2f", s.StdDev))
		} else {
			tb.Row(s.Count, format.Bytes(float64(s.Min)), format.Bytes(float64(s.Max)),
				format.Bytes(s.Mean), format.Bytes(s.Median), format.Bytes(s.StdDev))
		}
		fmt.Fprintln(cmd.OutOrStdout(), tb.String())
		if n := len(s.Skipped); n > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%d entries could not be read\n", n)
		}
		return nil
	},
}

var statsCategoriesCmd = &cobra.Command{
	Use:   "categories <deduped-dir>",
	Short: "Number of distinct signatures per error category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := format.ParseMode(statsFormat)
		if err != nil {
			return err
		}
		h, err := stats.Categories(args[0], logging.New("stats"))
		if err != nil {
			return err
		}
		tb := format.NewTable(mode)
		tb.Header("Category", "Signatures", "Description")
		for _, c := range h.Counts {
			tb.Row(string(c.Category), c.Buckets, display.Category(string(c.Category)))
		}
		tb.Row("none", h.Uncategorized, "Value mismatch only")
		tb.Footer("TOTAL", h.Total, "")
		tb.Columns(format.ColumnConfig{Number: 2, Align: format.AlignRight})
		fmt.Fprintln(cmd.OutOrStdout(), tb.String())
		if n := len(h.Skipped); n > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%d records could not be read\n", n)
		}
		return nil
	},
}

func init() {
	statsCmd.PersistentFlags().StringVar(&statsFormat, "format", "table", "output format: table, markdown, csv")
	statsCmd.AddCommand(statsSizesCmd)
	statsCmd.AddCommand(statsCategoriesCmd)
}
