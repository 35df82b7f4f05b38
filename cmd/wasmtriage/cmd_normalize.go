package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"wasmtriage/internal/dedup"
	"wasmtriage/internal/format"
	"wasmtriage/internal/signature"
)

var normalizeShowAliases bool

var normalizeCmd = &cobra.Command{
	Use:   "normalize [record.txt]",
	Short: "Print the signature of one record (stdin when no file is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runNormalize,
}

func init() {
	normalizeCmd.Flags().BoolVar(&normalizeShowAliases, "aliases", false, "also print the numeric alias table")
}

func runNormalize(cmd *cobra.Command, args []string) error {
	var (
		raw []byte
		err error
		id  = "stdin"
	)
	if len(args) == 1 {
		id = args[0]
		raw, err = os.ReadFile(args[0])
	} else {
		raw, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("read record: %w", err)
	}
	text, err := dedup.Decode(raw)
	if err != nil {
		return err
	}

	sig, ok := signature.Build(signature.Record{SourceID: id, Lines: signature.SplitLines(text)})
	if !ok {
		return fmt.Errorf("%s: nothing left after filtering", id)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, sig.Body)

	if normalizeShowAliases && len(sig.Aliases) > 0 {
		tb := format.NewTable(format.ASCII)
		tb.Header("Literal", "Alias")
		for _, lit := range sortedByAlias(sig.Aliases) {
			tb.Row(lit, sig.Aliases[lit])
		}
		fmt.Fprintln(out, tb.String())
	}
	return nil
}

// sortedByAlias orders literals by their alias number (num1, num2, ...).
func sortedByAlias(aliases map[string]string) []string {
	byAlias := make([]string, len(aliases))
	for lit, alias := range aliases {
		var n int
		if _, err := fmt.Sscanf(alias, "num%d", &n); err == nil && n >= 1 && n <= len(byAlias) {
			byAlias[n-1] = lit
		}
	}
	return byAlias
}
