// Package normalize classifies single diagnostic lines emitted by
// WebAssembly runtimes into canonical categories or per-record numeric
// aliases, so that captures of the same root cause compare equal.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

// Delimiter separates the line prefix (runtime, function, case) from the
// runtime's output payload. Only the first occurrence splits.
const Delimiter = ":<>:"

var numericToken = regexp.MustCompile(`(?i)^(-?\d+(\.\d+)?|-?inf|-?nan)$`)

// AliasTable maps literal numeric payloads to "num<K>" names in first-seen
// order. One table covers exactly one record.
type AliasTable struct {
	next    int
	aliases map[string]string
	order   []string
}

// NewAliasTable returns an empty table whose first alias is num1.
func NewAliasTable() *AliasTable {
	return &AliasTable{next: 1, aliases: make(map[string]string)}
}

// Alias returns the alias for literal, minting the next one if unseen.
func (t *AliasTable) Alias(literal string) string {
	if a, ok := t.aliases[literal]; ok {
		return a
	}
	a := fmt.Sprintf("num%d", t.next)
	t.next++
	t.aliases[literal] = a
	t.order = append(t.order, literal)
	return a
}

// Next is the counter value the next minted alias will use.
func (t *AliasTable) Next() int { return t.next }

// Len returns the number of aliases minted so far.
func (t *AliasTable) Len() int { return len(t.order) }

// Map returns a copy of literal -> alias.
func (t *AliasTable) Map() map[string]string {
	out := make(map[string]string, len(t.aliases))
	for k, v := range t.aliases {
		out[k] = v
	}
	return out
}

// Literals returns the aliased literals in the order they were first seen.
func (t *AliasTable) Literals() []string {
	return append([]string(nil), t.order...)
}

// IsNumeric reports whether every whitespace-separated token of output is
// an integer, decimal, inf or nan literal. An empty payload is numeric.
func IsNumeric(output string) bool {
	for _, tok := range strings.Fields(output) {
		if !numericToken.MatchString(tok) {
			return false
		}
	}
	return true
}

// Split separates line at the first Delimiter. ok is false when the line
// carries no delimiter.
func Split(line string) (prefix, output string, ok bool) {
	return strings.Cut(line, Delimiter)
}

// Line normalizes one raw line. Lines without a delimiter pass through.
// Numeric payloads are aliased through aliases, which must not be nil.
func Line(line string, aliases *AliasTable) string {
	prefix, output, ok := Split(line)
	if !ok {
		return line
	}
	return prefix + Delimiter + Output(strings.TrimSpace(output), aliases)
}

// Output classifies an already trimmed payload.
func Output(output string, aliases *AliasTable) string {
	if c, ok := Classify(output); ok {
		return string(c)
	}
	if IsNumeric(output) {
		return aliases.Alias(output)
	}
	return output
}
