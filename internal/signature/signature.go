// Package signature reduces one raw diagnostic record to the canonical
// string used as a deduplication key.
package signature

import (
	"strings"

	"wasmtriage/internal/normalize"
)

// NoiseMarker flags lines that never take part in a signature.
const NoiseMarker = "DIFF"

// Record is one raw capture: the ordered lines of a single test execution.
type Record struct {
	SourceID string
	Lines    []string
}

// Signature is the normalized form of a Record.
type Signature struct {
	ID      string
	Body    string
	Aliases map[string]string
}

// Build normalizes rec. ok is false when nothing survives filtering; an
// empty body is never a valid bucket.
func Build(rec Record) (Signature, bool) {
	aliases := normalize.NewAliasTable()
	var block []string
	for _, line := range rec.Lines {
		line = strings.TrimSpace(line)
		if strings.Contains(line, NoiseMarker) {
			continue
		}
		block = append(block, normalize.Line(line, aliases))
	}
	body := strings.TrimSpace(strings.Join(block, "\n"))
	if body == "" {
		return Signature{ID: rec.SourceID}, false
	}
	return Signature{ID: rec.SourceID, Body: body, Aliases: aliases.Map()}, true
}

// SplitLines splits text into lines the way a line reader counts them:
// "\n", "\r\n" and a lone "\r" each end a line, and a final terminator
// ends the last line rather than starting a new one. Terminators are kept.
func SplitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
		default:
			continue
		}
		lines = append(lines, text[start:i+1])
		start = i + 1
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

// Categories returns the distinct categories present in a signature body,
// in first-seen order. Lines without a delimiter or with uncategorized
// payloads are ignored.
func Categories(body string) []normalize.Category {
	seen := make(map[normalize.Category]bool)
	var out []normalize.Category
	for _, line := range strings.Split(body, "\n") {
		_, output, ok := normalize.Split(line)
		if !ok {
			continue
		}
		if !normalize.IsCategory(output) {
			continue
		}
		c := normalize.Category(output)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
