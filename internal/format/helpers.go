package format

import (
	"math"

	"github.com/dustin/go-humanize"
)

// Bytes formats a byte count with a binary unit suffix. Fractional
// values such as means are rounded first.
func Bytes(n float64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(math.Round(-n)))
	}
	return humanize.IBytes(uint64(math.Round(n)))
}

// Truncate shortens s to maxLen bytes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
