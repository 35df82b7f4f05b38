// Package stats summarizes fuzz corpora: file size distributions and the
// category histogram of deduped signatures.
package stats

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"

	"wasmtriage/internal/dedup"
	"wasmtriage/internal/normalize"
	"wasmtriage/internal/signature"
)

// ErrNoFiles is returned by Sizes when the tree holds no regular files.
var ErrNoFiles = errors.New("stats: no files found")

// SizeSummary describes the size distribution of a directory tree.
type SizeSummary struct {
	Count  int
	Min    int64
	Max    int64
	Mean   float64
	Median float64
	// StdDev is the population standard deviation.
	StdDev float64
	// Skipped lists paths whose size could not be read.
	Skipped []string
}

// Sizes walks dir recursively and summarizes regular file sizes.
// Entries that cannot be stat'ed are logged and skipped.
func Sizes(dir string, log *slog.Logger) (*SizeSummary, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("stats: %s is not a directory", dir)
	}

	var sizes []int64
	sum := &SizeSummary{}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			log.Warn("could not read", "path", path, "error", err)
			sum.Skipped = append(sum.Skipped, path)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			log.Warn("could not read", "path", path, "error", err)
			sum.Skipped = append(sum.Skipped, path)
			return nil
		}
		sizes = append(sizes, fi.Size())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stats: walk %s: %w", dir, err)
	}
	if len(sizes) == 0 {
		return sum, ErrNoFiles
	}
	summarize(sum, sizes)
	return sum, nil
}

func summarize(s *SizeSummary, sizes []int64) {
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })
	n := len(sizes)
	s.Count = n
	s.Min = sizes[0]
	s.Max = sizes[n-1]

	var total float64
	for _, v := range sizes {
		total += float64(v)
	}
	s.Mean = total / float64(n)

	if n%2 == 1 {
		s.Median = float64(sizes[n/2])
	} else {
		s.Median = (float64(sizes[n/2-1]) + float64(sizes[n/2])) / 2
	}

	var sq float64
	for _, v := range sizes {
		d := float64(v) - s.Mean
		sq += d * d
	}
	s.StdDev = math.Sqrt(sq / float64(n))
}

// CategoryCount is one histogram row.
type CategoryCount struct {
	Category normalize.Category
	Buckets  int
}

// Histogram counts deduped signatures per category.
type Histogram struct {
	Counts []CategoryCount
	// Uncategorized counts signatures that carry no category line, e.g.
	// pure value mismatches.
	Uncategorized int
	Total         int
	// Skipped lists records that could not be read.
	Skipped []string
}

// Categories reads every deduped record in dir and counts, for each
// category, how many signatures mention it at least once. Rows are
// sorted by count descending, then by name. Unreadable records are
// logged and skipped.
func Categories(dir string, log *slog.Logger) (*Histogram, error) {
	paths, err := dedup.Records(dir)
	if err != nil {
		return nil, err
	}
	counts := make(map[normalize.Category]int)
	h := &Histogram{}
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			log.Warn("could not read", "path", p, "error", err)
			h.Skipped = append(h.Skipped, p)
			continue
		}
		body, err := dedup.Decode(raw)
		if err != nil {
			log.Warn("could not decode", "path", p, "error", err)
			h.Skipped = append(h.Skipped, p)
			continue
		}
		h.Total++
		cats := signature.Categories(body)
		if len(cats) == 0 {
			h.Uncategorized++
			continue
		}
		for _, c := range cats {
			counts[c]++
		}
	}
	for c, n := range counts {
		h.Counts = append(h.Counts, CategoryCount{Category: c, Buckets: n})
	}
	sort.Slice(h.Counts, func(i, j int) bool {
		if h.Counts[i].Buckets != h.Counts[j].Buckets {
			return h.Counts[i].Buckets > h.Counts[j].Buckets
		}
		return h.Counts[i].Category < h.Counts[j].Category
	})
	return h, nil
}
