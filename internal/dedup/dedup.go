// Package dedup collapses a directory of raw diagnostic records into one
// file per unique normalized signature.
//
// A pass has two phases. Scan reads and classifies every record without
// touching the filesystem; Apply writes the deduped directory and removes
// incomplete records. Run does both.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"

	"wasmtriage/internal/logging"
	"wasmtriage/internal/signature"
)

const (
	// MinLines is the line count below which a record is incomplete.
	MinLines = 10
	// DedupedDir is the subdirectory deduped records are written to.
	DedupedDir = "deduped"
	// RecordExt is the file suffix of raw and deduped records.
	RecordExt = ".txt"
)

// Options tunes a deduplication pass. The zero value is usable.
type Options struct {
	MinLines int
	Workers  int
	Logger   *slog.Logger
}

func (o Options) minLines() int {
	if o.MinLines <= 0 {
		return MinLines
	}
	return o.MinLines
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return 1
	}
	return o.Workers
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return logging.New("dedup")
	}
	return o.Logger
}

// Entry is one raw record as read from disk. Err is set when the file
// could not be read or decoded.
type Entry struct {
	ID    string
	Path  string
	Lines []string
	Err   error
}

// FileError reports a record that could not be read or decoded.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("dedup: %s: %v", e.Path, e.Err) }
func (e *FileError) Unwrap() error { return e.Err }

// Duplicate records a source whose signature was already indexed.
type Duplicate struct {
	ID string
	Of string
}

// Plan is the side-effect-free outcome of a scan.
type Plan struct {
	Dir        string
	Scanned    int
	Index      *Index
	Incomplete []string // paths to remove
	Duplicates []Duplicate
	Empty      []string // ids with nothing left after filtering
	Errors     []FileError
}

// Result is a Plan after Apply.
type Result struct {
	*Plan
	Written []string
	Removed []string
}

// Deduper runs passes with fixed Options.
type Deduper struct {
	Options Options
}

// Run scans dir and applies the result.
func (d *Deduper) Run(ctx context.Context, dir string) (*Result, error) {
	plan, err := Scan(ctx, dir, d.Options)
	if err != nil {
		return nil, err
	}
	return Apply(plan)
}

// RunFiles is Run restricted to the named records (base names with or
// without RecordExt) in dir.
func (d *Deduper) RunFiles(ctx context.Context, dir string, names ...string) (*Result, error) {
	paths := make([]string, 0, len(names))
	for _, n := range names {
		if !strings.HasSuffix(n, RecordExt) {
			n += RecordExt
		}
		paths = append(paths, filepath.Join(dir, n))
	}
	plan, err := ScanFiles(ctx, dir, paths, d.Options)
	if err != nil {
		return nil, err
	}
	return Apply(plan)
}

// Records lists the raw record files directly under dir in lexical order.
func Records(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dedup: list %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != RecordExt {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Scan classifies every record under dir.
func Scan(ctx context.Context, dir string, opts Options) (*Plan, error) {
	paths, err := Records(dir)
	if err != nil {
		return nil, err
	}
	return ScanFiles(ctx, dir, paths, opts)
}

// ScanFiles classifies the given record paths in order. Reading and
// normalization run on up to opts.Workers goroutines; the index is built
// afterwards in path order so the first path always wins a tie.
func ScanFiles(ctx context.Context, dir string, paths []string, opts Options) (*Plan, error) {
	log := opts.logger()
	minLines := opts.minLines()
	outcomes := make([]outcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = evaluate(readEntry(p), minLines)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dedup: scan %s: %w", dir, err)
	}

	plan := merge(dir, outcomes)
	for _, fe := range plan.Errors {
		log.Warn("skipping unreadable record", "path", fe.Path, "error", fe.Err)
	}
	log.Debug("scan complete",
		"dir", dir,
		"scanned", plan.Scanned,
		"unique", plan.Index.Len(),
		"incomplete", len(plan.Incomplete),
		"duplicates", len(plan.Duplicates),
		"errors", len(plan.Errors),
	)
	return plan, nil
}

// Classify builds a Plan from in-memory entries with no I/O.
func Classify(dir string, entries []Entry, minLines int) *Plan {
	if minLines <= 0 {
		minLines = MinLines
	}
	outcomes := make([]outcome, len(entries))
	for i, e := range entries {
		outcomes[i] = evaluate(e, minLines)
	}
	return merge(dir, outcomes)
}

type outcome struct {
	entry      Entry
	incomplete bool
	sig        signature.Signature
	ok         bool
}

func evaluate(e Entry, minLines int) outcome {
	o := outcome{entry: e}
	if e.Err != nil {
		return o
	}
	if len(e.Lines) < minLines {
		o.incomplete = true
		return o
	}
	o.sig, o.ok = signature.Build(signature.Record{SourceID: e.ID, Lines: e.Lines})
	return o
}

func merge(dir string, outcomes []outcome) *Plan {
	plan := &Plan{Dir: dir, Index: NewIndex()}
	for _, o := range outcomes {
		plan.Scanned++
		switch {
		case o.entry.Err != nil:
			plan.Errors = append(plan.Errors, FileError{Path: o.entry.Path, Err: o.entry.Err})
		case o.incomplete:
			plan.Incomplete = append(plan.Incomplete, o.entry.Path)
		case !o.ok:
			plan.Empty = append(plan.Empty, o.entry.ID)
		default:
			if first, added := plan.Index.Add(o.sig.Body, o.sig.ID); !added {
				plan.Duplicates = append(plan.Duplicates, Duplicate{ID: o.sig.ID, Of: first})
			}
		}
	}
	return plan
}

func readEntry(path string) Entry {
	e := Entry{ID: strings.TrimSuffix(filepath.Base(path), RecordExt), Path: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		e.Err = err
		return e
	}
	text, err := Decode(raw)
	if err != nil {
		e.Err = err
		return e
	}
	e.Lines = signature.SplitLines(text)
	return e
}

// Decode maps every byte to the code point of the same value (ISO-8859-1),
// so crash output with arbitrary bytes always decodes.
func Decode(raw []byte) (string, error) {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode latin-1: %w", err)
	}
	return string(out), nil
}

// Apply writes one file per indexed signature to <plan.Dir>/deduped and
// removes incomplete records. It keeps going past individual failures and
// returns them joined.
func Apply(plan *Plan) (*Result, error) {
	res := &Result{Plan: plan}
	out := filepath.Join(plan.Dir, DedupedDir)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return res, fmt.Errorf("dedup: create %s: %w", out, err)
	}

	var errs []error
	for _, b := range plan.Index.Buckets() {
		path := filepath.Join(out, b.ID+RecordExt)
		if err := os.WriteFile(path, []byte(b.Body+"\n"), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("dedup: write %s: %w", path, err))
			continue
		}
		res.Written = append(res.Written, path)
	}
	for _, path := range plan.Incomplete {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("dedup: remove %s: %w", path, err))
			continue
		}
		res.Removed = append(res.Removed, path)
	}
	return res, errors.Join(errs...)
}
