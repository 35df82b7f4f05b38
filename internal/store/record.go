package store

import (
	"fmt"
	"path/filepath"
	"time"

	"wasmtriage/internal/dedup"
	"wasmtriage/internal/signature"
)

// RecordPlan saves the buckets a dedup scan produced as a new run.
func RecordPlan(s Store, plan *dedup.Plan, started time.Time) (*Run, error) {
	dir, err := filepath.Abs(plan.Dir)
	if err != nil {
		dir = plan.Dir
	}
	idx := plan.Index.Buckets()
	run := &Run{
		Dir:        dir,
		StartedAt:  started,
		Scanned:    plan.Scanned,
		Unique:     len(idx),
		Incomplete: len(plan.Incomplete),
		Errors:     len(plan.Errors),
	}
	buckets := make([]Bucket, 0, len(idx))
	for _, b := range idx {
		var cats []string
		for _, c := range signature.Categories(b.Body) {
			cats = append(cats, string(c))
		}
		buckets = append(buckets, Bucket{Representative: b.ID, Signature: b.Body, Categories: cats})
	}
	if _, err := s.SaveRun(run, buckets); err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}
	return run, nil
}
