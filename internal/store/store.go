// Package store keeps an optional catalog of dedup runs and the
// signature buckets each run found.
package store

import (
	"errors"
	"time"
)

// DefaultDBPath is the catalog location used when --db is given without a value.
const DefaultDBPath = ".wasmtriage/catalog.db"

// ErrNoRuns is returned by LatestRun on an empty catalog.
var ErrNoRuns = errors.New("store: no runs recorded")

// Run is one dedup pass over a corpus directory.
type Run struct {
	ID         int64
	Dir        string
	StartedAt  time.Time
	Scanned    int
	Unique     int
	Incomplete int
	Errors     int
}

// Bucket is one unique signature within a run.
type Bucket struct {
	RunID int64
	// Representative is the record ID whose file holds the bucket.
	Representative string
	Signature      string
	// Categories lists the distinct category labels in the signature.
	Categories []string
}

// Store is the catalog facade. SqlStore persists to SQLite; MemStore is
// for tests and dry runs.
type Store interface {
	// SaveRun stores the run and its buckets atomically and returns the run ID.
	SaveRun(run *Run, buckets []Bucket) (int64, error)
	GetRun(id int64) (*Run, error)
	LatestRun() (*Run, error)
	ListRuns() ([]*Run, error)
	ListBuckets(runID int64) ([]Bucket, error)
	// FindSignature returns every bucket, across runs, with this exact
	// signature, oldest run first.
	FindSignature(signature string) ([]Bucket, error)
	Close() error
}
