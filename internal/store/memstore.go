package store

import (
	"fmt"
	"slices"
	"sync"
)

// MemStore implements Store in memory.
type MemStore struct {
	mu      sync.Mutex
	runs    []*Run
	buckets map[int64][]Bucket
}

// NewMemStore returns an empty in-memory catalog.
func NewMemStore() *MemStore {
	return &MemStore{buckets: make(map[int64][]Bucket)}
}

func (s *MemStore) SaveRun(run *Run, buckets []Bucket) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool, len(buckets))
	for _, b := range buckets {
		if seen[b.Representative] {
			return 0, fmt.Errorf("insert bucket %s: duplicate representative", b.Representative)
		}
		seen[b.Representative] = true
	}
	id := int64(len(s.runs) + 1)
	cp := *run
	cp.ID = id
	cp.StartedAt = cp.StartedAt.UTC()
	s.runs = append(s.runs, &cp)
	stored := make([]Bucket, len(buckets))
	for i, b := range buckets {
		b.RunID = id
		b.Categories = slices.Clone(b.Categories)
		if len(b.Categories) == 0 {
			b.Categories = nil
		}
		stored[i] = b
	}
	s.buckets[id] = stored
	run.ID = id
	return id, nil
}

func (s *MemStore) GetRun(id int64) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 1 || int(id) > len(s.runs) {
		return nil, fmt.Errorf("run %d not found", id)
	}
	cp := *s.runs[id-1]
	return &cp, nil
}

func (s *MemStore) LatestRun() (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.runs) == 0 {
		return nil, ErrNoRuns
	}
	cp := *s.runs[len(s.runs)-1]
	return &cp, nil
}

func (s *MemStore) ListRuns() ([]*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*Run
	for _, r := range s.runs {
		cp := *r
		list = append(list, &cp)
	}
	return list, nil
}

func (s *MemStore) ListBuckets(runID int64) ([]Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.buckets[runID]), nil
}

func (s *MemStore) FindSignature(signature string) ([]Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []Bucket
	for _, r := range s.runs {
		for _, b := range s.buckets[r.ID] {
			if b.Signature == signature {
				list = append(list, b)
			}
		}
	}
	return list, nil
}

func (s *MemStore) Close() error { return nil }
