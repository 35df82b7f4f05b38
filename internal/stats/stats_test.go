package stats

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"wasmtriage/internal/logging"
	"wasmtriage/internal/normalize"
)

func write(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSizes(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a.wasm"), 2)
	write(t, filepath.Join(dir, "b.wasm"), 4)
	write(t, filepath.Join(dir, "nested", "c.wasm"), 4)
	write(t, filepath.Join(dir, "nested", "deeper", "d.wasm"), 10)

	s, err := Sizes(dir, logging.Discard())
	if err != nil {
		t.Fatalf("Sizes: %v", err)
	}
	if s.Count != 4 || s.Min != 2 || s.Max != 10 {
		t.Errorf("summary = %+v", s)
	}
	if s.Mean != 5 || s.Median != 4 {
		t.Errorf("mean = %v, median = %v", s.Mean, s.Median)
	}
	// deviations -3,-1,-1,5 -> variance 36/4 = 9
	if math.Abs(s.StdDev-3) > 1e-9 {
		t.Errorf("StdDev = %v, want 3", s.StdDev)
	}
}

func TestSizes_OddMedian(t *testing.T) {
	dir := t.TempDir()
	for i, n := range []int{7, 1, 3} {
		write(t, filepath.Join(dir, string(rune('a'+i))), n)
	}
	s, err := Sizes(dir, logging.Discard())
	if err != nil {
		t.Fatalf("Sizes: %v", err)
	}
	if s.Median != 3 {
		t.Errorf("Median = %v, want 3", s.Median)
	}
}

func TestSizes_Empty(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Sizes(dir, logging.Discard()); !errors.Is(err, ErrNoFiles) {
		t.Errorf("err = %v, want ErrNoFiles", err)
	}
}

func TestSizes_NotADirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	write(t, f, 1)
	if _, err := Sizes(f, logging.Discard()); err == nil {
		t.Error("expected error for a regular file")
	}
	if _, err := Sizes(filepath.Join(t.TempDir(), "missing"), logging.Discard()); err == nil {
		t.Error("expected error for a missing dir")
	}
}

func TestCategories(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"1.txt": "wasmtime:f:<>:out_of_bounds\nwasmer:f:<>:out_of_bounds\n",
		"2.txt": "wasmtime:f:<>:out_of_bounds\nwasmer:f:<>:unreachable\n",
		"3.txt": "wasmtime:f:<>:num1\nwasmer:f:<>:num2\n",
		"4.txt": "wasmtime:g:<>:panic\n",
		"x.log": "wasmtime:f:<>:panic\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	h, err := Categories(dir, logging.Discard())
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	want := &Histogram{
		Counts: []CategoryCount{
			{normalize.OutOfBounds, 2},
			{normalize.Panic, 1},
			{normalize.Unreachable, 1},
		},
		Uncategorized: 1,
		Total:         4,
	}
	if diff := cmp.Diff(want, h); diff != "" {
		t.Errorf("histogram mismatch (-want +got):\n%s", diff)
	}
}

func TestCategories_UnreadableRecordIsSkipped(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "1.txt"), []byte("wasmtime:f:<>:unreachable\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "2.txt")
	if err := os.Symlink(filepath.Join(dir, "missing"), bad); err != nil {
		t.Skipf("symlink: %v", err)
	}
	h, err := Categories(dir, logging.Discard())
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	want := &Histogram{
		Counts:  []CategoryCount{{normalize.Unreachable, 1}},
		Total:   1,
		Skipped: []string{bad},
	}
	if diff := cmp.Diff(want, h); diff != "" {
		t.Errorf("histogram mismatch (-want +got):\n%s", diff)
	}
}
