package oracle

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wasmtriage/internal/dedup"
	"wasmtriage/internal/logging"
	"wasmtriage/internal/replay"
)

// fakeHarness writes lines as the raw output for the request, padded to
// the dedup line threshold.
func fakeHarness(lines ...string) replay.Func {
	return func(_ context.Context, req replay.Request) (*replay.Result, error) {
		out := replay.OutputPath(req)
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return nil, err
		}
		body := strings.Join(lines, "\n") + "\n" + strings.Repeat("frame\n", dedup.MinLines)
		if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
			return nil, err
		}
		return &replay.Result{}, nil
	}
}

type fixture struct {
	work      string
	candidate string
	ctx       Context
}

func newFixture(t *testing.T, reference string) fixture {
	t.Helper()
	work := t.TempDir()
	candidate := filepath.Join(t.TempDir(), "candidate.wasm")
	if err := os.WriteFile(candidate, []byte("\x00asm\x01\x00\x00\x00"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := Context{WorkDir: work, FuncName: "f", RefName: "bug-12"}
	if reference != "" {
		if err := os.WriteFile(c.ReferencePath(), []byte(reference), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return fixture{work: work, candidate: candidate, ctx: c}
}

func (f fixture) oracle(r replay.Replayer) *Oracle {
	return &Oracle{Context: f.ctx, Replayer: r, Logger: logging.Discard()}
}

// assertClean fails if any trial artifact survived. The lock file is
// not a trial artifact.
func assertClean(t *testing.T, f fixture) {
	t.Helper()
	reduced := filepath.Join(f.work, ReducedDir)
	_ = filepath.WalkDir(reduced, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() == lockName {
			return nil
		}
		t.Errorf("leftover trial artifact: %s", path)
		return nil
	})
}

func signatureOf(lines ...string) string {
	return strings.Join(lines, "\n") + "\n" + strings.Repeat("frame\n", dedup.MinLines)
}

func TestCheck_EquivalentWordingIsInteresting(t *testing.T) {
	ref := "wasmtime:f:<>:compilation_error\n" + strings.Repeat("frame\n", dedup.MinLines)
	f := newFixture(t, ref)
	o := f.oracle(fakeHarness("wasmtime:f:<>:Error: Unable to compile module: bad section"))

	v, err := o.Check(context.Background(), []string{"--flag", f.candidate})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !v.Interesting {
		t.Errorf("want interesting, ref=%q new=%q", v.Reference, v.Fresh)
	}
	assertClean(t, f)
}

func TestCheck_DifferentBugIsNotInteresting(t *testing.T) {
	f := newFixture(t, signatureOf("wasmtime:f:<>:unreachable"))
	o := f.oracle(fakeHarness("wasmtime:f:<>:integer divide by zero"))
	if o.Interesting(context.Background(), []string{f.candidate}) {
		t.Error("different category should not be interesting")
	}
	assertClean(t, f)
}

func TestCheck_MissingReference(t *testing.T) {
	f := newFixture(t, "")
	o := f.oracle(fakeHarness("wasmtime:f:<>:unreachable"))
	v, err := o.Check(context.Background(), []string{f.candidate})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if v.Interesting {
		t.Error("missing reference with non-empty output must not be interesting")
	}
	if v.Reference != "" {
		t.Errorf("Reference = %q, want empty", v.Reference)
	}
	assertClean(t, f)
}

func TestCheck_NoOutputAgainstReference(t *testing.T) {
	f := newFixture(t, signatureOf("wasmtime:f:<>:unreachable"))
	crash := replay.Func(func(context.Context, replay.Request) (*replay.Result, error) {
		return &replay.Result{ExitCode: 139}, nil
	})
	v, err := f.oracle(crash).Check(context.Background(), []string{f.candidate})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if v.Interesting || v.ExitCode != 139 {
		t.Errorf("verdict = %+v", v)
	}
	assertClean(t, f)
}

func TestCheck_HarnessErrorStillCompares(t *testing.T) {
	f := newFixture(t, signatureOf("wasmtime:f:<>:unreachable"))
	inner := fakeHarness("wasmtime:f:<>:wasm trap: unreachable")
	failing := replay.Func(func(ctx context.Context, req replay.Request) (*replay.Result, error) {
		res, _ := inner(ctx, req)
		return res, errors.New("harness crashed after writing output")
	})
	if !f.oracle(failing).Interesting(context.Background(), []string{f.candidate}) {
		t.Error("partial output matching the reference should be interesting")
	}
	assertClean(t, f)
}

func TestCheck_PreconditionsHaveNoSideEffects(t *testing.T) {
	tests := []struct {
		name string
		args []string
		ctx  func(Context) Context
		want error
	}{
		{"no args", nil, func(c Context) Context { return c }, ErrMissingCandidate},
		{"empty candidate", []string{""}, func(c Context) Context { return c }, ErrMissingCandidate},
		{"no workdir", []string{"x.wasm"}, func(c Context) Context { c.WorkDir = ""; return c }, ErrMissingContext},
		{"no func", []string{"x.wasm"}, func(c Context) Context { c.FuncName = ""; return c }, ErrMissingContext},
		{"no ref", []string{"x.wasm"}, func(c Context) Context { c.RefName = ""; return c }, ErrMissingContext},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "")
			called := false
			o := f.oracle(replay.Func(func(context.Context, replay.Request) (*replay.Result, error) {
				called = true
				return &replay.Result{}, nil
			}))
			o.Context = tt.ctx(f.ctx)

			_, err := o.Check(context.Background(), tt.args)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if o.Interesting(context.Background(), tt.args) {
				t.Error("Interesting should be false")
			}
			if called {
				t.Error("harness must not run")
			}
			if _, err := os.Stat(filepath.Join(f.work, ReducedDir)); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("reduced dir created despite failed precondition: %v", err)
			}
		})
	}
}

func TestCheck_TimeoutIsNotInteresting(t *testing.T) {
	f := newFixture(t, "")
	slow := replay.Func(func(ctx context.Context, req replay.Request) (*replay.Result, error) {
		<-ctx.Done()
		return &replay.Result{ExitCode: -1}, ctx.Err()
	})
	o := f.oracle(slow)
	o.Timeout = 20 * time.Millisecond

	v, err := o.Check(context.Background(), []string{f.candidate})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if v.Interesting || !v.TimedOut {
		t.Errorf("verdict = %+v, want timed out and not interesting", v)
	}
	assertClean(t, f)
}

func TestCheck_RepeatedCallsAreStable(t *testing.T) {
	f := newFixture(t, signatureOf("wasmtime:f:<>:num1", "wasmer:f:<>:num2"))
	o := f.oracle(fakeHarness("wasmtime:f:<>:3.5", "wasmer:f:<>:-1"))
	for i := 0; i < 25; i++ {
		if !o.Interesting(context.Background(), []string{f.candidate}) {
			t.Fatalf("call %d: want interesting", i)
		}
	}
	assertClean(t, f)
}

func TestCheck_StaleArtifactsAreIgnored(t *testing.T) {
	f := newFixture(t, signatureOf("wasmtime:f:<>:unreachable"))
	p := f.ctx.Paths()
	if err := os.MkdirAll(filepath.Dir(p.Deduped), 0o755); err != nil {
		t.Fatal(err)
	}
	// A crashed earlier trial left a matching deduped file behind.
	if err := os.WriteFile(p.Deduped, []byte(signatureOf("wasmtime:f:<>:unreachable")), 0o644); err != nil {
		t.Fatal(err)
	}
	silent := replay.Func(func(context.Context, replay.Request) (*replay.Result, error) {
		return &replay.Result{}, nil
	})
	if f.oracle(silent).Interesting(context.Background(), []string{f.candidate}) {
		t.Error("stale deduped output must not count as fresh")
	}
	assertClean(t, f)
}

func TestCheck_LeftoverLockFileDoesNotBlock(t *testing.T) {
	f := newFixture(t, signatureOf("wasmtime:f:<>:unreachable"))
	p := f.ctx.Paths()
	if err := os.MkdirAll(p.Reduced, 0o755); err != nil {
		t.Fatal(err)
	}
	// A killed trial leaves a fresh lock file with nobody holding it.
	if err := os.WriteFile(p.Lock, []byte("4242\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	o := f.oracle(fakeHarness("wasmtime:f:<>:wasm trap: unreachable"))
	for i := 0; i < 3; i++ {
		v, err := o.Check(context.Background(), []string{f.candidate})
		if err != nil {
			t.Fatalf("trial %d: %v", i, err)
		}
		if !v.Interesting {
			t.Errorf("trial %d: want interesting, ref=%q new=%q", i, v.Reference, v.Fresh)
		}
	}
	assertClean(t, f)
}

func TestCheck_ReadsHarnessOutputName(t *testing.T) {
	f := newFixture(t, signatureOf("wasmtime:f:<>:unreachable"))
	// The harness writes <reduced>/output/temp__<func>__<func>.txt.
	harness := replay.Func(func(_ context.Context, req replay.Request) (*replay.Result, error) {
		out := filepath.Join(req.ReducedDir, "output", "temp__f__f.txt")
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return nil, err
		}
		return &replay.Result{}, os.WriteFile(out, []byte(signatureOf("wasmtime:f:<>:wasm trap: unreachable")), 0o644)
	})
	v, err := f.oracle(harness).Check(context.Background(), []string{f.candidate})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !v.Interesting {
		t.Errorf("want interesting, ref=%q new=%q", v.Reference, v.Fresh)
	}
	assertClean(t, f)
}

func TestCheck_CancelledTrialCleansUp(t *testing.T) {
	f := newFixture(t, signatureOf("wasmtime:f:<>:unreachable"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	inner := fakeHarness("wasmtime:f:<>:wasm trap: unreachable")
	interrupted := replay.Func(func(rctx context.Context, req replay.Request) (*replay.Result, error) {
		res, err := inner(rctx, req)
		if err != nil {
			return nil, err
		}
		cancel()
		<-rctx.Done()
		return res, rctx.Err()
	})
	o := f.oracle(interrupted)
	o.Timeout = time.Minute

	if _, err := o.Check(ctx, []string{f.candidate}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	assertClean(t, f)
}

func TestCheck_MissingCandidateFileCleansUp(t *testing.T) {
	f := newFixture(t, "")
	o := f.oracle(fakeHarness("x:<>:unreachable"))
	if _, err := o.Check(context.Background(), []string{filepath.Join(t.TempDir(), "gone.wasm")}); err == nil {
		t.Fatal("expected copy error")
	}
	assertClean(t, f)
}

func TestContextFromEnv(t *testing.T) {
	t.Setenv(EnvWorkDir, "/bugs/7")
	t.Setenv(EnvFuncName, "run")
	t.Setenv(EnvRefName, "wasmtime-7")
	c, err := ContextFromEnv()
	if err != nil {
		t.Fatalf("ContextFromEnv: %v", err)
	}
	if !c.Valid() {
		t.Fatalf("context %+v should be valid", c)
	}
	if got := c.ReferencePath(); got != filepath.Join("/bugs/7", "wasmtime-7.txt") {
		t.Errorf("ReferencePath = %q", got)
	}
	p := c.Paths()
	if p.Candidate != filepath.Join("/bugs/7", "reduced", "temp__run.wasm") {
		t.Errorf("Candidate = %q", p.Candidate)
	}
	if p.RawOutput != filepath.Join("/bugs/7", "reduced", "output", "temp__run__run.txt") {
		t.Errorf("RawOutput = %q", p.RawOutput)
	}
	if p.Deduped != filepath.Join("/bugs/7", "reduced", "output", "deduped", "temp__run__run.txt") {
		t.Errorf("Deduped = %q", p.Deduped)
	}
}
