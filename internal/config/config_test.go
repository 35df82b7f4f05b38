package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wasmtriage.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
replay:
  command: ["/bin/bash", "scripts/replay_wasm.sh"]
  env: ["RUNTIMES=wasmtime,wasmer"]
oracle:
  timeout: 45s
dedup:
  workers: 8
log:
  level: debug
  format: json
store:
  path: .wasmtriage/catalog.db
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	want.Replay = ReplayConfig{
		Command: []string{"/bin/bash", "scripts/replay_wasm.sh"},
		Env:     []string{"RUNTIMES=wasmtime,wasmer"},
	}
	want.Oracle.Timeout = Duration(45 * time.Second)
	want.Dedup.Workers = 8
	want.Log = LogConfig{Level: "debug", Format: "json"}
	want.Store.Path = ".wasmtriage/catalog.db"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_DefaultPathMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("want defaults (-want +got):\n%s", diff)
	}
}

func TestLoad_ExplicitMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeFile(t, "oracle:\n  timeout: soon\n")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("WASMTRIAGE_REPLAY_COMMAND", "python3,replay.py")
	t.Setenv("WASMTRIAGE_ORACLE_TIMEOUT", "5s")
	t.Setenv("WASMTRIAGE_DEDUP_WORKERS", "2")
	t.Setenv("WASMTRIAGE_LOG_LEVEL", "warn")
	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if diff := cmp.Diff([]string{"python3", "replay.py"}, cfg.Replay.Command); diff != "" {
		t.Errorf("Command mismatch (-want +got):\n%s", diff)
	}
	if cfg.Oracle.Timeout.Std() != 5*time.Second {
		t.Errorf("Timeout = %v", cfg.Oracle.Timeout.Std())
	}
	if cfg.Dedup.Workers != 2 || cfg.Log.Level != "warn" {
		t.Errorf("cfg = %+v", cfg)
	}

	t.Setenv("WASMTRIAGE_DEDUP_WORKERS", "many")
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("expected error for non-numeric workers")
	}
}

func TestApplyEnv_UnsetKeepsFileValues(t *testing.T) {
	cfg := Default()
	cfg.Replay.Command = []string{"./harness.sh"}
	cfg.Store.Path = "catalog.db"
	t.Setenv("WASMTRIAGE_DEDUP_MIN_LINES", "3")
	t.Setenv("WASMTRIAGE_ORACLE_TIMEOUT", "bogus")
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("expected error for a malformed duration")
	}

	cfg = Default()
	cfg.Replay.Command = []string{"./harness.sh"}
	cfg.Store.Path = "catalog.db"
	t.Setenv("WASMTRIAGE_ORACLE_TIMEOUT", "1m")
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	want := Default()
	want.Replay.Command = []string{"./harness.sh"}
	want.Store.Path = "catalog.db"
	want.Oracle.Timeout = Duration(time.Minute)
	want.Dedup.MinLines = 3
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Dedup.MinLines = 0
	cfg.Dedup.Workers = 0
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"min_lines", "workers", "log.level", "log.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
