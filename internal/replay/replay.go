// Package replay runs the external harness that executes one candidate
// module against the runtimes under test and captures their diagnostics.
package replay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

const waitDelay = 2 * time.Second

// OutputDir is the directory, relative to the reduced directory, that the
// harness writes raw output files into.
const OutputDir = "output"

// Request describes one replay.
type Request struct {
	// Candidate is the module to execute.
	Candidate string
	// FuncName identifies the exported function the harness invokes.
	FuncName string
	// ReducedDir holds Candidate; output goes to ReducedDir/output.
	ReducedDir string
}

// Result is what the harness left behind. ExitCode and the captured
// streams are diagnostics only.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Replayer runs a Request.
type Replayer interface {
	Replay(ctx context.Context, req Request) (*Result, error)
}

// Func adapts a plain function to Replayer.
type Func func(ctx context.Context, req Request) (*Result, error)

func (f Func) Replay(ctx context.Context, req Request) (*Result, error) { return f(ctx, req) }

// CandidateName is the file name a candidate for fn is copied to.
func CandidateName(fn string) string {
	return fmt.Sprintf("temp__%s.wasm", fn)
}

// OutputName is the raw output file the harness writes for fn: the
// candidate's base name and the function name joined by "__".
func OutputName(fn string) string {
	return fmt.Sprintf("temp__%s__%s.txt", fn, fn)
}

// OutputPath is the raw output path for req.
func OutputPath(req Request) string {
	return filepath.Join(req.ReducedDir, OutputDir, OutputName(req.FuncName))
}

// Command runs an external harness as `Argv... <func> <reduced-dir>`.
type Command struct {
	Argv []string
	Env  []string
	Dir  string
}

// Replay starts the harness and waits for it. A non-zero exit is reported
// in Result, not as an error; failing to start or context expiry is an
// error.
func (c *Command) Replay(ctx context.Context, req Request) (*Result, error) {
	if len(c.Argv) == 0 {
		return nil, fmt.Errorf("replay: no command configured")
	}
	args := append(append([]string(nil), c.Argv[1:]...), req.FuncName, req.ReducedDir)
	cmd := exec.CommandContext(ctx, c.Argv[0], args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Grandchildren holding the pipes open must not outlive a cancelled run.
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("replay %s: %w", req.FuncName, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return res, fmt.Errorf("replay %s: %w", req.FuncName, err)
		}
		res.ExitCode = exitCodeForError(exitErr)
	}
	return res, nil
}

func exitCodeForError(err *exec.ExitError) int {
	if status, ok := err.Sys().(syscall.WaitStatus); ok {
		if status.Signaled() {
			return 128 + int(status.Signal())
		}
		return status.ExitStatus()
	}
	return err.ExitCode()
}
