//go:build unix

package oracle

import (
	"context"
	"errors"
	"os"
	"testing"

	"golang.org/x/sys/unix"

	"wasmtriage/internal/replay"
)

func TestCheck_Busy(t *testing.T) {
	f := newFixture(t, signatureOf("wasmtime:f:<>:unreachable"))
	p := f.ctx.Paths()
	if err := os.MkdirAll(p.Reduced, 0o755); err != nil {
		t.Fatal(err)
	}
	held, err := os.OpenFile(p.Lock, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer held.Close()
	if err := unix.Flock(int(held.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil { //nolint:gosec
		t.Fatal(err)
	}

	called := false
	o := f.oracle(replay.Func(func(context.Context, replay.Request) (*replay.Result, error) {
		called = true
		return &replay.Result{}, nil
	}))
	if _, err := o.Check(context.Background(), []string{f.candidate}); !errors.Is(err, ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}
	if called {
		t.Error("harness must not run while another trial holds the lock")
	}

	// Closing the descriptor is what a killed holder's exit does.
	_ = held.Close()
	o = f.oracle(fakeHarness("wasmtime:f:<>:wasm trap: unreachable"))
	if !o.Interesting(context.Background(), []string{f.candidate}) {
		t.Error("released lock should not block the next trial")
	}
}
