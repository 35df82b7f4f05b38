package mcp

import (
	"context"
	"testing"
	"time"
)

func TestWatchParent_StopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	called := make(chan struct{}, 1)
	WatchParent(ctx, time.Millisecond, func() { called <- struct{}{} })
	cancel()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-called:
		t.Error("cancelFn must not fire while the parent is alive")
	default:
	}
}
