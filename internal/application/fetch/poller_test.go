package fetch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPollerRunsImmediatelyAndOnTrigger(t *testing.T) {
	var n atomic.Int32
	fired := make(chan struct{}, 8)
	p := NewPoller("test", time.Hour, func(ctx context.Context) {
		n.Add(1)
		fired <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	waitFired(t, fired)
	p.Trigger()
	waitFired(t, fired)

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
	if got := n.Load(); got != 2 {
		t.Fatalf("ticks = %d, want 2", got)
	}
}

func waitFired(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("tick did not fire")
	}
}
