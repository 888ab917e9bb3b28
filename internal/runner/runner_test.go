package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLaunchRunsTasks(t *testing.T) {
	r := New(0)
	var n atomic.Int32
	for i := 0; i < 10; i++ {
		r.Launch("pb-1", func(ctx context.Context) { n.Add(1) })
	}
	r.Wait()
	require.EqualValues(t, 10, n.Load())
}

func TestConcurrencyBound(t *testing.T) {
	r := New(2)
	var running, peak atomic.Int32
	var wg sync.WaitGroup
	wg.Add(8)
	for i := 0; i < 8; i++ {
		r.Launch("pb-1", func(ctx context.Context) {
			defer wg.Done()
			cur := running.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
		})
	}
	wg.Wait()
	r.Wait()
	require.LessOrEqual(t, peak.Load(), int32(2))
}

func TestCancelStopsGroup(t *testing.T) {
	r := New(0)
	started := make(chan struct{})
	cancelled := make(chan struct{})
	r.Launch("pb-1", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	})
	<-started
	r.Cancel("pb-1")
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("task context not cancelled")
	}
	r.Wait()
}

func TestCancelLeavesOtherGroupsAlone(t *testing.T) {
	r := New(0)
	othersDone := make(chan struct{})
	r.Launch("pb-2", func(ctx context.Context) {
		select {
		case <-ctx.Done():
			t.Error("unrelated group cancelled")
		case <-othersDone:
		}
	})
	r.Launch("pb-1", func(ctx context.Context) { <-ctx.Done() })
	r.Cancel("pb-1")
	close(othersDone)
	r.Wait()
}

func TestShutdownDrains(t *testing.T) {
	r := New(0)
	r.Launch("pb-1", func(ctx context.Context) { <-ctx.Done() })
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))
}
