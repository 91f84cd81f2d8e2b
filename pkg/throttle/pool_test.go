package throttle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(2)
	var running, peak atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.Do(context.Background(), func(context.Context) error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			if err != nil {
				t.Errorf("Do: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestPoolQueuedCallGivesUp(t *testing.T) {
	p := NewPool(1)
	release := make(chan struct{})
	started := make(chan struct{})

	go p.Do(context.Background(), func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ran := false
	err := p.Do(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	close(release)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do error = %v, want context.DeadlineExceeded", err)
	}
	if ran {
		t.Error("queued function ran after its context expired")
	}
}

func TestPoolPropagatesErrors(t *testing.T) {
	want := errors.New("estimator failed")
	if err := NewPool(1).Do(context.Background(), func(context.Context) error { return want }); err != want {
		t.Errorf("Do error = %v, want %v", err, want)
	}
}

func TestTryDo(t *testing.T) {
	p := NewPool(1)
	release := make(chan struct{})
	started := make(chan struct{})
	go p.Do(context.Background(), func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	ran, err := p.TryDo(context.Background(), func(context.Context) error { return nil })
	if ran || err != nil {
		t.Errorf("TryDo on a busy pool = (%v, %v), want (false, nil)", ran, err)
	}
	close(release)
}

func TestNilPoolRunsDirectly(t *testing.T) {
	var p *Pool
	called := false
	if err := p.Do(context.Background(), func(context.Context) error { called = true; return nil }); err != nil || !called {
		t.Errorf("nil pool Do = %v, called = %v", err, called)
	}
	if NewPool(0).Size() < 1 {
		t.Error("NewPool(0) should default to GOMAXPROCS workers")
	}
}
