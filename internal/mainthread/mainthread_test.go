package mainthread

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l, cancel
}

func TestDoReturnsTaskResult(t *testing.T) {
	l, _ := startLoop(t)

	if err := l.Do(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("Do = %v, want nil", err)
	}
	want := errors.New("clipboard busy")
	if err := l.Do(context.Background(), func() error { return want }); !errors.Is(err, want) {
		t.Fatalf("Do = %v, want %v", err, want)
	}
}

func TestDoSerialisesTasks(t *testing.T) {
	l, _ := startLoop(t)

	var (
		mu      sync.Mutex
		active  int
		overlap bool
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(context.Background(), func() error {
				mu.Lock()
				active++
				if active > 1 {
					overlap = true
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if overlap {
		t.Fatal("tasks ran concurrently")
	}
}

func TestDoRecoversPanic(t *testing.T) {
	l, _ := startLoop(t)
	err := l.Do(context.Background(), func() error { panic("boom") })
	if err == nil {
		t.Fatal("Do = nil, want panic error")
	}
	if err := l.Do(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("loop unusable after panic: %v", err)
	}
}

func TestDoAfterStopFailsDispatch(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.Run(ctx)

	err := l.Do(context.Background(), func() error { return nil })
	if !errors.Is(err, ErrDispatch) {
		t.Fatalf("Do = %v, want ErrDispatch", err)
	}
}

func TestPendingTaskAbortedOnStop(t *testing.T) {
	l := New()
	ran := false
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Do(context.Background(), func() error {
			ran = true
			return nil
		})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for len(l.tasks) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("task never queued")
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.Run(ctx)

	if err := <-errCh; !errors.Is(err, ErrAborted) {
		t.Fatalf("Do = %v, want ErrAborted", err)
	}
	if ran {
		t.Fatal("aborted task ran")
	}
}

func TestDoQueueFull(t *testing.T) {
	l := New()
	for i := 0; i < queueSize; i++ {
		l.tasks <- &task{fn: func() error { return nil }, result: make(chan error, 1)}
	}
	err := l.Do(context.Background(), func() error { return nil })
	if !errors.Is(err, ErrDispatch) {
		t.Fatalf("Do = %v, want ErrDispatch", err)
	}
}

func TestDoHonoursContext(t *testing.T) {
	l := New() // never run
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Do(ctx, func() error { return nil })
	if !errors.Is(err, ErrAborted) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do = %v, want ErrAborted wrapping DeadlineExceeded", err)
	}
}
