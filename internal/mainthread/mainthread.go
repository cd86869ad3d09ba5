// Package mainthread runs functions on one designated OS thread.
//
// Some platform APIs, the macOS clipboard among them, must be called from the
// process's main thread. The binary locks its main goroutine to the main
// thread at init and hands it to Loop.Run; everything else submits work with
// Do and blocks until that work reports back.
package mainthread

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// queueSize bounds the number of tasks waiting for the loop.
const queueSize = 16

var (
	// ErrDispatch means the task could not be handed to the loop.
	ErrDispatch = errors.New("main thread dispatch failed")
	// ErrAborted means the task was accepted but never completed.
	ErrAborted = errors.New("main thread task aborted")
)

type task struct {
	fn     func() error
	result chan error
}

// Loop serialises tasks onto the goroutine that calls Run.
type Loop struct {
	tasks chan *task

	mu     sync.RWMutex
	closed bool
}

// New returns a Loop. Tasks may be submitted before Run is called; they wait
// in the queue.
func New() *Loop {
	return &Loop{tasks: make(chan *task, queueSize)}
}

// Run executes submitted tasks on the calling goroutine until ctx is done.
// Pending tasks are aborted on return and later submissions fail with
// ErrDispatch.
func (l *Loop) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer l.shutdown()

	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case t := <-l.tasks:
			t.result <- call(t.fn)
		}
	}
}

// Do runs fn on the loop and waits for it to finish. It returns fn's error,
// ErrDispatch if the loop is closed or saturated, or ErrAborted if the loop
// stopped (or ctx ended) before fn completed. A task abandoned because of ctx
// may still run later.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	t := &task{fn: fn, result: make(chan error, 1)}

	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return fmt.Errorf("%w: loop stopped", ErrDispatch)
	}
	select {
	case l.tasks <- t:
	default:
		l.mu.RUnlock()
		return fmt.Errorf("%w: queue full", ErrDispatch)
	}
	l.mu.RUnlock()

	select {
	case err, ok := <-t.result:
		if !ok {
			return ErrAborted
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
	}
}

// shutdown refuses new tasks and aborts the ones still queued.
func (l *Loop) shutdown() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	for {
		select {
		case t := <-l.tasks:
			close(t.result)
		default:
			return
		}
	}
}

func call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("main thread task panicked: %v", r)
		}
	}()
	return fn()
}
