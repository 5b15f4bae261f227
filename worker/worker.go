// Package worker provides a small background-execution primitive: a named
// worker goroutine driven by a task channel and, optionally, a periodic
// timer. Components hand a Runnable to a Worker and interact with it only
// through a Scheduler, so task producers never share state with the runner.
package worker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linchenxuan/kvutil/log"
)

var (
	// ErrWorkerStopped is returned when scheduling onto a stopped worker.
	ErrWorkerStopped = errors.New("worker stopped")
	// ErrWorkerBusy is returned when the pending-task channel is full.
	ErrWorkerBusy = errors.New("worker busy")
)

// Runnable consumes tasks on the worker goroutine. Run is never called
// concurrently with itself or with OnTimeout.
type Runnable[T any] interface {
	Run(task T)
}

// RunnableWithTimer additionally receives periodic OnTimeout callbacks on
// the worker goroutine every TimerInterval.
type RunnableWithTimer[T any] interface {
	Runnable[T]
	OnTimeout()
	TimerInterval() time.Duration
}

// Scheduler submits tasks to a worker. It is cheap to copy and safe for
// concurrent use from any goroutine.
type Scheduler[T any] struct {
	ch      chan T
	stopped *atomic.Bool
}

// Schedule submits a task without blocking. Returns ErrWorkerStopped after
// the worker stopped and ErrWorkerBusy when the pending queue is full.
func (s *Scheduler[T]) Schedule(task T) error {
	if s.stopped.Load() {
		return ErrWorkerStopped
	}
	select {
	case s.ch <- task:
		return nil
	default:
		return ErrWorkerBusy
	}
}

// PendingTasks returns the number of queued, not yet consumed tasks.
func (s *Scheduler[T]) PendingTasks() int {
	return len(s.ch)
}

// Worker owns one background goroutine running a Runnable. Tasks submitted
// through its Scheduler are executed in order; if the Runnable implements
// RunnableWithTimer, OnTimeout fires between tasks on its interval.
type Worker[T any] struct {
	name    string
	ch      chan T
	stopped atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started atomic.Bool
}

// NewWorker creates a worker with the given name and pending-task capacity.
// The worker is inert until Start is called.
func NewWorker[T any](name string, pendingCap int) *Worker[T] {
	if pendingCap < 1 {
		pendingCap = 1
	}
	return &Worker[T]{
		name:   name,
		ch:     make(chan T, pendingCap),
		stopCh: make(chan struct{}),
	}
}

// Scheduler returns a handle for submitting tasks to this worker.
func (w *Worker[T]) Scheduler() *Scheduler[T] {
	return &Scheduler[T]{ch: w.ch, stopped: &w.stopped}
}

// Start launches the worker goroutine. Starting twice is a no-op.
func (w *Worker[T]) Start(r Runnable[T]) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}

	var timerC <-chan time.Time
	var ticker *time.Ticker
	if rt, ok := r.(RunnableWithTimer[T]); ok {
		if interval := rt.TimerInterval(); interval > 0 {
			ticker = time.NewTicker(interval)
			timerC = ticker.C
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if ticker != nil {
			defer ticker.Stop()
		}
		log.Debug().Str("worker", w.name).Msg("worker started")
		for {
			select {
			case task := <-w.ch:
				r.Run(task)
			case <-timerC:
				r.(RunnableWithTimer[T]).OnTimeout()
			case <-w.stopCh:
				// Drain already-queued tasks so callers that scheduled
				// before Stop still get served.
				for {
					select {
					case task := <-w.ch:
						r.Run(task)
					default:
						log.Debug().Str("worker", w.name).Msg("worker stopped")
						return
					}
				}
			}
		}
	}()
}

// Stop halts the worker after draining queued tasks. Idempotent; blocks
// until the goroutine exits.
func (w *Worker[T]) Stop() {
	if !w.stopped.CompareAndSwap(false, true) {
		return
	}
	close(w.stopCh)
	w.wg.Wait()
}
