package disk

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// ErrIoFailed wraps any failure reported by the Manager, or recovered from
// a panicking Manager call, on a request's Future.
var ErrIoFailed = errors.New("disk: I/O failed")

// errSchedulerClosed is the internal sentinel checked before enqueueing;
// scheduling after shutdown is a programmer error and panics, per spec.
var errSchedulerClosed = errors.New("disk: Schedule called after scheduler shutdown")

// Scheduler serializes concurrent callers' read/write requests onto a
// single worker goroutine dispatching to a Manager, so the Manager only
// ever observes one request in flight — freeing callers to pipeline
// without coordinating among themselves.
//
// The worker is started and joined with a conc.WaitGroup instead of a raw
// go func()+sync.WaitGroup pair: conc recovers a panic in the worker and
// re-raises it from Wait(), and each dispatched request is additionally
// wrapped in panics.Try so a single panicking Manager call surfaces as
// ErrIoFailed on that request's Future instead of ever reaching the
// worker's goroutine boundary — "the worker never panics on a single
// request".
type Scheduler struct {
	mgr    Manager
	queue  chan Request
	wg     conc.WaitGroup
	closed atomic.Bool
	log    *slog.Logger
}

// NewScheduler starts the scheduler's worker against mgr. log may be nil,
// in which case slog.Default() is used.
func NewScheduler(mgr Manager, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		mgr:   mgr,
		queue: make(chan Request, 64),
		log:   log,
	}
	s.wg.Go(s.workerLoop)
	return s
}

// CreatePromise produces a fresh completion slot and its awaitable Future.
func (s *Scheduler) CreatePromise() (Promise, Future) {
	return NewPromise()
}

// Schedule enqueues req for the worker and returns once it is queued; it
// blocks only while the queue's 64-request buffer is full. Calling it after
// Close is a programmer error.
func (s *Scheduler) Schedule(req Request) {
	if s.closed.Load() {
		panic(errSchedulerClosed)
	}
	s.queue <- req
}

// Close enqueues the shutdown sentinel (closing the channel) and blocks
// until the worker has drained every already-queued request and exited.
// After Close returns, calling Schedule is a programmer error.
func (s *Scheduler) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	close(s.queue)
	s.wg.Wait()
}

func (s *Scheduler) workerLoop() {
	for req := range s.queue {
		s.dispatch(req)
	}
}

// dispatch performs one request's I/O and fulfills its promise. A panic
// inside the Manager call is recovered here and reported as ErrIoFailed,
// so it never propagates to workerLoop's goroutine.
func (s *Scheduler) dispatch(req Request) {
	var ioErr error
	recovered := panics.Try(func() {
		if req.IsWrite {
			ioErr = s.mgr.WritePage(req.PageID, req.Data)
		} else {
			ioErr = s.mgr.ReadPage(req.PageID, req.Data)
		}
	})

	if recovered != nil {
		s.log.Error("disk scheduler: recovered panic dispatching request",
			"page_id", req.PageID, "is_write", req.IsWrite, "panic", recovered.AsError())
		req.promise.fulfill(fmt.Errorf("%w: %v", ErrIoFailed, recovered.AsError()))
		return
	}

	if ioErr != nil {
		s.log.Error("disk scheduler: request failed",
			"page_id", req.PageID, "is_write", req.IsWrite, "err", ioErr)
		req.promise.fulfill(fmt.Errorf("%w: %v", ErrIoFailed, ioErr))
		return
	}

	req.promise.fulfill(nil)
}
