package disk

import "github.com/tuannm99/bufpool/internal/common"

// Request is one scheduled unit of I/O. The requester owns Data and must
// keep it alive until the paired Future resolves — the scheduler never
// copies or retains the buffer itself.
type Request struct {
	PageID  common.PageID
	Data    []byte
	IsWrite bool

	promise Promise
}

// NewReadRequest builds a request that fills buf from pageID.
func NewReadRequest(pageID common.PageID, buf []byte, promise Promise) Request {
	return Request{PageID: pageID, Data: buf, IsWrite: false, promise: promise}
}

// NewWriteRequest builds a request that persists buf to pageID.
func NewWriteRequest(pageID common.PageID, buf []byte, promise Promise) Request {
	return Request{PageID: pageID, Data: buf, IsWrite: true, promise: promise}
}

// Promise is the single-shot completion slot fulfilled exactly once by the
// scheduler's worker. It is the Go-idiomatic stand-in for the original's
// std::promise<bool>: a buffered channel of size 1 plays the same role
// without needing a condition variable.
type Promise struct {
	done chan error
}

// Future is the read-only half of a Promise, awaited by the requester.
type Future struct {
	done <-chan error
}

// NewPromise creates a fresh completion slot paired with its awaitable
// Future. Mirrors DiskScheduler::CreatePromise in the original — the
// scheduler does not retain a reference to either half.
func NewPromise() (Promise, Future) {
	ch := make(chan error, 1)
	return Promise{done: ch}, Future{done: ch}
}

// fulfill signals completion exactly once. err is nil on success.
func (p Promise) fulfill(err error) {
	p.done <- err
}

// Wait blocks until the paired Promise is fulfilled and returns its
// result: nil on success, a non-nil error (wrapping ErrIoFailed) on
// failure.
func (f Future) Wait() error {
	return <-f.done
}
