package jsrt

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// request is a unit of work to be executed on the runtime goroutine.
type request struct {
	fn   func(*goja.Runtime) (interface{}, error)
	done chan result
}

type result struct {
	value interface{}
	err   error
}

// Worker serializes all access to one goja runtime through a single
// goroutine. A goja.Runtime is not safe for concurrent use; everything
// that touches it, including values it returned, goes through Do.
type Worker struct {
	rt       *goja.Runtime
	requests chan request
	quit     chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a runtime and starts the processing goroutine.
func NewWorker() *Worker {
	w := &Worker{
		rt:       goja.New(),
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn on the runtime, recovering from panics.
func (w *Worker) execute(fn func(*goja.Runtime) (interface{}, error)) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("jsrt: panic: %v", r)
		}
	}()
	res.value, res.err = fn(w.rt)
	return res
}

// Do submits fn for execution on the runtime goroutine and blocks until
// it completes.
func (w *Worker) Do(fn func(*goja.Runtime) (interface{}, error)) (interface{}, error) {
	select {
	case <-w.quit:
		return nil, ErrStopped
	default:
	}
	req := request{fn: fn, done: make(chan result, 1)}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrStopped
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.quit:
		return nil, ErrStopped
	}
}

// Interrupt aborts the JavaScript currently running on the worker. It is
// safe to call from any goroutine.
func (w *Worker) Interrupt(v interface{}) {
	w.rt.Interrupt(v)
}

// Stop shuts down the worker goroutine. Later calls do nothing.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}
