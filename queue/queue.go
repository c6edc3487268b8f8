package queue

import (
	"sync"
	"sync/atomic"

	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/node/exception"
)

// terminating is set once the host announces the process is going away
var terminating atomic.Bool

// BeginTermination tells every queue that the process is exiting. After this
// Uninitialize no longer waits for worker goroutines, they are left behind.
// Hosts should stop their engines before exit, this is a best-effort escape hatch.
func BeginTermination() {
	terminating.Store(true)
}

// Terminating check if the process termination has been announced
func Terminating() bool {
	return terminating.Load()
}

// New create a new idle queue
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.actionRequired = sync.NewCond(&q.mutex)
	q.isEmpty = sync.NewCond(&q.mutex)
	return q
}

// Initialize bind the handler and start the worker goroutine
func (q *Queue[T]) Initialize(handler Handler[T]) error {
	if handler == nil {
		return exception.New(exception.InvalidArgument, "handler cannot be null")
	}

	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.initialized {
		return exception.New(exception.InvalidState, "the queue is already initialized")
	}

	w := &worker{}
	q.current = w
	q.handler = handler
	q.initialized = true
	go q.run(handler, w)
	return nil
}

// Uninitialize stop the worker goroutine, then reset the queue. Items that
// were not dequeued yet when the worker exits are discarded.
// It must not be called from a handler callback.
func (q *Queue[T]) Uninitialize() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if !q.initialized {
		return
	}

	w := q.current
	if !w.stopping {
		w.stopping = true
		q.actionRequired.Broadcast()
		q.isEmpty.Broadcast()

		if !Terminating() {
			for !w.stopped {
				q.actionRequired.Wait()
			}
		}
	}

	q.items = nil
	q.handler = nil
	q.current = nil
	q.initialized = false
}

// Push append an item to the queue for processing on the worker goroutine.
// Returns false and no-ops if the queue is not initialized or is stopping.
func (q *Queue[T]) Push(item T) bool {
	q.mutex.Lock()
	if !q.initialized || q.current.stopping {
		q.mutex.Unlock()
		return false
	}

	wasEmpty := len(q.items) == 0
	q.items = append(q.items, item)
	q.mutex.Unlock()

	// the worker only waits when the queue is empty
	if wasEmpty {
		q.actionRequired.Broadcast()
	}
	return true
}

// WaitForAll block until every pushed item has been processed or the worker
// has been asked to stop
func (q *Queue[T]) WaitForAll() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for q.initialized && !q.current.stopping && (len(q.items) > 0 || q.current.busy) {
		q.isEmpty.Wait()
	}
}

// Len the number of items waiting to be processed
func (q *Queue[T]) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.items)
}

// Initialized check if the queue is initialized
func (q *Queue[T]) Initialized() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.initialized
}

func (q *Queue[T]) run(handler Handler[T], w *worker) {
	safe("starting", handler.OnStarted)

	q.mutex.Lock()
	for {
		for len(q.items) == 0 && !w.stopping {
			q.isEmpty.Broadcast()
			q.actionRequired.Wait()
		}

		// a detached worker leaves the items to the next worker
		if w.stopping && (len(q.items) == 0 || q.current != w) {
			break
		}

		batch := q.items
		q.items = nil
		w.busy = true
		q.mutex.Unlock()

		// the lock is released so handlers may push more work
		for _, item := range batch {
			safe("processing", func() { handler.OnProcessQueueItem(item) })
		}

		q.mutex.Lock()
		w.busy = false
	}
	q.mutex.Unlock()

	safe("stopping", handler.OnStopped)

	q.mutex.Lock()
	w.stopped = true
	q.actionRequired.Broadcast()
	q.isEmpty.Broadcast()
	q.mutex.Unlock()
}

func safe(stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("[queue] caught panic while %s the async queue handler: %v", stage, r)
		}
	}()
	fn()
}
