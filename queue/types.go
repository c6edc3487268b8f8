package queue

import "sync"

// Handler the interface implemented by the queue owner, it is notified
// from the queue worker goroutine
type Handler[T any] interface {
	OnStarted()
	OnProcessQueueItem(item T)
	OnStopped()
}

// Queue a FIFO queue that has its own worker goroutine
type Queue[T any] struct {
	mutex          sync.Mutex
	actionRequired *sync.Cond // signalled when items arrive, on stop and when a worker exits
	isEmpty        *sync.Cond // signalled when the worker finds no more work
	items          []T
	handler        Handler[T]
	initialized    bool
	current        *worker // the worker of the current initialization
}

// worker the state of one worker goroutine. A worker detached by a
// terminating Uninitialize keeps its own state, so it never picks items
// pushed after a later Initialize.
type worker struct {
	stopping bool // the worker has been asked to stop
	stopped  bool // the worker has returned from its loop
	busy     bool // a batch is being processed outside the lock
}
