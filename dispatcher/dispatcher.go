package dispatcher

import (
	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/node/queue"
)

// Work a unit of work executed on the dispatcher goroutine
type Work func()

// Dispatcher runs work items one at a time on a dedicated goroutine
type Dispatcher struct {
	name  string
	queue *queue.Queue[Work]
}

// the queue handler, it simply invokes each work item
type handler struct{ name string }

// New create a new dispatcher, call Initialize before dispatching
func New(name string) *Dispatcher {
	return &Dispatcher{
		name:  name,
		queue: queue.New[Work](),
	}
}

// Initialize start the dispatcher goroutine
func (dispatcher *Dispatcher) Initialize() error {
	return dispatcher.queue.Initialize(&handler{name: dispatcher.name})
}

// Shutdown stop the dispatcher goroutine, the work items queued after the
// shutdown began are discarded
func (dispatcher *Dispatcher) Shutdown() {
	dispatcher.queue.Uninitialize()
}

// Dispatch queue the work, returns false if the dispatcher is not running.
// A nil work is accepted and ignored.
func (dispatcher *Dispatcher) Dispatch(work func()) bool {
	if work == nil {
		return true
	}
	return dispatcher.queue.Push(work)
}

// DispatchAndWait queue the work then block until the queue is drained
func (dispatcher *Dispatcher) DispatchAndWait(work func()) bool {
	if work == nil {
		return true
	}

	if !dispatcher.queue.Push(work) {
		return false
	}
	dispatcher.queue.WaitForAll()
	return true
}

// Running check if the dispatcher goroutine is running
func (dispatcher *Dispatcher) Running() bool {
	return dispatcher.queue.Initialized()
}

// Pending the number of queued work items
func (dispatcher *Dispatcher) Pending() int {
	return dispatcher.queue.Len()
}

func (h *handler) OnStarted() {
	log.Trace("[dispatcher] [%s] started", h.name)
}

func (h *handler) OnProcessQueueItem(work Work) {
	work()
}

func (h *handler) OnStopped() {
	log.Trace("[dispatcher] [%s] stopped", h.name)
}
