package runtime

import (
	"sync"
	"time"
)

// Timers the timer table of an interpreter. The callbacks are posted to the
// scheduler, so they run on the goroutine that owns the interpreter.
type Timers struct {
	scheduler Scheduler
	mutex     sync.Mutex
	last      int64
	entries   map[int64]*timer
	stopped   bool
}

type timer struct {
	id     int64
	fn     func()
	delay  time.Duration
	repeat bool
	clock  *time.Timer
}

// NewTimers create a timer table
func NewTimers(scheduler Scheduler) *Timers {
	return &Timers{scheduler: scheduler, entries: map[int64]*timer{}}
}

// Add add a timer, returns the timer id, 0 if the table is cleared
func (t *Timers) Add(delay time.Duration, repeat bool, fn func()) int64 {
	if delay < 0 {
		delay = 0
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.stopped {
		return 0
	}

	t.last++
	entry := &timer{id: t.last, fn: fn, delay: delay, repeat: repeat}
	t.entries[entry.id] = entry
	t.arm(entry)
	return entry.id
}

// Immediate post the callback to the scheduler right away
func (t *Timers) Immediate(fn func()) bool {
	return t.scheduler.Dispatch(func() {
		if t.Stopped() {
			return
		}
		fn()
	})
}

// Cancel cancel a timer, unknown ids are ignored
func (t *Timers) Cancel(id int64) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	entry, has := t.entries[id]
	if !has {
		return
	}
	entry.clock.Stop()
	delete(t.entries, id)
}

// Clear cancel all the timers, no timer can be added after
func (t *Timers) Clear() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.stopped = true
	for id, entry := range t.entries {
		entry.clock.Stop()
		delete(t.entries, id)
	}
}

// Stopped check if the table is cleared
func (t *Timers) Stopped() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.stopped
}

// Pending the number of active timers
func (t *Timers) Pending() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.entries)
}

// arm must be called with the mutex held
func (t *Timers) arm(entry *timer) {
	id := entry.id
	entry.clock = time.AfterFunc(entry.delay, func() {
		t.scheduler.Dispatch(func() { t.fire(id) })
	})
}

func (t *Timers) fire(id int64) {
	t.mutex.Lock()
	entry, has := t.entries[id]
	if !has || t.stopped {
		t.mutex.Unlock()
		return
	}
	if !entry.repeat {
		delete(t.entries, id)
	}
	t.mutex.Unlock()

	entry.fn()

	if entry.repeat {
		t.mutex.Lock()
		if _, has := t.entries[id]; has && !t.stopped {
			t.arm(entry)
		}
		t.mutex.Unlock()
	}
}
