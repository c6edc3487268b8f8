package queue

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaoapp/node/exception"
)

type recorder struct {
	mutex   sync.Mutex
	events  []string
	process func(item int)
}

func (r *recorder) OnStarted() { r.record("started") }

func (r *recorder) OnStopped() { r.record("stopped") }

func (r *recorder) OnProcessQueueItem(item int) {
	if r.process != nil {
		r.process(item)
	}
	r.record(fmt.Sprintf("%d", item))
}

func (r *recorder) record(event string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) snapshot() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]string{}, r.events...)
}

func TestPushBeforeInitialize(t *testing.T) {
	q := New[int]()
	for i := 0; i < 10; i++ {
		assert.False(t, q.Push(i))
	}
	assert.Equal(t, 0, q.Len())

	handler := &recorder{}
	require.NoError(t, q.Initialize(handler))
	q.WaitForAll()
	q.Uninitialize()
	assert.Equal(t, []string{"started", "stopped"}, handler.snapshot())
}

func TestInitialize(t *testing.T) {
	q := New[int]()
	err := q.Initialize(nil)
	assert.True(t, exception.Is(err, exception.InvalidArgument))

	require.NoError(t, q.Initialize(&recorder{}))
	defer q.Uninitialize()
	assert.True(t, q.Initialized())

	err = q.Initialize(&recorder{})
	assert.True(t, exception.Is(err, exception.InvalidState))
}

func TestOrder(t *testing.T) {
	q := New[int]()
	handler := &recorder{}
	require.NoError(t, q.Initialize(handler))

	expected := []string{"started"}
	for i := 0; i < 500; i++ {
		assert.True(t, q.Push(i))
		expected = append(expected, fmt.Sprintf("%d", i))
	}
	q.WaitForAll()
	q.Uninitialize()
	expected = append(expected, "stopped")

	assert.Equal(t, expected, handler.snapshot())
	assert.False(t, q.Initialized())
	assert.False(t, q.Push(1))
}

func TestReinitialize(t *testing.T) {
	q := New[int]()
	first := &recorder{}
	require.NoError(t, q.Initialize(first))
	q.Push(1)
	q.Uninitialize()
	q.Uninitialize() // idempotent

	second := &recorder{}
	require.NoError(t, q.Initialize(second))
	q.Push(2)
	q.WaitForAll()
	q.Uninitialize()

	assert.Equal(t, []string{"started", "1", "stopped"}, first.snapshot())
	assert.Equal(t, []string{"started", "2", "stopped"}, second.snapshot())
}

func TestUninitializeDrainsBatch(t *testing.T) {
	q := New[int]()
	entered := make(chan bool)
	release := make(chan bool)
	handler := &recorder{process: func(item int) {
		if item == 0 {
			entered <- true
			<-release
		}
	}}
	require.NoError(t, q.Initialize(handler))

	q.Push(0)
	<-entered
	q.Push(1) // queued before the stop signal

	done := make(chan bool)
	go func() {
		q.Uninitialize()
		done <- true
	}()

	// wait until the stop has been signalled, later pushes are refused
	assert.Eventually(t, func() bool {
		q.mutex.Lock()
		defer q.mutex.Unlock()
		return q.current != nil && q.current.stopping
	}, time.Second, time.Millisecond)
	assert.False(t, q.Push(99))
	close(release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("uninitialize did not return")
	}

	assert.Equal(t, []string{"started", "0", "1", "stopped"}, handler.snapshot())
}

func TestPanicDoesNotStopWorker(t *testing.T) {
	q := New[int]()
	handler := &recorder{process: func(item int) {
		if item%2 == 0 {
			panic("even")
		}
	}}
	require.NoError(t, q.Initialize(handler))
	for i := 0; i < 6; i++ {
		q.Push(i)
	}
	q.WaitForAll()
	q.Uninitialize()
	assert.Equal(t, []string{"started", "1", "3", "5", "stopped"}, handler.snapshot())
}

type panicky struct{ recorder }

func (p *panicky) OnStarted() { panic("start") }

func (p *panicky) OnStopped() { panic("stop") }

func TestPanicInLifecycleHooks(t *testing.T) {
	q := New[int]()
	handler := &panicky{}
	require.NoError(t, q.Initialize(handler))
	q.Push(7)
	q.WaitForAll()
	q.Uninitialize()
	assert.Equal(t, []string{"7"}, handler.snapshot())
}

func TestPushFromHandler(t *testing.T) {
	q := New[int]()
	handler := &recorder{}
	handler.process = func(item int) {
		if item < 5 {
			q.Push(item + 1)
		}
	}
	require.NoError(t, q.Initialize(handler))
	q.Push(0)

	assert.Eventually(t, func() bool { return len(handler.snapshot()) == 7 }, 5*time.Second, time.Millisecond)
	q.Uninitialize()
	assert.Equal(t, []string{"started", "0", "1", "2", "3", "4", "5", "stopped"}, handler.snapshot())
}

func TestWaitForAll(t *testing.T) {
	q := New[int]()
	var mutex sync.Mutex
	processed := 0
	handler := &recorder{process: func(item int) {
		time.Sleep(time.Millisecond)
		mutex.Lock()
		processed++
		mutex.Unlock()
	}}
	require.NoError(t, q.Initialize(handler))
	defer q.Uninitialize()

	for i := 0; i < 20; i++ {
		q.Push(i)
	}
	q.WaitForAll()

	mutex.Lock()
	defer mutex.Unlock()
	assert.Equal(t, 20, processed)
}

func TestWaitForAllNotInitialized(t *testing.T) {
	q := New[int]()
	q.WaitForAll()
}

func TestTerminatingDoesNotWait(t *testing.T) {
	defer terminating.Store(false)

	q := New[int]()
	release := make(chan bool)
	entered := make(chan bool)
	handler := &recorder{process: func(item int) {
		entered <- true
		<-release
	}}
	require.NoError(t, q.Initialize(handler))
	q.Push(1)
	<-entered

	BeginTermination()
	assert.True(t, Terminating())

	done := make(chan bool)
	go func() {
		q.Uninitialize()
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("uninitialize blocked while terminating")
	}
	assert.False(t, q.Initialized())
	close(release)
}

func TestTerminatingReinitialize(t *testing.T) {
	defer terminating.Store(false)

	var active, peak atomic.Int32
	entered := make(chan bool)
	release := make(chan bool)
	process := func(item int) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		if item == 0 {
			entered <- true
			<-release
		}
	}

	q := New[int]()
	first := &recorder{process: process}
	require.NoError(t, q.Initialize(first))
	q.Push(0)
	<-entered

	BeginTermination()
	q.Uninitialize()
	terminating.Store(false)

	second := &recorder{process: process}
	require.NoError(t, q.Initialize(second))
	close(release)

	// the detached worker exits after its batch
	assert.Eventually(t, func() bool {
		events := first.snapshot()
		return len(events) > 0 && events[len(events)-1] == "stopped"
	}, 2*time.Second, 10*time.Millisecond)

	for i := 1; i <= 20; i++ {
		require.True(t, q.Push(i))
	}
	q.WaitForAll()
	q.Uninitialize()

	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, []string{"started", "0", "stopped"}, first.snapshot())
	assert.Len(t, second.snapshot(), 22)
}
