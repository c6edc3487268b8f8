package node

import (
	"github.com/yaoapp/kun/log"
)

func newListeners() *listeners {
	return &listeners{items: map[int]CallListener{}}
}

// AddCallListener add a listener of the call events, returns the listener id
func (engine *Engine) AddCallListener(listener CallListener) int {
	return engine.listeners.add(listener)
}

// RemoveCallListener remove a listener, unknown ids are ignored
func (engine *Engine) RemoveCallListener(id int) {
	engine.listeners.remove(id)
}

func (l *listeners) add(listener CallListener) int {
	if listener == nil {
		return 0
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.last++
	l.items[l.last] = listener
	l.order = append(l.order, l.last)
	return l.last
}

func (l *listeners) remove(id int) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if _, has := l.items[id]; !has {
		return
	}

	delete(l.items, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// emit call the listeners in the order they were added
func (l *listeners) emit(event CallEvent) {
	l.mutex.RLock()
	items := make([]CallListener, 0, len(l.order))
	for _, id := range l.order {
		items = append(items, l.items[id])
	}
	l.mutex.RUnlock()

	if len(items) == 0 {
		log.Warn("[node] %s is called from script, but there is no call listener", event.Name)
		return
	}

	for _, listener := range items {
		notify(listener, event)
	}
}

func notify(listener CallListener, event CallEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.With(log.F{"name": event.Name}).Warn("[node] call listener panicked: %v", r)
		}
	}()
	listener(event)
}
