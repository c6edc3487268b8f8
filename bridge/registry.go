package bridge

import (
	"time"

	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/node/exception"
)

// NewRegistry create an empty handle table
func NewRegistry() *Registry {
	return &Registry{entries: map[Token]*entry{}}
}

// AddOneShot register a callback that is released after its first invocation
func (registry *Registry) AddOneShot(fn ResultFunc) Token {
	return registry.add(&entry{result: fn, registeredAt: time.Now()})
}

// AddPersistent register a call-from-script callback, it lives until Clear
func (registry *Registry) AddPersistent(name string, fn CallFunc) Token {
	return registry.add(&entry{name: name, call: fn, registeredAt: time.Now()})
}

func (registry *Registry) add(e *entry) Token {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	registry.last++
	token := Token(registry.last)
	registry.entries[token] = e
	return token
}

// Release remove an entry without invoking it
func (registry *Registry) Release(token Token) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	delete(registry.entries, token)
}

// Has check if the token is registered
func (registry *Registry) Has(token Token) bool {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	_, has := registry.entries[token]
	return has
}

// Name the function name of a persistent entry
func (registry *Registry) Name(token Token) (string, bool) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	e, has := registry.entries[token]
	if !has || e.call == nil {
		return "", false
	}
	return e.name, true
}

// Len the number of registered entries
func (registry *Registry) Len() int {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	return len(registry.entries)
}

// Resolve complete a one-shot entry with the result JSON
func (registry *Registry) Resolve(token Token, resultJSON string) bool {
	e := registry.take(token)
	if e == nil {
		return false
	}
	invoke(token, e, func() { e.result(resultJSON, nil) })
	return true
}

// Reject complete a one-shot entry with an error
func (registry *Registry) Reject(token Token, err error) bool {
	e := registry.take(token)
	if e == nil {
		return false
	}
	invoke(token, e, func() { e.result("", err) })
	return true
}

// Invoke call a persistent entry with the arguments JSON
func (registry *Registry) Invoke(token Token, argsJSON string) bool {
	registry.mutex.Lock()
	e, has := registry.entries[token]
	registry.mutex.Unlock()
	if !has || e.call == nil {
		return false
	}
	invoke(token, e, func() { e.call(argsJSON) })
	return true
}

// Clear release every entry. The pending one-shot callbacks are completed
// with an InvalidState error so their callers do not wait forever.
func (registry *Registry) Clear() {
	registry.mutex.Lock()
	entries := registry.entries
	registry.entries = map[Token]*entry{}
	registry.mutex.Unlock()

	for token, e := range entries {
		if e.result == nil {
			continue
		}
		e := e
		invoke(token, e, func() {
			e.result("", exception.New(exception.InvalidState, "Node engine is stopped."))
		})
	}
}

// take remove and return a one-shot entry
func (registry *Registry) take(token Token) *entry {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	e, has := registry.entries[token]
	if !has || e.result == nil {
		return nil
	}
	delete(registry.entries, token)
	return e
}

// invoke run a callback, the panics must not reach the script engine
func invoke(token Token, e *entry, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.With(e.fields(token)).Warn("[bridge] script callback function panicked: %v", r)
		}
	}()
	fn()
	log.With(e.fields(token)).Trace("[bridge] script callback function completed")
}

func (e *entry) fields(token Token) log.F {
	fields := log.F{"token": token.String(), "elapsed": time.Since(e.registeredAt).String()}
	if e.name != "" {
		fields["function"] = e.name
	}
	return fields
}
