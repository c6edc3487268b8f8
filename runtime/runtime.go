package runtime

import (
	"fmt"
	"sort"
	"sync"
)

// Default the default backend name
const Default = "goja"

var factories = struct {
	sync.RWMutex
	items map[string]Factory
}{items: map[string]Factory{}}

// Register register an interpreter backend, the backends register themselves
// in their init functions
func Register(name string, factory Factory) {
	factories.Lock()
	defer factories.Unlock()
	factories.items[name] = factory
}

// Select select a registered backend
func Select(name string) (Factory, error) {
	if name == "" {
		name = Default
	}

	factories.RLock()
	defer factories.RUnlock()
	factory, has := factories.items[name]
	if !has {
		return nil, fmt.Errorf("the %s runtime is not registered (%v)", name, names())
	}
	return factory, nil
}

// Names the registered backend names
func Names() []string {
	factories.RLock()
	defer factories.RUnlock()
	return names()
}

func names() []string {
	res := []string{}
	for name := range factories.items {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}
