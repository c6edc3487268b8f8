package bridge

import (
	"sync"
	"time"
)

// ResultFunc the one-shot callback of a script evaluation. resultJSON is
// empty when the script result is undefined.
type ResultFunc func(resultJSON string, err error)

// CallFunc the persistent callback of a call-from-script function, argsJSON
// is the JSON array of the arguments
type CallFunc func(argsJSON string)

// Registry the handle table that maps tokens to pending callbacks
type Registry struct {
	mutex   sync.Mutex
	last    uint64
	entries map[Token]*entry
}

type entry struct {
	name         string // the call-from-script function name, empty for one-shot entries
	result       ResultFunc
	call         CallFunc
	registeredAt time.Time
}

// Natives the native extension entry points invoked by script
type Natives struct {
	registry *Registry
	prefix   string
	mapper   func(message string) string
}
