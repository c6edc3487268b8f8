package node

import (
	"sync"
	"sync/atomic"

	"github.com/yaoapp/node/bridge"
	"github.com/yaoapp/node/dispatcher"
	"github.com/yaoapp/node/runtime"
)

// Engine the engine instance. The interpreter, the helper function and the
// pending lists are owned by the worker goroutine.
type Engine struct {
	ID          string
	option      Option
	factory     runtime.Factory
	dispatcher  *dispatcher.Dispatcher
	registry    *bridge.Registry
	natives     *bridge.Natives
	interpreter runtime.Interpreter
	helper      runtime.Function
	files       []pendingFile
	calls       []pendingCall
	started     atomic.Bool
	closed      atomic.Bool
	listeners   *listeners
}

// Option the engine option
type Option struct {
	Runtime      string `json:"runtime,omitempty" yaml:"runtime,omitempty"`           // the interpreter backend, goja (default) or v8
	LogLevel     string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`         // trace, debug, info, warn, error. empty keeps the current level
	ReservedName string `json:"reservedName,omitempty" yaml:"reservedName,omitempty"` // warn (default) or strict
	CacheSize    int    `json:"cacheSize,omitempty" yaml:"cacheSize,omitempty"`       // the compiled script cache size, the default value is 256
	TypeScript   bool   `json:"typescript,omitempty" yaml:"typescript,omitempty"`     // transform the .ts script files to JavaScript
	Mode         string `json:"mode,omitempty" yaml:"mode,omitempty"`                 // production (default) or development
}

// ResultCallback the completion callback of CallScript
type ResultCallback = bridge.ResultFunc

// CallCallback the callback of a call-from-script function
type CallCallback = bridge.CallFunc

// DoneCallback the completion callback of Start and Stop
type DoneCallback func(err error)

// CallEvent raised to the call listeners when a call-from-script function
// registered without a callback is called
type CallEvent struct {
	Name     string `json:"name"`
	ArgsJSON string `json:"args"`
}

// CallListener the call event listener
type CallListener func(event CallEvent)

type listeners struct {
	mutex sync.RWMutex
	last  int
	items map[int]CallListener
	order []int
}

type pendingFile struct {
	name string
	code string
}

type pendingCall struct {
	name     string
	callback CallCallback
}
