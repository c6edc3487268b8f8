package node

import (
	"path/filepath"
	"sync"

	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/node/exception"
	"github.com/yaoapp/node/runtime"
)

// the process-wide initialization, the interpreters can only be set up once
// per process and share the working directory
var global = struct {
	mutex       sync.Mutex
	initialized map[string]bool
	root        string
}{initialized: map[string]bool{}}

// initialize run the one-time setup of the backend. The working directory is
// recorded by the first successful setup, another one is a conflict.
func initialize(name string, factory runtime.Factory, dir string) error {
	root, err := filepath.Abs(dir)
	if err != nil {
		return exception.New(exception.InvalidArgument, "The working directory %s is invalid: %s", dir, err.Error())
	}

	global.mutex.Lock()
	defer global.mutex.Unlock()

	if global.root != "" && global.root != root {
		log.Error("[node] Cannot start multiple Node instances with different working directories. %s is used, %s given", global.root, root)
		return exception.New(exception.InvalidState, "Cannot start multiple Node instances with different working directories.")
	}

	if global.initialized[name] {
		return nil
	}

	if err := factory.Setup(root); err != nil {
		log.Error("[node] Failed to initialize Node engine. %s", err.Error())
		return exception.Wrap(exception.EngineInternal, err)
	}

	global.initialized[name] = true
	global.root = root
	return nil
}

// WorkingDirectory the working directory recorded by the first start
func WorkingDirectory() string {
	global.mutex.Lock()
	defer global.mutex.Unlock()
	return global.root
}
