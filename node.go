// Package node hosts an embedded JavaScript engine behind a single worker
// goroutine. Every operation is validated on the caller's goroutine, then
// dispatched to the worker that owns the interpreter; completion is reported
// through callbacks.
package node

import (
	"github.com/yaoapp/node/runtime"

	// the default interpreter backend
	_ "github.com/yaoapp/node/runtime/goja"
)

// MainScriptFileName the reserved name of the main entry script
const MainScriptFileName = runtime.MainFile

// The reserved main script name policies
const (
	ReservedWarn   = "warn"   // DefineScriptFile with the main script name is a logged no-op
	ReservedStrict = "strict" // DefineScriptFile with the main script name fails with InvalidArgument
)

// The run modes
const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
)

const helperOrigin = "node:helper"

// GetMainScriptFileName the name of the main entry script
func GetMainScriptFileName() string {
	return MainScriptFileName
}
