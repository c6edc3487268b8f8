// Package goja the default interpreter backend, a pure Go ES engine with a
// node style require over the defined script files.
package goja

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/node/exception"
	"github.com/yaoapp/node/runtime"
)

// Name the backend name
const Name = "goja"

// Factory the goja interpreter factory
type Factory struct{}

// Interpreter the goja interpreter
type Interpreter struct {
	root    string
	vm      *goja.Runtime
	natives *goja.Object
	files   map[string]string
	modules *require.RequireModule
	cache   *Cache
	timers  *runtime.Timers
	started bool
}

func init() {
	runtime.Register(Name, Factory{})
}

// Setup check the working directory, goja itself needs no process-wide setup
func (Factory) Setup(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("the working directory %s is not available: %s", root, err.Error())
	}

	if !info.IsDir() {
		return fmt.Errorf("the working directory %s is not a directory", root)
	}
	return nil
}

// New create a new goja interpreter
func (Factory) New(option runtime.Option) (runtime.Interpreter, error) {
	return New(option), nil
}

// New create a new goja interpreter
func New(option runtime.Option) *Interpreter {
	root := option.Root
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}

	vm := goja.New()
	natives := vm.NewObject()
	process := vm.NewObject()
	process.Set("natives", natives)
	process.Set("platform", "goja")
	process.Set("cwd", func(goja.FunctionCall) goja.Value { return vm.ToValue(root) })
	vm.Set("process", process)

	interp := &Interpreter{
		root:    root,
		vm:      vm,
		natives: natives,
		files:   map[string]string{},
		cache:   shared(option.CacheSize),
	}

	if option.Scheduler != nil {
		interp.timers = runtime.NewTimers(option.Scheduler)
		interp.bindTimers(vm, interp.timers)
	}
	return interp
}

// DefineFile define a named script file
func (interp *Interpreter) DefineFile(name string, source string) error {
	interp.files[normalize(name)] = source
	return nil
}

// DefineMainFile define the main entry script
func (interp *Interpreter) DefineMainFile(source string) error {
	interp.files[runtime.MainFile] = source
	return nil
}

// SetNative register a native function as process.natives[name]
func (interp *Interpreter) SetNative(name string, fn runtime.NativeFunc) error {
	if interp.vm == nil {
		return exception.New(exception.InvalidState, "the goja runtime is stopped")
	}

	return interp.natives.Set(name, func(call goja.FunctionCall) goja.Value {
		fn(arguments(call)...)
		return goja.Undefined()
	})
}

// Start enable require, then run the main file as a module
func (interp *Interpreter) Start() error {
	if interp.vm == nil {
		return exception.New(exception.InvalidState, "the goja runtime is stopped")
	}

	if interp.started {
		return exception.New(exception.InvalidState, "the goja runtime is already started")
	}

	registry := require.NewRegistry(
		require.WithLoader(interp.load),
		require.WithGlobalFolders("."),
	)
	interp.modules = registry.Enable(interp.vm)

	if _, has := interp.files[runtime.MainFile]; has {
		if _, err := interp.modules.Require("./" + runtime.MainFile); err != nil {
			return evaluationError(err)
		}
	}

	interp.started = true
	log.Trace("[goja] runtime started. root: %s, files: %d", interp.root, len(interp.files))
	return nil
}

// Evaluate run the source code
func (interp *Interpreter) Evaluate(source string, origin string) error {
	_, err := interp.run(source, origin)
	return err
}

// EvaluateFunction run the source code, the completion value must be a function
func (interp *Interpreter) EvaluateFunction(source string, origin string) (runtime.Function, error) {
	value, err := interp.run(source, origin)
	if err != nil {
		return nil, err
	}

	fn, ok := goja.AssertFunction(value)
	if !ok {
		return nil, exception.New(exception.EngineEvaluation, "%s is not a function", origin)
	}
	return &function{interp: interp, fn: fn}, nil
}

// Loop goja drains the promise jobs when the outermost call returns, the
// timers are delivered through the scheduler, so there is nothing to pump
func (interp *Interpreter) Loop() error {
	if interp.vm == nil {
		return exception.New(exception.InvalidState, "the goja runtime is stopped")
	}
	return nil
}

// Stop cancel the timers and release the runtime
func (interp *Interpreter) Stop() error {
	if interp.vm == nil {
		return nil
	}

	if interp.timers != nil {
		interp.timers.Clear()
	}

	interp.vm.Interrupt("the goja runtime is stopped")
	interp.vm = nil
	interp.natives = nil
	interp.modules = nil
	interp.started = false
	log.Trace("[goja] runtime stopped. root: %s", interp.root)
	return nil
}

func (interp *Interpreter) run(source string, origin string) (goja.Value, error) {
	if interp.vm == nil {
		return nil, exception.New(exception.InvalidState, "the goja runtime is stopped")
	}

	program, err := interp.cache.Compile(origin, source)
	if err != nil {
		return nil, evaluationError(err)
	}

	value, err := interp.vm.RunProgram(program)
	if err != nil {
		return nil, evaluationError(err)
	}
	return value, nil
}

// function a goja function handle
type function struct {
	interp *Interpreter
	fn     goja.Callable
}

// Call call the function with string arguments
func (f *function) Call(args ...string) error {
	if f.fn == nil || f.interp.vm == nil {
		return exception.New(exception.InvalidState, "the function is released")
	}

	values := make([]goja.Value, 0, len(args))
	for _, arg := range args {
		values = append(values, f.interp.vm.ToValue(arg))
	}

	_, err := f.fn(goja.Undefined(), values...)
	if err != nil {
		return evaluationError(err)
	}
	return nil
}

// Release drop the function reference
func (f *function) Release() {
	f.fn = nil
}

func evaluationError(err error) error {
	switch e := err.(type) {
	case *goja.Exception:
		if obj, ok := e.Value().(*goja.Object); ok {
			if message := obj.Get("message"); message != nil && !goja.IsUndefined(message) {
				return exception.New(exception.EngineEvaluation, "%s", message.String())
			}
		}
		return exception.New(exception.EngineEvaluation, "%s", e.Value().String())

	case *goja.InterruptedError:
		return exception.New(exception.InvalidState, "%s", e.Error())
	}
	return exception.Wrap(exception.EngineEvaluation, err)
}
